package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// ListEnrollments returns the courses the caller is enrolled in.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := h.enrollments.ListForUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeEnrollments(e, list) })
}

// CourseAccess answers 200 when the caller is enrolled in the course and 403
// otherwise.
func (h *Handler) CourseAccess(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseId")
	if err := h.enrollments.CheckAccess(r.Context(), userID(r), courseID); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("courseId", func(e *jx.Encoder) { e.Str(courseID) })
			e.Field("enrolled", func(e *jx.Encoder) { e.Bool(true) })
		})
	})
}

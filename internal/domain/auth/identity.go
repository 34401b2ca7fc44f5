// Package auth models the authenticated caller. Identity issuance is an
// external concern; this package only carries the verified identity through
// request contexts.
package auth

import (
	"context"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

// ErrUnauthorized is returned when a request carries no valid identity.
var ErrUnauthorized = apperr.New(apperr.Unauthorized, "authentication required")

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

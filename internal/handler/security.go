package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/academy-commerce/internal/domain/auth"
)

// Compile-time check ensuring JWTVerifier satisfies auth.Verifier.
var _ auth.Verifier = (*JWTVerifier)(nil)

const clockSkew = 30 * time.Second

// Claims is the token layout issued by the identity service.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTVerifier returns a verifier for tokens signed with secret. When issuer
// is not empty the iss claim must match it.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{secret: []byte(secret), opts: opts}, nil
}

// Verify parses token and returns the identity it carries. Every failure is
// auth.ErrUnauthorized wrapping the parser error.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, errors.Wrap(auth.ErrUnauthorized, err.Error())
	}
	if claims.UserID == "" {
		return nil, errors.Wrap(auth.ErrUnauthorized, "token has no user id")
	}
	return &auth.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func RequireAuth(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, r, auth.ErrUnauthorized)
				return
			}
			id, err := v.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
				writeError(w, r, err)
				return
			}
			ctx := auth.WithIdentity(r.Context(), id)
			ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userID returns the caller id stored by RequireAuth.
func userID(r *http.Request) string {
	if id := auth.FromContext(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

// TokenVerifier resolves a bearer token into the identity it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (domain.Identity, error)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", domain.ErrNoAuthToken
	}

	if token = strings.TrimSpace(token); token == "" {
		return "", domain.ErrNoAuthToken
	}

	return token, nil
}

// AuthorizingMiddleware creates middleware that validates bearer tokens.
// Requests without a valid token are rejected with 401, requests whose
// identity lacks one of the required roles with 403. An empty required set
// admits every authenticated identity.
// On success the identity is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	verifier TokenVerifier,
	required domain.RoleSet,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, err := BearerToken(r)
		if err != nil {
			log.DebugContext(ctx, "no token provided")
			WriteError(w, err)

			return
		}

		identity, err := verifier.VerifyToken(ctx, token)
		if err != nil {
			if status, _ := StatusFromError(err); status == http.StatusInternalServerError {
				err = errors.Join(domain.ErrMalformedToken, err)
			}

			log.WarnContext(ctx, "verify token failed", "error", err)
			WriteError(w, err)

			return
		}

		ctx = context_.WithIdentity(ctx, identity)

		if !identity.Roles.HasAll(required) {
			log.WarnContext(ctx, "missing role", "required", required.String())
			WriteError(w, domain.ErrForbidden)

			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

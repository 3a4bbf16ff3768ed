package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"canopy/internal/claim/models"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/platform/httputil"
)

type actorKey struct{}

// actorClaims are the JWT claims the gateway in front of this service issues.
// sub carries the actor UUID; role is contributor or verifier.
type actorClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GetActor retrieves the authenticated actor from the context. The zero Actor
// means the request was not authenticated.
func GetActor(ctx context.Context) models.Actor {
	if actor, ok := ctx.Value(actorKey{}).(models.Actor); ok {
		return actor
	}
	return models.Actor{}
}

// WithActor returns a context carrying the given actor. Intended for tests
// that exercise handlers without the full middleware chain.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequireActor authenticates requests with an HMAC-signed bearer token and
// places the resolved actor on the context.
func RequireActor(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", GetRequestID(ctx))
				httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "Missing or invalid Authorization header",
				})
				return
			}

			actor, err := parseActorToken(token, signingKey)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err,
					"request_id", GetRequestID(ctx))
				httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "Invalid or expired token",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func parseActorToken(tokenString string, signingKey []byte) (models.Actor, error) {
	var claims actorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return models.Actor{}, err
	}
	if !token.Valid {
		return models.Actor{}, dErrors.New(dErrors.CodeForbidden, "invalid token")
	}

	actorID, err := id.ParseActorID(claims.Subject)
	if err != nil {
		return models.Actor{}, err
	}
	role := models.Role(claims.Role)
	if role != models.RoleContributor && role != models.RoleVerifier {
		return models.Actor{}, dErrors.New(dErrors.CodeForbidden, "unknown role")
	}

	return models.Actor{ID: actorID, Name: claims.Name, Role: role}, nil
}

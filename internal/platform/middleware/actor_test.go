package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/claim/models"
	"canopy/pkg/testutil"
)

var testSigningKey = []byte("test-signing-key-for-actor-auth")

func signToken(t *testing.T, actor models.Actor, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
		Name: actor.Name,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestRequireActor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var captured models.Actor
	handler := RequireActor(testSigningKey, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetActor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token resolves actor", func(t *testing.T) {
		verifier := testutil.Verifier()
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, verifier, testSigningKey))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, verifier.ID, captured.ID)
		assert.Equal(t, models.RoleVerifier, captured.Role)
		assert.True(t, captured.CanVerify())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testutil.Contributor(), []byte("other-key")))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		contributor := testutil.Contributor()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
			Role: string(contributor.Role),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   contributor.ID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		signed, err := token.SignedString(testSigningKey)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		actor := testutil.Contributor()
		actor.Role = "auditor"
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, actor, testSigningKey))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetActorAbsent(t *testing.T) {
	actor := GetActor(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.True(t, actor.ID.IsNil())
}

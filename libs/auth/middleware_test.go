package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	owner := BusinessContext{BusinessID: "b", Role: RoleOwner}
	staff := BusinessContext{BusinessID: "b", Role: "staff", Permissions: []string{PermAppointmentsCreate}}

	assert.True(t, owner.HasPermission(PermSettingsEdit))
	assert.True(t, staff.HasPermission(PermAppointmentsCreate))
	assert.False(t, staff.HasPermission(PermAppointmentsEdit))
}

func TestRequireAuthAndPermission(t *testing.T) {
	const secret = "mw-secret"
	v := NewVerifier(secret, nil)

	var seen BusinessContext
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = BusinessContextFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAuth(v, nil)(RequirePermission(PermAppointmentsView, nil)(final))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("permitted", func(t *testing.T) {
		token, err := SignHS256(testClaims(time.Now().Add(time.Hour)), secret)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "biz-1", seen.BusinessID)
		assert.Equal(t, "user-1", seen.UserID)
	})

	t.Run("forbidden", func(t *testing.T) {
		claims := testClaims(time.Now().Add(time.Hour))
		claims.Permissions = nil
		token, err := SignHS256(claims, secret)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"you don't have the required permissions"}`, rec.Body.String())
	})
}

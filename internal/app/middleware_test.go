package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestTenantMiddleware(t *testing.T) {
	var got shared.Tenant
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := shared.TenantFromContext(r.Context())
		require.True(t, ok)
		got = tenant
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journals", nil)
	req.Header.Set("X-Org-ID", "42")
	req.Header.Set("X-Actor-ID", "7")
	rec := httptest.NewRecorder()
	tenantMiddleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(42), got.OrgID)
	require.Equal(t, int64(7), got.ActorID)
}

func TestTenantMiddlewareRejectsMissingOrg(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/journals", nil)
	rec := httptest.NewRecorder()
	tenantMiddleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoice-dashboard/internal/cache"
	"github.com/diewo77/invoice-dashboard/internal/handlers"
	"github.com/diewo77/invoice-dashboard/internal/models"
	"github.com/diewo77/invoice-dashboard/internal/repository"
	"github.com/diewo77/invoice-dashboard/internal/services"
	"github.com/diewo77/invoice-dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServer(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCustomers(t, db, models.Customer{ID: "abc", Name: "Amy Burns"})

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	pages := cache.NewPageCache(time.Minute)
	svc := services.NewInvoiceService(repository.NewGormInvoiceStore(db), pages, services.WithLogger(log))
	return New(db, handlers.NewInvoiceHandler(svc, pages, log), log), logs
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String(), path)
	}
}

func TestRootRedirects(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/invoices", w.Header().Get("Location"))
}

func TestRequestLogging(t *testing.T) {
	h, logs := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/dashboard/invoices", strings.NewReader("customerId=abc&amount=5&status=paid"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.EqualValues(t, http.StatusSeeOther, fields["status"])
	assert.Equal(t, "/dashboard/invoices", fields["path"])
}

func TestPreferences_Language(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/invoices/create?lang=en", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Create Invoice")
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, "en", w.Result().Cookies()[0].Value)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/invoices/create", nil)
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Contains(t, w.Body.String(), "Create Invoice")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/invoices/create", nil))
	assert.Contains(t, w.Body.String(), "Créer une facture")
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := withRecover(zap.New(core), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Panic while serving request").Len())
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_ObserveCycle(t *testing.T) {
	r := NewReconciler()

	r.ObserveCycle(service.Summary{Total: 10, Expired: 2, Removed: 1, Warned: 3, Failures: 1}, 1500*time.Millisecond)
	r.ObserveCycle(service.Summary{Total: 8, Warned: 1}, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.records.WithLabelValues("expired")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.records.WithLabelValues("warned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.activeRecords))
}

func TestReconciler_Handler(t *testing.T) {
	r := NewReconciler()
	r.ObserveCycle(service.Summary{Total: 1}, time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediashare_reconciler_cycles_total 1")
	assert.Contains(t, rec.Body.String(), "mediashare_reconciler_active_entitlements 1")
}

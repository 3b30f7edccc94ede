package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpstream(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.UpstreamRequests.WithLabelValues("markets", "error"))
	RecordUpstream("markets", 0.2, errors.New("boom"))
	after := testutil.ToFloat64(DefaultMetrics.UpstreamRequests.WithLabelValues("markets", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheLookup(t *testing.T) {
	hit := DefaultMetrics.CacheLookups.WithLabelValues("CategoryList", "hit")
	before := testutil.ToFloat64(hit)
	RecordCacheLookup("CategoryList", true)
	assert.Equal(t, before+1, testutil.ToFloat64(hit))
}

func TestSetWSClients(t *testing.T) {
	SetWSClients(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(DefaultMetrics.WSClients))
	SetWSClients(0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordChartBuild("treemap", "ready")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dtfscope_dashboard_chart_builds_total")
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/v1/materials", 200, 12*time.Millisecond)
	m.ObserveQuery("select", "material", 3*time.Millisecond)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.EventPublished("purchase_order.approved")
	m.EventPublished("purchase_order.approved")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.domainEvents.WithLabelValues("purchase_order.approved")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, name := range []string{
		`http_request_duration_ms_count{method="GET",route="/api/v1/materials",status_code="200"} 1`,
		`db_query_duration_ms_count{model="material",operation="select"} 1`,
		"active_connections 1",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}
}

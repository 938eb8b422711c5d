package infra

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
)

func TestInitMetricsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() { InitMetrics() })
	assert.NotPanics(t, func() { InitMetrics() })
}

func TestMetricsHandlerServesContent(t *testing.T) {
	RecordSample(0, "ok")
	handler := Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "adc_samples_total")
}

func TestHTTPMiddlewareRecordsMetrics(t *testing.T) {
	beforeRequests := testutil.ToFloat64(HttpRequestsTotal)
	beforeErrors := testutil.ToFloat64(HttpRequestErrorsTotal)

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, beforeRequests+1, testutil.ToFloat64(HttpRequestsTotal))
	assert.Equal(t, beforeErrors+1, testutil.ToFloat64(HttpRequestErrorsTotal))
}

func TestAcquisitionMetricHelpers(t *testing.T) {
	before := testutil.ToFloat64(ReadAttemptsTotal.WithLabelValues("adc9", "busy"))
	RecordReadAttempt("adc9", "busy")
	assert.Equal(t, before+1, testutil.ToFloat64(ReadAttemptsTotal.WithLabelValues("adc9", "busy")))

	SetQueueDepth("adc9", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(QueueDepth.WithLabelValues("adc9")))

	ObserveAcquisition("adc9", -time.Second)
	RecordDBBatchFlush(time.Millisecond, 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(DbBatchSize))
}

func TestGRPCServerOptionsInstrumentServer(t *testing.T) {
	server := grpc.NewServer(GRPCServerOptions()...)
	defer server.Stop()
	assert.NotPanics(t, func() { RegisterGRPCServer(server) })
}

package infra

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

const namespace = "adc"

var (
	// Acquisition metrics
	SamplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_total",
		Help:      "Completed sample requests by channel and outcome",
	}, []string{"channel", "outcome"})
	ReadAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "raw_read_attempts_total",
		Help:      "Raw converter reads by converter and result",
	}, []string{"converter", "result"})
	AcquisitionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "acquisition_duration_seconds",
		Help:      "Time from request submission to completion",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"converter"})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "converter_queue_depth",
		Help:      "Requests waiting for each converter",
	}, []string{"converter"})

	// HTTP metrics
	HttpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	})
	HttpRequestErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_request_errors_total",
		Help:      "Total number of HTTP request errors",
	})
	ProcessingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_processing_duration_seconds",
		Help:      "Duration of request processing in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	// Database metrics
	DbBatchFlushTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_batch_flush_total",
		Help:      "Total number of database batch flush operations",
	})
	DbBatchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_batch_duration_seconds",
		Help:      "Duration of database batch flush operations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	DbBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_batch_size",
		Help:      "Size of the last flushed batch",
	})
	DbWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_write_errors_total",
		Help:      "Result rows that could not be written",
	})

	// Scheduler metrics
	SchedulerBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_batches_total",
		Help:      "Total number of request batches produced by the scheduler",
	})

	// Worker pool metrics
	WorkerPoolActiveGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_pool_active_goroutines",
		Help:      "Number of active worker pool goroutines",
	})

	registerOnce      sync.Once
	metricsServerOnce sync.Once
)

// InitMetrics registers all Prometheus collectors used by the application.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SamplesTotal,
			ReadAttemptsTotal,
			AcquisitionDurationSeconds,
			QueueDepth,
			HttpRequestsTotal,
			HttpRequestErrorsTotal,
			ProcessingDurationSeconds,
			DbBatchFlushTotal,
			DbBatchDurationSeconds,
			DbBatchSize,
			DbWriteErrorsTotal,
			SchedulerBatchesTotal,
			WorkerPoolActiveGoroutines,
		)
		grpc_prometheus.EnableHandlingTimeHistogram()
	})
}

// Handler returns an HTTP handler that exposes the registered Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// StartMetricsServer exposes Prometheus metrics on :port/metrics. An empty
// port disables the listener.
func StartMetricsServer(ctx context.Context, port string, logger *Logger) {
	InitMetrics()
	if port == "" {
		return
	}
	metricsServerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(ctx, "metrics server error: %v", err)
			}
		}()
	})
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
func HTTPMiddleware(next http.Handler) http.Handler {
	InitMetrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			ProcessingDurationSeconds.Observe(time.Since(start).Seconds())
			HttpRequestsTotal.Inc()
			if recorder.status >= http.StatusBadRequest {
				HttpRequestErrorsTotal.Inc()
			}
		}()

		next.ServeHTTP(recorder, r)
	})
}

// GRPCServerOptions returns the interceptors that feed the grpc_server_* metrics.
func GRPCServerOptions() []grpc.ServerOption {
	InitMetrics()
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
}

// RegisterGRPCServer initialises per-method metrics for every registered service.
func RegisterGRPCServer(server *grpc.Server) {
	InitMetrics()
	grpc_prometheus.Register(server)
}

// RecordSample counts one completed request.
func RecordSample(channel int, outcome string) {
	InitMetrics()
	SamplesTotal.WithLabelValues(strconv.Itoa(channel), outcome).Inc()
}

// RecordReadAttempt counts one raw converter read.
func RecordReadAttempt(converter, result string) {
	InitMetrics()
	ReadAttemptsTotal.WithLabelValues(converter, result).Inc()
}

// ObserveAcquisition tracks submission-to-completion latency.
func ObserveAcquisition(converter string, duration time.Duration) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	AcquisitionDurationSeconds.WithLabelValues(converter).Observe(duration.Seconds())
}

// SetQueueDepth publishes the current queue length of a converter.
func SetQueueDepth(converter string, depth int) {
	InitMetrics()
	QueueDepth.WithLabelValues(converter).Set(float64(depth))
}

// RecordDBBatchFlush tracks a completed database batch flush.
func RecordDBBatchFlush(duration time.Duration, size int) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	DbBatchFlushTotal.Inc()
	DbBatchDurationSeconds.Observe(duration.Seconds())
	DbBatchSize.Set(float64(size))
}

func IncDBWriteErrors() {
	InitMetrics()
	DbWriteErrorsTotal.Inc()
}

func IncSchedulerBatches() {
	InitMetrics()
	SchedulerBatchesTotal.Inc()
}

func WorkerStarted() {
	InitMetrics()
	WorkerPoolActiveGoroutines.Inc()
}

func WorkerFinished() {
	InitMetrics()
	WorkerPoolActiveGoroutines.Dec()
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

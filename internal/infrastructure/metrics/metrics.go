package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Messages accepted into conversations
	MessagesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "messages_ingested_total",
			Help:      "Total messages accepted, by sender role",
		},
		[]string{"sender_role"},
	)

	// Conversations
	ConversationsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "conversations_started_total",
			Help:      "Total conversations created, by participant kind",
		},
		[]string{"participant_kind"},
	)

	// Access denials from the permission gate
	AccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "access_denied_total",
			Help:      "Requests rejected by the access gate, by error type",
		},
		[]string{"error_type"},
	)

	// Auth requests
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "auth_requests_total",
			Help:      "Total authentication attempts",
		},
		[]string{"auth_type", "status"},
	)

	// Retention sweeper
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "sweep_runs_total",
			Help:      "Total retention sweep executions",
		},
	)

	SweepPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "sweep_purged_conversations_total",
			Help:      "Total conversations purged by the retention sweeper",
		},
	)

	SweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staybook",
			Subsystem: "chat_api",
			Name:      "sweep_errors_total",
			Help:      "Total retention sweep failures",
		},
	)
)

// RecordRequest records an HTTP request with all relevant labels
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordMessageIngested records an accepted message by sender role
func RecordMessageIngested(senderRole string) {
	MessagesIngestedTotal.WithLabelValues(senderRole).Inc()
}

// RecordConversationStarted records a new conversation by participant kind
func RecordConversationStarted(participantKind string) {
	ConversationsStartedTotal.WithLabelValues(participantKind).Inc()
}

// RecordAccessDenied records a gate rejection by error type
func RecordAccessDenied(errorType string) {
	AccessDeniedTotal.WithLabelValues(errorType).Inc()
}

// RecordAuthRequest records an authentication attempt
func RecordAuthRequest(authType, status string) {
	AuthRequestsTotal.WithLabelValues(authType, status).Inc()
}

// RecordSweep records a retention sweep run and how many conversations it purged
func RecordSweep(purged int, err error) {
	SweepRunsTotal.Inc()
	if err != nil {
		SweepErrorsTotal.Inc()
		return
	}
	SweepPurgedTotal.Add(float64(purged))
}

// Server exposes the Prometheus registry on a dedicated port.
type Server struct {
	srv *http.Server
}

// NewServer builds the metrics HTTP server listening on the given port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

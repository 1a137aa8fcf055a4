//Package metrics exposes prometheus counters for the bot along with liveness and readiness probes.
package metrics

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

//Counters are package level so that stores and handlers can record events without being handed the
//server instance. They are only exported over HTTP once registered with a Server.
var (
	grantOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactbot_grant_outcomes_total",
			Help: "Reaction and claim events by evaluator outcome",
		},
		[]string{"source", "outcome"},
	)
	commandInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactbot_command_invocations_total",
			Help: "Commands handled by name and result",
		},
		[]string{"command", "result"},
	)
	persistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactbot_persistence_failures_total",
			Help: "Failed document writes by document and sink",
		},
		[]string{"document", "sink"},
	)
)

//RecordGrantOutcome counts an evaluated reaction or claim. source is "reaction" or "button".
func RecordGrantOutcome(source, outcome string) {
	grantOutcomes.WithLabelValues(source, outcome).Inc()
}

//RecordCommand counts a handled command
func RecordCommand(command, result string) {
	commandInvocations.WithLabelValues(command, result).Inc()
}

//RecordPersistenceFailure counts a failed local write ("file") or mirror attempt
func RecordPersistenceFailure(document, sink string) {
	persistenceFailures.WithLabelValues(document, sink).Inc()
}

//ReadinessChecker reports whether the bot is connected and ready
type ReadinessChecker func() bool

//Server serves /metrics and /healthz probes
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

//NewServer creates a metrics server with its own registry
func NewServer(addr string, isReady ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(grantOutcomes, commandInvocations, persistenceFailures)
	return &Server{
		addr:     addr,
		registry: registry,
		isReady:  isReady,
	}
}

//Start begins listening. Errors after startup are delivered on the returned channel, which is closed
//once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("METRICS_ALREADY_RUNNING").Errorf("metrics server already running")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("METRICS_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logrus.Errorf("Metrics server stopped with error %v", serveErr)
			errCh <- serveErr
		}
	}()
	logrus.Infof("Metrics server listening on %v", listener.Addr().String())
	return errCh, nil
}

//Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("METRICS_SHUTDOWN_FAILED").Wrap(err)
	}
	logrus.Info("Metrics server stopped")
	return nil
}

//Addr returns the bound address, or an empty string if the server has not started
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n"))
}

// Package queryapi exposes the processor's and bus's read contracts over
// HTTP, grounded on the correlator's internal/api/http.go and the
// orchestrator's gorilla/mux routing style.
package queryapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aegisflux/obsfabric/internal/detect"
	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/aegisflux/obsfabric/internal/processor"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricSource is the processor's read-side contract this API serves.
type MetricSource interface {
	QueryMetric(key string, windowSeconds float64) []processor.Sample
	MetricStats(key string) (processor.Stats, bool)
	ListMetricKeys() []string
	RecentEvents(eventType fabric.EventType, limit int) []fabric.Record
	Counters() processor.Counters
}

// PipelineSource is the detection pipeline's read-side contract.
type PipelineSource interface {
	Counters() (ticksRun, anomaliesFired int)
	StateOf(key string) detect.MetricState
}

// Server wires the HTTP surface described in SPEC_FULL.md §6.
type Server struct {
	router   *mux.Router
	proc     MetricSource
	pipeline PipelineSource
	bus      *fabric.Bus
	log      *slog.Logger

	ready atomic.Bool
}

func New(proc MetricSource, pipeline PipelineSource, bus *fabric.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		router:   mux.NewRouter(),
		proc:     proc,
		pipeline: pipeline,
		bus:      bus,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/metrics/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/metrics/history", s.handleHistory).Methods("GET")
	s.router.HandleFunc("/metrics/keys", s.handleKeys).Methods("GET")
	s.router.HandleFunc("/anomalies", s.handleAnomalies).Methods("GET")
	s.router.HandleFunc("/events", s.handleEvents).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/readyz", s.handleReady).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MarkReady flips the readyz response to ready; called by main once every
// long-running component has started successfully.
func (s *Server) MarkReady() { s.ready.Store(true) }

// Run starts the HTTP server on addr and blocks until ctx is cancelled,
// then shuts down within a grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("query api listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

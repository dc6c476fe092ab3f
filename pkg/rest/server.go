package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/supervisor"
)

const mimeJSON = "application/json"

// StatusSource is the supervisor surface the status API needs.
type StatusSource interface {
	Services() []supervisor.ServiceInfo
	Service(name string) (supervisor.ServiceInfo, bool)
	RestartService(name string) error
}

// Handler wraps a StatusSource, adding http.Handler functionality.
type Handler struct {
	source StatusSource
	router *mux.Router
}

// NewHandler builds the status API routes. A nil registry omits /metrics.
func NewHandler(source StatusSource, registry *prometheus.Registry) *Handler {
	h := &Handler{
		source: source,
		router: mux.NewRouter(),
	}

	h.router.HandleFunc("/healthz", h.health).Methods("GET")
	h.router.HandleFunc("/api/services", h.listServices).Methods("GET")
	h.router.HandleFunc("/api/services/{service}", h.getService).Methods("GET")
	h.router.HandleFunc("/api/services/{service}/restart", h.restartService).Methods("POST")
	if registry != nil {
		h.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mimeJSON)
	w.Write(b)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.source.Services())
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["service"]
	info, ok := h.source.Service(name)
	if !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, info)
}

func (h *Handler) restartService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["service"]
	if _, ok := h.source.Service(name); !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	if err := h.source.RestartService(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Server serves the status API until its context is cancelled.
type Server struct {
	server *http.Server
	logger logging.Logger
}

// NewServer creates a status server on the given address.
func NewServer(address string, handler *Handler, logger logging.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run listens in the background and shuts the listener down when the
// context is cancelled. Listener failures are logged, not fatal: the stack
// must keep running without its status surface.
func (s *Server) Run(ctx context.Context) {
	go func() {
		s.logger.Infof("Status API listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Status API listener failed: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()
}

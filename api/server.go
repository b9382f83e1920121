package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"slotwatch/config"
	"slotwatch/slot"
	"slotwatch/snapshot"
	"slotwatch/types"

	"github.com/gorilla/mux"
)

// Server serves stored snapshots read-only. Missing or broken data is never an HTTP error:
// it renders as an empty list so the read path stays up while the writer is degraded.
type Server struct {
	store  *snapshot.Store
	clocks slot.Clocks
	logger *slog.Logger
	now    func() time.Time
	router *mux.Router
}

func NewServer(store *snapshot.Store, clocks slot.Clocks, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		clocks: clocks,
		logger: logger,
		now:    time.Now,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	s.router.HandleFunc("/api/slots/{network}", s.handleSlots).Methods(http.MethodGet)
	s.router.HandleFunc("/api/networks", s.handleNetworks).Methods(http.MethodGet)
	s.router.HandleFunc("/api/clients", s.handleClients).Methods(http.MethodGet)
	s.router.HandleFunc("/api/clock/{network}", s.handleClock).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving slot API", "addr", addr, "data_dir", s.store.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", "err", err)
	}
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	count := config.DefaultSlotCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			count = n
		}
	}

	network, err := types.ParseNetwork(mux.Vars(r)["network"])
	if err != nil {
		s.logger.Warn("Slots requested for unknown network", "network", mux.Vars(r)["network"])
		s.writeJSON(w, []types.SlotEntry{})
		return
	}

	entries, err := s.store.Latest(network, count)
	if err != nil {
		s.logger.Error("Failed to read slots", "network", network, "err", err)
		s.writeJSON(w, []types.SlotEntry{})
		return
	}
	s.logger.Debug("Serving slots", "network", network, "requested", count, "returned", len(entries))
	s.writeJSON(w, entries)
}

func (s *Server) handleNetworks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.store.Networks())
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.store.Clients())
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	network, err := types.ParseNetwork(mux.Vars(r)["network"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	clock, err := s.clocks.For(network)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, clock.Info(network, s.now()))
}

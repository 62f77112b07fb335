package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/repository"
)

// Store is what the ops endpoint reads from the ledger.
type Store interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (repository.UserCounts, error)
}

type Server struct {
	Serv  *http.Server
	store Store
	log   *logrus.Logger
}

func New(addr string, store Store, log *logrus.Logger) *Server {
	s := &Server{store: store, log: log}
	s.Serv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("ops request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("failed to read stats")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) Start() {
	go func() {
		s.log.WithField("address", s.Serv.Addr).Info("🩺 ops endpoint listening")
		if err := s.Serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("ops endpoint stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.Serv.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Error("ops endpoint shutdown error")
		return err
	}
	s.log.Info("⏹️ ops endpoint stopped")
	return nil
}

// Package httpserver exposes the list store as a JSON API for the browser
// extension front end.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bunchhieng/gdaes/internal/config"
	"github.com/bunchhieng/gdaes/internal/httpserver/mw"
	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/logger"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http            *http.Server
	logger          logger.Logger
	shutdownTimeout time.Duration
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg config.HTTPConfig, store *lists.Store, log logger.Logger, version string) *Server {
	api := NewAPI(store, log, version)

	s := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		http:            s,
		logger:          log,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Routes builds the router with global middlewares.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(mw.Log(a.log))

	r.Get("/healthz", a.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/collection", a.getCollection)
		r.Post("/lists", a.createList)
		r.Patch("/lists/{name}", a.renameList)
		r.Delete("/lists/{name}", a.deleteList)
		r.Post("/lists/{name}/links", a.addLink)
		r.Delete("/lists/{name}/links/{index}", a.deleteLink)
		r.Get("/lists/{name}/open", a.openList)
		r.Post("/drop", a.drop)
		r.Get("/search", a.search)
		r.Get("/export", a.export)
		r.Post("/import", a.importDocument)
		r.Get("/backups", a.listBackups)
		r.Post("/backups/{key}/restore", a.restoreBackup)
	})

	return r
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

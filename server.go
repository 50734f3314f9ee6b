package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address  string
	logger   *logrus.Logger
	store    *Store
	cfg      *Config
	sessions *sessionManager
	views    *renderer
}

// NewServer wires the store and the session manager into a server listening on cfg.Address.
func NewServer(cfg *Config, logger *logrus.Logger, store *Store) (*Server, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		address:  cfg.Address,
		logger:   logger,
		store:    store,
		cfg:      cfg,
		sessions: newSessionManager(cfg.SecretKey, cfg.SessionTTL, cfg.CookieSecure),
		views:    views,
	}, nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	defineRoutes(router, s)
	return router
}

// Start serves until ctx is cancelled, then shuts the listener down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.WithField("address", s.address).Info("server has been started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server is shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

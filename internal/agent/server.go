package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/livesync/internal/authtoken"
)

// Server is a stand-in for the device side of livesync: it stores pushed
// files under a local root and answers sync operations like an app would.
type Server struct {
	config *Config
	server *http.Server
	hub    *sessionHub
	store  *Store
	apps   *AppRegistry
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := NewStore(config.Root)
	if err != nil {
		return nil, err
	}
	apps := NewAppRegistry()
	m := newMetrics()
	hub := newSessionHub(store, apps, m, config.ApplyDelay)

	var verifier *authtoken.Verifier
	if config.Secret != "" {
		if verifier, err = authtoken.NewVerifier(config.Secret); err != nil {
			return nil, err
		}
	}

	h := &handlers{store: store, apps: apps, metrics: m, hub: hub}
	routes, err := setupRoutes(h, hub, m, &routeConfig{verifier: verifier, rateLimit: config.RateLimit})
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		hub:    hub,
		store:  store,
		apps:   apps,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           routes,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the routes, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Apps() *AppRegistry {
	return s.apps
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	slog.Info("agent start", "addr", s.config.Addr, "root", s.store.root)
	defer slog.Info("agent stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.Stop(ctx)
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	s.hub.Shutdown()
	return s.server.Shutdown(shutdownCtx)
}

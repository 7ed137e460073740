// Package httpapi exposes the auth service over HTTP: health, register, login,
// token introspection and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Norrels/Upframer-auth/internal/logging"
	"github.com/Norrels/Upframer-auth/internal/server/auth"
	"github.com/Norrels/Upframer-auth/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Authenticate(ctx context.Context, token string) (*auth.TokenPayload, error)
}

type HTTPServer struct {
	address         string
	auth            AuthService
	logger          logging.Logger
	metrics         *Metrics
	router          *mux.Router
	handler         http.Handler
	shutdownTimeout time.Duration
}

// NewHTTPServer builds the router. Metrics are registered on registry and
// served from the same registry at /metrics.
func NewHTTPServer(address string, l logging.Logger, as AuthService, registry *prometheus.Registry, shutdownTimeout time.Duration) *HTTPServer {
	s := &HTTPServer{
		address:         address,
		auth:            as,
		logger:          l.With("module", "http_server"),
		metrics:         NewMetrics(registry),
		shutdownTimeout: shutdownTimeout,
	}

	r := mux.NewRouter()
	r.Use(s.routeLabelMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	r.Handle("/auth/me", s.bearerMiddleware(http.HandlerFunc(s.me))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})).Methods(http.MethodGet)

	s.router = r
	s.handler = s.requestIDMiddleware(s.instrumentMiddleware(s.recoveryMiddleware(r)))
	return s
}

// Handler returns the router wrapped in the request id, instrumentation and
// recovery middleware, so unmatched requests are logged and counted too.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *HTTPServer) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

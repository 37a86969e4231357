package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

// Server runs an http.Server as a lifecycle-managed service.
type Server struct {
	srv *http.Server
	log *logger.Logger

	errCh chan error
}

func NewServer(addr string, handler http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("http-server")
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:   log,
		errCh: make(chan error, 1),
	}
}

func (s *Server) Name() string { return "http-server" }

func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Err reports a listener failure after Start.
func (s *Server) Err() <-chan error { return s.errCh }

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
)

// HTTPServer is the part of [http.Server] a [HTTPService] drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under a suture supervisor. Cancelling the serve context shuts the server down
// gracefully within the configured timeout.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements [suture.Service]. [http.ErrServerClosed] is not an error.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }

// NewSupervisor builds the root supervisor for `tastemixer serve`, logging restarts and failures through logger.
func NewSupervisor(logger *log.Logger) *suture.Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return suture.New("tastemixer", suture.Spec{
		EventHook: func(e suture.Event) {
			switch ev := e.(type) {
			case suture.EventServicePanic:
				logger.Error("service panicked", "service", ev.ServiceName, "panic", ev.PanicMsg)
			case suture.EventServiceTerminate:
				logger.Warn("service terminated", "service", ev.ServiceName, "error", ev.Err)
			case suture.EventBackoff:
				logger.Warn("supervisor backing off", "supervisor", ev.SupervisorName)
			case suture.EventResume:
				logger.Info("supervisor resumed", "supervisor", ev.SupervisorName)
			default:
				logger.Debug("supervisor event", "event", e.String())
			}
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// uploads and print-file downloads are large, so only the header read is
// bounded tightly; body timeouts come from config.
const readHeaderTimeout = 5 * time.Second

// HTTPServer runs the API until its context ends, then drains in-flight
// requests.
type HTTPServer struct {
	server      *http.Server
	drainWithin time.Duration
}

func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		drainWithin: cfg.HTTPWriteTimeout,
	}
}

// Run serves on ln, or on the configured port when ln is nil. It returns
// nil after a clean shutdown triggered by ctx.
func (s *HTTPServer) Run(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		var err error
		if ln != nil {
			err = s.server.Serve(ln)
		} else {
			err = s.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	drain := s.drainWithin
	if drain <= 0 {
		drain = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

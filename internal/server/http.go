package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPService serves an http.Handler on a listener until stopped.
type HTTPService struct {
	listener        net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewHTTPService creates an HTTPService on an already bound listener.
//
// Precondition: ln, handler and logger must be non-nil.
func NewHTTPService(ln net.Listener, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		listener:        ln,
		srv:             &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Addr returns the bound address.
func (h *HTTPService) Addr() string {
	return h.listener.Addr().String()
}

// Start serves until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the serve error.
func (h *HTTPService) Start() error {
	h.logger.Info("http listening", zap.String("addr", h.Addr()))
	if err := h.srv.Serve(h.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop stops accepting requests and waits up to the shutdown timeout for
// in-flight requests before closing remaining connections.
func (h *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown incomplete, closing", zap.Error(err))
		_ = h.srv.Close()
	}
}

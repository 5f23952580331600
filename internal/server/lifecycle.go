// Package server runs the room server's long-lived services: the realtime
// channel and the HTTP listener. Services come up in registration order and
// go down in reverse, so the listener stops taking upgrades before the
// realtime channel drains its connections.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a component that runs until told to stop.
type Service interface {
	// Start blocks until Stop is called or the service fails.
	Start() error
	// Stop ends the service; Start then returns.
	Stop()
}

// Lifecycle owns the ordered set of services for one process.
type Lifecycle struct {
	logger *zap.Logger

	mu    sync.Mutex
	names []string
	svcs  []Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers svc under name. Registration order is start order.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	l.svcs = append(l.svcs, svc)
}

// Run starts every service, then waits for SIGINT, SIGTERM, ctx cancellation
// or the first service failure, whichever comes first.
//
// Postcondition: Every service has been stopped. Returns the failure that
// ended the run, or nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	names := append([]string(nil), l.names...)
	svcs := append([]Service(nil), l.svcs...)
	l.mu.Unlock()

	up := time.Now()
	failures := make(chan error, len(svcs))
	for i := range svcs {
		go l.supervise(names[i], svcs[i], failures)
	}
	l.logger.Info("services started", zap.Strings("services", names))

	err := l.wait(ctx, failures)

	for i := len(svcs) - 1; i >= 0; i-- {
		began := time.Now()
		svcs[i].Stop()
		l.logger.Info("service stopped", zap.String("service", names[i]), zap.Duration("elapsed", time.Since(began)))
	}
	l.logger.Info("room server down", zap.Duration("uptime", time.Since(up)))
	return err
}

// supervise runs one service and reports a failed Start.
func (l *Lifecycle) supervise(name string, svc Service, failures chan<- error) {
	began := time.Now()
	if err := svc.Start(); err != nil {
		l.logger.Error("service failed",
			zap.String("service", name),
			zap.Duration("uptime", time.Since(began)),
			zap.Error(err),
		)
		failures <- fmt.Errorf("service %s: %w", name, err)
	}
}

func (l *Lifecycle) wait(ctx context.Context, failures <-chan error) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		l.logger.Info("shutting down", zap.String("signal", sig.String()))
		return nil
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.String("reason", "context done"))
		return nil
	case err := <-failures:
		return err
	}
}

package server

import (
	"sync"

	"go.uber.org/zap"
)

// Drainer is a realtime channel whose open connections can be closed as a
// group. ws.Server satisfies it.
type Drainer interface {
	Connections() int
	Shutdown()
}

// RealtimeService holds the realtime channel open for the life of the process
// and drains every connection on Stop, so each one runs its disconnect path
// before the process exits.
type RealtimeService struct {
	channel Drainer
	logger  *zap.Logger

	once    sync.Once
	stopped chan struct{}
}

// NewRealtimeService wraps channel.
//
// Precondition: channel and logger must be non-nil.
func NewRealtimeService(channel Drainer, logger *zap.Logger) *RealtimeService {
	return &RealtimeService{
		channel: channel,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start blocks until Stop has drained the channel.
func (r *RealtimeService) Start() error {
	<-r.stopped
	return nil
}

// Stop closes every open connection and waits for their cleanup. Idempotent.
func (r *RealtimeService) Stop() {
	r.once.Do(func() {
		open := r.channel.Connections()
		r.channel.Shutdown()
		r.logger.Info("realtime connections drained", zap.Int("connections", open))
		close(r.stopped)
	})
}

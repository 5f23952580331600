package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	// Block until stopped
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop() {
	m.stopped.Store(true)
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	svc1 := &mockService{}
	svc2 := &mockService{}

	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	// Wait for services to start
	deadline := time.After(2 * time.Second)
	for {
		if svc1.started.Load() && svc2.started.Load() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	assert.True(t, svc1.started.Load())
	assert.True(t, svc2.started.Load())

	// Trigger shutdown
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
}

type fakeChannel struct {
	open    int
	drained atomic.Int32
}

func (f *fakeChannel) Connections() int { return f.open }

func (f *fakeChannel) Shutdown() { f.drained.Add(1) }

func TestRealtimeServiceDrainsOnStop(t *testing.T) {
	ch := &fakeChannel{open: 3}
	svc := NewRealtimeService(ch, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- svc.Start() }()

	select {
	case <-done:
		t.Fatal("realtime service returned before Stop")
	case <-time.After(50 * time.Millisecond):
	}

	svc.Stop()
	svc.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("realtime service did not stop")
	}
	assert.Equal(t, int32(1), ch.drained.Load())
}

func TestLifecycleReturnsServiceError(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	healthy := &mockService{}
	failing := &mockService{startFn: func() error { return errors.New("bind failed") }}
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service failing")
		assert.Contains(t, err.Error(), "bind failed")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not stop after a service failure")
	}
	assert.True(t, healthy.stopped.Load())
}

// orderedService records its name when stopped.
type orderedService struct {
	name  string
	order *[]string
	mu    *sync.Mutex
	stop  chan struct{}
}

func (o *orderedService) Start() error {
	<-o.stop
	return nil
}

func (o *orderedService) Stop() {
	o.mu.Lock()
	*o.order = append(*o.order, o.name)
	o.mu.Unlock()
	close(o.stop)
}

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	var order []string
	var mu sync.Mutex
	for _, name := range []string{"realtime", "http"} {
		lc.Add(name, &orderedService{name: name, order: &order, mu: &mu, stop: make(chan struct{})})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, lc.Run(ctx))
	assert.Equal(t, []string{"http", "realtime"}, order)
}

func TestHTTPServiceServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	svc := NewHTTPService(ln, handler, time.Second, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- svc.Start() }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + svc.Addr() + "/")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	svc.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("http service did not stop")
	}
}

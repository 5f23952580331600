// Package testutil provides shared fakes for package tests.
package testutil

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// ErrClosed is returned by Conn.Send after Close.
var ErrClosed = errors.New("testutil: conn closed")

// Conn is an in-memory connection that records every message sent to it.
// It satisfies session.Conn.
type Conn struct {
	Name string

	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

// NewConn returns an open recording connection. name only aids test output.
func NewConn(name string) *Conn {
	return &Conn{Name: name}
}

// Send records data unless the connection is closed.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.msgs = append(c.msgs, cp)
	return nil
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the connection from accepting messages.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Reset forgets every recorded message.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// Raw returns a copy of every recorded payload in arrival order.
func (c *Conn) Raw() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Messages decodes every recorded payload as a generic JSON object.
func (c *Conn) Messages(t testing.TB) []map[string]any {
	t.Helper()
	raw := c.Raw()
	out := make([]map[string]any, 0, len(raw))
	for _, data := range raw {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("%s: decoding recorded message %q: %v", c.Name, data, err)
		}
		out = append(out, m)
	}
	return out
}

// Types returns the "type" field of every recorded message in order.
func (c *Conn) Types(t testing.TB) []string {
	t.Helper()
	msgs := c.Messages(t)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		typ, _ := m["type"].(string)
		out = append(out, typ)
	}
	return out
}

// OfType returns the recorded messages whose "type" equals typ.
func (c *Conn) OfType(t testing.TB, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.Messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// Last decodes the newest recorded message of type typ into v and reports
// whether one existed.
func (c *Conn) Last(t testing.TB, typ string, v any) bool {
	t.Helper()
	raw := c.Raw()
	for i := len(raw) - 1; i >= 0; i-- {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw[i], &head); err != nil || head.Type != typ {
			continue
		}
		if err := json.Unmarshal(raw[i], v); err != nil {
			t.Fatalf("%s: decoding %s: %v", c.Name, typ, err)
		}
		return true
	}
	return false
}

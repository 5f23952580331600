package broadcast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/roomsync/internal/broadcast"
	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
	"github.com/cory-johannsen/roomsync/internal/testutil"
)

func setup(t *testing.T) (*session.Registry, *broadcast.Router) {
	t.Helper()
	reg := session.NewRegistry()
	return reg, broadcast.NewRouter(reg, zaptest.NewLogger(t))
}

func join(t *testing.T, reg *session.Registry, c *testutil.Conn, roomID string) {
	t.Helper()
	_, err := reg.Register(c, "Player")
	require.NoError(t, err)
	_, err = reg.Update(c, func(s *session.Session) { s.RoomID = roomID })
	require.NoError(t, err)
}

func TestRouter_BroadcastExcludesSender(t *testing.T) {
	reg, router := setup(t)
	a, b, c := testutil.NewConn("a"), testutil.NewConn("b"), testutil.NewConn("c")
	join(t, reg, a, "lobby")
	join(t, reg, b, "lobby")
	join(t, reg, c, "lobby")

	n := router.Broadcast("lobby", protocol.NewPlayerLeft("x"), a)
	assert.Equal(t, 2, n)
	assert.Empty(t, a.Raw())
	assert.Equal(t, []string{protocol.TypePlayerLeft}, b.Types(t))
	assert.Equal(t, []string{protocol.TypePlayerLeft}, c.Types(t))
}

func TestRouter_BroadcastIsRoomScoped(t *testing.T) {
	reg, router := setup(t)
	a, b := testutil.NewConn("a"), testutil.NewConn("b")
	join(t, reg, a, "lobby")
	join(t, reg, b, "arena")

	router.Broadcast("lobby", protocol.NewInfo("hi"), nil)
	assert.Len(t, a.Raw(), 1)
	assert.Empty(t, b.Raw())
}

func TestRouter_BroadcastSkipsClosed(t *testing.T) {
	reg, router := setup(t)
	a, b := testutil.NewConn("a"), testutil.NewConn("b")
	join(t, reg, a, "lobby")
	join(t, reg, b, "lobby")
	b.Close()

	assert.Equal(t, 1, router.Broadcast("lobby", protocol.NewInfo("hi"), nil))
	assert.Len(t, a.Raw(), 1)
}

func TestRouter_BroadcastEmptyRoom(t *testing.T) {
	_, router := setup(t)
	assert.Equal(t, 0, router.Broadcast("nowhere", protocol.NewInfo("hi"), nil))
}

func TestRouter_Send(t *testing.T) {
	_, router := setup(t)
	c := testutil.NewConn("c")
	require.True(t, router.Send(c, protocol.NewError(protocol.TextRoomNotFound)))

	var got protocol.Notice
	require.True(t, c.Last(t, protocol.TypeError, &got))
	assert.Equal(t, protocol.TextRoomNotFound, got.Text)

	c.Close()
	assert.False(t, router.Send(c, protocol.NewInfo("late")))
}

func TestRouter_SendUnencodable(t *testing.T) {
	_, router := setup(t)
	c := testutil.NewConn("c")
	assert.False(t, router.Send(c, make(chan int)))
	assert.Empty(t, c.Raw())
}

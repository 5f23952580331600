package ws_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/roomsync/internal/broadcast"
	"github.com/cory-johannsen/roomsync/internal/config"
	"github.com/cory-johannsen/roomsync/internal/gameserver"
	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
	"github.com/cory-johannsen/roomsync/internal/transport/ws"
	"github.com/cory-johannsen/roomsync/internal/world"
)

func testTransport() config.TransportConfig {
	return config.TransportConfig{
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		PingPeriod:     4 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
		RateLimit:      1000,
		RateBurst:      1000,
	}
}

// recordingHandler counts lifecycle events without any room semantics.
type recordingHandler struct {
	mu          sync.Mutex
	connects    int
	messages    []string
	disconnects int
}

func (h *recordingHandler) OnConnect(session.Conn) (session.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
	return session.Session{ID: "s"}, nil
}

func (h *recordingHandler) OnMessage(_ session.Conn, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(data))
}

func (h *recordingHandler) OnDisconnect(session.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, len(h.messages), h.disconnects
}

func startServer(t *testing.T, handler ws.Handler, cfg config.TransportConfig) (*ws.Server, string) {
	t.Helper()
	srv := ws.NewServer(handler, cfg, zaptest.NewLogger(t))
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Shutdown()
		hs.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// waitFor reads until a record of type typ arrives and decodes it into v.
func waitFor(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &head))
		if head.Type == typ {
			require.NoError(t, json.Unmarshal(data, v))
			return
		}
	}
}

func newGameHandler(t *testing.T) *gameserver.Handler {
	t.Helper()
	dir, err := world.BuildDirectory(world.DefaultRoster(), world.BuildOptions{DefaultCapacity: 20, ChatHistory: 100, Seed: 1})
	require.NoError(t, err)
	reg := session.NewRegistry()
	logger := zaptest.NewLogger(t)
	return gameserver.NewHandler(reg, dir, broadcast.NewRouter(reg, logger), world.NewSeededSource(7), gameserver.DefaultLimits(), logger)
}

func TestServer_EndToEnd(t *testing.T) {
	h := newGameHandler(t)
	_, url := startServer(t, h, testTransport())

	a := dial(t, url)
	var welcome protocol.Welcome
	waitFor(t, a, protocol.TypeWelcome, &welcome)
	assert.NotEmpty(t, welcome.PlayerID)
	assert.Len(t, welcome.Rooms, 3)

	write(t, a, map[string]any{"type": "join_room", "roomId": "lobby", "name": "Alice"})
	var joinedA protocol.RoomJoined
	waitFor(t, a, protocol.TypeRoomJoined, &joinedA)
	assert.NotEmpty(t, joinedA.MapData, "rooms start with a generated map")

	b := dial(t, url)
	write(t, b, map[string]any{"type": "join_room", "roomId": "lobby", "name": "Bob"})
	var joinedB protocol.RoomJoined
	waitFor(t, b, protocol.TypeRoomJoined, &joinedB)
	assert.Len(t, joinedB.Players, 2)

	var pj protocol.PlayerJoined
	waitFor(t, a, protocol.TypePlayerJoined, &pj)
	assert.Equal(t, "Bob", pj.Player.Name)

	write(t, a, map[string]any{"type": "move", "x": 3, "y": 11, "z": 4, "rotY": 1})
	var moved protocol.PlayerMoved
	waitFor(t, b, protocol.TypePlayerMoved, &moved)
	assert.Equal(t, joinedA.PlayerID, moved.ID)
	assert.Equal(t, 3.0, moved.X)

	write(t, b, map[string]any{"type": "ping"})
	var pong protocol.Pong
	waitFor(t, b, protocol.TypePong, &pong)
	assert.Positive(t, pong.TS)

	require.NoError(t, a.Close())
	var left protocol.PlayerLeft
	waitFor(t, b, protocol.TypePlayerLeft, &left)
	assert.Equal(t, joinedA.PlayerID, left.ID)
	assert.Eventually(t, func() bool { return h.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_OversizeMessageCloses(t *testing.T) {
	h := &recordingHandler{}
	cfg := testTransport()
	cfg.MaxMessageSize = 64
	_, url := startServer(t, h, cfg)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 1024))))

	assert.Eventually(t, func() bool {
		_, _, d := h.counts()
		return d == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, n, _ := h.counts()
	assert.Zero(t, n)
}

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func moveFrame(x int) string {
	return fmt.Sprintf(`{"type":"move","x":%d,"y":10,"z":0,"rotY":0}`, x)
}

func TestServer_MoveFloodDoesNotBlockBlockPlacement(t *testing.T) {
	h := newGameHandler(t)
	cfg := testTransport()
	cfg.RateLimit = 60
	cfg.RateBurst = 120
	_, url := startServer(t, h, cfg)

	conn := dial(t, url)
	write(t, conn, map[string]any{"type": "join_room", "roomId": "lobby", "name": "Mover"})
	var joined protocol.RoomJoined
	waitFor(t, conn, protocol.TypeRoomJoined, &joined)

	for i := 0; i < 130; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(moveFrame(i))))
	}
	write(t, conn, map[string]any{"type": "place_block", "x": 5, "y": 1, "z": 5, "blockType": "stone"})
	write(t, conn, map[string]any{"type": "chat", "text": "still here"})

	var update protocol.BlockUpdate
	waitFor(t, conn, protocol.TypeBlockUpdate, &update)
	assert.Equal(t, 5, update.X)
	assert.Equal(t, world.Stone, update.BlockType)
	var chat protocol.ChatMessage
	waitFor(t, conn, protocol.TypeChat, &chat)
	assert.Equal(t, "still here", chat.Message.Text)
}

func TestServer_ExcessMovesCoalescedBeforeNextMessage(t *testing.T) {
	h := &recordingHandler{}
	cfg := testTransport()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 3
	_, url := startServer(t, h, cfg)

	conn := dial(t, url)
	for i := 0; i < 10; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(moveFrame(i))))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	want := []string{moveFrame(0), moveFrame(1), moveFrame(2), moveFrame(9), `{"type":"ping"}`}
	assert.Eventually(t, func() bool { return len(h.received()) == len(want) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, h.received(), "the newest held move is flushed ahead of the next message")
	_, _, d := h.counts()
	assert.Zero(t, d, "throttling keeps the connection")
}

func TestServer_HeldMoveDeliveredWhenTokenFrees(t *testing.T) {
	h := &recordingHandler{}
	cfg := testTransport()
	cfg.RateLimit = 20
	cfg.RateBurst = 1
	_, url := startServer(t, h, cfg)

	conn := dial(t, url)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(moveFrame(i))))
	}

	assert.Eventually(t, func() bool {
		got := h.received()
		return len(got) > 0 && got[len(got)-1] == moveFrame(4)
	}, 2*time.Second, 10*time.Millisecond, "the final position is never lost")
	assert.LessOrEqual(t, len(h.received()), 5)
}

func TestServer_DiscreteMessagesNeverThrottled(t *testing.T) {
	h := &recordingHandler{}
	cfg := testTransport()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	_, url := startServer(t, h, cfg)

	conn := dial(t, url)
	for i := 0; i < 20; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","text":"x"}`)))
	}
	assert.Eventually(t, func() bool { return len(h.received()) == 20 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownDisconnectsClients(t *testing.T) {
	h := &recordingHandler{}
	srv := ws.NewServer(h, testTransport(), zaptest.NewLogger(t))
	hs := httptest.NewServer(srv)
	defer hs.Close()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")

	dial(t, url)
	dial(t, url)
	assert.Eventually(t, func() bool { return srv.Connections() == 2 }, 2*time.Second, 10*time.Millisecond)

	srv.Shutdown()
	c, _, d := h.counts()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, d)
	assert.Zero(t, srv.Connections())
}

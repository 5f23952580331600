// Package api serves the HTTP surface around the realtime channel: the room
// listing, the script simulator, a health check and static client files.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/scripting"
	"github.com/cory-johannsen/roomsync/internal/world"
)

// MaxScriptBytes caps a simulate request body.
const MaxScriptBytes = 16 << 10

// RoomLister lists the room roster with live occupancy.
type RoomLister interface {
	List() []world.RoomInfo
	TotalPlayers() int
}

// ConnectionCounter reports the number of live connections.
type ConnectionCounter interface {
	Connections() int
}

// ScriptRunner runs a snippet and returns its captured output.
type ScriptRunner interface {
	Run(ctx context.Context, code, playerName string) []scripting.Line
}

// API holds the dependencies of the HTTP handlers.
type API struct {
	rooms       RoomLister
	connections ConnectionCounter
	scripts     ScriptRunner
	logger      *zap.Logger
}

// New creates an API.
//
// Precondition: all arguments must be non-nil.
func New(rooms RoomLister, connections ConnectionCounter, scripts ScriptRunner, logger *zap.Logger) *API {
	return &API{rooms: rooms, connections: connections, scripts: scripts, logger: logger}
}

// SimulateRequest is the body of POST /api/simulate.
type SimulateRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

// SimulateResponse is the reply to POST /api/simulate.
type SimulateResponse struct {
	Output []scripting.Line `json:"output"`
}

// HealthResponse is the reply to GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Players     int    `json:"players"`
}

// Handler returns the routed HTTP handler. realtime serves WebSocket
// upgrades on /ws; staticDir, when non-empty, is served at /.
func (a *API) Handler(realtime http.Handler, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", realtime)
	mux.HandleFunc("GET /api/rooms", a.ListRoomsHandler)
	mux.HandleFunc("POST /api/simulate", a.SimulateHandler)
	mux.HandleFunc("GET /healthz", a.HealthHandler)
	if staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// ListRoomsHandler writes the roster as [{id,name,playerCount,maxPlayers}].
func (a *API) ListRoomsHandler(w http.ResponseWriter, _ *http.Request) {
	rooms := a.rooms.List()
	if rooms == nil {
		rooms = []world.RoomInfo{}
	}
	a.jsonResponse(w, http.StatusOK, rooms)
}

// SimulateHandler runs the posted snippet and returns its output lines.
func (a *API) SimulateHandler(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxScriptBytes)).Decode(&req); err != nil {
		a.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.PlayerName
	if name == "" {
		name = "Player"
	}
	out := a.scripts.Run(r.Context(), req.Code, name)
	if out == nil {
		out = []scripting.Line{}
	}
	a.jsonResponse(w, http.StatusOK, SimulateResponse{Output: out})
}

// HealthHandler reports liveness with room, connection and player counts.
func (a *API) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	a.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Rooms:       len(a.rooms.List()),
		Connections: a.connections.Connections(),
		Players:     a.rooms.TotalPlayers(),
	})
}

func (a *API) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Warn("encoding JSON response", zap.Error(err))
	}
}

func (a *API) errorResponse(w http.ResponseWriter, status int, message string) {
	a.jsonResponse(w, status, map[string]string{"error": message})
}

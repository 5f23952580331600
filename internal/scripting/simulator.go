package scripting

import (
	"context"
	"errors"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Output levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// MaxOutputLines caps the lines one run may produce.
const MaxOutputLines = 200

// ErrInstructionLimit is reported when a script exhausts its opcode budget.
var ErrInstructionLimit = errors.New("instruction limit exceeded")

// Line is one captured output line.
type Line struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Simulator runs player snippets in a fresh sandbox per call. It is safe for
// concurrent use.
type Simulator struct {
	instLimit int
	logger    *zap.Logger
}

// NewSimulator creates a Simulator.
//
// Precondition: logger must be non-nil; instLimit >= 0 (0 uses the default).
func NewSimulator(instLimit int, logger *zap.Logger) *Simulator {
	return &Simulator{instLimit: instLimit, logger: logger}
}

// Run executes code with the globals print, warn and error bound to output
// capture and player.name set to playerName.
//
// Postcondition: Returns the captured lines in order; failures appear as a
// final error line, never as a Go error.
func (s *Simulator) Run(ctx context.Context, code, playerName string) []Line {
	L, cancel := NewSandboxedState(ctx, s.instLimit)
	defer cancel()
	defer L.Close()

	out := &capture{}
	L.SetGlobal("print", L.NewFunction(out.emit(LevelInfo)))
	L.SetGlobal("warn", L.NewFunction(out.emit(LevelWarn)))
	L.SetGlobal("error", L.NewFunction(out.emit(LevelError)))

	player := L.NewTable()
	L.SetField(player, "name", lua.LString(playerName))
	L.SetGlobal("player", player)

	if err := L.DoString(code); err != nil {
		msg := err.Error()
		if ctx.Err() == nil && isCancelled(err) {
			msg = ErrInstructionLimit.Error()
		}
		out.add(LevelError, msg)
		s.logger.Debug("script failed", zap.String("player", playerName), zap.Error(err))
	}
	return out.lines
}

// isCancelled reports whether err is the VM aborting on its context, which
// GopherLua raises as a plain Lua error carrying the context's message.
func isCancelled(err error) bool {
	return strings.Contains(err.Error(), context.Canceled.Error())
}

type capture struct {
	lines []Line
}

func (c *capture) add(level, text string) {
	if len(c.lines) >= MaxOutputLines {
		return
	}
	c.lines = append(c.lines, Line{Level: level, Text: text})
}

// emit returns a Lua function that joins its arguments with tabs, like the
// stock print, and records them at level.
func (c *capture) emit(level string) lua.LGFunction {
	return func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		c.add(level, strings.Join(parts, "\t"))
		return 0
	}
}

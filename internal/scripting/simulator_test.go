package scripting_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/roomsync/internal/scripting"
)

func TestSimulator_CapturesLevels(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `
		print("hello", player.name)
		warn("careful")
		error("broken", 42)
		print("still running")
	`, "Alice")

	assert.Equal(t, []scripting.Line{
		{Level: scripting.LevelInfo, Text: "hello\tAlice"},
		{Level: scripting.LevelWarn, Text: "careful"},
		{Level: scripting.LevelError, Text: "broken\t42"},
		{Level: scripting.LevelInfo, Text: "still running"},
	}, lines)
}

func TestSimulator_EmptyScript(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	assert.Empty(t, sim.Run(context.Background(), "", "Alice"))
}

func TestSimulator_SyntaxErrorBecomesErrorLine(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `print("a") this is not lua`, "Alice")
	require.Len(t, lines, 1)
	assert.Equal(t, scripting.LevelError, lines[0].Level)
}

func TestSimulator_RuntimeErrorKeepsEarlierOutput(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `print("before") local t = nil; t.x = 1`, "Alice")
	require.Len(t, lines, 2)
	assert.Equal(t, scripting.Line{Level: scripting.LevelInfo, Text: "before"}, lines[0])
	assert.Equal(t, scripting.LevelError, lines[1].Level)
}

func TestSimulator_InstructionLimit(t *testing.T) {
	sim := scripting.NewSimulator(1000, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `while true do end`, "Alice")
	require.Len(t, lines, 1)
	assert.Equal(t, scripting.Line{Level: scripting.LevelError, Text: scripting.ErrInstructionLimit.Error()}, lines[0])
}

func TestSimulator_OutputCapped(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `for i = 1, 1000 do print(i) end`, "Alice")
	assert.Len(t, lines, scripting.MaxOutputLines)
	assert.Equal(t, "1", lines[0].Text)
}

func TestSimulator_NoEscapeHatches(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	lines := sim.Run(context.Background(), `print(type(os), type(io), type(require), type(dofile))`, "Alice")
	require.Len(t, lines, 1)
	assert.Equal(t, "nil\tnil\tnil\tnil", lines[0].Text)
}

func TestPropertySimulatorEchoesPrintedStrings(t *testing.T) {
	sim := scripting.NewSimulator(0, zaptest.NewLogger(t))
	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 10).Draw(rt, "words")
		var code strings.Builder
		for _, w := range words {
			code.WriteString(`print("` + w + `")` + "\n")
		}
		lines := sim.Run(context.Background(), code.String(), "P")
		if len(lines) != len(words) {
			rt.Fatalf("got %d lines for %d prints", len(lines), len(words))
		}
		for i, w := range words {
			if lines[i].Text != w || lines[i].Level != scripting.LevelInfo {
				rt.Fatalf("line %d = %+v, want info %q", i, lines[i], w)
			}
		}
	})
}

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*ReviewLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func newBufferLogger(level LogLevel) (*ReviewLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestReviewLogger_ContextAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("queue").WithReview("r-1").WithAgent("critic").Info("hello", "count", 2)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "queue", lines[0]["component"])
	assert.Equal(t, "r-1", lines[0]["review_id"])
	assert.Equal(t, "critic", lines[0]["agent_id"])
	assert.EqualValues(t, 2, lines[0]["count"])
}

func TestReviewLogger_WithDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	_ = l.WithReview("r-1")
	l.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["review_id"]
	assert.False(t, ok)
}

func TestReviewLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "w", lines[0]["msg"])
	assert.Equal(t, "e", lines[1]["msg"])
}

func TestReviewLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	LogGeneration(l, "mock", 3, time.Millisecond, nil)
	LogGeneration(l, "mock", 1, time.Millisecond, errors.New("boom"))
	LogAgentRun(ForAgent(l, "style_reviewer"), 2, time.Millisecond, true)
	LogJob(l, "r-2", time.Millisecond, errors.New("bad diff"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "Generation completed", lines[0]["msg"])
	assert.Equal(t, "Generation failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, true, lines[2]["rules_fallback"])
	assert.Equal(t, "style_reviewer", lines[2]["agent_id"])
	assert.Equal(t, "ERROR", lines[3]["level"])
	assert.Equal(t, "bad diff", lines[3]["error"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}

type recordingLogger struct {
	NoOpLogger
	args [][]any
}

func (r *recordingLogger) Warn(_ string, args ...any) { r.args = append(r.args, args) }

func TestForReviewAndForAgent(t *testing.T) {
	t.Run("ReviewLogger", func(t *testing.T) {
		l, buf := newBufferLogger(LogLevelInfo)
		ForAgent(ForReview(l, "r-9"), "critic").Info("scoped")
		l.Info("plain")

		lines := decodeLines(t, buf)
		require.Len(t, lines, 2)
		assert.Equal(t, "r-9", lines[0]["review_id"])
		assert.Equal(t, "critic", lines[0]["agent_id"])
		_, ok := lines[1]["review_id"]
		assert.False(t, ok)
	})

	t.Run("OtherLogger", func(t *testing.T) {
		rec := &recordingLogger{}
		scoped := ForReview(rec, "r-9")
		scoped.Warn("a", "k", 1)
		scoped.Warn("b")

		require.Len(t, rec.args, 2)
		assert.Equal(t, []any{"review_id", "r-9", "k", 1}, rec.args[0])
		assert.Equal(t, []any{"review_id", "r-9"}, rec.args[1])
	})

	t.Run("NoOp", func(t *testing.T) {
		assert.Equal(t, NoOpLogger{}, ForReview(nil, "r-9"))
		assert.Equal(t, NoOpLogger{}, ForAgent(NoOpLogger{}, "critic"))
	})
}

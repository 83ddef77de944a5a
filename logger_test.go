package vecflat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return newStreamLogger(&buf, level, true), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLoggerOutcome(t *testing.T) {
	ctx := context.Background()
	l, buf := captureLogger(slog.LevelDebug)
	l = l.WithDimension(4)

	l.LogAdd(ctx, 3, 10, nil)
	l.LogSave(ctx, "index.vflt", 0, errors.New("disk full"))
	l.LogReset(ctx, 3)

	recs := records(t, buf)
	require.Len(t, recs, 3)

	assert.Equal(t, "add completed", recs[0]["msg"])
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.EqualValues(t, 10, recs[0]["first_id"])
	assert.EqualValues(t, 4, recs[0]["dimension"])

	assert.Equal(t, "save failed", recs[1]["msg"])
	assert.Equal(t, "ERROR", recs[1]["level"])
	assert.Equal(t, "disk full", recs[1]["error"])
	assert.NotContains(t, recs[1], "bytes")

	assert.Equal(t, "reset completed", recs[2]["msg"])
	assert.EqualValues(t, 3, recs[2]["dropped"])
}

func TestLoggerLevel(t *testing.T) {
	l, buf := captureLogger(slog.LevelInfo)
	l.LogSearch(context.Background(), 5, 5, nil)
	assert.Empty(t, buf.String())

	l.LogLoad(context.Background(), "s3://bucket/a.vflt", 12, nil)
	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "load completed", recs[0]["msg"])
	assert.EqualValues(t, 12, recs[0]["count"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogPoisoned(context.Background(), "add", "boom")
}

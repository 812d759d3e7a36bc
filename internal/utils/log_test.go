package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogInterceptor_PrefixesCompleteLines(t *testing.T) {
	var out bytes.Buffer
	li := NewLogInterceptor(&out)
	li.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := li.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, "line=1 time=2024-01-02T03:04:05Z first\n", out.String())

	_, err = li.Write([]byte("ond\n"))
	require.NoError(t, err)
	_, err = li.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, li.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line=2 time=2024-01-02T03:04:05Z second", lines[1])
	assert.Equal(t, "line=3 time=2024-01-02T03:04:05Z tail", lines[2])
}

func TestMultiLogHandler_RespectsLevels(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(h).With("component", "test")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("only debug")
	logger.Info("both")

	assert.Contains(t, debugOut.String(), "only debug")
	assert.Contains(t, debugOut.String(), "both")
	assert.NotContains(t, infoOut.String(), "only debug")
	assert.Contains(t, infoOut.String(), "component=test")
}

func TestMultiLogHandler_WithGroupReachesEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)
	slog.New(h).WithGroup("sync").Info("pushed", "files", 2)

	assert.Contains(t, a.String(), "sync.files=2")
	assert.Contains(t, b.String(), "sync.files=2")
}

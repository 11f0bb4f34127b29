package tracing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestSpanTreeIsLoggedOnRootEnd(t *testing.T) {
	buf := captureLogs(t)

	ctx, root := Start(logger.WithRequestID(context.Background(), "req-1"), "build")
	cctx, child := Start(ctx, "save_index")
	_, grandchild := Start(cctx, "encode")
	grandchild.End()
	child.SetAttr("tokens", 42)
	child.End()
	assert.Empty(t, buf.String(), "only the root logs")
	root.End()

	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "req-1", grandchild.TraceID)
	require.Len(t, root.Children(), 1)

	var entries []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)
	assert.Equal(t, "build", entries[0]["span"])
	assert.Equal(t, float64(0), entries[0]["depth"])
	assert.Equal(t, "save_index", entries[1]["span"])
	assert.Equal(t, float64(42), entries[1]["tokens"])
	assert.Equal(t, "encode", entries[2]["span"])
	assert.Equal(t, float64(2), entries[2]["depth"])
}

func TestRootWithoutRequestIDGetsTraceID(t *testing.T) {
	captureLogs(t)
	ctx, s := Start(context.Background(), "job")
	assert.Len(t, s.TraceID, 16)
	assert.Same(t, s, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	s.End()
	assert.GreaterOrEqual(t, s.Duration, time.Duration(0))
}

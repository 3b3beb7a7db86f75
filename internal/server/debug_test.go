package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDebug_Snapshot(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Version = "test" })
	for _, name := range []string{"a.jpg", "b.jpg", "a.jpg"} {
		require.Equal(t, http.StatusOK, env.upload(t, name, []byte(name)).Code)
	}
	require.Equal(t, http.StatusOK, env.get("/api/image/next").Code)

	rr := env.get("/api/debug")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "{\n  \"imageList\""), "expected indented JSON, got %q", rr.Body.String()[:20])

	var snap debugSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, env.registry.List(), snap.ImageList)
	assert.Equal(t, 0, snap.Cursor)
	assert.False(t, snap.Fetched)
	assert.GreaterOrEqual(t, snap.Uptime, 0.0)
	assert.NotZero(t, snap.MemoryUsage.Sys)
	assert.Positive(t, snap.MemoryUsage.Goroutines)
	assert.NotEmpty(t, snap.RecentLogs)
}

func TestDebug_LogBufferBounded(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 1000; i++ {
		env.log.Info("event", zap.Int("i", i))
	}

	rr := env.get("/api/debug")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap debugSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Len(t, snap.RecentLogs, 50)
}

func TestDebug_EmptyRegistry(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Ring = nil })

	rr := env.get("/api/debug")
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Equal(t, []any{}, raw["imageList"])
	assert.Equal(t, []any{}, raw["recentLogs"])
	assert.EqualValues(t, -1, raw["cursor"])
}

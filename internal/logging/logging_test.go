package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRing_KeepsMostRecent(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(Entry{Message: fmt.Sprintf("m%d", i)})
	}

	got := r.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Message)
	assert.Equal(t, "m3", got[1].Message)
	assert.Equal(t, "m4", got[2].Message)
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := NewRing(5)
	r.Add(Entry{Message: "a"})
	r.Add(Entry{Message: "b"})

	got := r.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)
	assert.Equal(t, "b", got[1].Message)
}

func TestRing_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultRingSize, NewRing(0).Cap())
	assert.Equal(t, DefaultRingSize, NewRing(-3).Cap())
}

func TestNew_BoundedAfterManyEvents(t *testing.T) {
	var out bytes.Buffer
	l, err := New(Options{Output: &out})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 1000; i++ {
		l.Info("event", zap.Int("i", i))
	}

	got := l.Ring.Entries()
	require.Len(t, got, DefaultRingSize)
	assert.Equal(t, int64(950), got[0].Fields["i"])
	assert.Equal(t, int64(999), got[len(got)-1].Fields["i"])
}

func TestNew_RingHonoursLevelAndFields(t *testing.T) {
	var out bytes.Buffer
	l, err := New(Options{Level: "warn", Format: "json", Output: &out, BufferSize: 10})
	require.NoError(t, err)

	l.Info("dropped")
	l.With(zap.String("request_id", "abc")).Named("http").Warn("kept", zap.Int("status", 500))

	got := l.Ring.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Message)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, "http", got[0].Logger)
	assert.Equal(t, "abc", got[0].Fields["request_id"])
	assert.Equal(t, int64(500), got[0].Fields["status"])

	assert.Contains(t, out.String(), `"msg":"kept"`)
	assert.NotContains(t, out.String(), "dropped")
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	l, err := New(Options{File: path, Output: &bytes.Buffer{}})
	require.NoError(t, err)
	l.Info("to file")
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_BadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"nope", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

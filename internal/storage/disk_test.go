package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(filepath.Join(t.TempDir(), "uploads"), nil)
	require.NoError(t, err)
	return d
}

func TestNewDisk_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	d, err := NewDisk(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(d.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "disk", d.Kind())
}

func TestNewDisk_Empty(t *testing.T) {
	_, err := NewDisk("", nil)
	assert.Error(t, err)
}

func TestDisk_SaveOpen(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	name, err := d.Save(ctx, "cat.jpg", strings.NewReader("meow"))
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", name)

	ok, err := d.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := d.Open(ctx, name)
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.False(t, obj.ModTime.IsZero())
}

func TestDisk_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	_, err := d.Save(ctx, "a.png", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = d.Save(ctx, "a.png", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(d.Dir(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDisk_SaveSanitises(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	name, err := d.Save(ctx, "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "_.._etc_passwd", name)

	_, err = os.Stat(filepath.Join(d.Dir(), name))
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestDisk_SaveFailureLeavesNoFiles(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	_, err := d.Save(ctx, "broken.jpg", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDisk_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newTestDisk(t)

	_, err := d.Save(ctx, "late.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := d.Exists(context.Background(), "late.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisk_ConcurrentSameName(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	payloads := []string{strings.Repeat("a", 4096), strings.Repeat("b", 4096), strings.Repeat("c", 4096)}

	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := d.Save(ctx, "same.jpg", strings.NewReader(p))
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(d.Dir(), "same.jpg"))
	require.NoError(t, err)
	assert.Contains(t, payloads, string(data), "file must hold one complete upload")
}

func TestDisk_OpenMissing(t *testing.T) {
	d := newTestDisk(t)

	_, err := d.Open(context.Background(), "ghost.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := d.Exists(context.Background(), "ghost.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisk_OpenDirectory(t *testing.T) {
	d := newTestDisk(t)
	require.NoError(t, os.Mkdir(filepath.Join(d.Dir(), "sub"), 0o755))

	_, err := d.Open(context.Background(), "sub")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisk_Check(t *testing.T) {
	d := newTestDisk(t)
	assert.NoError(t, d.Check(context.Background()))

	require.NoError(t, os.RemoveAll(d.Dir()))
	assert.Error(t, d.Check(context.Background()))
}

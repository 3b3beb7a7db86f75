package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistry_Empty(t *testing.T) {
	r := New(nil)

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = r.Previous()
	assert.ErrorIs(t, err, ErrEmpty)

	assert.False(t, r.CanFetchLatest())
	_, err = r.FetchLatest()
	assert.ErrorIs(t, err, ErrNotAvailable)

	snap := r.Snapshot()
	assert.Equal(t, -1, snap.Cursor)
	assert.Empty(t, snap.Images)
	assert.Empty(t, r.List())
}

func TestRegistry_AddThenFetchLatest(t *testing.T) {
	for _, n := range []int{1, 2, 5, 20} {
		t.Run(fmt.Sprintf("%d adds", n), func(t *testing.T) {
			r := New(nil)
			for i := 1; i <= n; i++ {
				r.Add(fmt.Sprintf("img-%d.jpg", i))
			}

			require.Len(t, r.List(), n)
			assert.Equal(t, n, r.Len())

			got, err := r.FetchLatest()
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("img-%d.jpg", n), got)
		})
	}
}

func TestRegistry_FetchLatestIsOneShot(t *testing.T) {
	r := New(nil)
	r.Add("a.jpg")

	got, err := r.FetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got)

	assert.False(t, r.CanFetchLatest())
	_, err = r.FetchLatest()
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestRegistry_AddRearmsGate(t *testing.T) {
	r := New(nil)

	r.Add("a.jpg")
	got, err := r.FetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got)

	r.Add("b.jpg")
	assert.True(t, r.CanFetchLatest())
	got, err = r.FetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", got)
}

func TestRegistry_Wrap(t *testing.T) {
	tests := []struct {
		name  string
		moves []string
		want  []string
	}{
		{
			name:  "next wraps to first",
			moves: []string{"next"},
			want:  []string{"a"},
		},
		{
			name:  "previous steps back",
			moves: []string{"previous"},
			want:  []string{"b"},
		},
		{
			name:  "previous wraps to last",
			moves: []string{"next", "previous", "previous"},
			want:  []string{"a", "c", "b"},
		},
		{
			name:  "full cycle forward",
			moves: []string{"next", "next", "next", "next"},
			want:  []string{"a", "b", "c", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil)
			r.Add("a")
			r.Add("b")
			r.Add("c")
			require.Equal(t, 2, r.Snapshot().Cursor)

			for i, move := range tt.moves {
				var (
					got string
					err error
				)
				if move == "next" {
					got, err = r.Next()
				} else {
					got, err = r.Previous()
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], got, "move %d (%s)", i, move)
			}
		})
	}
}

func TestRegistry_SingleElement(t *testing.T) {
	r := New(nil)
	r.Add("a")

	for i := 0; i < 10; i++ {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "a", got)

		got, err = r.Previous()
		require.NoError(t, err)
		assert.Equal(t, "a", got)

		assert.Equal(t, 0, r.Snapshot().Cursor)
	}
}

func TestRegistry_CursorIndependentOfGate(t *testing.T) {
	r := New(nil)
	r.Add("x.jpg")
	r.Add("y.jpg")
	assert.Equal(t, 1, r.Snapshot().Cursor)

	got, err := r.FetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "y.jpg", got)

	snap := r.Snapshot()
	assert.True(t, snap.Fetched)
	assert.Equal(t, 1, snap.Cursor, "fetching latest must not move the cursor")

	got, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "x.jpg", got)
	assert.True(t, r.Snapshot().Fetched, "moving the cursor must not touch the gate")

	got, err = r.Previous()
	require.NoError(t, err)
	assert.Equal(t, "y.jpg", got)
}

func TestRegistry_FetchLatestIgnoresCursor(t *testing.T) {
	r := New(nil)
	r.Add("a")
	r.Add("b")
	r.Add("c")

	_, err := r.Next() // cursor -> a
	require.NoError(t, err)

	got, err := r.FetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}

func TestRegistry_DuplicatesKept(t *testing.T) {
	r := New(nil)
	r.Add("same.jpg")
	r.Add("same.jpg")

	assert.Equal(t, []string{"same.jpg", "same.jpg"}, r.List())
}

func TestRegistry_ListIsCopy(t *testing.T) {
	r := New(nil)
	r.Add("a")
	r.Add("b")

	list := r.List()
	list[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, r.List())

	snap := r.Snapshot()
	snap.Images[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.List())
}

func TestRegistry_LogsAdd(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := New(zap.New(core))

	r.Add("a.jpg")

	entries := logs.FilterMessage("image added").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].ContextMap()["filename"])
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New(nil)

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				switch i % 4 {
				case 0:
					r.Add(fmt.Sprintf("%d-%d", w, i))
				case 1:
					_, _ = r.Next()
				case 2:
					_, _ = r.Previous()
				default:
					_, _ = r.FetchLatest()
				}
			}
		}(w)
	}
	wg.Wait()

	snap := r.Snapshot()
	assert.Len(t, snap.Images, workers*perWorker/4)
	assert.GreaterOrEqual(t, snap.Cursor, 0)
	assert.Less(t, snap.Cursor, len(snap.Images))
}

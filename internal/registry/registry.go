// Package registry tracks the ordered list of uploaded images, the cursor used
// for next/previous browsing, and the one-shot gate on the latest image.
package registry

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrEmpty is returned by Next and Previous when nothing has been added yet.
	ErrEmpty = errors.New("no images available")

	// ErrNotAvailable is returned by FetchLatest when there is no image, or the
	// latest one has already been fetched since it was added. It is an expected
	// outcome rather than a failure.
	ErrNotAvailable = errors.New("no image available")
)

// noCursor marks the cursor as unset while the registry is empty.
const noCursor = -1

// Registry is safe for concurrent use. Every operation runs under a single
// mutex and performs no I/O while holding it.
type Registry struct {
	mu      sync.Mutex
	images  []string
	cursor  int
	fetched bool

	log *zap.Logger
}

// Snapshot is a point-in-time copy of the registry state.
type Snapshot struct {
	Images  []string `json:"images"`
	Cursor  int      `json:"cursor"`
	Fetched bool     `json:"fetched"`
}

// New creates an empty registry. A nil logger disables logging.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		cursor: noCursor,
		log:    log.Named("registry"),
	}
}

// Add appends name, points the cursor at it and re-arms the fetch gate.
// Duplicate names are kept.
func (r *Registry) Add(name string) {
	r.mu.Lock()
	r.images = append(r.images, name)
	r.cursor = len(r.images) - 1
	r.fetched = false
	count := len(r.images)
	r.mu.Unlock()

	r.log.Info("image added", zap.String("filename", name), zap.Int("count", count))
}

// CanFetchLatest reports whether FetchLatest would succeed right now.
func (r *Registry) CanFetchLatest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canFetchLatest()
}

func (r *Registry) canFetchLatest() bool {
	return !r.fetched && len(r.images) > 0
}

// FetchLatest returns the most recently added image and closes the gate until
// the next Add. The cursor is left untouched.
func (r *Registry) FetchLatest() (string, error) {
	r.mu.Lock()
	if !r.canFetchLatest() {
		r.mu.Unlock()
		return "", ErrNotAvailable
	}
	r.fetched = true
	name := r.images[len(r.images)-1]
	r.mu.Unlock()

	r.log.Info("latest image fetched", zap.String("filename", name))
	return name, nil
}

// Next advances the cursor, wrapping from the last image to the first.
func (r *Registry) Next() (string, error) {
	return r.move(1, "next")
}

// Previous moves the cursor back, wrapping from the first image to the last.
func (r *Registry) Previous() (string, error) {
	return r.move(-1, "previous")
}

func (r *Registry) move(step int, direction string) (string, error) {
	r.mu.Lock()
	n := len(r.images)
	if n == 0 {
		r.mu.Unlock()
		return "", ErrEmpty
	}
	// The cursor is always valid here; Add sets it before the list can be
	// observed non-empty.
	r.cursor = ((r.cursor+step)%n + n) % n
	name := r.images[r.cursor]
	index := r.cursor
	r.mu.Unlock()

	r.log.Info(direction+" image retrieved", zap.String("filename", name), zap.Int("index", index))
	return name, nil
}

// List returns a copy of the images in upload order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.images...)
}

// Len returns the number of images added so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

// Snapshot copies the whole state under one lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Images:  append([]string{}, r.images...),
		Cursor:  r.cursor,
		Fetched: r.fetched,
	}
}

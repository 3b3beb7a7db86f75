// Package storage persists uploaded images and streams them back. Two
// backends exist: a local directory (the default) and an S3-compatible
// bucket reached through MinIO's client.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks -source=storage.go Storage

// ErrNotFound is returned when a stored image is missing.
var ErrNotFound = errors.New("image not found in storage")

// Storage is the persistence collaborator used by the HTTP layer.
type Storage interface {
	// Save stores the content of r under name and returns the name it was
	// actually stored as (after sanitising). An existing object with the same
	// name is replaced atomically.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Exists reports whether name is currently stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Open returns the stored object. The caller must Close it. A missing
	// object yields ErrNotFound.
	Open(ctx context.Context, name string) (*Object, error)
	// Check verifies the backend is reachable and usable.
	Check(ctx context.Context) error
	// Kind names the backend ("disk" or "s3").
	Kind() string
}

// Object is an opened stored image.
type Object struct {
	io.ReadSeekCloser

	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// SanitizeName strips anything that would let an upload name escape the
// storage root or collide with in-flight temp files.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "")

	// Leading dots are reserved for temp files.
	name = strings.Trim(name, " .")

	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 32 {
			ext = ""
		}
		name = name[:255-len(ext)] + ext
	}

	if name == "" {
		name = "unnamed"
	}
	return name
}

// ContentTypeFor guesses the MIME type of name from its extension, falling
// back to sniffing head when the extension is unknown.
func ContentTypeFor(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}

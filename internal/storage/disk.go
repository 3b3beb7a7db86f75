package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Disk stores images as plain files in one directory.
type Disk struct {
	dir string
	log *zap.Logger
}

// NewDisk returns a Disk rooted at dir, creating the directory if needed.
func NewDisk(dir string, log *zap.Logger) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("upload directory is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}

	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("create upload directory: %w", err)
		}
		log.Info("created upload directory", zap.String("dir", abs))
	} else if err != nil {
		return nil, fmt.Errorf("stat upload directory: %w", err)
	}

	return &Disk{dir: abs, log: log.Named("storage")}, nil
}

// Dir returns the absolute upload directory.
func (d *Disk) Dir() string { return d.dir }

// Kind implements Storage.
func (d *Disk) Kind() string { return "disk" }

func (d *Disk) path(name string) string {
	return filepath.Join(d.dir, SanitizeName(name))
}

// Save writes r to a uniquely named temp file next to the target and renames
// it into place, so readers never see a partial image.
func (d *Disk) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = SanitizeName(name)
	target := filepath.Join(d.dir, name)
	tmpPath := filepath.Join(d.dir, "."+uuid.NewString()+partSuffix)

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w", err)
	}

	d.log.Debug("image stored", zap.String("filename", name), zap.Int64("bytes", n))
	return name, nil
}

// Exists implements Storage.
func (d *Disk) Exists(_ context.Context, name string) (bool, error) {
	info, err := os.Stat(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Open implements Storage.
func (d *Disk) Open(_ context.Context, name string) (*Object, error) {
	f, err := os.Open(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	head := make([]byte, 512)
	hn, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rewind %s: %w", name, err)
	}

	return &Object{
		ReadSeekCloser: f,
		Name:           SanitizeName(name),
		Size:           info.Size(),
		ModTime:        info.ModTime(),
		ContentType:    ContentTypeFor(name, head[:hn]),
	}, nil
}

// Check makes sure the directory still exists and accepts writes.
func (d *Disk) Check(_ context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", d.dir)
	}

	probe := filepath.Join(d.dir, "."+uuid.NewString()+".probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return fmt.Errorf("upload directory not writable: %w", err)
	}
	return os.Remove(probe)
}

// Package blob stores attachment bytes on the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrBadLocator = errors.New("blob: invalid locator")

// LocalStore keeps each blob in one file under Dir named by its locator.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &LocalStore{Dir: dir}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Put writes r to a new file and returns its locator: a random uuid with the
// extension registered for mimeType.
func (s *LocalStore) Put(ctx context.Context, r io.Reader, mimeType string) (string, int64, error) {
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	locator := uuid.NewString() + ext

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("blob: write %s: %w", locator, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, locator)); err != nil {
		os.Remove(tmp.Name())
		return "", 0, err
	}
	return locator, n, nil
}

func (s *LocalStore) path(locator string) (string, error) {
	if locator == "" || strings.HasPrefix(locator, ".") || locator != filepath.Base(locator) {
		return "", ErrBadLocator
	}
	return filepath.Join(s.Dir, locator), nil
}

func (s *LocalStore) Open(locator string) (io.ReadCloser, error) {
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes a blob. Removing a missing blob is not an error.
func (s *LocalStore) Delete(locator string) error {
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Walk calls fn for every stored blob with its modification time. Partial
// uploads are skipped.
func (s *LocalStore) Walk(fn func(locator string, modTime time.Time) error) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := fn(e.Name(), info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}

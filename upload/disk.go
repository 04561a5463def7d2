package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps uploads in a local directory served under PublicBase.
type DiskStore struct {
	dir        string
	publicBase string
	namer      *Namer
}

// NewDiskStore creates a store rooted at dir. The directory is created lazily on the first Put.
func NewDiskStore(dir, publicBase string) *DiskStore {
	return &DiskStore{dir: dir, publicBase: publicBase, namer: NewNamer()}
}

// WithNamer replaces the name generator.
func (s *DiskStore) WithNamer(n *Namer) *DiskStore {
	s.namer = n
	return s
}

// Dir returns the destination directory.
func (s *DiskStore) Dir() string { return s.dir }

// ensureDir is idempotent. MkdirAll treats a directory created by a concurrent caller as success.
func (s *DiskStore) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	return nil
}

func (s *DiskStore) Put(ctx context.Context, r io.Reader, ext string) (StoredFile, error) {
	if err := s.ensureDir(); err != nil {
		return StoredFile{}, err
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.namer.Generate(ext)
		dst := filepath.Join(s.dir, name)

		// O_EXCL turns a name collision into an error instead of an overwrite.
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return StoredFile{}, fmt.Errorf("create upload file: %w", err)
		}

		written, err := io.Copy(f, r)
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close upload file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(dst)
			return StoredFile{}, err
		}

		return StoredFile{
			Name: name,
			Dir:  s.dir,
			Ext:  ext,
			Size: written,
			URL:  publicURL(s.publicBase, name),
		}, nil
	}
	return StoredFile{}, ErrNamesExhausted
}

func (s *DiskStore) Delete(ctx context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid upload name %q", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

package upload

import (
	"context"
	"io"
	"path"
)

// maxNameAttempts bounds the check-and-retry loop run on a name collision.
const maxNameAttempts = 5

// StoredFile describes an accepted upload after it was persisted.
type StoredFile struct {
	Name         string `json:"name"`
	Dir          string `json:"-"`
	Ext          string `json:"ext"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	Field        string `json:"field"`
	OriginalName string `json:"original_name"`
	URL          string `json:"url"`
}

// Path joins Dir and Name.
func (f StoredFile) Path() string {
	return path.Join(f.Dir, f.Name)
}

// Store persists upload bodies under generated names.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes r under a new name ending in ext. Errors returned by r are passed back unchanged
	// and nothing is left behind.
	Put(ctx context.Context, r io.Reader, ext string) (StoredFile, error)
	// Delete removes a stored file. Deleting a missing file is not an error.
	Delete(ctx context.Context, name string) error
}

func publicURL(base, name string) string {
	if base == "" {
		return name
	}
	if base[len(base)-1] == '/' {
		return base + name
	}
	return base + "/" + name
}

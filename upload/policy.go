package upload

import (
	"mime"
	"path"
	"strconv"
	"strings"
)

const (
	// DefaultMaxFileSizeBytes is the per-file ceiling (5 MiB).
	DefaultMaxFileSizeBytes int64 = 5 * 1024 * 1024
	// DefaultMaxFileCount is how many files a Single field accepts.
	DefaultMaxFileCount = 1

	// Form-field limits applied while the multipart body is streamed.
	maxFieldNameBytes  = 100
	maxFieldValueBytes = 1 << 20
	maxFields          = 1000
	maxParts           = 1000
)

// DefaultAllowedMimeTypes is the image allowlist.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
}

// Policy describes what the Gatekeeper accepts.
type Policy struct {
	MaxFileSizeBytes int64
	MaxFileCount     int
	AllowedMimeTypes []string
	// VerifyContent sniffs the leading bytes of each file and checks the
	// detected type against AllowedMimeTypes as well.
	VerifyContent bool
}

// DefaultPolicy returns the image upload policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxFileSizeBytes: DefaultMaxFileSizeBytes,
		MaxFileCount:     DefaultMaxFileCount,
		AllowedMimeTypes: append([]string(nil), DefaultAllowedMimeTypes...),
	}
}

func (p Policy) normalized() Policy {
	if p.MaxFileSizeBytes <= 0 {
		p.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if p.MaxFileCount <= 0 {
		p.MaxFileCount = DefaultMaxFileCount
	}
	if len(p.AllowedMimeTypes) == 0 {
		p.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)
	}
	return p
}

// Allows reports whether the declared MIME type is on the allowlist.
// Parameters such as "; charset=" are ignored and the comparison is case-insensitive.
func (p Policy) Allows(mimeType string) bool {
	mt := normalizeMimeType(mimeType)
	if mt == "" {
		return false
	}
	for _, allowed := range p.AllowedMimeTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), mt) {
			return true
		}
	}
	return false
}

// allowedList renders the allowlist subtypes for the rejection message, e.g. "jpeg, png".
func (p Policy) allowedList() string {
	names := make([]string, 0, len(p.AllowedMimeTypes))
	for _, mt := range p.AllowedMimeTypes {
		if i := strings.IndexByte(mt, '/'); i >= 0 {
			mt = mt[i+1:]
		}
		names = append(names, strings.ToLower(strings.TrimSpace(mt)))
	}
	return strings.Join(names, ", ")
}

func (p Policy) maxSizeMB() string {
	mb := float64(p.MaxFileSizeBytes) / (1024 * 1024)
	return strconv.FormatFloat(mb, 'f', -1, 64)
}

// ServeType returns the Content-Type a stored file is served with and whether it may be shown
// inline. Only names whose extension maps to an allowed type are inline. Everything else goes
// out as an application/octet-stream attachment.
func (p Policy) ServeType(name string) (string, bool) {
	p = p.normalized()
	if t := mime.TypeByExtension(path.Ext(name)); t != "" && p.Allows(t) {
		return normalizeMimeType(t), true
	}
	return "application/octet-stream", false
}

func normalizeMimeType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(v)
}

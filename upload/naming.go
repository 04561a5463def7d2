package upload

import (
	"math/rand"
	"path/filepath"
	"strconv"
	"time"
)

const nameRandomSpan = 1_000_000_000

// maxExtensionBytes bounds the client extension, dot included, so generated names stay far
// below filesystem and object key limits.
const maxExtensionBytes = 32

// Namer builds "<epochMillis>-<random in [0,1e9)><ext>" file names.
// It holds no counter, so concurrent callers need no coordination.
type Namer struct {
	now  func() time.Time
	intN func(int) int
}

// NewNamer returns a Namer backed by the wall clock and the shared random source.
func NewNamer() *Namer {
	return &Namer{now: time.Now, intN: rand.Intn}
}

// Generate returns a fresh name carrying ext unchanged.
func (n *Namer) Generate(ext string) string {
	millis := n.now().UnixMilli()
	return strconv.FormatInt(millis, 10) + "-" + strconv.Itoa(n.intN(nameRandomSpan)) + ext
}

// Extension returns the extension of the client supplied file name, dot included.
func Extension(originalName string) string {
	if originalName == "" {
		return ""
	}
	return filepath.Ext(filepath.Base(originalName))
}

// validExtension reports whether ext may be appended to a generated name: empty, or a dot
// followed by ASCII letters, digits, '-' or '_', at most maxExtensionBytes long.
func validExtension(ext string) bool {
	if ext == "" {
		return true
	}
	if len(ext) > maxExtensionBytes || ext[0] != '.' {
		return false
	}
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

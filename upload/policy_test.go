package upload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyAllows(t *testing.T) {
	p := DefaultPolicy()
	for _, mt := range []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "IMAGE/PNG", "image/png; charset=binary"} {
		require.True(t, p.Allows(mt), mt)
	}
	for _, mt := range []string{"", "text/plain", "image/svg+xml", "application/pdf", "image/png2"} {
		require.False(t, p.Allows(mt), mt)
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{}.normalized()
	require.Equal(t, DefaultMaxFileSizeBytes, p.MaxFileSizeBytes)
	require.Equal(t, DefaultMaxFileCount, p.MaxFileCount)
	require.Equal(t, DefaultAllowedMimeTypes, p.AllowedMimeTypes)

	custom := Policy{MaxFileSizeBytes: 10, MaxFileCount: 3, AllowedMimeTypes: []string{"image/png"}}.normalized()
	require.EqualValues(t, 10, custom.MaxFileSizeBytes)
	require.Equal(t, 3, custom.MaxFileCount)
	require.Equal(t, []string{"image/png"}, custom.AllowedMimeTypes)
}

func TestPolicyMessageParts(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, "jpeg, jpg, png, gif, webp", p.allowedList())
	require.Equal(t, "5", p.maxSizeMB())

	p.MaxFileSizeBytes = 1536 * 1024
	require.Equal(t, "1.5", p.maxSizeMB())
}

func TestPolicyServeType(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name   string
		ctype  string
		inline bool
	}{
		{"1-1.png", "image/png", true},
		{"1-1.JPG", "image/jpeg", true},
		{"1-1.gif", "image/gif", true},
		{"1-1.html", "application/octet-stream", false},
		{"1-1.svg", "application/octet-stream", false},
		{"1-1", "application/octet-stream", false},
	}
	for _, tc := range cases {
		ctype, inline := p.ServeType(tc.name)
		require.Equal(t, tc.ctype, ctype, tc.name)
		require.Equal(t, tc.inline, inline, tc.name)
	}

	gifOnly := Policy{AllowedMimeTypes: []string{"image/gif"}}
	_, inline := gifOnly.ServeType("1-1.png")
	require.False(t, inline)
}

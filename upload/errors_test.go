package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		err    *Error
		kind   Kind
		status int
		msg    string
	}{
		{errFileTooLarge(p, "image"), KindPolicy, http.StatusBadRequest, "File too large. Maximum size is 5MB"},
		{errTooManyFiles(1, "image"), KindPolicy, http.StatusBadRequest, "Too many files. Maximum is 1 file"},
		{errTooManyFiles(4, "photos"), KindPolicy, http.StatusBadRequest, "Too many files. Maximum is 4 files"},
		{errInvalidType(p, "image"), KindPolicy, http.StatusBadRequest, "Only image files are allowed (jpeg, jpg, png, gif, webp)"},
		{errUnexpectedField("avatar"), KindTransport, http.StatusBadRequest, "Unexpected field: avatar"},
		{errTransport(CodePartCount, "", nil), KindTransport, http.StatusBadRequest, "Too many parts"},
		{errTransport(CodeFieldValue, "bio", nil), KindTransport, http.StatusBadRequest, "Field value too long"},
		{errFileName("."+strings.Repeat("x", 300), "image"), KindTransport, http.StatusBadRequest, "File name too long"},
		{errFileName(".p*g", "image"), KindTransport, http.StatusBadRequest, "Invalid file name"},
		{errTransport(CodeMalformed, "", nil), KindTransport, http.StatusBadRequest, "File upload failed"},
		{errStorage("image", errors.New("open /var/data/x: permission denied")), KindStorage, http.StatusInternalServerError, "Failed to store uploaded file"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, tc.err.Kind(), tc.err.Code)
		require.Equal(t, tc.status, tc.err.Status(), tc.err.Code)
		require.Equal(t, tc.msg, tc.err.PublicMessage(), tc.err.Code)
	}
}

func TestAsError(t *testing.T) {
	require.Nil(t, AsError(nil))

	orig := errUnexpectedField("x")
	wrapped := fmt.Errorf("handler: %w", orig)
	require.Same(t, orig, AsError(wrapped))

	cause := errors.New("multipart: NextPart: EOF")
	ue := AsError(cause)
	require.Equal(t, CodeMalformed, ue.Code)
	require.Equal(t, KindTransport, ue.Kind())
	require.Equal(t, "multipart: NextPart: EOF", ue.PublicMessage())
	require.ErrorIs(t, ue, cause)
}

func TestStorageErrorHidesCause(t *testing.T) {
	ue := errStorage("image", errors.New("mkdir /srv/uploads: read-only file system"))
	require.NotContains(t, ue.PublicMessage(), "/srv")
	require.Contains(t, ue.Error(), "read-only file system")
	require.Equal(t, "storage_fault", ue.Kind().String())
}

package upload

import (
	"errors"
	"io"
)

// limitedPart reads at most limit bytes and fails with tooLarge as soon as the
// underlying stream proves to be longer.
type limitedPart struct {
	r         io.Reader
	remaining int64
	tooLarge  error
	n         int64
}

func newLimitedPart(r io.Reader, limit int64, tooLarge error) *limitedPart {
	return &limitedPart{r: r, remaining: limit, tooLarge: tooLarge}
}

func (l *limitedPart) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.remaining <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, l.tooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	l.n += int64(n)
	return n, err
}

// partReader marks failures of the client stream as transport faults so they are not mistaken
// for store errors once they come back out of Store.Put.
type partReader struct {
	r     io.Reader
	field string
}

func (p partReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && err != io.EOF {
		var ue *Error
		if !errors.As(err, &ue) {
			err = errTransport(CodeMalformed, p.field, err)
		}
	}
	return n, err
}

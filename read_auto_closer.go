package lbanalyzer

import (
	"io"
)

// ReadAutoCloser wraps a reader and closes it as soon as it reports io.EOF.
// Log files are opened one after another, so each handle is released the
// moment its last line has been scanned.
type ReadAutoCloser struct {
	r io.ReadCloser
}

// NewReadAutoCloser wraps r. A reader that cannot be closed gets a no-op
// Close.
func NewReadAutoCloser(r io.Reader) ReadAutoCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return ReadAutoCloser{rc}
	}
	return ReadAutoCloser{io.NopCloser(r)}
}

// Read reads from the wrapped reader, closing it at end of input. The zero
// ReadAutoCloser is empty.
func (a ReadAutoCloser) Read(b []byte) (int, error) {
	if a.r == nil {
		return 0, io.EOF
	}
	n, err := a.r.Read(b)
	if err == io.EOF {
		a.Close()
	}
	return n, err
}

// Close closes the wrapped reader.
func (a ReadAutoCloser) Close() error {
	if a.r == nil {
		return nil
	}
	return a.r.Close()
}

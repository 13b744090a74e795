// Package lbanalyzer tallies client addresses found in load-balancer access
// logs, ranks the busiest ones, enriches them with an external lookup and
// writes the result as CSV.
//
// The building blocks are small chainable pipes in the spirit of a shell
// pipeline. A pipe carries a reader and a sticky error status: once any stage
// fails, every later stage is a no-op and sinks report the error, so a chain
// can be written without checking errors at each step:
//
//	paths, err := ListFiles("/var/log/lb").Slice()
//
// The analysis itself is a strict sequence of stages: ParseLine feeds a Tally,
// the Tally's counts feed Rank, the ranked entries feed an Enricher, and the
// enriched rows are written by WriteReport.
package lbanalyzer

import (
	"io"
	"os"
)

// Pipe is a reader with an attached error status and an output writer.
type Pipe struct {
	Reader ReadAutoCloser
	err    error
	stdout io.Writer
}

// NewPipe returns an empty pipe whose standard output is os.Stdout.
func NewPipe() *Pipe {
	return &Pipe{
		Reader: ReadAutoCloser{},
		stdout: os.Stdout,
	}
}

// Close closes the underlying reader. Calling it on a nil or drained pipe is
// safe.
func (p *Pipe) Close() error {
	if p == nil {
		return nil
	}
	return p.Reader.Close()
}

// Error returns the pipe's error status, or nil.
func (p *Pipe) Error() error {
	if p == nil {
		return nil
	}
	return p.err
}

// Read makes a pipe an io.Reader. A nil pipe reads as empty.
func (p *Pipe) Read(b []byte) (int, error) {
	if p == nil {
		return 0, io.EOF
	}
	return p.Reader.Read(b)
}

// SetError sets the pipe's error status. A non-nil error also closes the
// reader, since nothing will read from it again.
func (p *Pipe) SetError(err error) {
	if p == nil {
		return
	}
	if err != nil {
		p.Close()
	}
	p.err = err
}

// WithReader attaches r to the pipe. If r is closable it is closed once it
// has been read to the end.
func (p *Pipe) WithReader(r io.Reader) *Pipe {
	if p == nil {
		return nil
	}
	p.Reader = NewReadAutoCloser(r)
	return p
}

// WithStdout replaces the writer used by Stdout. Tests use it to capture
// output.
func (p *Pipe) WithStdout(w io.Writer) *Pipe {
	if p == nil {
		return nil
	}
	p.stdout = w
	return p
}

// WithError sets the error status and returns the pipe.
func (p *Pipe) WithError(err error) *Pipe {
	p.SetError(err)
	return p
}

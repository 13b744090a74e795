package lbanalyzer

import (
	"bufio"
	"io"
	"strings"
)

// maxLineLength bounds a single scanned line. Access-log lines carrying long
// URLs and user agents overflow bufio's default of 64 KiB.
const maxLineLength = 1 << 20

// EachLine calls process for every line read from the pipe, passing a
// builder for whatever the line should turn into. It returns a new pipe
// holding the builder's contents. A read error, including a line longer than
// maxLineLength, sets the error status of both pipes.
func (p *Pipe) EachLine(process func(string, *strings.Builder)) *Pipe {
	if p == nil || p.Error() != nil {
		return p
	}
	scanner := bufio.NewScanner(p.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	var out strings.Builder
	for scanner.Scan() {
		process(scanner.Text(), &out)
	}
	if err := scanner.Err(); err != nil {
		p.SetError(err)
		return NewPipe().WithError(err)
	}
	return Echo(out.String())
}

// Match keeps only the lines that contain s.
func (p *Pipe) Match(s string) *Pipe {
	return p.EachLine(func(line string, out *strings.Builder) {
		if strings.Contains(line, s) {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	})
}

// EachBoundedLine calls process for every line read from the pipe. A line
// longer than limit bytes is never held in memory: its bytes are discarded and
// process receives an empty line with overlong set, then reading resumes at
// the next line. A read error sets the pipe's error status.
func (p *Pipe) EachBoundedLine(limit int, process func(line string, overlong bool)) {
	if p == nil || p.Error() != nil {
		return
	}
	r := bufio.NewReaderSize(p.Reader, 64*1024)
	var (
		buf      []byte
		overlong bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err != io.EOF {
				p.SetError(err)
			}
			return
		}
		if !overlong {
			if len(buf)+len(chunk) > limit {
				overlong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if isPrefix {
			continue
		}
		if overlong {
			process("", true)
		} else {
			process(string(buf), false)
		}
		buf = buf[:0]
		overlong = false
	}
}

package lbanalyzer

import (
	"bufio"
	"io"
	"os"
)

// Slice reads the rest of the pipe and returns its lines. An empty pipe
// gives a nil slice.
func (p *Pipe) Slice() ([]string, error) {
	if p.Error() != nil {
		return nil, p.Error()
	}
	defer p.Close()
	var lines []string
	scanner := bufio.NewScanner(p)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		p.SetError(err)
		return nil, err
	}
	return lines, nil
}

// WriteFile writes the rest of the pipe to the named file, replacing any
// previous contents, and returns the number of bytes written. The file is
// created with mode 0644 if it does not exist.
func (p *Pipe) WriteFile(name string) (int64, error) {
	if p.Error() != nil {
		return 0, p.Error()
	}
	defer p.Close()
	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		p.SetError(err)
		return 0, err
	}
	wrote, err := io.Copy(out, p)
	if err != nil {
		out.Close()
		p.SetError(err)
		return 0, err
	}
	if err := out.Close(); err != nil {
		p.SetError(err)
		return 0, err
	}
	return wrote, nil
}

// Stdout copies the rest of the pipe to the pipe's standard output and
// returns the number of bytes written.
func (p *Pipe) Stdout() (int, error) {
	if p == nil {
		return 0, nil
	}
	if p.Error() != nil {
		return 0, p.Error()
	}
	defer p.Close()
	w := p.stdout
	if w == nil {
		w = os.Stdout
	}
	n, err := io.Copy(w, p)
	if err != nil {
		p.SetError(err)
		return int(n), err
	}
	return int(n), nil
}

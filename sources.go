package lbanalyzer

import (
	"os"
	"path/filepath"
	"strings"
)

// Echo returns a pipe containing s.
func Echo(s string) *Pipe {
	return NewPipe().WithReader(strings.NewReader(s))
}

// File returns a pipe reading the named file. If the file cannot be opened,
// the pipe's error status is set.
func File(name string) *Pipe {
	p := NewPipe()
	f, err := os.Open(name)
	if err != nil {
		return p.WithError(err)
	}
	return p.WithReader(f)
}

// ListFiles returns a pipe listing the regular files in dir, one path per
// line, in lexical order. Subdirectories and other non-regular entries are
// left out. Symbolic links are followed; a link that cannot be resolved is
// still listed so that reading it reports the failure. If dir cannot be read,
// the pipe's error status is set.
func ListFiles(dir string) *Pipe {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return NewPipe().WithError(err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err == nil && !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}
	return Slice(paths)
}

// Slice returns a pipe containing each element of s on its own line.
func Slice(s []string) *Pipe {
	if len(s) == 0 {
		return NewPipe()
	}
	return Echo(strings.Join(s, "\n") + "\n")
}

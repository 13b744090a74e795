package lbanalyzer

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// FrequencyMap counts how often each client address was seen.
type FrequencyMap map[netip.Addr]uint64

// FileError records a log file that could not be read completely.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Tally accumulates address counts across any number of log files.
//
// Lines counts every line read, parsable or not. Parsed counts the lines whose
// address was recorded in Counts, so the sum of Counts always equals Parsed.
// Ignored counts lines whose address fell inside an ignored network, and
// Overlong the lines longer than maxLineLength, which are never parsed. A file
// that fails part way through contributes nothing but its entry in Files and
// Failed.
type Tally struct {
	Counts   FrequencyMap
	Files    int
	Lines    uint64
	Parsed   uint64
	Ignored  uint64
	Overlong uint64
	Failed   []FileError

	ignore []netip.Prefix
	log    logrus.FieldLogger
}

// NewTally returns an empty tally. Addresses inside any of the ignore
// networks are not counted.
func NewTally(log logrus.FieldLogger, ignore []netip.Prefix) *Tally {
	if log == nil {
		log = discardLogger()
	}
	return &Tally{
		Counts: make(FrequencyMap),
		ignore: ignore,
		log:    log,
	}
}

// AddDir reads every regular file in dir. Files that fail are recorded in
// Failed and skipped; only a failure to list dir itself is returned.
func (t *Tally) AddDir(dir string) error {
	paths, err := ListFiles(dir).Slice()
	if err != nil {
		return fmt.Errorf("listing log directory: %w", err)
	}
	t.log.WithFields(logrus.Fields{"dir": dir, "files": len(paths)}).Info("scanning log directory")
	for _, path := range paths {
		t.AddFile(path)
	}
	return nil
}

// AddFile reads one log file. The file counts towards Files even when it
// cannot be read; the failure is recorded in Failed and returned.
func (t *Tally) AddFile(path string) error {
	t.Files++
	return t.scan(path, File(path))
}

// AddReader reads log lines from r. It does not count as a file.
func (t *Tally) AddReader(name string, r io.Reader) error {
	return t.scan(name, NewPipe().WithReader(r))
}

// Add records one line.
func (t *Tally) Add(line string) {
	t.Lines++
	addr, ok := ParseLine(line)
	if !ok {
		return
	}
	if containsAddr(t.ignore, addr) {
		t.Ignored++
		return
	}
	t.Parsed++
	t.Counts[addr]++
}

// scan tallies one input into a scratch tally and merges it only when the
// whole input was read.
func (t *Tally) scan(name string, p *Pipe) error {
	part := &Tally{Counts: make(FrequencyMap), ignore: t.ignore}
	var size uint64
	p.EachBoundedLine(maxLineLength, func(line string, overlong bool) {
		if overlong {
			part.Lines++
			part.Overlong++
			return
		}
		size += uint64(len(line)) + 1
		part.Add(line)
	})
	log := t.log.WithField("file", name)
	if err := p.Error(); err != nil {
		fe := FileError{Path: name, Err: err}
		t.Failed = append(t.Failed, fe)
		log.WithError(err).Warn("skipping unreadable log file")
		return fe
	}
	if part.Overlong > 0 {
		log.WithField("lines", part.Overlong).Warn("skipped overlong lines")
	}
	t.merge(part)
	log.WithFields(logrus.Fields{
		"lines": humanize.Comma(int64(part.Lines)),
		"size":  humanize.Bytes(size),
	}).Debug("scanned log file")
	return nil
}

func (t *Tally) merge(part *Tally) {
	for addr, n := range part.Counts {
		t.Counts[addr] += n
	}
	t.Lines += part.Lines
	t.Parsed += part.Parsed
	t.Ignored += part.Ignored
	t.Overlong += part.Overlong
}

// Unique returns the number of distinct addresses counted.
func (t *Tally) Unique() int {
	return len(t.Counts)
}

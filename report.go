package lbanalyzer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Header names the report columns.
var Header = []string{"address", "count", "country", "city", "hostname", "org"}

// EncodeRows renders rows as CSV, quoting fields where needed. With header
// set, the column names come first.
func EncodeRows(rows []Row, header bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(Header); err != nil {
			return nil, err
		}
	}
	for _, r := range rows {
		if err := w.Write(r.Record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReport writes rows as CSV to path, replacing the file if it exists.
func WriteReport(path string, rows []Row, header bool) error {
	data, err := EncodeRows(rows, header)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if _, err := NewPipe().WithReader(bytes.NewReader(data)).WriteFile(path); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Summary describes a finished run.
type Summary struct {
	Files       int
	FailedFiles int
	Lines       uint64
	Parsed      uint64
	Unique      int
	Ranked      int
	Rows        int
}

func (s Summary) String() string {
	return fmt.Sprintf("Analyzed %d files with %d total lines and %d unique addresses.",
		s.Files, s.Lines, s.Unique)
}

// Print writes the one-line summary to w.
func (s Summary) Print(w io.Writer) error {
	_, err := Echo(s.String() + "\n").WithStdout(w).Stdout()
	return err
}

// Package export serializes annotation records to the two-column CSV format
// consumed downstream.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/incuview/viewer/internal/annotation"
)

// Write serializes annotation records as CSV with the header
// "clone,incucyteNote", one row per annotated well.
func Write(w io.Writer, rows []annotation.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"clone", "incucyteNote"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Clone, row.Label.String()}); err != nil {
			return fmt.Errorf("write row %s: %w", row.Clone, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the export to the user-chosen path. A path ending in .gz
// produces a gzip-compressed CSV.
func WriteFile(path string, rows []annotation.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := Write(w, rows); err != nil {
		f.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("flush gzip: %w", err)
		}
	}
	return f.Close()
}

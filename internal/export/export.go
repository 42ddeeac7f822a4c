// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export serializes Records to delimited files with a fixed column
// schema, and writes the unique-taxa list.
package export

import (
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/sra-fetch/internal/parse"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Writer writes Records as delimited rows. The zero value writes CSV.
type Writer struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// ForPath returns a Writer whose delimiter suits path: tab for ".tsv",
// comma otherwise.
func ForPath(path string) *Writer {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return &Writer{Comma: '\t'}
	}
	return &Writer{}
}

// Write streams records to path and returns the number of rows written.
// The header row is types.Columns. Rows appear in the order received.
//
// The file is flushed and closed on every return. If records yields an
// error, the rows written so far are kept and the error is returned
// wrapped. Failure to create or write path is a *types.IOError.
func (w *Writer) Write(records iter.Seq2[types.Record, error], path string) (n int, err error) {
	f, err := w.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for r, rerr := range records {
		if rerr != nil {
			return f.Count(), fmt.Errorf("export to %s stopped after %d record(s): %w", path, f.Count(), rerr)
		}
		if err := f.Append(r); err != nil {
			return f.Count(), err
		}
	}
	return f.Count(), nil
}

// File is an open export destination for callers that push rows one at a
// time instead of handing Write a sequence.
type File struct {
	path string
	f    *os.File
	cw   *csv.Writer
	n    int
}

// Create opens path and writes the header row.
func (w *Writer) Create(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.IOError{Path: path, Op: "create", Err: err}
	}
	cw := csv.NewWriter(f)
	if w.Comma != 0 {
		cw.Comma = w.Comma
	}
	out := &File{path: path, f: f, cw: cw}
	if err := cw.Write(types.Columns); err != nil {
		f.Close()
		return nil, &types.IOError{Path: path, Op: "write", Err: err}
	}
	return out, nil
}

// Append writes one row.
func (f *File) Append(r types.Record) error {
	if err := f.cw.Write(Row(r)); err != nil {
		return &types.IOError{Path: f.path, Op: "write", Err: err}
	}
	f.n++
	return nil
}

// Count returns the number of rows appended.
func (f *File) Count() int { return f.n }

// Close flushes buffered rows and closes the file. Rows already flushed
// stay on disk even when Close fails.
func (f *File) Close() error {
	f.cw.Flush()
	werr := f.cw.Error()
	cerr := f.f.Close()
	switch {
	case werr != nil:
		return &types.IOError{Path: f.path, Op: "write", Err: werr}
	case cerr != nil:
		return &types.IOError{Path: f.path, Op: "close", Err: cerr}
	}
	return nil
}

// Row renders r in types.Columns order. Nulls are empty cells.
func Row(r types.Record) []string {
	return []string{
		r.Accession,
		r.Title,
		r.StudyTitle,
		r.LibraryStrategy,
		r.LibraryLayout,
		r.InstrumentModel,
		formatInt(r.TaxonID),
		r.ScientificName,
		parse.JoinLineage(r.TaxonomicLineage),
		r.RunAccession,
		formatInt(r.TotalSpots),
		formatInt(r.TotalBases),
		formatInt(r.Size),
		formatDate(r),
		formatInt(r.NReads),
		formatFloat(r.ReadAverage),
	}
}

func formatInt(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatDate(r types.Record) string {
	if r.Published == nil {
		return ""
	}
	return r.Published.Format(types.DateLayout)
}

// Package ingest turns uploaded files and bundled fixtures into water
// datasets. It maps raw rows to domain records and reports malformed input;
// it never computes derived fields.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/water-balance-service/internal/domain"
)

// ErrUnsupportedFormat is returned by Parse for file extensions it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format names the on-disk representation of a dataset.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// Result is a parsed, unvalidated dataset together with which derived
// fields the source actually supplied. Derived fields that were not supplied
// are zero and must not be audited.
//
// Zone losses are supplied per cell: a zone is supplied for a month when the
// loss row at that index carries a reading for it.
type Result struct {
	Dataset        domain.WaterDataset
	Format         Format
	PeriodLossCols PeriodLossColumns
}

// PeriodLossColumns records which period loss fields the source carried.
type PeriodLossColumns struct {
	Stage01Loss bool
	Stage02Loss bool
	TotalLoss   bool
}

// Any reports whether at least one period loss field was supplied.
func (c PeriodLossColumns) Any() bool {
	return c.Stage01Loss || c.Stage02Loss || c.TotalLoss
}

// ZoneLossSupplied reports whether the source carried any zone loss reading.
func (r Result) ZoneLossSupplied() bool {
	for _, row := range r.Dataset.Zones.Loss {
		if len(row.Readings) > 0 {
			return true
		}
	}
	return false
}

// MalformedInputError reports a cell or structure the parser could not map.
type MalformedInputError struct {
	Line   int
	Column string
	Err    error
}

func (e *MalformedInputError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("malformed input: line %d, column %q: %v", e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("malformed input: line %d: %v", e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("malformed input: column %q: %v", e.Column, e.Err)
	default:
		return fmt.Sprintf("malformed input: %v", e.Err)
	}
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// DetectFormat maps a file name to its format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Parse reads a dataset from r, choosing the parser from name's extension.
func Parse(name string, r io.Reader) (Result, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return Result{}, err
	}
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	default:
		return ParseYAML(r)
	}
}

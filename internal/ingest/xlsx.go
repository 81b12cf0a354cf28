package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first worksheet of an Excel workbook laid out like the
// CSV upload.
func ParseXLSX(r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, &MalformedInputError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, &MalformedInputError{Err: errors.New("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, &MalformedInputError{Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}

	res, err := fromTable(rows, 1)
	if err != nil {
		return Result{}, err
	}
	res.Format = FormatXLSX
	return res, nil
}

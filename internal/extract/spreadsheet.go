package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1")
)

// Spreadsheet flattens every cell of a CSV or XLSX workbook into
// whitespace-joined text. The format is detected from the bytes: XLSX is a
// zip container, legacy XLS an OLE compound file (not supported), and
// anything else is read as CSV.
type Spreadsheet struct{}

func (Spreadsheet) Kind() Kind { return KindSpreadsheet }

func (Spreadsheet) Extract(body []byte, contentType string) (*Content, error) {
	var (
		cells []string
		err   error
	)
	switch {
	case bytes.HasPrefix(body, zipMagic):
		cells, err = xlsxCells(body)
	case bytes.HasPrefix(body, oleMagic):
		err = fmt.Errorf("legacy xls: %w", ErrUnsupported)
	default:
		cells, err = csvCells(body, contentType)
	}
	if err != nil {
		return nil, err
	}
	return &Content{Text: collapse(strings.Join(cells, " "))}, nil
}

func xlsxCells(body []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var cells []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			cells = append(cells, row...)
		}
	}
	return cells, nil
}

func csvCells(body []byte, contentType string) ([]string, error) {
	body, err := toUTF8(body, contentType)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = sniffDelimiter(body)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var cells []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		cells = append(cells, rec...)
	}
	return cells, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as is common in pt-BR exports.
func sniffDelimiter(body []byte) rune {
	line := body
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

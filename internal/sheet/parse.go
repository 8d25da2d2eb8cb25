package sheet

// parse.go reads uploaded files into rows.
//
// Supported formats:
//   - delimited text (.csv, .txt, or no extension) via encoding/csv
//   - Excel workbooks (.xlsx, .xlsm) via excelize, first sheet only
//
// The header is the first non-empty record. Blank records are skipped but still
// advance the line counter so errors point at the right line in the file.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyFile is returned when the upload holds no data rows.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnsupportedFormat is returned for file extensions we cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidCSV wraps encoding/csv failures.
	ErrInvalidCSV = errors.New("invalid csv")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads r according to the extension of fileName.
func Parse(r io.Reader, fileName string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	case ".csv", ".txt", "":
		return ParseCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// ParseCSV reads a comma-separated file. A UTF-8 BOM is skipped and invalid
// UTF-8 sequences are replaced with U+FFFD.
func ParseCSV(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		for i, v := range rec {
			if !utf8.ValidString(v) {
				rec[i] = strings.ToValidUTF8(v, "\uFFFD")
			}
		}
		records = append(records, rec)
	}

	return buildRows(records, SourceSpreadsheet)
}

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return buildRows(records, SourceSpreadsheet)
}

// buildRows finds the header record and converts the remaining records.
func buildRows(records [][]string, source Source) ([]Row, error) {
	headerIdx := -1
	for i, rec := range records {
		if !blankRecord(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	headers := records[headerIdx]
	rows := make([]Row, 0, len(records)-headerIdx-1)
	for i := headerIdx + 1; i < len(records); i++ {
		if blankRecord(records[i]) {
			continue
		}
		rows = append(rows, NewRow(i+1, source, headers, records[i]))
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// OCRRecord is the structured output of the OCR extraction collaborator: one
// candidate record with the extractor's confidence in [0,1].
type OCRRecord struct {
	Fields     map[string]string `json:"fields"`
	Confidence float64           `json:"confidence"`
}

// FromOCR converts extracted records into rows. Column order is the sorted
// field name order so repeated conversions produce identical rows.
func FromOCR(records []OCRRecord) []Row {
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		headers := sortedKeys(rec.Fields)
		values := make([]string, len(headers))
		for j, h := range headers {
			values[j] = rec.Fields[h]
		}
		row := NewRow(i+1, SourceOCR, headers, values)
		row.OCRConfidence = rec.Confidence
		rows = append(rows, row)
	}
	return rows
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Package sheet turns uploaded spreadsheets and OCR extraction output into
// import rows: an ordered list of column/value cells per source record.
//
// Rows are immutable once parsed. Downstream code reads them through Get and
// never edits the cells in place.
package sheet

import "strings"

// Source identifies where a row came from.
type Source string

const (
	SourceSpreadsheet Source = "spreadsheet"
	SourceOCR         Source = "ocr"
)

// Cell is one column/value pair of a row.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Row is one source record. Line is the 1-based line (or sheet row) number in the
// uploaded file, or the 1-based record index for OCR input.
type Row struct {
	Line          int     `json:"line"`
	Source        Source  `json:"source"`
	OCRConfidence float64 `json:"ocrConfidence,omitempty"`
	Cells         []Cell  `json:"cells"`
}

// NewRow builds a row from header names and raw values. Values are cleaned with
// CleanCell; missing trailing values become empty strings.
func NewRow(line int, source Source, headers, values []string) Row {
	cells := make([]Cell, 0, len(headers))
	for i, h := range headers {
		h = CleanCell(h)
		if h == "" {
			continue
		}
		v := ""
		if i < len(values) {
			v = CleanCell(values[i])
		}
		cells = append(cells, Cell{Column: h, Value: v})
	}
	return Row{Line: line, Source: source, Cells: cells}
}

// Get returns the value of the first column whose name matches name
// case-insensitively, ignoring spaces, dashes and underscores.
func (r Row) Get(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// Lookup is Get with a presence flag.
func (r Row) Lookup(name string) (string, bool) {
	key := ColumnKey(name)
	for _, c := range r.Cells {
		if ColumnKey(c.Column) == key {
			return c.Value, true
		}
	}
	return "", false
}

// First returns the first non-empty value among the given column names.
func (r Row) First(names ...string) string {
	for _, n := range names {
		if v := r.Get(n); v != "" {
			return v
		}
	}
	return ""
}

// ColumnKey normalizes a header for comparison: "Phone Number", "phone_number"
// and "phoneNumber" all map to "phonenumber".
func ColumnKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - surrounding whitespace
//   - Excel formula text prefix (="...")
//   - surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

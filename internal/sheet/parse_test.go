package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	input := "firstName,lastName,teamName\nJane,Doe,Varsity\n,,\nJohn, Smith ,JV\n"

	rows, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	if got := rows[0].Get("firstName"); got != "Jane" {
		t.Errorf("rows[0].firstName = %q, want %q", got, "Jane")
	}
	if rows[0].Line != 2 {
		t.Errorf("rows[0].Line = %d, want 2", rows[0].Line)
	}
	if got := rows[1].Get("last_name"); got != "Smith" {
		t.Errorf("rows[1].last_name = %q, want %q", got, "Smith")
	}
	// blank line 3 is skipped but still counted
	if rows[1].Line != 4 {
		t.Errorf("rows[1].Line = %d, want 4", rows[1].Line)
	}
	if rows[0].Source != SourceSpreadsheet {
		t.Errorf("rows[0].Source = %q, want %q", rows[0].Source, SourceSpreadsheet)
	}
}

func TestParseCSV_BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("firstName,lastName\nJane,Doe\n")...)

	rows, err := ParseCSV(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if got := rows[0].Get("firstName"); got != "Jane" {
		t.Errorf("firstName = %q, want %q (BOM not stripped from header?)", got, "Jane")
	}
}

func TestParseCSV_InvalidUTF8(t *testing.T) {
	input := []byte("firstName,lastName\nJos\xe9,Doe\n")

	rows, err := ParseCSV(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if got := rows[0].Get("firstName"); got != "Jos\uFFFD" {
		t.Errorf("firstName = %q, want %q", got, "Jos\uFFFD")
	}
}

func TestParseCSV_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no bytes", ""},
		{"only blank lines", "\n\n"},
		{"header only", "firstName,lastName\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			if !errors.Is(err, ErrEmptyFile) {
				t.Errorf("err = %v, want ErrEmptyFile", err)
			}
		})
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse(strings.NewReader("x"), "roster.pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	data := [][]any{
		{"firstName", "lastName", "teamName"},
		{"Mia", "Garcia", "Elite Thunder 2009G"},
		{"Ava", "Lopez", "Elite Thunder 2009G"},
	}
	for i, rec := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheetName, cell, &rec); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	rows, err := Parse(&buf, "roster.xlsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if got := rows[1].Get("lastName"); got != "Lopez" {
		t.Errorf("rows[1].lastName = %q, want %q", got, "Lopez")
	}
	if got := rows[0].Get("teamName"); got != "Elite Thunder 2009G" {
		t.Errorf("rows[0].teamName = %q, want %q", got, "Elite Thunder 2009G")
	}
}

func TestFromOCR(t *testing.T) {
	rows := FromOCR([]OCRRecord{
		{Fields: map[string]string{"lastName": "Doe", "firstName": "Jane"}, Confidence: 0.42},
	})

	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Source != SourceOCR || r.OCRConfidence != 0.42 || r.Line != 1 {
		t.Errorf("row = %+v, want OCR source, confidence 0.42, line 1", r)
	}
	if r.Cells[0].Column != "firstName" {
		t.Errorf("first column = %q, want sorted order starting with firstName", r.Cells[0].Column)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Jane  ", "Jane"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColumnKey(t *testing.T) {
	for _, in := range []string{"Phone Number", "phone_number", "phoneNumber", "PHONE-NUMBER"} {
		if got := ColumnKey(in); got != "phonenumber" {
			t.Errorf("ColumnKey(%q) = %q, want %q", in, got, "phonenumber")
		}
	}
}

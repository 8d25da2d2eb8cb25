// Package contact sorts the contact values of an import row into emails and
// phone numbers, regardless of which column they were typed into.
//
// Roster spreadsheets are filled in by hand, so emails end up in the phone
// column and the other way around. Classify looks at every contact-like
// column, decides what each value actually is, and reports anything it moved
// or could not recognize as a warning. It has no side effects.
package contact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

// Kind is the kind of contact value a column is expected to hold.
type Kind int

const (
	KindAny Kind = iota
	KindEmail
	KindPhone
)

// Column is a contact-like column that Classify inspects.
type Column struct {
	Name string
	Kind Kind
}

// Columns lists the inspected columns, in scan order. Header matching uses
// sheet.ColumnKey so "Phone Number" and "phone_number" are the same column.
var Columns = []Column{
	{Name: "email", Kind: KindEmail},
	{Name: "emails", Kind: KindEmail},
	{Name: "phone", Kind: KindPhone},
	{Name: "phones", Kind: KindPhone},
	{Name: "phoneNumber", Kind: KindPhone},
	{Name: "phoneNumbers", Kind: KindPhone},
	{Name: "mobile", Kind: KindPhone},
	{Name: "contact", Kind: KindAny},
	{Name: "contacts", Kind: KindAny},
}

// Phone numbers carry 7 to 15 digits once formatting is stripped (E.164 max).
const (
	MinPhoneDigits = 7
	MaxPhoneDigits = 15
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result holds the classified values of one row.
type Result struct {
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phoneNumbers"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Reclassified reports how many warnings were about moved values.
func (r Result) Reclassified() int {
	n := 0
	for _, w := range r.Warnings {
		if strings.HasPrefix(w, "Found ") {
			n++
		}
	}
	return n
}

// Classify scans the contact columns of row. Values are split on , ; and |
// so list columns like "emails" may hold several entries. Output lists are
// deduplicated in first-seen order: emails case-insensitively, phone numbers
// by their digits.
func Classify(row sheet.Row) Result {
	res := Result{Emails: []string{}, PhoneNumbers: []string{}}
	seenEmail := make(map[string]bool)
	seenPhone := make(map[string]bool)

	for _, cell := range row.Cells {
		col, ok := lookupColumn(cell.Column)
		if !ok {
			continue
		}
		for _, v := range SplitValues(cell.Value) {
			switch {
			case IsEmail(v):
				if col.Kind == KindPhone {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("Found email %q in phone number field, moved to emails", v))
				}
				key := strings.ToLower(v)
				if !seenEmail[key] {
					seenEmail[key] = true
					res.Emails = append(res.Emails, v)
				}

			case IsPhone(v):
				if col.Kind == KindEmail {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("Found phone number %q in email field, moved to phone numbers", v))
				}
				key := Digits(v)
				if !seenPhone[key] {
					seenPhone[key] = true
					res.PhoneNumbers = append(res.PhoneNumbers, v)
				}

			default:
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("Unrecognized contact format %q in %s field", v, cell.Column))
			}
		}
	}

	return res
}

func lookupColumn(header string) (Column, bool) {
	key := sheet.ColumnKey(header)
	for _, c := range Columns {
		if sheet.ColumnKey(c.Name) == key {
			return c, true
		}
	}
	return Column{}, false
}

// SplitValues splits a cell holding several contact values.
func SplitValues(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsEmail reports whether s looks like local@domain.tld.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsPhone reports whether s is a phone number: an optional leading +, then
// digits and the usual separators, with 7 to 15 digits in total.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return false
		}
	}
	n := len(Digits(s))
	return n >= MinPhoneDigits && n <= MaxPhoneDigits
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

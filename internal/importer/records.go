package importer

// records.go validates import rows into typed records, once, at the start of
// row processing. Everything downstream works on AthleteRecord or
// MeasurementRecord and never looks at the raw cells again.

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/johnahull/AthleteMetrics-sub002/internal/contact"
	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

// FieldError is a single validation error for a field.
type FieldError struct {
	Field   string // column name
	Value   string // the invalid value
	Message string // human-readable message
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// AthleteRecord is a validated roster row.
type AthleteRecord struct {
	FirstName        string
	LastName         string
	BirthDate        *time.Time
	BirthYear        int
	GraduationYear   int
	Gender           string
	Emails           []string
	PhoneNumbers     []string
	Sports           []string
	HeightInches     float64
	WeightPounds     float64
	School           string
	TeamName         string
	CompetitiveLevel int
}

// Criteria returns the matching input for the record.
func (r AthleteRecord) Criteria() matching.Criteria {
	return matching.Criteria{FirstName: r.FirstName, LastName: r.LastName, TeamHint: r.TeamName}
}

// MeasurementRecord is a validated measurement row.
type MeasurementRecord struct {
	FirstName     string
	LastName      string
	Gender        string
	TeamName      string
	Date          time.Time
	Age           int
	Metric        Metric
	Value         float64
	Units         string
	FlyInDistance float64
	Notes         string
}

// Criteria returns the matching input for the record.
func (r MeasurementRecord) Criteria() matching.Criteria {
	return matching.Criteria{FirstName: r.FirstName, LastName: r.LastName, TeamHint: r.TeamName}
}

// validator collects field errors and warnings while a row is read.
type validator struct {
	row      sheet.Row
	errs     []FieldError
	warnings []string
}

func (v *validator) fail(field, value, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warn(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) required(field string, aliases ...string) string {
	s := v.row.First(append([]string{field}, aliases...)...)
	if s == "" {
		v.fail(field, "", "required field is empty")
	}
	return s
}

func (v *validator) optionalInt(field string, lo, hi int) int {
	s := v.row.Get(field)
	if s == "" {
		return 0
	}
	n, ok := ParseInt(s)
	if !ok {
		v.fail(field, s, "invalid whole number")
		return 0
	}
	if n < lo || n > hi {
		v.fail(field, s, "must be between %d and %d", lo, hi)
		return 0
	}
	return n
}

func (v *validator) optionalFloat(field string, lo, hi float64) float64 {
	s := v.row.Get(field)
	if s == "" {
		return 0
	}
	f, ok := ParseFloat(s)
	if !ok {
		v.fail(field, s, "invalid number format")
		return 0
	}
	if f < lo || f > hi {
		v.fail(field, s, "must be between %g and %g", lo, hi)
		return 0
	}
	return f
}

func (v *validator) gender(field string) string {
	s := v.row.Get(field)
	g, ok := NormalizeGender(s)
	if !ok {
		v.fail(field, s, "must be one of: %s, %s, %s", model.GenderMale, model.GenderFemale, model.GenderNotSpecified)
	}
	return g
}

// err returns the collected field errors as one row error, or nil.
func (v *validator) err() *RowError {
	if len(v.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return &RowError{
		Row:     v.row.Line,
		Field:   v.errs[0].Field,
		Message: strings.Join(msgs, "; "),
		Code:    CodeValidation,
	}
}

// NormalizeGender maps free-form gender values onto the stored values. Blank
// maps to Not Specified.
func NormalizeGender(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "boy", "boys", "men":
		return model.GenderMale, true
	case "f", "female", "girl", "girls", "women":
		return model.GenderFemale, true
	case "", "not specified", "unspecified", "n/a", "na", "x", "other":
		return model.GenderNotSpecified, true
	default:
		return "", false
	}
}

// ParseAthlete validates a roster row. Emails and PhoneNumbers are filled by
// the contact classifier, not here.
func ParseAthlete(row sheet.Row, now time.Time) (AthleteRecord, []string, *RowError) {
	v := &validator{row: row}
	rec := AthleteRecord{
		FirstName: v.required("firstName", "first name", "first"),
		LastName:  v.required("lastName", "last name", "last"),
		School:    row.Get("school"),
		TeamName:  row.First("teamName", "team"),
	}

	if s := row.First("birthDate", "dob", "dateOfBirth"); s != "" {
		if d, ok := ParseDate(s); !ok {
			v.fail("birthDate", s, "invalid date format (use YYYY-MM-DD or similar)")
		} else if d.After(now) {
			v.fail("birthDate", s, "is in the future")
		} else {
			rec.BirthDate = &d
		}
	}

	thisYear := now.Year()
	rec.BirthYear = v.optionalInt("birthYear", 1900, thisYear)
	if rec.BirthDate != nil {
		if rec.BirthYear != 0 && rec.BirthYear != rec.BirthDate.Year() {
			v.warn("birthYear %d does not match birthDate, using %d", rec.BirthYear, rec.BirthDate.Year())
		}
		rec.BirthYear = rec.BirthDate.Year()
	}
	rec.GraduationYear = v.optionalInt("graduationYear", 1950, thisYear+20)
	rec.Gender = v.gender("gender")
	rec.Sports = SplitList(row.First("sports", "sport"))
	rec.HeightInches = v.optionalFloat("height", 36, 96)
	rec.WeightPounds = v.optionalFloat("weight", 50, 400)

	rec.CompetitiveLevel = v.optionalInt("competitiveLevel", model.CompetitiveLevelMin, model.CompetitiveLevelMax)

	return rec, v.warnings, v.err()
}

// ParseMeasurement validates a measurement row against the metric catalog.
func ParseMeasurement(row sheet.Row, now time.Time) (MeasurementRecord, []string, *RowError) {
	v := &validator{row: row}
	rec := MeasurementRecord{
		FirstName: v.required("firstName", "first name", "first"),
		LastName:  v.required("lastName", "last name", "last"),
		TeamName:  row.First("teamName", "team"),
		Notes:     row.Get("notes"),
		Units:     row.Get("units"),
	}
	rec.Gender = v.gender("gender")

	if s := v.required("date"); s != "" {
		if d, ok := ParseDate(s); !ok {
			v.fail("date", s, "invalid date format (use YYYY-MM-DD or similar)")
		} else if d.After(now.Add(24 * time.Hour)) {
			v.fail("date", s, "is in the future")
		} else {
			rec.Date = d
		}
	}

	metricOK := false
	if s := v.required("metric"); s != "" {
		if m, ok := LookupMetric(s); ok {
			rec.Metric, metricOK = m, true
		} else {
			v.fail("metric", s, "unknown metric, expected one of: %s", strings.Join(MetricNames(), ", "))
		}
	}

	if s := v.required("value"); s != "" {
		if f, ok := ParseFloat(s); !ok {
			v.fail("value", s, "invalid number format")
		} else {
			rec.Value = f
			if metricOK {
				if err := rec.Metric.CheckRange(f); err != nil {
					v.fail("value", s, "%s", err)
				}
			}
		}
	}

	if metricOK && rec.Units != "" && !strings.EqualFold(rec.Units, rec.Metric.Units) {
		v.warn("units %q ignored, %s is recorded in %q", rec.Units, rec.Metric.Name, rec.Metric.Units)
	}
	if metricOK {
		rec.Units = rec.Metric.Units
	}

	rec.Age = v.optionalInt("age", 4, 99)
	rec.FlyInDistance = v.optionalFloat("flyInDistance", 0, 40)
	if rec.FlyInDistance != 0 && metricOK && !rec.Metric.AllowsFlyIn {
		v.warn("flyInDistance ignored for %s", rec.Metric.Name)
		rec.FlyInDistance = 0
	}

	return rec, v.warnings, v.err()
}

// athleteFromRecord builds a new athlete.
func athleteFromRecord(orgID string, rec AthleteRecord) model.Athlete {
	level := rec.CompetitiveLevel
	if level == 0 {
		level = model.CompetitiveLevelDefault
	}
	return model.Athlete{
		OrganizationID:   orgID,
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		BirthDate:        rec.BirthDate,
		BirthYear:        rec.BirthYear,
		GraduationYear:   rec.GraduationYear,
		Gender:           rec.Gender,
		Emails:           rec.Emails,
		PhoneNumbers:     rec.PhoneNumbers,
		Sports:           rec.Sports,
		HeightInches:     rec.HeightInches,
		WeightPounds:     rec.WeightPounds,
		School:           rec.School,
		CompetitiveLevel: level,
	}
}

// mergeAthlete copies the non-empty fields of rec onto a. List fields are
// unioned, never replaced.
func mergeAthlete(a model.Athlete, rec AthleteRecord) model.Athlete {
	if rec.BirthDate != nil {
		a.BirthDate = rec.BirthDate
	}
	if rec.BirthYear != 0 {
		a.BirthYear = rec.BirthYear
	}
	if rec.GraduationYear != 0 {
		a.GraduationYear = rec.GraduationYear
	}
	if rec.Gender != "" && rec.Gender != model.GenderNotSpecified {
		a.Gender = rec.Gender
	}
	if rec.HeightInches != 0 {
		a.HeightInches = rec.HeightInches
	}
	if rec.WeightPounds != 0 {
		a.WeightPounds = rec.WeightPounds
	}
	if rec.School != "" {
		a.School = rec.School
	}
	if rec.CompetitiveLevel != 0 {
		a.CompetitiveLevel = rec.CompetitiveLevel
	}
	a.Emails = union(a.Emails, rec.Emails, strings.ToLower)
	a.PhoneNumbers = union(a.PhoneNumbers, rec.PhoneNumbers, contact.Digits)
	a.Sports = union(a.Sports, rec.Sports, strings.ToLower)
	return a
}

func union(base, add []string, key func(string) string) []string {
	out := slices.Clone(base)
	for _, v := range add {
		if !slices.ContainsFunc(out, func(e string) bool { return key(e) == key(v) }) {
			out = append(out, v)
		}
	}
	return out
}


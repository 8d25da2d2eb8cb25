package importer

import (
	"fmt"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

// Row error codes.
const (
	CodeValidation    = "validation_error"
	CodeNoMatch       = "no_match"
	CodeTeamNotFound  = "team_not_found"
	CodeNotAuthorized = "not_authorized"
	CodeStorage       = "storage_error"
	CodeInternal      = "internal_error"
)

// RowError is a failure confined to one row.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// RecordType is the kind of record a RecordRef points at.
type RecordType string

const (
	RecordAthlete     RecordType = "athlete"
	RecordMeasurement RecordType = "measurement"
)

// RecordRef points at a stored record touched by an import.
type RecordRef struct {
	ID   string     `json:"id"`
	Type RecordType `json:"type"`
	Row  int        `json:"row,omitempty"`
	Name string     `json:"name,omitempty"`
}

// RowStatus is the final state of one row.
type RowStatus string

const (
	StatusCreated       RowStatus = "created"
	StatusUpdated       RowStatus = "updated"
	StatusMatched       RowStatus = "matched"
	StatusPendingReview RowStatus = "pending_review"
	StatusError         RowStatus = "error"
)

// RowResult is the per-row line of the outcome.
type RowResult struct {
	Row          int                `json:"row"`
	Status       RowStatus          `json:"status"`
	AthleteID    string             `json:"athleteId,omitempty"`
	RecordID     string             `json:"recordId,omitempty"`
	TeamID       string             `json:"teamId,omitempty"`
	MatchType    matching.MatchType `json:"matchType,omitempty"`
	Confidence   int                `json:"confidence,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	ReviewItemID string             `json:"reviewItemId,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Outcome aggregates one import invocation. Rows are independent: a row
// failure never rolls back another row.
type Outcome struct {
	ImportID        string              `json:"importId"`
	Kind            Kind                `json:"kind"`
	OrganizationID  string              `json:"organizationId"`
	TotalRows       int                 `json:"totalRows"`
	Created         []RecordRef         `json:"created"`
	Updated         []RecordRef         `json:"updated"`
	Matched         []RecordRef         `json:"matched"`
	PendingReview   []review.Item       `json:"pendingReview"`
	Errors          []RowError          `json:"errors"`
	Warnings        []string            `json:"warnings"`
	CreatedTeams    []teams.CreatedTeam `json:"createdTeams"`
	CreatedAthletes []RecordRef         `json:"createdAthletes"`
	Results         []RowResult         `json:"results"`
	Cancelled       bool                `json:"cancelled,omitempty"`
}

func newOutcome(importID string, kind Kind, orgID string, total int) *Outcome {
	return &Outcome{
		ImportID:        importID,
		Kind:            kind,
		OrganizationID:  orgID,
		TotalRows:       total,
		Created:         []RecordRef{},
		Updated:         []RecordRef{},
		Matched:         []RecordRef{},
		PendingReview:   []review.Item{},
		Errors:          []RowError{},
		Warnings:        []string{},
		CreatedTeams:    []teams.CreatedTeam{},
		CreatedAthletes: []RecordRef{},
		Results:         []RowResult{},
	}
}

// Summary counts the outcome.
type Summary struct {
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Matched       int `json:"matched"`
	Failed        int `json:"failed"`
	PendingReview int `json:"pendingReview"`
	Warnings      int `json:"warnings"`
}

// Summary returns the counts shown at the top of an import response.
func (o *Outcome) Summary() Summary {
	return Summary{
		Created:       len(o.Created),
		Updated:       len(o.Updated),
		Matched:       len(o.Matched),
		Failed:        len(o.Errors),
		PendingReview: len(o.PendingReview),
		Warnings:      len(o.Warnings),
	}
}

func (o *Outcome) warn(row int, msg string) {
	o.Warnings = append(o.Warnings, fmt.Sprintf("Row %d: %s", row, msg))
}

func (o *Outcome) fail(e RowError) {
	o.Errors = append(o.Errors, e)
	o.Results = append(o.Results, RowResult{Row: e.Row, Status: StatusError, Error: e.Message})
}

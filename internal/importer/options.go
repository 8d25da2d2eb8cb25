package importer

import (
	"errors"
	"fmt"

	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

// Kind is what an import creates.
type Kind string

const (
	KindAthletes     Kind = "athletes"
	KindMeasurements Kind = "measurements"
)

// Mode controls how matched and unmatched rows are handled.
type Mode string

const (
	// ModeCreateOnly always creates a new athlete and skips matching.
	ModeCreateOnly Mode = "create_only"
	// ModeMatchOnly requires a match; unmatched rows are errors.
	ModeMatchOnly Mode = "match_only"
	// ModeSmartImport creates unmatched athletes and updates matched ones when
	// UpdateExisting is set.
	ModeSmartImport Mode = "smart_import"
	// ModeMatchAndUpdate requires a match and updates the matched athlete.
	ModeMatchAndUpdate Mode = "match_and_update"
)

// ReviewPolicy controls which rows are held for a human decision.
type ReviewPolicy string

const (
	ReviewAll           ReviewPolicy = "review_all"
	ReviewLowConfidence ReviewPolicy = "review_low_confidence"
	ReviewNever         ReviewPolicy = "never"
)

var (
	ErrInvalidKind         = errors.New("invalid import kind")
	ErrInvalidMode         = errors.New("invalid import mode")
	ErrInvalidReviewPolicy = errors.New("invalid review policy")
)

// ParseKind parses the {kind} path segment.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAthletes, KindMeasurements:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// ParseMode parses a mode; empty selects ModeSmartImport.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeSmartImport, nil
	case ModeCreateOnly, ModeMatchOnly, ModeSmartImport, ModeMatchAndUpdate:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ParseReviewPolicy parses a review policy; empty selects ReviewLowConfidence.
func ParseReviewPolicy(s string) (ReviewPolicy, error) {
	switch p := ReviewPolicy(s); p {
	case "":
		return ReviewLowConfidence, nil
	case ReviewAll, ReviewLowConfidence, ReviewNever:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReviewPolicy, s)
	}
}

// Options are the per-request import settings.
type Options struct {
	Mode           Mode         `json:"mode"`
	TeamHandling   teams.Policy `json:"teamHandling"`
	ReviewPolicy   ReviewPolicy `json:"reviewPolicy"`
	OrganizationID string       `json:"organizationId,omitempty"`
	UpdateExisting bool         `json:"updateExisting,omitempty"`
}

// RawOptions are options as strings, the way forms, JSON bodies and CLI flags
// deliver them.
type RawOptions struct {
	Mode           string `json:"mode"`
	TeamHandling   string `json:"teamHandling"`
	ReviewPolicy   string `json:"reviewPolicy"`
	OrganizationID string `json:"organizationId"`
	UpdateExisting bool   `json:"updateExisting"`
}

// Parse validates raw options and fills in defaults.
func (r RawOptions) Parse() (Options, error) {
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return Options{}, err
	}
	team, err := teams.ParsePolicy(r.TeamHandling)
	if err != nil {
		return Options{}, err
	}
	policy, err := ParseReviewPolicy(r.ReviewPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:           mode,
		TeamHandling:   team,
		ReviewPolicy:   policy,
		OrganizationID: r.OrganizationID,
		UpdateExisting: r.UpdateExisting,
	}, nil
}

func (o Options) commitOptions() review.CommitOptions {
	return review.CommitOptions{
		Mode:           string(o.Mode),
		TeamHandling:   string(o.TeamHandling),
		UpdateExisting: o.UpdateExisting,
	}
}

// updates reports whether a matched athlete gets the row's fields.
func (o Options) updates() bool {
	return o.Mode == ModeMatchAndUpdate || (o.Mode == ModeSmartImport && o.UpdateExisting)
}

// Request is one import invocation.
type Request struct {
	// ImportID names the run; Run generates one when it is empty.
	ImportID string      `json:"importId,omitempty"`
	Kind     Kind        `json:"kind"`
	Rows     []sheet.Row `json:"rows"`
	Options  Options     `json:"options"`
}

// withDefaults fills empty settings the same way RawOptions.Parse does.
func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeSmartImport
	}
	if o.TeamHandling == "" {
		o.TeamHandling = teams.AutoCreateSilent
	}
	if o.ReviewPolicy == "" {
		o.ReviewPolicy = ReviewLowConfidence
	}
	return o
}

// optionsFromReview rebuilds the options captured on a review item.
func optionsFromReview(c review.CommitOptions) (Options, error) {
	return RawOptions{
		Mode:           c.Mode,
		TeamHandling:   c.TeamHandling,
		UpdateExisting: c.UpdateExisting,
	}.Parse()
}

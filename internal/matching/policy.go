package matching

import (
	"errors"
	"fmt"
)

// Policy holds the tier scores and review thresholds. The defaults were tuned
// against real roster imports; change them through the policy file rather
// than in code.
type Policy struct {
	ExactTeamScore         int     `koanf:"exact_team_score" json:"exactTeamScore"`
	PartialTeamMax         int     `koanf:"partial_team_max" json:"partialTeamMax"`
	PartialTeamMin         int     `koanf:"partial_team_min" json:"partialTeamMin"`
	NameOnlyScore          int     `koanf:"name_only_score" json:"nameOnlyScore"`
	TeamlessScore          int     `koanf:"teamless_score" json:"teamlessScore"`
	TeamDiffersScore       int     `koanf:"team_differs_score" json:"teamDiffersScore"`
	MinAlternativeScore    int     `koanf:"min_alternative_score" json:"minAlternativeScore"`
	MaxAlternatives        int     `koanf:"max_alternatives" json:"maxAlternatives"`
	LowConfidenceThreshold int     `koanf:"low_confidence_threshold" json:"lowConfidenceThreshold"`
	OCRReviewThreshold     float64 `koanf:"ocr_review_threshold" json:"ocrReviewThreshold"`
}

// DefaultPolicy returns the built-in scores.
func DefaultPolicy() Policy {
	return Policy{
		ExactTeamScore:         100,
		PartialTeamMax:         95,
		PartialTeamMin:         85,
		NameOnlyScore:          70,
		TeamlessScore:          65,
		TeamDiffersScore:       60,
		MinAlternativeScore:    30,
		MaxAlternatives:        3,
		LowConfidenceThreshold: 75,
		OCRReviewThreshold:     0.75,
	}
}

// Validate checks the scores are in range and keep the tier ordering:
// exact >= partial max >= partial min >= name only >= teamless >= differs.
func (p Policy) Validate() error {
	var errs []error

	scores := []struct {
		name  string
		value int
	}{
		{"exact_team_score", p.ExactTeamScore},
		{"partial_team_max", p.PartialTeamMax},
		{"partial_team_min", p.PartialTeamMin},
		{"name_only_score", p.NameOnlyScore},
		{"teamless_score", p.TeamlessScore},
		{"team_differs_score", p.TeamDiffersScore},
	}
	for _, s := range scores {
		if s.value < 1 || s.value > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 100, got %d", s.name, s.value))
		}
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].value > scores[i-1].value {
			errs = append(errs, fmt.Errorf("%s (%d) must not exceed %s (%d)",
				scores[i].name, scores[i].value, scores[i-1].name, scores[i-1].value))
		}
	}

	if p.MinAlternativeScore < 0 || p.MinAlternativeScore > 100 {
		errs = append(errs, fmt.Errorf("min_alternative_score must be between 0 and 100, got %d", p.MinAlternativeScore))
	}
	if p.MaxAlternatives < 0 {
		errs = append(errs, fmt.Errorf("max_alternatives must not be negative, got %d", p.MaxAlternatives))
	}
	if p.LowConfidenceThreshold < 0 || p.LowConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("low_confidence_threshold must be between 0 and 100, got %d", p.LowConfidenceThreshold))
	}
	if p.OCRReviewThreshold < 0 || p.OCRReviewThreshold > 1 {
		errs = append(errs, fmt.Errorf("ocr_review_threshold must be between 0 and 1, got %g", p.OCRReviewThreshold))
	}

	return errors.Join(errs...)
}

// Package templates holds the templ components rendered by the web server.
package templates

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
)

// ReviewRow is one pending item formatted for display.
type ReviewRow struct {
	ID           string
	Type         string
	Row          string
	Name         string
	Suggestion   string
	Alternatives string
	Reason       string
	Queued       string
}

// NewReviewRows formats items for ReviewPage.
func NewReviewRows(items []review.Item) []ReviewRow {
	rows := make([]ReviewRow, 0, len(items))
	for _, it := range items {
		row := ReviewRow{
			ID:     it.ID,
			Type:   string(it.Type),
			Row:    strconv.Itoa(it.OriginalData.Line),
			Name:   strings.TrimSpace(it.Criteria.FirstName + " " + it.Criteria.LastName),
			Reason: it.Reason,
			Queued: it.CreatedAt.Format("2006-01-02 15:04"),
		}
		if it.SuggestedMatch != nil {
			row.Suggestion = describe(it.SuggestedMatch.Candidate.FirstName, it.SuggestedMatch.Candidate.LastName, it.SuggestedMatch.Score)
		}
		alts := make([]string, 0, len(it.Alternatives))
		for _, a := range it.Alternatives {
			alts = append(alts, describe(a.Candidate.FirstName, a.Candidate.LastName, a.Score))
		}
		row.Alternatives = strings.Join(alts, "; ")
		rows = append(rows, row)
	}
	return rows
}

func describe(first, last string, score int) string {
	return fmt.Sprintf("%s %s (%d)", first, last, score)
}

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnahull/AthleteMetrics-sub002/internal/config"
)

func newPolicyCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the matching policy after file and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.LoadPolicy(root.policyFile)
			if err != nil {
				return err
			}
			if wantJSON(cmd, root) {
				return writeJSON(cmd, p)
			}

			printTable(cmd, "", []string{"Setting", "Value"}, [][]string{
				{"exact_team_score", strconv.Itoa(p.ExactTeamScore)},
				{"partial_team_max", strconv.Itoa(p.PartialTeamMax)},
				{"partial_team_min", strconv.Itoa(p.PartialTeamMin)},
				{"name_only_score", strconv.Itoa(p.NameOnlyScore)},
				{"teamless_score", strconv.Itoa(p.TeamlessScore)},
				{"team_differs_score", strconv.Itoa(p.TeamDiffersScore)},
				{"min_alternative_score", strconv.Itoa(p.MinAlternativeScore)},
				{"max_alternatives", strconv.Itoa(p.MaxAlternatives)},
				{"low_confidence_threshold", strconv.Itoa(p.LowConfidenceThreshold)},
				{"ocr_review_threshold", strconv.FormatFloat(p.OCRReviewThreshold, 'f', -1, 64)},
			}, []columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
}

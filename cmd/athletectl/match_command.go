package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnahull/AthleteMetrics-sub002/internal/config"
	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

func newMatchCommand(root *rootOptions) *cobra.Command {
	var criteria matching.Criteria

	cmd := &cobra.Command{
		Use:   "match <roster>",
		Short: "Match a name against the athletes in a roster file",
		Long: "Match a name against the athletes in a roster file.\n\n" +
			"The roster needs firstName and lastName columns; id and teams are optional.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := config.LoadPolicy(root.policyFile)
			if err != nil {
				return err
			}
			candidates, err := loadCandidates(args[0])
			if err != nil {
				return err
			}

			res := matching.FindBestMatch(criteria, candidates, policy)
			if wantJSON(cmd, root) {
				return writeJSON(cmd, res)
			}
			printMatch(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&criteria.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&criteria.LastName, "last", "", "Last name")
	cmd.Flags().StringVar(&criteria.TeamHint, "team", "", "Team name hint")

	return cmd
}

// loadCandidates reads a roster sheet into match candidates. Rows without an
// id get their line number as id; team names stand in for team ids.
func loadCandidates(path string) ([]matching.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := sheet.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]matching.Candidate, 0, len(rows))
	for _, row := range rows {
		c := matching.Candidate{
			ID:        row.First("id", "athleteId"),
			FirstName: row.First("firstName", "first name", "first"),
			LastName:  row.First("lastName", "last name", "last"),
		}
		if c.ID == "" {
			c.ID = "row-" + strconv.Itoa(row.Line)
		}
		for _, name := range importer.SplitList(row.First("teams", "teamName", "team")) {
			c.Teams = append(c.Teams, model.TeamRef{ID: name, Name: name})
		}
		out = append(out, c)
	}
	return out, nil
}

func printMatch(cmd *cobra.Command, res matching.Result) {
	best := "-"
	if res.Candidate != nil {
		best = res.Candidate.FullName() + " (" + res.Candidate.ID + ")"
	}
	printTable(cmd, "", []string{"Match", "Athlete", "Confidence", "Reason"},
		[][]string{{string(res.Type), best, strconv.Itoa(res.Confidence), res.Reason}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)

	if len(res.Alternatives) == 0 {
		return
	}
	rows := make([][]string, 0, len(res.Alternatives))
	for _, alt := range res.Alternatives {
		rows = append(rows, []string{alt.Candidate.FullName(), alt.Candidate.ID, strconv.Itoa(alt.Score), alt.Reason})
	}
	printTable(cmd, "Alternatives", []string{"Athlete", "ID", "Score", "Reason"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}

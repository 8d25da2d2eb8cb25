package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johnahull/AthleteMetrics-sub002/internal/contact"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

type classifiedRow struct {
	Row int `json:"row"`
	contact.Result
}

func newClassifyCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Sort each row's contact values into emails and phone numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			rows, err := sheet.Parse(f, filepath.Base(args[0]))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			out := make([]classifiedRow, 0, len(rows))
			for _, row := range rows {
				out = append(out, classifiedRow{Row: row.Line, Result: contact.Classify(row)})
			}

			if wantJSON(cmd, root) {
				return writeJSON(cmd, out)
			}

			table := make([][]string, 0, len(out))
			for _, r := range out {
				table = append(table, []string{
					strconv.Itoa(r.Row),
					strings.Join(r.Emails, ", "),
					strings.Join(r.PhoneNumbers, ", "),
					strings.Join(r.Warnings, "; "),
				})
			}
			printTable(cmd, "", []string{"Row", "Emails", "Phone numbers", "Warnings"}, table,
				[]columnAlignment{alignRight})
			return nil
		},
	}
}

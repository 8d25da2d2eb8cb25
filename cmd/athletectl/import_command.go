package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnahull/AthleteMetrics-sub002/internal/config"
	"github.com/johnahull/AthleteMetrics-sub002/internal/core"
	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

type importOptions struct {
	kind           string
	org            string
	actor          string
	role           string
	store          string
	mode           string
	teamHandling   string
	reviewPolicy   string
	updateExisting bool
}

func newImportCommand(root *rootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or XLSX roster or measurement sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := runImport(cmd.Context(), args[0], root, opts)
			if err != nil {
				return err
			}
			if wantJSON(cmd, root) {
				return writeJSON(cmd, out)
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.kind, "kind", "k", string(importer.KindAthletes), "Import kind: athletes or measurements")
	flags.StringVar(&opts.org, "org", "", "Organization to import into")
	flags.StringVar(&opts.actor, "actor", "athletectl", "User id recorded on created records")
	flags.StringVar(&opts.role, "role", string(model.RoleOrgAdmin), "Role of the acting user")
	flags.StringVar(&opts.store, "store", config.BackendMemory, "Storage backend: memory or postgres")
	flags.StringVar(&opts.mode, "mode", "", "Import mode (default smart_import)")
	flags.StringVar(&opts.teamHandling, "team-handling", "", "Team handling policy (default auto_create_silent)")
	flags.StringVar(&opts.reviewPolicy, "review-policy", "", "Review policy (default review_low_confidence)")
	flags.BoolVar(&opts.updateExisting, "update-existing", false, "Update matched athletes with the row's values")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func runImport(ctx context.Context, path string, root *rootOptions, opts *importOptions) (*importer.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.store)
	if err != nil {
		return nil, err
	}
	policy, err := config.LoadPolicy(root.policyFile)
	if err != nil {
		return nil, err
	}

	backends, err := core.OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer backends.Close()

	svcCfg := core.ServiceConfig(cfg)
	svcCfg.Policy = policy
	service, err := core.NewService(backends.Repo, backends.Reviews, svcCfg)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	actor := model.Actor{
		ID:              opts.actor,
		Role:            model.ParseRole(opts.role),
		OrganizationIDs: []string{opts.org},
	}
	raw := importer.RawOptions{
		Mode:           opts.mode,
		TeamHandling:   opts.teamHandling,
		ReviewPolicy:   opts.reviewPolicy,
		OrganizationID: opts.org,
		UpdateExisting: opts.updateExisting,
	}
	return service.ImportFile(ctx, opts.kind, f, filepath.Base(path), size, raw, actor)
}

// loadConfig reads the server configuration with the backend chosen on the
// command line. The memory backend keeps review items in memory too.
func loadConfig(backend string) (*config.Config, error) {
	flags := map[string]string{"STORE_BACKEND": backend}
	if backend == config.BackendMemory {
		flags["REVIEW_STORE"] = config.BackendMemory
	}
	return config.LoadFrom(config.Overlay(os.LookupEnv, flags))
}

func printOutcome(cmd *cobra.Command, out *importer.Outcome) {
	s := out.Summary()
	printTable(cmd, "Import "+out.ImportID,
		[]string{"Created", "Updated", "Matched", "Pending review", "Failed", "Warnings"},
		[][]string{{
			strconv.Itoa(s.Created),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Matched),
			strconv.Itoa(s.PendingReview),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Warnings),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)

	if len(out.CreatedTeams) > 0 {
		rows := make([][]string, 0, len(out.CreatedTeams))
		for _, t := range out.CreatedTeams {
			rows = append(rows, []string{t.Team.Name, strconv.Itoa(t.RowCount), strconv.FormatBool(t.NeedsConfirmation)})
		}
		printTable(cmd, "Teams created", []string{"Team", "Rows", "Needs confirmation"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft})
	}

	if len(out.PendingReview) > 0 {
		rows := make([][]string, 0, len(out.PendingReview))
		for _, it := range out.PendingReview {
			rows = append(rows, []string{it.ID, strconv.Itoa(it.OriginalData.Line), it.Reason})
		}
		printTable(cmd, "Pending review", []string{"Item", "Row", "Reason"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft})
	}

	if len(out.Errors) > 0 {
		rows := make([][]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			rows = append(rows, []string{strconv.Itoa(e.Row), e.Field, e.Message})
		}
		printTable(cmd, "Row errors", []string{"Row", "Field", "Message"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft})
	}
}

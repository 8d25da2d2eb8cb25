package importer

// commit.go performs the write a review item was holding back, once a reviewer
// approved it. The row is re-validated from its original cells and committed
// against the athlete the decision resolved to, with the options that were in
// effect when the row was queued.

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnahull/AthleteMetrics-sub002/internal/contact"
	"github.com/johnahull/AthleteMetrics-sub002/internal/logging"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

// CommitResult is what a deferred commit wrote.
type CommitResult struct {
	Item         review.Item         `json:"item"`
	Record       *RecordRef          `json:"record,omitempty"`
	Updated      bool                `json:"updated,omitempty"`
	CreatedTeams []teams.CreatedTeam `json:"createdTeams"`
	Warnings     []string            `json:"warnings"`
}

// Decide applies a reviewer decision and, when the item is approved, commits
// it. A rejected item commits nothing. The decision is recorded even when the
// commit fails afterwards; the error is returned together with the decided
// item so the caller can report both.
func (o *Orchestrator) Decide(ctx context.Context, d review.Decision, actor model.Actor) (*CommitResult, error) {
	item, err := o.queue.Get(ctx, d.ItemID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(item.OrganizationID) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, item.OrganizationID)
	}

	decided, err := o.queue.ProcessDecision(ctx, d, actor.ID)
	if err != nil {
		return nil, err
	}
	if decided.Status != review.StatusApproved {
		return &CommitResult{Item: decided, CreatedTeams: []teams.CreatedTeam{}, Warnings: []string{}}, nil
	}

	res, err := o.CommitDecision(ctx, decided, actor)
	if err != nil {
		return &CommitResult{Item: decided, CreatedTeams: []teams.CreatedTeam{}, Warnings: []string{}}, err
	}
	return res, nil
}

// CommitDecision writes an approved item: an athlete item updates (or simply
// confirms) the resolved athlete, a measurement item stores the measurement
// for it.
func (o *Orchestrator) CommitDecision(ctx context.Context, item review.Item, actor model.Actor) (*CommitResult, error) {
	if item.Status != review.StatusApproved || item.ResolvedAthleteID == "" {
		return nil, ErrNotApproved
	}
	opts, err := optionsFromReview(item.Options)
	if err != nil {
		return nil, fmt.Errorf("review item %s: %w", item.ID, err)
	}

	athlete, err := o.store.GetAthlete(ctx, item.ResolvedAthleteID)
	if err != nil {
		return nil, fmt.Errorf("load athlete %s: %w", item.ResolvedAthleteID, err)
	}
	if athlete.OrganizationID != item.OrganizationID {
		return nil, fmt.Errorf("%w: athlete %s is not in organization %s", ErrForbidden, athlete.ID, item.OrganizationID)
	}

	row := item.OriginalData
	r := &run{
		kind:    KindAthletes,
		opts:    opts,
		orgID:   item.OrganizationID,
		actor:   actor,
		now:     o.now(),
		session: o.teams.NewSession(actor),
		index:   map[string]int{},
		log: logging.WithFields(ctx,
			"review_item_id", item.ID,
			"import_id", item.ImportID,
			"organization_id", item.OrganizationID,
		),
	}
	r.addCandidate(athlete)

	ch := rowChange{}
	res := &CommitResult{Item: item}

	switch item.Type {
	case review.TypeAthlete:
		rec, warnings, rerr := ParseAthlete(row, r.now)
		if rerr != nil {
			return nil, rerr
		}
		contacts := contact.Classify(row)
		rec.Emails, rec.PhoneNumbers = contacts.Emails, contacts.PhoneNumbers
		ch.warnings = append(warnings, contacts.Warnings...)
		ref := &RecordRef{ID: athlete.ID, Type: RecordAthlete, Row: row.Line, Name: athlete.FirstName + " " + athlete.LastName}
		res.Record = ref
		if opts.updates() {
			team, err := o.resolveTeam(ctx, r, rec.TeamName, &ch)
			if err != nil {
				return nil, commitError(row.Line, err)
			}
			if err := o.updateAthlete(ctx, r, athlete.ID, rec, team); err != nil {
				return nil, err
			}
			res.Updated = true
		}

	case review.TypeMeasurement:
		r.kind = KindMeasurements
		rec, warnings, rerr := ParseMeasurement(row, r.now)
		if rerr != nil {
			return nil, rerr
		}
		ch.warnings = warnings
		team, err := o.resolveTeam(ctx, r, rec.TeamName, &ch)
		if err != nil {
			return nil, commitError(row.Line, err)
		}
		if opts.Mode != ModeMatchOnly {
			if err := o.attach(ctx, r, athlete.ID, team); err != nil {
				return nil, err
			}
		}
		m, err := o.createMeasurement(ctx, r, athlete.ID, team, rec)
		if err != nil {
			return nil, err
		}
		res.Record = &RecordRef{ID: m.ID, Type: RecordMeasurement, Row: row.Line, Name: rec.Metric.Name}

	default:
		return nil, fmt.Errorf("review item %s: unknown type %q", item.ID, item.Type)
	}

	res.CreatedTeams = r.session.CreatedTeams()
	res.Warnings = make([]string, 0, len(ch.warnings))
	for _, w := range ch.warnings {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Row %d: %s", row.Line, w))
	}
	r.log.Info("review item committed",
		"type", item.Type,
		"athlete_id", athlete.ID,
		"record_id", res.Record.ID,
		"created_teams", len(res.CreatedTeams),
	)
	return res, nil
}

func commitError(line int, err error) error {
	if errors.Is(err, teams.ErrTeamNotFound) || errors.Is(err, teams.ErrNotAuthorized) {
		re := toRowError(line, err)
		return &re
	}
	return err
}

// Package importer runs bulk roster and measurement imports.
//
// An import walks its rows one at a time, in order, so a later row can match
// an athlete an earlier row created. For each row it:
//
//  1. validates the cells into a typed record
//  2. classifies contact values (roster rows)
//  3. matches the athlete against a snapshot of the organization's athletes
//  4. either queues the row for review or resolves the team and commits
//
// Rows are independent. A row that fails validation, finds no athlete, or
// panics produces one RowError and the import moves on. Only the pre-flight
// checks (row count, organization access) reject the whole import.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnahull/AthleteMetrics-sub002/internal/contact"
	"github.com/johnahull/AthleteMetrics-sub002/internal/logging"
	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/metrics"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

// DefaultMaxRows caps the rows of one import.
const DefaultMaxRows = 2000

var (
	// ErrTooManyRows rejects an import above the row cap before any row runs.
	ErrTooManyRows = errors.New("too many rows")

	// ErrNoRows rejects an import with nothing to process.
	ErrNoRows = errors.New("no rows to import")

	// ErrOrganizationRequired is returned when the organization cannot be inferred.
	ErrOrganizationRequired = errors.New("organizationId is required")

	// ErrForbidden is returned when the actor is not a member of the organization.
	ErrForbidden = errors.New("not a member of the organization")

	// ErrNotApproved is returned by CommitDecision for items that are not approved.
	ErrNotApproved = errors.New("review item is not approved")
)

// Store is the athlete and measurement repository.
type Store interface {
	ListCandidates(ctx context.Context, organizationID string) ([]matching.Candidate, error)
	GetAthlete(ctx context.Context, id string) (model.Athlete, error)
	CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error)
	UpdateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error)
	AddTeamMember(ctx context.Context, teamID, athleteID string) error
	CreateMeasurement(ctx context.Context, m model.Measurement) (model.Measurement, error)
}

// Orchestrator runs imports. It is safe for concurrent use; each Run keeps its
// own state.
type Orchestrator struct {
	store   Store
	teams   *teams.Provisioner
	queue   *review.Queue
	policy  matching.Policy
	maxRows int
	metrics *metrics.Manager
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the matching scores and review thresholds.
func WithPolicy(p matching.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithMaxRows sets the row cap. Values <= 0 keep DefaultMaxRows.
func WithMaxRows(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRows = n
		}
	}
}

// WithMetrics records row and import metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(s Store, p *teams.Provisioner, q *review.Queue, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   s,
		teams:   p,
		queue:   q,
		policy:  matching.DefaultPolicy(),
		maxRows: DefaultMaxRows,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the matching policy in use.
func (o *Orchestrator) Policy() matching.Policy {
	return o.policy
}

// run is the state of one invocation.
type run struct {
	kind     Kind
	opts     Options
	orgID    string
	actor    model.Actor
	now      time.Time
	out      *Outcome
	session  *teams.Session
	snapshot []matching.Candidate
	index    map[string]int
	log      *slog.Logger
}

func (r *run) addCandidate(a model.Athlete) {
	r.index[a.ID] = len(r.snapshot)
	r.snapshot = append(r.snapshot, toCandidate(a))
}

func (r *run) candidate(id string) (matching.Candidate, bool) {
	i, ok := r.index[id]
	if !ok {
		return matching.Candidate{}, false
	}
	return r.snapshot[i], true
}

// rowChange is what one row adds to the outcome. It is applied only after the
// row finished, so a row that fails midway leaves no partial entries.
type rowChange struct {
	result         RowResult
	created        *RecordRef
	updated        *RecordRef
	matched        *RecordRef
	createdAthlete *RecordRef
	pending        *review.Item
	warnings       []string
}

// Run imports req.Rows on behalf of actor.
func (o *Orchestrator) Run(ctx context.Context, req Request, actor model.Actor) (*Outcome, error) {
	started := o.now()

	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if len(req.Rows) == 0 {
		o.metrics.RecordRejected("no_rows")
		return nil, ErrNoRows
	}
	if len(req.Rows) > o.maxRows {
		o.metrics.RecordRejected("too_many_rows")
		return nil, fmt.Errorf("%w: %d rows exceeds the limit of %d", ErrTooManyRows, len(req.Rows), o.maxRows)
	}

	orgID, err := ResolveOrganization(req.Options.OrganizationID, actor)
	if err != nil {
		o.metrics.RecordRejected("organization")
		return nil, err
	}

	candidates, err := o.store.ListCandidates(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load athletes: %w", err)
	}

	importID := req.ImportID
	if importID == "" {
		importID = uuid.NewString()
	}
	r := &run{
		kind:    req.Kind,
		opts:    req.Options.withDefaults(),
		orgID:   orgID,
		actor:   actor,
		now:     started,
		out:     newOutcome(importID, req.Kind, orgID, len(req.Rows)),
		session: o.teams.NewSession(actor),
		index:   make(map[string]int, len(candidates)),
		log: logging.WithFields(ctx,
			"import_id", importID,
			"kind", req.Kind,
			"organization_id", orgID,
		),
	}
	r.snapshot = make([]matching.Candidate, 0, len(candidates))
	for _, c := range candidates {
		r.index[c.ID] = len(r.snapshot)
		r.snapshot = append(r.snapshot, c)
	}

	r.log.Info("import started",
		"rows", len(req.Rows),
		"mode", r.opts.Mode,
		"team_handling", r.opts.TeamHandling,
		"review_policy", r.opts.ReviewPolicy,
		"candidates", len(candidates),
	)

	for i, row := range req.Rows {
		if ctx.Err() != nil {
			r.out.Cancelled = true
			r.log.Warn("import cancelled", "processed", i, "remaining", len(req.Rows)-i)
			break
		}
		o.processRow(ctx, r, row)
	}

	r.out.CreatedTeams = r.session.CreatedTeams()
	o.metrics.ObserveImport(string(req.Kind), o.now().Sub(started))

	s := r.out.Summary()
	r.log.Info("import finished",
		"created", s.Created,
		"updated", s.Updated,
		"matched", s.Matched,
		"failed", s.Failed,
		"pending_review", s.PendingReview,
		"created_teams", len(r.out.CreatedTeams),
		"cancelled", r.out.Cancelled,
	)
	return r.out, nil
}

// ResolveOrganization picks the organization an import writes to: the
// requested one when the actor belongs to it, or the actor's only
// organization when none was requested.
func ResolveOrganization(requested string, actor model.Actor) (string, error) {
	if requested == "" {
		if len(actor.OrganizationIDs) == 1 {
			return actor.OrganizationIDs[0], nil
		}
		return "", ErrOrganizationRequired
	}
	if !actor.BelongsTo(requested) {
		return "", fmt.Errorf("%w: %s", ErrForbidden, requested)
	}
	return requested, nil
}

// processRow runs one row and folds its result into the outcome. A panic is
// converted into a row error.
func (o *Orchestrator) processRow(ctx context.Context, r *run, row sheet.Row) {
	status := StatusError
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("row panicked", "row", row.Line, "panic", p)
			r.out.fail(RowError{Row: row.Line, Message: fmt.Sprintf("internal error: %v", p), Code: CodeInternal})
			status = StatusError
		}
		o.metrics.RecordRow(string(r.kind), string(status))
	}()

	var ch rowChange
	var err error
	switch r.kind {
	case KindAthletes:
		ch, err = o.athleteRow(ctx, r, row)
	case KindMeasurements:
		ch, err = o.measurementRow(ctx, r, row)
	}
	if err != nil {
		r.out.fail(toRowError(row.Line, err))
		return
	}

	status = ch.result.Status
	ch.result.Row = row.Line
	for _, w := range ch.warnings {
		r.out.warn(row.Line, w)
	}
	if ch.created != nil {
		r.out.Created = append(r.out.Created, *ch.created)
	}
	if ch.updated != nil {
		r.out.Updated = append(r.out.Updated, *ch.updated)
	}
	if ch.matched != nil {
		r.out.Matched = append(r.out.Matched, *ch.matched)
	}
	if ch.pending != nil {
		r.out.PendingReview = append(r.out.PendingReview, *ch.pending)
	}
	r.out.Results = append(r.out.Results, ch.result)
}

func toRowError(line int, err error) RowError {
	var re *RowError
	switch {
	case errors.As(err, &re):
		return *re
	case errors.Is(err, teams.ErrTeamNotFound):
		return RowError{Row: line, Field: "teamName", Message: err.Error(), Code: CodeTeamNotFound}
	case errors.Is(err, teams.ErrNotAuthorized):
		return RowError{Row: line, Field: "teamName", Message: err.Error(), Code: CodeNotAuthorized}
	default:
		return RowError{Row: line, Message: err.Error(), Code: CodeStorage}
	}
}

func (o *Orchestrator) athleteRow(ctx context.Context, r *run, row sheet.Row) (rowChange, error) {
	rec, warnings, rerr := ParseAthlete(row, r.now)
	if rerr != nil {
		return rowChange{}, rerr
	}
	contacts := contact.Classify(row)
	rec.Emails, rec.PhoneNumbers = contacts.Emails, contacts.PhoneNumbers
	o.metrics.ContactReclassified(contacts.Reclassified())

	ch := rowChange{warnings: append(warnings, contacts.Warnings...)}

	if r.opts.Mode == ModeCreateOnly {
		a, team, err := o.createAthlete(ctx, r, athleteFromRecord(r.orgID, rec), rec.TeamName, &ch, row.Line)
		if err != nil {
			return rowChange{}, err
		}
		ch.created = ch.createdAthlete
		ch.result = RowResult{Status: StatusCreated, AthleteID: a.ID, RecordID: a.ID, TeamID: team.ID}
		return ch, nil
	}

	match := matching.FindBestMatch(rec.Criteria(), r.snapshot, o.policy)
	ch.result = RowResult{MatchType: match.Type, Confidence: match.Confidence, Reason: match.Reason}

	if routed, err := o.maybeEnqueue(ctx, r, row, review.TypeAthlete, rec.Criteria(), match, &ch); routed || err != nil {
		return ch, err
	}

	if !match.Matched() {
		if r.opts.Mode != ModeSmartImport {
			return rowChange{}, noMatchError(row.Line, rec.Criteria(), match)
		}
		a, team, err := o.createAthlete(ctx, r, athleteFromRecord(r.orgID, rec), rec.TeamName, &ch, row.Line)
		if err != nil {
			return rowChange{}, err
		}
		ch.created = ch.createdAthlete
		ch.result.Status, ch.result.AthleteID, ch.result.RecordID, ch.result.TeamID = StatusCreated, a.ID, a.ID, team.ID
		return ch, nil
	}

	athleteID := match.Candidate.ID
	ref := &RecordRef{ID: athleteID, Type: RecordAthlete, Row: row.Line, Name: match.Candidate.FullName()}
	ch.result.AthleteID, ch.result.RecordID = athleteID, athleteID

	if !r.opts.updates() {
		ch.matched = ref
		ch.result.Status = StatusMatched
		return ch, nil
	}

	team, err := o.resolveTeam(ctx, r, rec.TeamName, &ch)
	if err != nil {
		return rowChange{}, err
	}
	if err := o.updateAthlete(ctx, r, athleteID, rec, team); err != nil {
		return rowChange{}, err
	}
	ch.matched = ref
	ch.updated = ref
	ch.result.Status, ch.result.TeamID = StatusUpdated, team.ID
	return ch, nil
}

func (o *Orchestrator) measurementRow(ctx context.Context, r *run, row sheet.Row) (rowChange, error) {
	rec, warnings, rerr := ParseMeasurement(row, r.now)
	if rerr != nil {
		return rowChange{}, rerr
	}
	ch := rowChange{warnings: warnings}

	var athleteID string
	if r.opts.Mode != ModeCreateOnly {
		match := matching.FindBestMatch(rec.Criteria(), r.snapshot, o.policy)
		ch.result = RowResult{MatchType: match.Type, Confidence: match.Confidence, Reason: match.Reason}

		if routed, err := o.maybeEnqueue(ctx, r, row, review.TypeMeasurement, rec.Criteria(), match, &ch); routed || err != nil {
			return ch, err
		}
		if match.Matched() {
			athleteID = match.Candidate.ID
			ch.matched = &RecordRef{ID: athleteID, Type: RecordAthlete, Row: row.Line, Name: match.Candidate.FullName()}
		} else if r.opts.Mode != ModeSmartImport {
			return rowChange{}, noMatchError(row.Line, rec.Criteria(), match)
		}
	}

	var team model.TeamRef
	var err error
	if athleteID == "" {
		a := model.Athlete{
			OrganizationID:   r.orgID,
			FirstName:        rec.FirstName,
			LastName:         rec.LastName,
			Gender:           rec.Gender,
			CompetitiveLevel: model.CompetitiveLevelDefault,
		}
		var created model.Athlete
		created, team, err = o.createAthlete(ctx, r, a, rec.TeamName, &ch, row.Line)
		if err != nil {
			return rowChange{}, err
		}
		athleteID = created.ID
	} else {
		team, err = o.resolveTeam(ctx, r, rec.TeamName, &ch)
		if err != nil {
			return rowChange{}, err
		}
		if r.opts.Mode != ModeMatchOnly {
			if err := o.attach(ctx, r, athleteID, team); err != nil {
				return rowChange{}, err
			}
		}
	}

	m, err := o.createMeasurement(ctx, r, athleteID, team, rec)
	if err != nil {
		if ch.createdAthlete != nil {
			err = leftoverAthleteError(athleteID, err)
		}
		return rowChange{}, err
	}
	ch.created = &RecordRef{ID: m.ID, Type: RecordMeasurement, Row: row.Line, Name: rec.Metric.Name}
	ch.result.Status = StatusCreated
	ch.result.AthleteID, ch.result.RecordID, ch.result.TeamID = athleteID, m.ID, team.ID
	return ch, nil
}

// maybeEnqueue routes the row to the review queue when the review policy asks
// for it. Routing only applies to rows that went through matching.
func (o *Orchestrator) maybeEnqueue(ctx context.Context, r *run, row sheet.Row, typ review.ItemType,
	criteria matching.Criteria, match matching.Result, ch *rowChange) (bool, error) {

	reason := o.reviewReason(r, row, match)
	if reason == "" {
		if o.lowOCR(row) {
			ch.warnings = append(ch.warnings, fmt.Sprintf("low OCR confidence (%.2f), no athlete to review against", row.OCRConfidence))
		}
		return false, nil
	}

	item, err := o.queue.AddItem(ctx, review.NewItem{
		Type:           typ,
		ImportID:       r.out.ImportID,
		OrganizationID: r.orgID,
		OriginalData:   row,
		Criteria:       criteria,
		SuggestedMatch: match.Suggested(),
		Alternatives:   match.Alternatives,
		Reason:         reason,
		Options:        r.opts.commitOptions(),
		CreatedBy:      r.actor.ID,
	})
	if err != nil {
		return true, fmt.Errorf("queue for review: %w", err)
	}

	r.log.Debug("row queued for review", "row", row.Line, "item_id", item.ID, "reason", reason, "confidence", match.Confidence)
	ch.pending = &item
	ch.result.Status = StatusPendingReview
	ch.result.ReviewItemID = item.ID
	if match.Matched() {
		ch.result.AthleteID = match.Candidate.ID
	}
	return true, nil
}

func (o *Orchestrator) lowOCR(row sheet.Row) bool {
	return row.Source == sheet.SourceOCR && row.OCRConfidence < o.policy.OCRReviewThreshold
}

// reviewReason returns why the row needs review, or "" when it does not.
//
// Matched rows are reviewed under review_all, or under review_low_confidence
// when the match is weak or the OCR read was poor. Unmatched rows are only
// reviewed when there is an alternative to pick and either review_all is set
// or the OCR read was poor; otherwise they follow the mode (create or fail).
func (o *Orchestrator) reviewReason(r *run, row sheet.Row, match matching.Result) string {
	if r.opts.ReviewPolicy == ReviewNever {
		return ""
	}
	lowOCR := o.lowOCR(row)

	if !match.Matched() {
		switch {
		case len(match.Alternatives) == 0:
			return ""
		case r.opts.ReviewPolicy == ReviewAll:
			return "review_all policy: no match, alternatives offered"
		case lowOCR:
			return fmt.Sprintf("OCR confidence %.2f below %.2f", row.OCRConfidence, o.policy.OCRReviewThreshold)
		}
		return ""
	}

	switch {
	case r.opts.ReviewPolicy == ReviewAll:
		return "review_all policy"
	case lowOCR:
		return fmt.Sprintf("OCR confidence %.2f below %.2f", row.OCRConfidence, o.policy.OCRReviewThreshold)
	case match.Confidence < o.policy.LowConfidenceThreshold:
		return fmt.Sprintf("match confidence %d below %d: %s", match.Confidence, o.policy.LowConfidenceThreshold, match.Reason)
	}
	return ""
}

func noMatchError(line int, c matching.Criteria, match matching.Result) *RowError {
	msg := fmt.Sprintf("no athlete matched %q", strings.TrimSpace(c.FirstName+" "+c.LastName))
	if len(match.Alternatives) > 0 {
		names := make([]string, len(match.Alternatives))
		for i, a := range match.Alternatives {
			names[i] = fmt.Sprintf("%s (%d)", a.Candidate.FullName(), a.Score)
		}
		msg += "; closest: " + strings.Join(names, ", ")
	}
	return &RowError{Row: line, Field: "lastName", Message: msg, Code: CodeNoMatch}
}

// resolveTeam maps the row's team name through the session.
func (o *Orchestrator) resolveTeam(ctx context.Context, r *run, name string, ch *rowChange) (model.TeamRef, error) {
	res, err := r.session.Resolve(ctx, r.orgID, name, r.opts.TeamHandling)
	if err != nil {
		return model.TeamRef{}, err
	}
	if res.Warning != "" {
		ch.warnings = append(ch.warnings, res.Warning)
	}
	return res.Team, nil
}

// createAthlete resolves the team first so a team error leaves no athlete
// behind, then stores the athlete and adds it to the snapshot.
func (o *Orchestrator) createAthlete(ctx context.Context, r *run, a model.Athlete, teamName string,
	ch *rowChange, line int) (model.Athlete, model.TeamRef, error) {

	team, err := o.resolveTeam(ctx, r, teamName, ch)
	if err != nil {
		return model.Athlete{}, model.TeamRef{}, err
	}

	created, err := o.store.CreateAthlete(ctx, a)
	if err != nil {
		return model.Athlete{}, model.TeamRef{}, fmt.Errorf("create athlete: %w", err)
	}
	r.addCandidate(created)
	ref := RecordRef{
		ID:   created.ID,
		Type: RecordAthlete,
		Row:  line,
		Name: strings.TrimSpace(created.FirstName + " " + created.LastName),
	}
	// The athlete is stored from here on, even if the rest of the row fails.
	r.out.CreatedAthletes = append(r.out.CreatedAthletes, ref)

	if err := o.attach(ctx, r, created.ID, team); err != nil {
		return model.Athlete{}, model.TeamRef{}, leftoverAthleteError(created.ID, err)
	}
	ch.createdAthlete = &ref
	return created, team, nil
}

// leftoverAthleteError notes in err that the row's athlete was already
// created. Row errors keep their code.
func leftoverAthleteError(athleteID string, err error) error {
	var re *RowError
	if errors.As(err, &re) {
		out := *re
		out.Message = fmt.Sprintf("%s (athlete %s was created)", re.Message, athleteID)
		return &out
	}
	return fmt.Errorf("athlete %s was created, %w", athleteID, err)
}

func (o *Orchestrator) updateAthlete(ctx context.Context, r *run, athleteID string, rec AthleteRecord, team model.TeamRef) error {
	current, err := o.store.GetAthlete(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("load athlete %s: %w", athleteID, err)
	}
	if _, err := o.store.UpdateAthlete(ctx, mergeAthlete(current, rec)); err != nil {
		return fmt.Errorf("update athlete %s: %w", athleteID, err)
	}
	return o.attach(ctx, r, athleteID, team)
}

// attach adds the athlete to the team unless the snapshot shows it already is
// a member.
func (o *Orchestrator) attach(ctx context.Context, r *run, athleteID string, team model.TeamRef) error {
	if team.IsZero() {
		return nil
	}
	if c, ok := r.candidate(athleteID); ok && c.HasTeam(team.ID) {
		return nil
	}
	if err := o.store.AddTeamMember(ctx, team.ID, athleteID); err != nil {
		return fmt.Errorf("add athlete to team %q: %w", team.Name, err)
	}
	if i, ok := r.index[athleteID]; ok {
		r.snapshot[i].Teams = append(r.snapshot[i].Teams, team)
	}
	return nil
}

func (o *Orchestrator) createMeasurement(ctx context.Context, r *run, athleteID string, team model.TeamRef, rec MeasurementRecord) (model.Measurement, error) {
	m, err := o.store.CreateMeasurement(ctx, model.Measurement{
		AthleteID:     athleteID,
		TeamID:        team.ID,
		Date:          rec.Date,
		Metric:        rec.Metric.Name,
		Value:         rec.Value,
		Units:         rec.Units,
		FlyInDistance: rec.FlyInDistance,
		Age:           rec.Age,
		Notes:         rec.Notes,
		SubmittedBy:   r.actor.ID,
	})
	if err != nil {
		return model.Measurement{}, fmt.Errorf("create measurement: %w", err)
	}
	return m, nil
}

func toCandidate(a model.Athlete) matching.Candidate {
	return matching.Candidate{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, Teams: a.Teams}
}

package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/logging"
	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/metrics"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

// ImportTimeout is the default upper bound for one import run.
var ImportTimeout = 5 * time.Minute

// DefaultMaxFileSize is the default upload limit in bytes.
const DefaultMaxFileSize int64 = 10 << 20

// Repository is everything the service needs from storage. store.Postgres
// and store.Memory both satisfy it.
type Repository interface {
	importer.Store
	teams.Store

	GetTeam(ctx context.Context, id string) (model.TeamRef, error)
	ListTeams(ctx context.Context, organizationID string) ([]model.TeamRef, error)
	TeamMembers(ctx context.Context, teamID string) ([]model.Athlete, error)
	AddTeamMembers(ctx context.Context, teamID string, athleteIDs []string) error
	ListAthletes(ctx context.Context, organizationID string) ([]model.Athlete, error)
	ListMeasurements(ctx context.Context, athleteID string) ([]model.Measurement, error)
}

// Config holds the service settings. Zero values fall back to defaults.
type Config struct {
	Policy        matching.Policy
	MaxRows       int
	MaxFileSize   int64
	MaxConcurrent int
	MaxWaitTime   time.Duration
	Timeout       time.Duration
	Metrics       *metrics.Manager
	Now           func() time.Time
}

// Service provides the import, review and team operations the transports
// call. It is safe for concurrent use.
type Service struct {
	repo        Repository
	orch        *importer.Orchestrator
	queue       *review.Queue
	limiter     *ImportLimiter
	metrics     *metrics.Manager
	maxFileSize int64
	timeout     time.Duration
}

// NewService wires the provisioner, review queue and orchestrator over repo
// and reviews.
func NewService(repo Repository, reviews review.Store, cfg Config) (*Service, error) {
	if cfg.Policy == (matching.Policy{}) {
		cfg.Policy = matching.DefaultPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("matching policy: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = ImportTimeout
	}

	queueOpts := []review.Option{review.WithMetrics(cfg.Metrics)}
	orchOpts := []importer.Option{
		importer.WithPolicy(cfg.Policy),
		importer.WithMaxRows(cfg.MaxRows),
		importer.WithMetrics(cfg.Metrics),
	}
	if cfg.Now != nil {
		queueOpts = append(queueOpts, review.WithClock(cfg.Now))
		orchOpts = append(orchOpts, importer.WithClock(cfg.Now))
	}

	queue := review.NewQueue(reviews, queueOpts...)
	prov := teams.NewProvisioner(repo, teams.WithMetrics(cfg.Metrics))

	return &Service{
		repo:        repo,
		orch:        importer.NewOrchestrator(repo, prov, queue, orchOpts...),
		queue:       queue,
		limiter:     NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		metrics:     cfg.Metrics,
		maxFileSize: cfg.MaxFileSize,
		timeout:     cfg.Timeout,
	}, nil
}

// MaxFileSize returns the upload limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// Policy returns the matching policy in effect.
func (s *Service) Policy() matching.Policy {
	return s.orch.Policy()
}

// LimiterStatus reports the limiter state across all organizations.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// ImportStatus is LimiterStatus with the running list cut down to the
// organizations the actor belongs to.
func (s *Service) ImportStatus(actor model.Actor) ImportLimiterStatus {
	st := s.limiter.Status()
	st.Running = slices.DeleteFunc(st.Running, func(imp RunningImport) bool {
		return !actor.BelongsTo(imp.OrganizationID)
	})
	return st
}

// Drain blocks until running imports finish or ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

// Import runs one import. It resolves the target organization, waits for a
// limiter slot and bounds the run by the configured timeout; a run cut short
// returns its partial outcome.
func (s *Service) Import(ctx context.Context, req importer.Request, actor model.Actor) (*importer.Outcome, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	orgID, err := importer.ResolveOrganization(req.Options.OrganizationID, actor)
	if err != nil {
		s.metrics.RecordRejected(MapError(err).Code)
		return nil, err
	}
	req.Options.OrganizationID = orgID
	if req.ImportID == "" {
		req.ImportID = uuid.NewString()
	}

	release, err := s.limiter.Acquire(ctx, RunningImport{
		ImportID:       req.ImportID,
		OrganizationID: orgID,
		Kind:           string(req.Kind),
		ActorID:        actor.ID,
		Rows:           len(req.Rows),
	})
	if err != nil {
		s.metrics.RecordRejected("busy")
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.orch.Run(runCtx, req, actor)
	if err != nil {
		s.metrics.RecordRejected(MapError(err).Code)
	}
	return out, err
}

// ImportFile parses an uploaded spreadsheet and imports its rows. size is the
// declared upload size; pass a negative value when it is unknown.
func (s *Service) ImportFile(ctx context.Context, kind string, r io.Reader, fileName string, size int64,
	raw importer.RawOptions, actor model.Actor) (*importer.Outcome, error) {

	if size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, s.maxFileSize)
	}
	req, err := s.request(kind, raw)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, s.maxFileSize)
	}

	rows, err := sheet.Parse(bytes.NewReader(data), fileName)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	req.Rows = rows

	logging.FromContext(ctx).Debug("file parsed",
		slog.String("file", fileName),
		slog.Int("rows", len(rows)),
	)
	return s.Import(ctx, req, actor)
}

// ImportOCR imports records produced by the OCR extraction step.
func (s *Service) ImportOCR(ctx context.Context, kind string, records []sheet.OCRRecord,
	raw importer.RawOptions, actor model.Actor) (*importer.Outcome, error) {

	req, err := s.request(kind, raw)
	if err != nil {
		return nil, err
	}
	req.Rows = sheet.FromOCR(records)
	return s.Import(ctx, req, actor)
}

func (s *Service) request(kind string, raw importer.RawOptions) (importer.Request, error) {
	k, err := importer.ParseKind(kind)
	if err != nil {
		return importer.Request{}, err
	}
	opts, err := raw.Parse()
	if err != nil {
		return importer.Request{}, err
	}
	return importer.Request{Kind: k, Options: opts}, nil
}

// ---------------------------------------------------------------------------
// Review
// ---------------------------------------------------------------------------

// PendingReviews lists pending items. With an empty organizationID the list
// covers every organization the actor belongs to.
func (s *Service) PendingReviews(ctx context.Context, organizationID string, actor model.Actor) ([]review.Item, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	if organizationID != "" {
		if !actor.BelongsTo(organizationID) {
			return nil, importer.ErrForbidden
		}
		return s.queue.PendingItems(ctx, organizationID)
	}
	if actor.IsSiteAdmin() {
		return s.queue.PendingItems(ctx, "")
	}

	out := []review.Item{}
	for _, org := range actor.OrganizationIDs {
		items, err := s.queue.PendingItems(ctx, org)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// Review returns one item the actor may see.
func (s *Service) Review(ctx context.Context, id string, actor model.Actor) (review.Item, error) {
	if actor.ID == "" {
		return review.Item{}, ErrUnauthenticated
	}
	it, err := s.queue.Get(ctx, id)
	if err != nil {
		return review.Item{}, err
	}
	if !actor.BelongsTo(it.OrganizationID) {
		return review.Item{}, importer.ErrForbidden
	}
	return it, nil
}

// Decide applies a reviewer decision and commits approved items.
func (s *Service) Decide(ctx context.Context, d review.Decision, actor model.Actor) (*importer.CommitResult, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	res, err := s.orch.Decide(ctx, d, actor)
	if res != nil {
		logging.FromContext(ctx).Info("review decided",
			slog.String("item_id", d.ItemID),
			slog.String("action", string(d.Action)),
			slog.String("actor", actor.ID),
			slog.String("ip", IPAddressFromContext(ctx)),
			slog.Bool("committed", res.Record != nil),
		)
	}
	return res, err
}

// ---------------------------------------------------------------------------
// Teams and athletes
// ---------------------------------------------------------------------------

// Teams lists an organization's teams.
func (s *Service) Teams(ctx context.Context, organizationID string, actor model.Actor) ([]model.TeamRef, error) {
	if !actor.BelongsTo(organizationID) {
		return nil, importer.ErrForbidden
	}
	return s.repo.ListTeams(ctx, organizationID)
}

// TeamMembers lists the athletes on a team.
func (s *Service) TeamMembers(ctx context.Context, teamID string, actor model.Actor) ([]model.Athlete, error) {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	if !actor.BelongsTo(team.OrganizationID) {
		return nil, importer.ErrForbidden
	}
	return s.repo.TeamMembers(ctx, teamID)
}

// AddTeamMembers adds athletes to a team in one transaction. Every athlete
// must belong to the team's organization.
func (s *Service) AddTeamMembers(ctx context.Context, teamID string, athleteIDs []string, actor model.Actor) error {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("get team: %w", err)
	}
	if !actor.CanManageTeams(team.OrganizationID) {
		return teams.ErrNotAuthorized
	}
	for _, id := range athleteIDs {
		a, err := s.repo.GetAthlete(ctx, id)
		if err != nil {
			return fmt.Errorf("get athlete %s: %w", id, err)
		}
		if a.OrganizationID != team.OrganizationID {
			return fmt.Errorf("athlete %s: %w", id, importer.ErrForbidden)
		}
	}
	if err := s.repo.AddTeamMembers(ctx, teamID, athleteIDs); err != nil {
		return fmt.Errorf("add team members: %w", err)
	}

	logging.FromContext(ctx).Info("team members added",
		slog.String("team_id", teamID),
		slog.Int("count", len(athleteIDs)),
		slog.String("actor", actor.ID),
	)
	return nil
}

// Athletes lists an organization's athletes.
func (s *Service) Athletes(ctx context.Context, organizationID string, actor model.Actor) ([]model.Athlete, error) {
	if !actor.BelongsTo(organizationID) {
		return nil, importer.ErrForbidden
	}
	return s.repo.ListAthletes(ctx, organizationID)
}

// Measurements lists an athlete's measurements.
func (s *Service) Measurements(ctx context.Context, athleteID string, actor model.Actor) ([]model.Measurement, error) {
	a, err := s.repo.GetAthlete(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}
	if !actor.BelongsTo(a.OrganizationID) {
		return nil, importer.ErrForbidden
	}
	return s.repo.ListMeasurements(ctx, athleteID)
}

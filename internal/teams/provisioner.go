// Package teams resolves team names from import rows to stored teams,
// creating missing teams when the import policy allows it.
//
// Team names are unique per organization after normalization. The database
// enforces that with a unique index; when two writers race to create the same
// team, the loser sees store.ErrConflict and re-reads the winner's row. No
// application lock is held across processes. Inside one process duplicate
// creations are also collapsed with singleflight.
package teams

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/metrics"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
)

// Policy controls what happens when a row names a team that does not exist.
type Policy string

const (
	AutoCreateSilent           Policy = "auto_create_silent"
	AutoCreateWithConfirmation Policy = "auto_create_with_confirmation"
	RequireExisting            Policy = "require_existing"
	LeaveTeamless              Policy = "leave_teamless"
)

var (
	// ErrTeamNotFound is a row-level error under RequireExisting.
	ErrTeamNotFound = errors.New("team not found")

	// ErrNotAuthorized is returned when the actor may not create teams in the organization.
	ErrNotAuthorized = errors.New("not authorized to create teams")

	// ErrInvalidPolicy is returned by ParsePolicy for unknown values.
	ErrInvalidPolicy = errors.New("invalid team handling policy")
)

// ParsePolicy parses a policy name. Empty input selects AutoCreateSilent.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return AutoCreateSilent, nil
	case AutoCreateSilent, AutoCreateWithConfirmation, RequireExisting, LeaveTeamless:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// creates reports whether the policy may create teams.
func (p Policy) creates() bool {
	return p == AutoCreateSilent || p == AutoCreateWithConfirmation
}

// Store is the storage the provisioner needs. FindTeamByName returns
// store.ErrNotFound when no team matches; CreateTeam returns store.ErrConflict
// when the normalized name is already taken in the organization.
type Store interface {
	FindTeamByName(ctx context.Context, organizationID, normalizedName string) (model.TeamRef, error)
	CreateTeam(ctx context.Context, organizationID, name, normalizedName string) (model.TeamRef, error)
}

// Normalize is the comparison form of a team name.
func Normalize(name string) string {
	return matching.Normalize(name)
}

// Provisioner is shared by all imports of a process.
type Provisioner struct {
	store   Store
	metrics *metrics.Manager
	group   singleflight.Group
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithMetrics records created teams and recovered conflicts.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

// NewProvisioner creates a provisioner over s.
func NewProvisioner(s Store, opts ...Option) *Provisioner {
	p := &Provisioner{store: s}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type createResult struct {
	team    model.TeamRef
	created bool
	by      *byte
}

// create inserts the team or, on a uniqueness conflict, returns the team the
// concurrent writer created. created is true only for the caller whose insert
// actually succeeded.
func (p *Provisioner) create(ctx context.Context, organizationID, name, normalized string) (model.TeamRef, bool, error) {
	token := new(byte)
	key := organizationID + "\x00" + normalized

	// Callers waiting on the same key share this call, so one caller's
	// cancellation must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(key, func() (any, error) {
		team, err := p.store.CreateTeam(shared, organizationID, name, normalized)
		if err == nil {
			p.metrics.TeamCreated()
			return createResult{team: team, created: true, by: token}, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create team %q: %w", name, err)
		}

		p.metrics.TeamConflictRecovered()
		team, err = p.store.FindTeamByName(shared, organizationID, normalized)
		if err != nil {
			return nil, fmt.Errorf("refetch team %q after conflict: %w", name, err)
		}
		return createResult{team: team, by: token}, nil
	})
	if err != nil {
		return model.TeamRef{}, false, err
	}

	res := v.(createResult)
	return res.team, res.created && res.by == token, nil
}

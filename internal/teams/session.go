package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
)

// CreatedTeam is a team created during one import, with the number of rows
// that were attributed to it.
type CreatedTeam struct {
	Team              model.TeamRef `json:"team"`
	RowCount          int           `json:"rowCount"`
	NeedsConfirmation bool          `json:"needsConfirmation,omitempty"`
}

// Resolution is the outcome of Session.Resolve. A zero Team means the row
// stays teamless.
type Resolution struct {
	Team    model.TeamRef
	Created bool
	Warning string
}

// Session carries the per-import state: a lookup cache and the teams created
// so far. Create one per import invocation and do not share it.
type Session struct {
	p     *Provisioner
	actor model.Actor

	mu      sync.Mutex
	cache   map[string]model.TeamRef
	created map[string]*CreatedTeam
	order   []string
}

// NewSession starts a session acting on behalf of actor.
func (p *Provisioner) NewSession(actor model.Actor) *Session {
	return &Session{
		p:       p,
		actor:   actor,
		cache:   make(map[string]model.TeamRef),
		created: make(map[string]*CreatedTeam),
	}
}

// Resolve maps name to a team of organizationID according to policy. An
// empty name resolves to no team. ErrTeamNotFound and ErrNotAuthorized are
// row-level errors; anything else comes from storage.
func (s *Session) Resolve(ctx context.Context, organizationID, name string, policy Policy) (Resolution, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Resolution{}, nil
	}
	normalized := Normalize(name)
	key := organizationID + "\x00" + normalized

	s.mu.Lock()
	defer s.mu.Unlock()

	if team, ok := s.cache[key]; ok {
		if ct, ok := s.created[key]; ok {
			ct.RowCount++
		}
		return Resolution{Team: team}, nil
	}

	team, err := s.p.store.FindTeamByName(ctx, organizationID, normalized)
	switch {
	case err == nil:
		s.cache[key] = team
		return Resolution{Team: team}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Resolution{}, fmt.Errorf("find team %q: %w", name, err)
	}

	switch {
	case policy == RequireExisting:
		return Resolution{}, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
	case policy == LeaveTeamless:
		return Resolution{Warning: fmt.Sprintf("Team %q not found, athlete left without a team", name)}, nil
	case !policy.creates():
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	case !s.actor.CanManageTeams(organizationID):
		return Resolution{}, fmt.Errorf("%w: team %q does not exist and role %s cannot create it",
			ErrNotAuthorized, name, s.actor.Role)
	}

	team, created, err := s.p.create(ctx, organizationID, name, normalized)
	if err != nil {
		return Resolution{}, err
	}
	s.cache[key] = team
	if !created {
		return Resolution{Team: team}, nil
	}

	ct := &CreatedTeam{Team: team, RowCount: 1, NeedsConfirmation: policy == AutoCreateWithConfirmation}
	s.created[key] = ct
	s.order = append(s.order, key)

	res := Resolution{Team: team, Created: true}
	if ct.NeedsConfirmation {
		res.Warning = fmt.Sprintf("Team %q was created and needs confirmation", team.Name)
	}
	return res, nil
}

// CreatedTeams returns the teams created in this session in creation order.
func (s *Session) CreatedTeams() []CreatedTeam {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CreatedTeam, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.created[key])
	}
	return out
}

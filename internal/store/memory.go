package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

// Memory is an in-process repository with the same contract as Postgres:
// team names are unique per organization, memberships are idempotent and
// missing references return ErrNotFound. It backs the CLI's dry runs and the
// tests.
type Memory struct {
	mu           sync.RWMutex
	now          func() time.Time
	teams        map[string]model.TeamRef
	teamNames    map[string]string // org + "\x00" + normalized name -> team id
	athletes     map[string]model.Athlete
	order        []string
	members      map[string][]string // athlete id -> team ids
	measurements []model.Measurement
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		teams:     make(map[string]model.TeamRef),
		teamNames: make(map[string]string),
		athletes:  make(map[string]model.Athlete),
		members:   make(map[string][]string),
	}
}

func teamKey(orgID, normalized string) string {
	return orgID + "\x00" + normalized
}

func (m *Memory) FindTeamByName(_ context.Context, orgID, normalizedName string) (model.TeamRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.teamNames[teamKey(orgID, normalizedName)]
	if !ok {
		return model.TeamRef{}, ErrNotFound
	}
	return m.teams[id], nil
}

func (m *Memory) CreateTeam(_ context.Context, orgID, name, normalizedName string) (model.TeamRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := teamKey(orgID, normalizedName)
	if _, ok := m.teamNames[key]; ok {
		return model.TeamRef{}, ErrConflict
	}
	t := model.TeamRef{ID: uuid.NewString(), Name: name, OrganizationID: orgID}
	m.teams[t.ID] = t
	m.teamNames[key] = t.ID
	return t, nil
}

func (m *Memory) GetTeam(_ context.Context, id string) (model.TeamRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[id]
	if !ok {
		return model.TeamRef{}, ErrNotFound
	}
	return t, nil
}

// ListTeams returns the organization's teams ordered by name.
func (m *Memory) ListTeams(_ context.Context, orgID string) ([]model.TeamRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.TeamRef{}
	for _, t := range m.teams {
		if t.OrganizationID == orgID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b model.TeamRef) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// withTeams fills a.Teams. Callers hold the lock.
func (m *Memory) withTeams(a model.Athlete) model.Athlete {
	ids := m.members[a.ID]
	a.Teams = make([]model.TeamRef, 0, len(ids))
	for _, id := range ids {
		a.Teams = append(a.Teams, m.teams[id])
	}
	a.Emails = slices.Clone(a.Emails)
	a.PhoneNumbers = slices.Clone(a.PhoneNumbers)
	a.Sports = slices.Clone(a.Sports)
	return a
}

func (m *Memory) ListCandidates(_ context.Context, orgID string) ([]matching.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []matching.Candidate{}
	for _, id := range m.order {
		a := m.athletes[id]
		if a.OrganizationID != orgID {
			continue
		}
		a = m.withTeams(a)
		out = append(out, matching.Candidate{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, Teams: a.Teams})
	}
	return out, nil
}

// ListAthletes returns the organization's athletes in creation order.
func (m *Memory) ListAthletes(_ context.Context, orgID string) ([]model.Athlete, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Athlete{}
	for _, id := range m.order {
		if a := m.athletes[id]; a.OrganizationID == orgID {
			out = append(out, m.withTeams(a))
		}
	}
	return out, nil
}

func (m *Memory) GetAthlete(_ context.Context, id string) (model.Athlete, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.athletes[id]
	if !ok {
		return model.Athlete{}, ErrNotFound
	}
	return m.withTeams(a), nil
}

func (m *Memory) CreateAthlete(_ context.Context, a model.Athlete) (model.Athlete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = uuid.NewString()
	a.CreatedAt = m.now().UTC()
	a.UpdatedAt = a.CreatedAt
	a.Teams = nil
	m.athletes[a.ID] = a
	m.order = append(m.order, a.ID)
	return m.withTeams(a), nil
}

func (m *Memory) UpdateAthlete(_ context.Context, a model.Athlete) (model.Athlete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.athletes[a.ID]
	if !ok {
		return model.Athlete{}, ErrNotFound
	}
	a.OrganizationID = current.OrganizationID
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = m.now().UTC()
	a.Teams = nil
	m.athletes[a.ID] = a
	return m.withTeams(a), nil
}

func (m *Memory) AddTeamMember(_ context.Context, teamID, athleteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[teamID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.athletes[athleteID]; !ok {
		return ErrNotFound
	}
	if !slices.Contains(m.members[athleteID], teamID) {
		m.members[athleteID] = append(m.members[athleteID], teamID)
	}
	return nil
}

// AddTeamMembers adds every athlete or none: all ids are checked before
// anything is written.
func (m *Memory) AddTeamMembers(_ context.Context, teamID string, athleteIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[teamID]; !ok {
		return ErrNotFound
	}
	for _, id := range athleteIDs {
		if _, ok := m.athletes[id]; !ok {
			return ErrNotFound
		}
	}
	for _, id := range athleteIDs {
		if !slices.Contains(m.members[id], teamID) {
			m.members[id] = append(m.members[id], teamID)
		}
	}
	return nil
}

// TeamMembers returns the athletes on a team in creation order.
func (m *Memory) TeamMembers(_ context.Context, teamID string) ([]model.Athlete, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.teams[teamID]; !ok {
		return nil, ErrNotFound
	}
	out := []model.Athlete{}
	for _, id := range m.order {
		if slices.Contains(m.members[id], teamID) {
			out = append(out, m.withTeams(m.athletes[id]))
		}
	}
	return out, nil
}

func (m *Memory) CreateMeasurement(_ context.Context, ms model.Measurement) (model.Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.athletes[ms.AthleteID]; !ok {
		return model.Measurement{}, ErrNotFound
	}
	ms.ID = uuid.NewString()
	ms.CreatedAt = m.now().UTC()
	m.measurements = append(m.measurements, ms)
	return ms, nil
}

// ListMeasurements returns an athlete's measurements in insertion order.
func (m *Memory) ListMeasurements(_ context.Context, athleteID string) ([]model.Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Measurement{}
	for _, ms := range m.measurements {
		if ms.AthleteID == athleteID {
			out = append(out, ms)
		}
	}
	return out, nil
}

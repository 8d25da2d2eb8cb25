package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

func TestMemory_TeamNamesUniquePerOrganization(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	eagles, err := m.CreateTeam(ctx, "orgA", "Eagles", "eagles")
	if err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	if _, err := m.CreateTeam(ctx, "orgA", "EAGLES", "eagles"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate CreateTeam() error = %v, want ErrConflict", err)
	}
	if _, err := m.CreateTeam(ctx, "orgB", "Eagles", "eagles"); err != nil {
		t.Errorf("CreateTeam() in another organization error = %v", err)
	}

	got, err := m.FindTeamByName(ctx, "orgA", "eagles")
	if err != nil {
		t.Fatalf("FindTeamByName() error = %v", err)
	}
	if got != eagles {
		t.Errorf("FindTeamByName() = %+v, want %+v", got, eagles)
	}
	if _, err := m.FindTeamByName(ctx, "orgA", "hawks"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindTeamByName(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_ConcurrentCreateTeam(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.CreateTeam(ctx, "orgA", "Eagles", "eagles"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}

func TestMemory_AthletesAndMembership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	team, _ := m.CreateTeam(ctx, "orgA", "Eagles", "eagles")
	a, err := m.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		t.Fatalf("CreateAthlete() error = %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("CreateAthlete() = %+v, want id and timestamps", a)
	}
	if _, err := m.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgB", FirstName: "Other", LastName: "Org"}); err != nil {
		t.Fatalf("CreateAthlete() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := m.AddTeamMember(ctx, team.ID, a.ID); err != nil {
			t.Fatalf("AddTeamMember() error = %v", err)
		}
	}
	if err := m.AddTeamMember(ctx, "missing", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTeamMember(missing team) error = %v, want ErrNotFound", err)
	}

	got, err := m.GetAthlete(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAthlete() error = %v", err)
	}
	if len(got.Teams) != 1 || got.Teams[0].ID != team.ID {
		t.Errorf("Teams = %+v, want [%s] once", got.Teams, team.ID)
	}

	candidates, err := m.ListCandidates(ctx, "orgA")
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != a.ID || !candidates[0].HasTeam(team.ID) {
		t.Errorf("ListCandidates() = %+v", candidates)
	}

	members, err := m.TeamMembers(ctx, team.ID)
	if err != nil || len(members) != 1 {
		t.Errorf("TeamMembers() = %v, %v; want one member", members, err)
	}
}

func TestMemory_UpdateKeepsOrganization(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, _ := m.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Jane", LastName: "Doe"})
	a.OrganizationID = "orgB"
	a.School = "Central"

	got, err := m.UpdateAthlete(ctx, a)
	if err != nil {
		t.Fatalf("UpdateAthlete() error = %v", err)
	}
	if got.OrganizationID != "orgA" || got.School != "Central" {
		t.Errorf("UpdateAthlete() = %+v", got)
	}
	if _, err := m.UpdateAthlete(ctx, model.Athlete{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAthlete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_Measurements(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.CreateMeasurement(ctx, model.Measurement{AthleteID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateMeasurement(missing athlete) error = %v, want ErrNotFound", err)
	}

	a, _ := m.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Jane", LastName: "Doe"})
	if _, err := m.CreateMeasurement(ctx, model.Measurement{AthleteID: a.ID, Metric: "FLY10_TIME", Value: 1.2}); err != nil {
		t.Fatalf("CreateMeasurement() error = %v", err)
	}
	got, err := m.ListMeasurements(ctx, a.ID)
	if err != nil || len(got) != 1 || got[0].ID == "" {
		t.Errorf("ListMeasurements() = %+v, %v", got, err)
	}
}

func TestSchema(t *testing.T) {
	ddl := Schema()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS teams",
		"teams_org_normalized_name_key",
		"CREATE TABLE IF NOT EXISTS review_items",
		"PRIMARY KEY (team_id, athlete_id)",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
)

// fakeStore enforces (organization, normalized name) uniqueness like the
// Postgres unique index does.
type fakeStore struct {
	mu      sync.Mutex
	teams   map[string]model.TeamRef
	creates int
	nextID  int

	// createGate, when set, is called before each insert.
	createGate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{teams: make(map[string]model.TeamRef)}
}

func (f *fakeStore) FindTeamByName(_ context.Context, org, normalized string) (model.TeamRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.teams[org+"/"+normalized]; ok {
		return t, nil
	}
	return model.TeamRef{}, store.ErrNotFound
}

func (f *fakeStore) CreateTeam(ctx context.Context, org, name, normalized string) (model.TeamRef, error) {
	if f.createGate != nil {
		f.createGate()
	}
	if err := ctx.Err(); err != nil {
		return model.TeamRef{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, ok := f.teams[org+"/"+normalized]; ok {
		return model.TeamRef{}, fmt.Errorf("insert team: %w", store.ErrConflict)
	}
	f.nextID++
	t := model.TeamRef{ID: fmt.Sprintf("team-%d", f.nextID), Name: name, OrganizationID: org}
	f.teams[org+"/"+normalized] = t
	return t, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.teams)
}

var coach = model.Actor{ID: "u1", Role: model.RoleCoach, OrganizationIDs: []string{"orgA"}}

func TestResolve_ExistingTeam(t *testing.T) {
	fs := newFakeStore()
	existing, _ := fs.CreateTeam(context.Background(), "orgA", "Varsity", "varsity")

	s := NewProvisioner(fs).NewSession(coach)
	res, err := s.Resolve(context.Background(), "orgA", "  VARSITY ", RequireExisting)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Team != existing || res.Created {
		t.Errorf("Resolve() = %+v, want existing team, not created", res)
	}
	if got := s.CreatedTeams(); len(got) != 0 {
		t.Errorf("CreatedTeams() = %v, want none", got)
	}
}

func TestResolve_Policies(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		actor       model.Actor
		wantErr     error
		wantTeam    bool
		wantWarning string
	}{
		{"require existing", RequireExisting, coach, ErrTeamNotFound, false, ""},
		{"leave teamless", LeaveTeamless, coach, nil, false, "not found"},
		{"silent create", AutoCreateSilent, coach, nil, true, ""},
		{"create with confirmation", AutoCreateWithConfirmation, coach, nil, true, "needs confirmation"},
		{"athlete cannot create", AutoCreateSilent, model.Actor{ID: "u2", Role: model.RoleAthlete, OrganizationIDs: []string{"orgA"}}, ErrNotAuthorized, false, ""},
		{"coach of other org cannot create", AutoCreateSilent, model.Actor{ID: "u3", Role: model.RoleCoach, OrganizationIDs: []string{"orgB"}}, ErrNotAuthorized, false, ""},
		{"site admin bypasses membership", AutoCreateSilent, model.Actor{ID: "root", Role: model.RoleSiteAdmin}, nil, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			s := NewProvisioner(fs).NewSession(tt.actor)

			res, err := s.Resolve(context.Background(), "orgA", "Eagles", tt.policy)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got := !res.Team.IsZero(); got != tt.wantTeam {
				t.Errorf("has team = %v, want %v", got, tt.wantTeam)
			}
			if tt.wantWarning == "" && res.Warning != "" {
				t.Errorf("Warning = %q, want none", res.Warning)
			}
			if tt.wantWarning != "" && !strings.Contains(res.Warning, tt.wantWarning) {
				t.Errorf("Warning = %q, want it to contain %q", res.Warning, tt.wantWarning)
			}
			if !tt.wantTeam && fs.count() != 0 {
				t.Errorf("store has %d teams, want 0", fs.count())
			}
		})
	}
}

func TestResolve_EmptyName(t *testing.T) {
	s := NewProvisioner(newFakeStore()).NewSession(coach)
	res, err := s.Resolve(context.Background(), "orgA", "   ", RequireExisting)
	if err != nil || !res.Team.IsZero() {
		t.Errorf("Resolve(blank) = %+v, %v, want teamless and no error", res, err)
	}
}

func TestSession_CountsRowsPerCreatedTeam(t *testing.T) {
	fs := newFakeStore()
	s := NewProvisioner(fs).NewSession(coach)
	ctx := context.Background()

	for _, name := range []string{"Eagles", "eagles", "Hawks", " EAGLES "} {
		if _, err := s.Resolve(ctx, "orgA", name, AutoCreateWithConfirmation); err != nil {
			t.Fatalf("Resolve(%q) error = %v", name, err)
		}
	}

	got := s.CreatedTeams()
	if len(got) != 2 {
		t.Fatalf("len(CreatedTeams()) = %d, want 2", len(got))
	}
	if got[0].Team.Name != "Eagles" || got[0].RowCount != 3 || !got[0].NeedsConfirmation {
		t.Errorf("CreatedTeams()[0] = %+v, want Eagles with 3 rows needing confirmation", got[0])
	}
	if got[1].Team.Name != "Hawks" || got[1].RowCount != 1 {
		t.Errorf("CreatedTeams()[1] = %+v, want Hawks with 1 row", got[1])
	}
	if fs.creates != 2 {
		t.Errorf("store creates = %d, want 2", fs.creates)
	}
}

// Two provisioners model two server processes: singleflight cannot help, so
// the unique constraint and refetch must.
func TestResolve_ConcurrentCreateAcrossProcesses(t *testing.T) {
	fs := newFakeStore()

	var arrived sync.WaitGroup
	arrived.Add(2)
	release := make(chan struct{})
	go func() {
		arrived.Wait()
		close(release)
	}()
	fs.createGate = func() {
		arrived.Done()
		<-release
	}

	sessions := []*Session{
		NewProvisioner(fs).NewSession(coach),
		NewProvisioner(fs).NewSession(coach),
	}

	var wg sync.WaitGroup
	results := make([]Resolution, 2)
	errs := make([]error, 2)
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			results[i], errs[i] = s.Resolve(context.Background(), "orgA", "Eagles", AutoCreateSilent)
		}(i, s)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Resolve[%d] error = %v", i, err)
		}
	}
	if fs.count() != 1 {
		t.Errorf("stored teams = %d, want 1", fs.count())
	}
	if results[0].Team.ID != results[1].Team.ID {
		t.Errorf("team ids = %q, %q, want equal", results[0].Team.ID, results[1].Team.ID)
	}
	if results[0].Created == results[1].Created {
		t.Errorf("Created = %v, %v, want exactly one creator", results[0].Created, results[1].Created)
	}

	created := len(sessions[0].CreatedTeams()) + len(sessions[1].CreatedTeams())
	if created != 1 {
		t.Errorf("created teams across sessions = %d, want 1", created)
	}
}

func TestResolve_ConcurrentCreateInProcess(t *testing.T) {
	fs := newFakeStore()
	p := NewProvisioner(fs)

	const n = 16
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.NewSession(coach).Resolve(context.Background(), "orgA", "Eagles", AutoCreateSilent)
			ids[i], errs[i] = res.Team.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Resolve[%d] error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], ids[0])
		}
	}
	if fs.count() != 1 {
		t.Errorf("stored teams = %d, want 1", fs.count())
	}
}

func TestResolve_SharedCreateIgnoresCallerCancel(t *testing.T) {
	fs := newFakeStore()
	p := NewProvisioner(fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs.createGate = cancel

	res, err := p.NewSession(coach).Resolve(ctx, "orgA", "Eagles", AutoCreateSilent)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Created || res.Team.ID == "" {
		t.Errorf("Resolve() = %+v, want the created team", res)
	}
	if fs.count() != 1 {
		t.Errorf("stored teams = %d, want 1", fs.count())
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", AutoCreateSilent, false},
		{"require_existing", RequireExisting, false},
		{"leave_teamless", LeaveTeamless, false},
		{"auto_create_with_confirmation", AutoCreateWithConfirmation, false},
		{"create_everything", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

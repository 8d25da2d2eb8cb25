package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

var (
	coach    = model.Actor{ID: "coach-1", Role: model.RoleCoach, OrganizationIDs: []string{"orgA"}}
	player   = model.Actor{ID: "kid-1", Role: model.RoleAthlete, OrganizationIDs: []string{"orgA"}}
	outsider = model.Actor{ID: "coach-2", Role: model.RoleCoach, OrganizationIDs: []string{"orgB"}}
)

func newTestService(t *testing.T, cfg Config) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc, err := NewService(mem, review.NewMemoryStore(), cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, mem
}

func TestNewService_RejectsInvalidPolicy(t *testing.T) {
	p := matching.DefaultPolicy()
	p.TeamDiffersScore = p.ExactTeamScore + 1

	_, err := NewService(store.NewMemory(), review.NewMemoryStore(), Config{Policy: p})
	if err == nil {
		t.Fatal("NewService() error = nil, want policy error")
	}
}

func TestService_ImportFile_CSV(t *testing.T) {
	svc, mem := newTestService(t, Config{})
	csv := "firstName,lastName,teamName\nAva,Lee,Hawks\nBen,Ng,Hawks\n"

	out, err := svc.ImportFile(context.Background(), "athletes", strings.NewReader(csv), "roster.csv", int64(len(csv)),
		importer.RawOptions{OrganizationID: "orgA"}, coach)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}

	if got := out.Summary().Created; got != 2 {
		t.Errorf("created = %d, want 2", got)
	}
	if len(out.CreatedTeams) != 1 || out.CreatedTeams[0].Team.Name != "Hawks" {
		t.Errorf("createdTeams = %+v, want one Hawks team", out.CreatedTeams)
	}

	athletes, err := mem.ListAthletes(context.Background(), "orgA")
	if err != nil {
		t.Fatalf("ListAthletes() error = %v", err)
	}
	if len(athletes) != 2 {
		t.Errorf("stored athletes = %d, want 2", len(athletes))
	}
}

func TestService_ImportFile_Rejections(t *testing.T) {
	svc, _ := newTestService(t, Config{MaxFileSize: 64})
	body := "firstName,lastName\nAva,Lee\n"
	big := "firstName,lastName\n" + strings.Repeat("Ava,Lee\n", 20)

	tests := []struct {
		name     string
		kind     string
		body     string
		fileName string
		size     int64
		raw      importer.RawOptions
		actor    model.Actor
		wantErr  error
	}{
		{"declared size too large", "athletes", body, "a.csv", 1 << 20, importer.RawOptions{}, coach, ErrFileTooLarge},
		{"body larger than declared", "athletes", big, "a.csv", -1, importer.RawOptions{}, coach, ErrFileTooLarge},
		{"unknown kind", "coaches", body, "a.csv", int64(len(body)), importer.RawOptions{}, coach, importer.ErrInvalidKind},
		{"bad mode", "athletes", body, "a.csv", int64(len(body)), importer.RawOptions{Mode: "merge"}, coach, importer.ErrInvalidMode},
		{"bad extension", "athletes", body, "a.pdf", int64(len(body)), importer.RawOptions{}, coach, sheet.ErrUnsupportedFormat},
		{"anonymous", "athletes", body, "a.csv", int64(len(body)), importer.RawOptions{}, model.Actor{}, ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ImportFile(context.Background(), tt.kind, strings.NewReader(tt.body), tt.fileName, tt.size, tt.raw, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ImportFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Import_Busy(t *testing.T) {
	svc, _ := newTestService(t, Config{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond})

	release, err := svc.limiter.Acquire(context.Background(), RunningImport{ImportID: "held", OrganizationID: "orgA"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	_, err = svc.ImportOCR(context.Background(), "athletes",
		[]sheet.OCRRecord{{Fields: map[string]string{"firstName": "Ava", "lastName": "Lee"}, Confidence: 0.9}},
		importer.RawOptions{OrganizationID: "orgA"}, coach)
	if !errors.Is(err, ErrTooManyImports) {
		t.Errorf("ImportOCR() error = %v, want ErrTooManyImports", err)
	}
	if got := MapError(err).Code; got != "IMP006" {
		t.Errorf("code = %s, want IMP006", got)
	}
}

// peekStore calls peek when a run loads its matching snapshot, while the run
// holds its limiter slot.
type peekStore struct {
	*store.Memory
	peek func()
}

func (p *peekStore) ListCandidates(ctx context.Context, organizationID string) ([]matching.Candidate, error) {
	if p.peek != nil {
		p.peek()
	}
	return p.Memory.ListCandidates(ctx, organizationID)
}

func TestService_Import_RecordsRunningImport(t *testing.T) {
	ps := &peekStore{Memory: store.NewMemory()}
	svc, err := NewService(ps, review.NewMemoryStore(), Config{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	var during, outsiderView ImportLimiterStatus
	ps.peek = func() {
		during = svc.LimiterStatus()
		outsiderView = svc.ImportStatus(outsider)
	}

	out, err := svc.ImportOCR(context.Background(), "athletes",
		[]sheet.OCRRecord{{Fields: map[string]string{"firstName": "Ava", "lastName": "Lee"}, Confidence: 0.9}},
		importer.RawOptions{}, coach)
	if err != nil {
		t.Fatalf("ImportOCR() error = %v", err)
	}

	if len(during.Running) != 1 {
		t.Fatalf("running during import = %+v, want one", during.Running)
	}
	got := during.Running[0]
	if got.ImportID != out.ImportID || got.OrganizationID != "orgA" || got.ActorID != "coach-1" || got.Rows != 1 {
		t.Errorf("running import = %+v, want import %s for orgA by coach-1", got, out.ImportID)
	}
	if outsiderView.Active != 1 || len(outsiderView.Running) != 0 {
		t.Errorf("outsider view = %+v, want the count without the entry", outsiderView)
	}
	if s := svc.LimiterStatus(); s.Active != 0 {
		t.Errorf("active after import = %d, want 0", s.Active)
	}
}

func TestService_Import_RejectsOrganizationBeforeWaiting(t *testing.T) {
	svc, _ := newTestService(t, Config{MaxConcurrent: 1, MaxWaitTime: time.Minute})
	release, err := svc.limiter.Acquire(context.Background(), RunningImport{ImportID: "held"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	_, err = svc.ImportOCR(context.Background(), "athletes",
		[]sheet.OCRRecord{{Fields: map[string]string{"firstName": "Ava", "lastName": "Lee"}, Confidence: 0.9}},
		importer.RawOptions{OrganizationID: "orgB"}, coach)
	if !errors.Is(err, importer.ErrForbidden) {
		t.Errorf("ImportOCR() error = %v, want ErrForbidden", err)
	}
}

func TestService_ReviewFlow(t *testing.T) {
	svc, mem := newTestService(t, Config{})
	ctx := context.Background()

	seeded, err := mem.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Jordan", LastName: "Smith"})
	if err != nil {
		t.Fatalf("CreateAthlete() error = %v", err)
	}

	out, err := svc.ImportOCR(ctx, "athletes",
		[]sheet.OCRRecord{{Fields: map[string]string{"firstName": "Jordan", "lastName": "Smith"}, Confidence: 0.95}},
		importer.RawOptions{OrganizationID: "orgA", ReviewPolicy: "review_all"}, coach)
	if err != nil {
		t.Fatalf("ImportOCR() error = %v", err)
	}
	if len(out.PendingReview) != 1 {
		t.Fatalf("pendingReview = %d, want 1", len(out.PendingReview))
	}
	itemID := out.PendingReview[0].ID

	pending, err := svc.PendingReviews(ctx, "", coach)
	if err != nil {
		t.Fatalf("PendingReviews() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != itemID {
		t.Errorf("PendingReviews() = %+v, want item %s", pending, itemID)
	}
	if n, _ := svc.PendingCount(ctx); n != 1 {
		t.Errorf("PendingCount() = %d, want 1", n)
	}

	if _, err := svc.PendingReviews(ctx, "orgA", outsider); !errors.Is(err, importer.ErrForbidden) {
		t.Errorf("PendingReviews(outsider) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Review(ctx, itemID, outsider); !errors.Is(err, importer.ErrForbidden) {
		t.Errorf("Review(outsider) error = %v, want ErrForbidden", err)
	}

	res, err := svc.Decide(ctx, review.Decision{ItemID: itemID, Action: review.ActionApprove}, coach)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if res.Record == nil || res.Record.ID != seeded.ID {
		t.Errorf("Decide() record = %+v, want athlete %s", res.Record, seeded.ID)
	}

	_, err = svc.Decide(ctx, review.Decision{ItemID: itemID, Action: review.ActionReject}, coach)
	if !errors.Is(err, review.ErrAlreadyDecided) {
		t.Errorf("second Decide() error = %v, want ErrAlreadyDecided", err)
	}
	if n, _ := svc.PendingCount(ctx); n != 0 {
		t.Errorf("PendingCount() after decision = %d, want 0", n)
	}
}

func TestService_AddTeamMembers(t *testing.T) {
	svc, mem := newTestService(t, Config{})
	ctx := context.Background()

	team, err := mem.CreateTeam(ctx, "orgA", "Eagles", teams.Normalize("Eagles"))
	if err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	a1, _ := mem.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Ava", LastName: "Lee"})
	a2, _ := mem.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgA", FirstName: "Ben", LastName: "Ng"})
	foreign, _ := mem.CreateAthlete(ctx, model.Athlete{OrganizationID: "orgB", FirstName: "Cy", LastName: "Ode"})

	tests := []struct {
		name    string
		ids     []string
		actor   model.Actor
		wantErr error
	}{
		{"athlete role", []string{a1.ID}, player, teams.ErrNotAuthorized},
		{"other organization", []string{a1.ID}, outsider, teams.ErrNotAuthorized},
		{"foreign athlete", []string{a1.ID, foreign.ID}, coach, importer.ErrForbidden},
		{"unknown athlete", []string{"missing"}, coach, store.ErrNotFound},
		{"coach", []string{a1.ID, a2.ID}, coach, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddTeamMembers(ctx, team.ID, tt.ids, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddTeamMembers() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	members, err := svc.TeamMembers(ctx, team.ID, coach)
	if err != nil {
		t.Fatalf("TeamMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2 (failed calls must write nothing)", len(members))
	}
}

func TestService_TeamsScope(t *testing.T) {
	svc, mem := newTestService(t, Config{})
	ctx := context.Background()
	if _, err := mem.CreateTeam(ctx, "orgA", "Eagles", teams.Normalize("Eagles")); err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}

	got, err := svc.Teams(ctx, "orgA", coach)
	if err != nil || len(got) != 1 {
		t.Errorf("Teams(coach) = %v, %v; want one team", got, err)
	}
	if _, err := svc.Teams(ctx, "orgA", outsider); !errors.Is(err, importer.ErrForbidden) {
		t.Errorf("Teams(outsider) error = %v, want ErrForbidden", err)
	}
}

func TestActorFromContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Error("ActorFromContext(empty) ok = true, want false")
	}
	ctx := ContextWithActor(context.Background(), coach)
	got, ok := ActorFromContext(ctx)
	if !ok || got.ID != coach.ID {
		t.Errorf("ActorFromContext() = %+v, %v; want coach", got, ok)
	}
	ctx = ContextWithIPAddress(ctx, "10.0.0.1")
	if got := IPAddressFromContext(ctx); got != "10.0.0.1" {
		t.Errorf("IPAddressFromContext() = %q, want 10.0.0.1", got)
	}
}

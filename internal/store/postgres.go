// Package store persists teams, athletes, memberships, measurements and
// review items. Postgres is the production backend; Memory implements the
// same contract in process.
//
// Errors are translated onto ErrNotFound and ErrConflict so callers never
// import pgx to interpret them.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres is the pgx-backed repository.
type Postgres struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, db: pool}
}

// Ping checks the connection, for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

func (p *Postgres) FindTeamByName(ctx context.Context, orgID, normalizedName string) (model.TeamRef, error) {
	var t model.TeamRef
	var id pgtype.UUID
	err := p.db.QueryRow(ctx, `
		SELECT id, name, organization_id
		FROM teams
		WHERE organization_id = $1 AND normalized_name = $2`,
		orgID, normalizedName,
	).Scan(&id, &t.Name, &t.OrganizationID)
	if err != nil {
		return model.TeamRef{}, translate(err)
	}
	t.ID = fromPgUUID(id)
	return t, nil
}

func (p *Postgres) GetTeam(ctx context.Context, id string) (model.TeamRef, error) {
	var t model.TeamRef
	var tid pgtype.UUID
	err := p.db.QueryRow(ctx, `
		SELECT id, name, organization_id
		FROM teams
		WHERE id = $1`,
		toPgUUID(id),
	).Scan(&tid, &t.Name, &t.OrganizationID)
	if err != nil {
		return model.TeamRef{}, translate(err)
	}
	t.ID = fromPgUUID(tid)
	return t, nil
}

// CreateTeam inserts a team. The unique index on (organization_id,
// normalized_name) turns a concurrent duplicate into ErrConflict.
func (p *Postgres) CreateTeam(ctx context.Context, orgID, name, normalizedName string) (model.TeamRef, error) {
	var id pgtype.UUID
	err := p.db.QueryRow(ctx, `
		INSERT INTO teams (organization_id, name, normalized_name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		orgID, name, normalizedName,
	).Scan(&id)
	if err != nil {
		return model.TeamRef{}, translate(err)
	}
	return model.TeamRef{ID: fromPgUUID(id), Name: name, OrganizationID: orgID}, nil
}

func (p *Postgres) ListTeams(ctx context.Context, orgID string) ([]model.TeamRef, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, name, organization_id
		FROM teams
		WHERE organization_id = $1
		ORDER BY name`, orgID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []model.TeamRef{}
	for rows.Next() {
		var t model.TeamRef
		var id pgtype.UUID
		if err := rows.Scan(&id, &t.Name, &t.OrganizationID); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.ID = fromPgUUID(id)
		out = append(out, t)
	}
	return out, translate(rows.Err())
}

// AddTeamMember is idempotent.
func (p *Postgres) AddTeamMember(ctx context.Context, teamID, athleteID string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO team_members (team_id, athlete_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, athlete_id) DO NOTHING`,
		toPgUUID(teamID), toPgUUID(athleteID),
	)
	return translate(err)
}

// AddTeamMembers adds several athletes to a team in one transaction. Either
// all memberships are written or none.
func (p *Postgres) AddTeamMembers(ctx context.Context, teamID string, athleteIDs []string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, id := range athleteIDs {
		batch.Queue(`
			INSERT INTO team_members (team_id, athlete_id)
			VALUES ($1, $2)
			ON CONFLICT (team_id, athlete_id) DO NOTHING`,
			toPgUUID(teamID), toPgUUID(id))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit team members: %w", err)
	}
	return nil
}

func (p *Postgres) TeamMembers(ctx context.Context, teamID string) ([]model.Athlete, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)`, toPgUUID(teamID)).Scan(&exists); err != nil {
		return nil, translate(err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return p.queryAthletes(ctx, `
		WHERE a.id IN (SELECT athlete_id FROM team_members WHERE team_id = $1)`,
		toPgUUID(teamID))
}

// ---------------------------------------------------------------------------
// Athletes
// ---------------------------------------------------------------------------

const athleteSelect = `
	SELECT a.id, a.organization_id, a.first_name, a.last_name, a.birth_date,
	       a.birth_year, a.graduation_year, a.gender, a.emails, a.phone_numbers,
	       a.sports, a.height_inches, a.weight_pounds, a.school,
	       a.competitive_level, a.created_at, a.updated_at,
	       COALESCE((
	           SELECT json_agg(json_build_object('id', t.id, 'name', t.name, 'organizationId', t.organization_id)
	                           ORDER BY tm.joined_at)
	           FROM team_members tm JOIN teams t ON t.id = tm.team_id
	           WHERE tm.athlete_id = a.id
	       ), '[]'::json)
	FROM athletes a`

func scanAthlete(row pgx.Row) (model.Athlete, error) {
	var (
		a                          model.Athlete
		id                         pgtype.UUID
		birthDate                  pgtype.Date
		birthYear, gradYear, level pgtype.Int4
		gender, school             pgtype.Text
		height, weight             pgtype.Float8
		teamsJSON                  []byte
	)
	err := row.Scan(&id, &a.OrganizationID, &a.FirstName, &a.LastName, &birthDate,
		&birthYear, &gradYear, &gender, &a.Emails, &a.PhoneNumbers,
		&a.Sports, &height, &weight, &school,
		&level, &a.CreatedAt, &a.UpdatedAt, &teamsJSON)
	if err != nil {
		return model.Athlete{}, err
	}
	a.ID = fromPgUUID(id)
	a.BirthDate = fromPgDate(birthDate)
	a.BirthYear = fromPgInt4(birthYear)
	a.GraduationYear = fromPgInt4(gradYear)
	a.Gender = fromPgText(gender)
	a.School = fromPgText(school)
	a.HeightInches = fromPgFloat8(height)
	a.WeightPounds = fromPgFloat8(weight)
	a.CompetitiveLevel = fromPgInt4(level)
	if err := json.Unmarshal(teamsJSON, &a.Teams); err != nil {
		return model.Athlete{}, fmt.Errorf("decode teams: %w", err)
	}
	return a, nil
}

func (p *Postgres) queryAthletes(ctx context.Context, where string, args ...any) ([]model.Athlete, error) {
	rows, err := p.db.Query(ctx, athleteSelect+where+` ORDER BY a.created_at, a.id`, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []model.Athlete{}
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		out = append(out, a)
	}
	return out, translate(rows.Err())
}

// ListAthletes returns the organization's athletes in creation order.
func (p *Postgres) ListAthletes(ctx context.Context, orgID string) ([]model.Athlete, error) {
	return p.queryAthletes(ctx, ` WHERE a.organization_id = $1`, orgID)
}

// ListCandidates loads the matching snapshot for an organization.
func (p *Postgres) ListCandidates(ctx context.Context, orgID string) ([]matching.Candidate, error) {
	athletes, err := p.ListAthletes(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, len(athletes))
	for i, a := range athletes {
		out[i] = matching.Candidate{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, Teams: a.Teams}
	}
	return out, nil
}

func (p *Postgres) GetAthlete(ctx context.Context, id string) (model.Athlete, error) {
	a, err := scanAthlete(p.db.QueryRow(ctx, athleteSelect+` WHERE a.id = $1`, toPgUUID(id)))
	if err != nil {
		return model.Athlete{}, translate(err)
	}
	return a, nil
}

func (p *Postgres) CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	var id pgtype.UUID
	err := p.db.QueryRow(ctx, `
		INSERT INTO athletes (
			organization_id, first_name, last_name, birth_date, birth_year,
			graduation_year, gender, emails, phone_numbers, sports,
			height_inches, weight_pounds, school, competitive_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		a.OrganizationID, a.FirstName, a.LastName, toPgDate(a.BirthDate), toPgInt4(a.BirthYear),
		toPgInt4(a.GraduationYear), toPgText(a.Gender), nonNil(a.Emails), nonNil(a.PhoneNumbers), nonNil(a.Sports),
		toPgFloat8(a.HeightInches), toPgFloat8(a.WeightPounds), toPgText(a.School), a.CompetitiveLevel,
	).Scan(&id, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Athlete{}, translate(err)
	}
	a.ID = fromPgUUID(id)
	a.Teams = []model.TeamRef{}
	return a, nil
}

func (p *Postgres) UpdateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE athletes SET
			first_name = $2, last_name = $3, birth_date = $4, birth_year = $5,
			graduation_year = $6, gender = $7, emails = $8, phone_numbers = $9,
			sports = $10, height_inches = $11, weight_pounds = $12, school = $13,
			competitive_level = $14, updated_at = now()
		WHERE id = $1`,
		toPgUUID(a.ID), a.FirstName, a.LastName, toPgDate(a.BirthDate), toPgInt4(a.BirthYear),
		toPgInt4(a.GraduationYear), toPgText(a.Gender), nonNil(a.Emails), nonNil(a.PhoneNumbers),
		nonNil(a.Sports), toPgFloat8(a.HeightInches), toPgFloat8(a.WeightPounds), toPgText(a.School),
		a.CompetitiveLevel,
	)
	if err != nil {
		return model.Athlete{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return model.Athlete{}, ErrNotFound
	}
	return p.GetAthlete(ctx, a.ID)
}

// ---------------------------------------------------------------------------
// Measurements
// ---------------------------------------------------------------------------

func (p *Postgres) CreateMeasurement(ctx context.Context, m model.Measurement) (model.Measurement, error) {
	var id pgtype.UUID
	err := p.db.QueryRow(ctx, `
		INSERT INTO measurements (
			athlete_id, team_id, date, metric, value, units,
			fly_in_distance, age, notes, submitted_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		toPgUUID(m.AthleteID), toPgUUID(m.TeamID), pgtype.Date{Time: m.Date, Valid: true}, m.Metric, m.Value,
		toPgText(m.Units), toPgFloat8(m.FlyInDistance), toPgInt4(m.Age), toPgText(m.Notes), toPgText(m.SubmittedBy),
	).Scan(&id, &m.CreatedAt)
	if err != nil {
		return model.Measurement{}, translate(err)
	}
	m.ID = fromPgUUID(id)
	return m, nil
}

func (p *Postgres) ListMeasurements(ctx context.Context, athleteID string) ([]model.Measurement, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, athlete_id, team_id, date, metric, value, units,
		       fly_in_distance, age, notes, submitted_by, created_at
		FROM measurements
		WHERE athlete_id = $1
		ORDER BY date, created_at`, toPgUUID(athleteID))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []model.Measurement{}
	for rows.Next() {
		var (
			m                       model.Measurement
			id, athlete, team       pgtype.UUID
			date                    pgtype.Date
			units, notes, submitted pgtype.Text
			flyIn                   pgtype.Float8
			age                     pgtype.Int4
		)
		if err := rows.Scan(&id, &athlete, &team, &date, &m.Metric, &m.Value, &units,
			&flyIn, &age, &notes, &submitted, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.ID, m.AthleteID, m.TeamID = fromPgUUID(id), fromPgUUID(athlete), fromPgUUID(team)
		m.Date = date.Time
		m.Units, m.Notes, m.SubmittedBy = fromPgText(units), fromPgText(notes), fromPgText(submitted)
		m.FlyInDistance = fromPgFloat8(flyIn)
		m.Age = fromPgInt4(age)
		out = append(out, m)
	}
	return out, translate(rows.Err())
}

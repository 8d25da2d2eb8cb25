package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
)

// ReviewStore persists review items in Postgres. Structured fields are stored
// as JSONB so an item reads back exactly as it was queued.
type ReviewStore struct {
	db DBTX
}

// NewReviewStore returns a review.Store over db.
func NewReviewStore(db DBTX) *ReviewStore {
	return &ReviewStore{db: db}
}

var _ review.Store = (*ReviewStore)(nil)

const reviewSelect = `
	SELECT id, type, import_id, organization_id, original_data, matching_criteria,
	       suggested_match, alternatives, reason, options, status, created_by,
	       created_at, action, decided_by, decided_at, resolved_athlete_id, notes
	FROM review_items`

func (s *ReviewStore) Insert(ctx context.Context, it review.Item) error {
	original, err := json.Marshal(it.OriginalData)
	if err != nil {
		return fmt.Errorf("encode original data: %w", err)
	}
	criteria, err := json.Marshal(it.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	var suggested []byte
	if it.SuggestedMatch != nil {
		if suggested, err = json.Marshal(it.SuggestedMatch); err != nil {
			return fmt.Errorf("encode suggested match: %w", err)
		}
	}
	alternatives, err := json.Marshal(it.Alternatives)
	if err != nil {
		return fmt.Errorf("encode alternatives: %w", err)
	}
	options, err := json.Marshal(it.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO review_items (
			id, type, import_id, organization_id, original_data, matching_criteria,
			suggested_match, alternatives, reason, options, status, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		toPgUUID(it.ID), string(it.Type), toPgText(it.ImportID), it.OrganizationID, original, criteria,
		suggested, alternatives, it.Reason, options, string(it.Status), it.CreatedBy, it.CreatedAt,
	)
	return translate(err)
}

func (s *ReviewStore) Get(ctx context.Context, id string) (review.Item, error) {
	it, err := scanReviewItem(s.db.QueryRow(ctx, reviewSelect+` WHERE id = $1`, toPgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return review.Item{}, review.ErrNotFound
	}
	if err != nil {
		return review.Item{}, translate(err)
	}
	return it, nil
}

func (s *ReviewStore) ListPending(ctx context.Context, orgID string) ([]review.Item, error) {
	rows, err := s.db.Query(ctx, reviewSelect+`
		WHERE status = 'pending' AND ($1 = '' OR organization_id = $1)
		ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []review.Item{}
	for rows.Next() {
		it, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		out = append(out, it)
	}
	return out, translate(rows.Err())
}

// Decide applies t only while the item is still pending. The status check
// and the write are one statement, so two reviewers cannot both win.
func (s *ReviewStore) Decide(ctx context.Context, t review.Transition) (review.Item, error) {
	it, err := scanReviewItem(s.db.QueryRow(ctx, `
		UPDATE review_items SET
			status = $2, action = $3, decided_by = $4, decided_at = $5,
			resolved_athlete_id = $6, notes = $7
		WHERE id = $1 AND status = 'pending'
		RETURNING id, type, import_id, organization_id, original_data, matching_criteria,
		          suggested_match, alternatives, reason, options, status, created_by,
		          created_at, action, decided_by, decided_at, resolved_athlete_id, notes`,
		toPgUUID(t.ItemID), string(t.Status), string(t.Action), t.DecidedBy, t.DecidedAt,
		toPgText(t.ResolvedAthleteID), toPgText(t.Notes),
	))
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return review.Item{}, translate(err)
	}

	// Nothing updated: either the id is unknown or another decision won.
	if _, getErr := s.Get(ctx, t.ItemID); getErr != nil {
		return review.Item{}, getErr
	}
	return review.Item{}, review.ErrAlreadyDecided
}

func scanReviewItem(row pgx.Row) (review.Item, error) {
	var (
		it                            review.Item
		id                            pgtype.UUID
		typ, status                   string
		importID, action, decidedBy   pgtype.Text
		resolved, notes               pgtype.Text
		decidedAt                     pgtype.Timestamptz
		original, criteria, suggested []byte
		alternatives, options         []byte
	)
	err := row.Scan(&id, &typ, &importID, &it.OrganizationID, &original, &criteria,
		&suggested, &alternatives, &it.Reason, &options, &status, &it.CreatedBy,
		&it.CreatedAt, &action, &decidedBy, &decidedAt, &resolved, &notes)
	if err != nil {
		return review.Item{}, err
	}

	it.ID = fromPgUUID(id)
	it.Type = review.ItemType(typ)
	it.Status = review.Status(status)
	it.ImportID = fromPgText(importID)
	it.Action = review.Action(fromPgText(action))
	it.DecidedBy = fromPgText(decidedBy)
	it.ResolvedAthleteID = fromPgText(resolved)
	it.Notes = fromPgText(notes)
	if decidedAt.Valid {
		t := decidedAt.Time
		it.DecidedAt = &t
	}

	if err := json.Unmarshal(original, &it.OriginalData); err != nil {
		return review.Item{}, fmt.Errorf("decode original data: %w", err)
	}
	if err := json.Unmarshal(criteria, &it.Criteria); err != nil {
		return review.Item{}, fmt.Errorf("decode criteria: %w", err)
	}
	if len(suggested) > 0 {
		if err := json.Unmarshal(suggested, &it.SuggestedMatch); err != nil {
			return review.Item{}, fmt.Errorf("decode suggested match: %w", err)
		}
	}
	if err := json.Unmarshal(alternatives, &it.Alternatives); err != nil {
		return review.Item{}, fmt.Errorf("decode alternatives: %w", err)
	}
	if err := json.Unmarshal(options, &it.Options); err != nil {
		return review.Item{}, fmt.Errorf("decode options: %w", err)
	}
	return it, nil
}

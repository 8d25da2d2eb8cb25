// Package review holds import rows whose athlete match was too uncertain to
// commit automatically, until a person approves, redirects or rejects them.
//
// Every item moves exactly once from pending to a terminal state:
//
//	pending --approve / select_alternative--> approved
//	pending --reject-->                       rejected
//
// Terminal items are kept for audit and never change again. The queue itself
// never writes athletes or measurements: the caller performs the deferred
// commit with the athlete id the decision resolved to.
package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
	"github.com/johnahull/AthleteMetrics-sub002/internal/metrics"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

// ItemType is the kind of record waiting for review.
type ItemType string

const (
	TypeAthlete     ItemType = "athlete"
	TypeMeasurement ItemType = "measurement"
)

// Status is the lifecycle state of an item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Action is a reviewer decision.
type Action string

const (
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionSelectAlternative Action = "select_alternative"
)

var (
	ErrNotFound           = errors.New("review item not found")
	ErrAlreadyDecided     = errors.New("review item already decided")
	ErrSelectionRequired  = errors.New("selectedAthleteId is required for select_alternative")
	ErrUnknownAlternative = errors.New("selected athlete is not one of the item's alternatives")
	ErrNoSuggestion       = errors.New("item has no suggested match to approve")
	ErrInvalidAction      = errors.New("invalid review action")
)

// CommitOptions is the part of the import options the deferred commit needs.
type CommitOptions struct {
	Mode           string `json:"mode"`
	TeamHandling   string `json:"teamHandling"`
	UpdateExisting bool   `json:"updateExisting,omitempty"`
}

// Item is one queued row.
type Item struct {
	ID                string            `json:"id"`
	Type              ItemType          `json:"type"`
	ImportID          string            `json:"importId,omitempty"`
	OrganizationID    string            `json:"organizationId"`
	OriginalData      sheet.Row         `json:"originalData"`
	Criteria          matching.Criteria `json:"matchingCriteria"`
	SuggestedMatch    *matching.Scored  `json:"suggestedMatch,omitempty"`
	Alternatives      []matching.Scored `json:"alternatives"`
	Reason            string            `json:"reason"`
	Options           CommitOptions     `json:"options"`
	Status            Status            `json:"status"`
	CreatedBy         string            `json:"createdBy"`
	CreatedAt         time.Time         `json:"createdAt"`
	Action            Action            `json:"action,omitempty"`
	DecidedBy         string            `json:"decidedBy,omitempty"`
	DecidedAt         *time.Time        `json:"decidedAt,omitempty"`
	ResolvedAthleteID string            `json:"resolvedAthleteId,omitempty"`
	Notes             string            `json:"notes,omitempty"`
}

// NewItem is the input to AddItem.
type NewItem struct {
	Type           ItemType
	ImportID       string
	OrganizationID string
	OriginalData   sheet.Row
	Criteria       matching.Criteria
	SuggestedMatch *matching.Scored
	Alternatives   []matching.Scored
	Reason         string
	Options        CommitOptions
	CreatedBy      string
}

// Decision is a reviewer's call on one item.
type Decision struct {
	ItemID            string `json:"itemId"`
	Action            Action `json:"action"`
	SelectedAthleteID string `json:"selectedAthleteId,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// Transition is the state change a store applies atomically.
type Transition struct {
	ItemID            string
	Status            Status
	Action            Action
	DecidedBy         string
	DecidedAt         time.Time
	ResolvedAthleteID string
	Notes             string
}

// Store persists items. Decide must apply the transition only if the item is
// still pending, returning ErrAlreadyDecided otherwise and ErrNotFound for
// unknown ids.
type Store interface {
	Insert(ctx context.Context, item Item) error
	Get(ctx context.Context, id string) (Item, error)
	ListPending(ctx context.Context, organizationID string) ([]Item, error)
	Decide(ctx context.Context, t Transition) (Item, error)
}

// Queue applies the review state machine over a Store.
type Queue struct {
	store   Store
	metrics *metrics.Manager
	now     func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics tracks pending items and decisions.
func WithMetrics(m *metrics.Manager) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates a queue over s.
func NewQueue(s Store, opts ...Option) *Queue {
	q := &Queue{store: s, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// AddItem stores a new pending item.
func (q *Queue) AddItem(ctx context.Context, in NewItem) (Item, error) {
	item := Item{
		ID:             uuid.NewString(),
		Type:           in.Type,
		ImportID:       in.ImportID,
		OrganizationID: in.OrganizationID,
		OriginalData:   in.OriginalData,
		Criteria:       in.Criteria,
		SuggestedMatch: in.SuggestedMatch,
		Alternatives:   slices.Clone(in.Alternatives),
		Reason:         in.Reason,
		Options:        in.Options,
		Status:         StatusPending,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      q.now().UTC(),
	}
	if item.Alternatives == nil {
		item.Alternatives = []matching.Scored{}
	}

	if err := q.store.Insert(ctx, item); err != nil {
		return Item{}, fmt.Errorf("insert review item: %w", err)
	}
	q.metrics.ReviewEnqueued()
	return item, nil
}

// PendingItems lists pending items of an organization, or of every
// organization when organizationID is empty, oldest first.
func (q *Queue) PendingItems(ctx context.Context, organizationID string) ([]Item, error) {
	items, err := q.store.ListPending(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list pending review items: %w", err)
	}
	return items, nil
}

// Get returns an item in any state.
func (q *Queue) Get(ctx context.Context, id string) (Item, error) {
	return q.store.Get(ctx, id)
}

// ProcessDecision applies d to its item. A decision on an item that is no
// longer pending fails with ErrAlreadyDecided and leaves the item unchanged.
func (q *Queue) ProcessDecision(ctx context.Context, d Decision, decidedBy string) (Item, error) {
	item, err := q.store.Get(ctx, d.ItemID)
	if err != nil {
		return Item{}, err
	}
	if item.Status != StatusPending {
		return Item{}, ErrAlreadyDecided
	}

	t := Transition{
		ItemID:    item.ID,
		Action:    d.Action,
		DecidedBy: decidedBy,
		DecidedAt: q.now().UTC(),
		Notes:     d.Notes,
	}

	switch d.Action {
	case ActionApprove:
		if item.SuggestedMatch == nil {
			return Item{}, ErrNoSuggestion
		}
		t.Status = StatusApproved
		t.ResolvedAthleteID = item.SuggestedMatch.Candidate.ID

	case ActionSelectAlternative:
		if d.SelectedAthleteID == "" {
			return Item{}, ErrSelectionRequired
		}
		if !item.offers(d.SelectedAthleteID) {
			return Item{}, fmt.Errorf("%w: %s", ErrUnknownAlternative, d.SelectedAthleteID)
		}
		t.Status = StatusApproved
		t.ResolvedAthleteID = d.SelectedAthleteID

	case ActionReject:
		t.Status = StatusRejected

	default:
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidAction, d.Action)
	}

	decided, err := q.store.Decide(ctx, t)
	if err != nil {
		return Item{}, err
	}
	q.metrics.ReviewDecided(string(d.Action))
	return decided, nil
}

// offers reports whether athleteID is the suggestion or one of the alternatives.
func (it Item) offers(athleteID string) bool {
	if it.SuggestedMatch != nil && it.SuggestedMatch.Candidate.ID == athleteID {
		return true
	}
	return slices.ContainsFunc(it.Alternatives, func(s matching.Scored) bool {
		return s.Candidate.ID == athleteID
	})
}

// IsTerminal reports whether the item has been decided.
func (it Item) IsTerminal() bool {
	return it.Status == StatusApproved || it.Status == StatusRejected
}

// ParseAction validates a wire value.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionReject, ActionSelectAlternative:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

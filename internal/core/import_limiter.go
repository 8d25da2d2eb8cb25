package core

// import_limiter.go admits a bounded number of imports at a time and keeps a
// record of the ones in flight.
//
// A run holds its organization's matching snapshot and a database connection
// until it returns. Admission waits up to maxWait for a free slot, then fails
// with ErrTooManyImports. The running set backs GET /api/import/status and
// lets shutdown wait for in-flight imports.

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all import slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is the default limit for parallel imports.
const DefaultMaxConcurrentImports = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunningImport describes an admitted import.
type RunningImport struct {
	ImportID       string    `json:"import_id"`
	OrganizationID string    `json:"organization_id"`
	Kind           string    `json:"kind"`
	ActorID        string    `json:"actor_id"`
	Rows           int       `json:"rows"`
	StartedAt      time.Time `json:"started_at"`
}

// ImportLimiterStatus is a snapshot of the limiter.
type ImportLimiterStatus struct {
	Active        int             `json:"active"`
	Available     int             `json:"available"`
	MaxConcurrent int             `json:"max_concurrent"`
	Running       []RunningImport `json:"running"`
}

// ImportLimiter hands out import slots.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	now     func() time.Time

	mu      sync.Mutex
	seq     uint64
	running map[uint64]RunningImport
	idle    chan struct{} // closed while nothing runs
}

// NewImportLimiter allows maxConcurrent imports at once. Values <= 0 fall
// back to the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		now:     time.Now,
		running: make(map[uint64]RunningImport),
		idle:    idle,
	}
}

// Acquire waits for a slot and records imp as running. The returned function
// gives the slot back; only its first call has an effect.
func (l *ImportLimiter) Acquire(ctx context.Context, imp RunningImport) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooManyImports
	}

	if imp.StartedAt.IsZero() {
		imp.StartedAt = l.now()
	}

	l.mu.Lock()
	if len(l.running) == 0 {
		l.idle = make(chan struct{})
	}
	l.seq++
	key := l.seq
	l.running[key] = imp
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.release(key) }) }, nil
}

func (l *ImportLimiter) release(key uint64) {
	l.mu.Lock()
	delete(l.running, key)
	if len(l.running) == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
	<-l.slots
}

// WaitForDrain blocks until no import is running or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status lists the running imports, oldest first.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	running := make([]RunningImport, 0, len(l.running))
	for _, imp := range l.running {
		running = append(running, imp)
	}
	l.mu.Unlock()

	slices.SortFunc(running, func(a, b RunningImport) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ImportID, b.ImportID))
	})
	return ImportLimiterStatus{
		Active:        len(running),
		Available:     cap(l.slots) - len(running),
		MaxConcurrent: cap(l.slots),
		Running:       running,
	}
}

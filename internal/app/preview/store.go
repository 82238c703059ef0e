// Package preview manages client-local draft transactions that expire on
// their own unless the user saves them.
//
// Lifecycle of one preview:
//  1. Add puts it in the live set with a fixed time-to-live
//  2. It ends in exactly one way: saved (promoted to a real transaction),
//     removed by the user, or evicted by the sweep after expiry
//  3. Its id is never reused
package preview

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

var errNoCreator = errors.New("preview: no transaction creator configured")

// Creator persists a promoted preview. Usually the finance collaborator.
type Creator interface {
	CreateTransaction(ctx context.Context, c domain.TransactionCreate) (*domain.Transaction, error)
}

// Invalidator drops cached reads that a promotion makes stale.
type Invalidator interface {
	InvalidateTransactions()
	InvalidateDailyBalance()
}

// Observer receives lifecycle events. Called outside the store lock.
type Observer func(domain.PreviewEvent)

// Config controls preview lifetime and eviction cadence.
type Config struct {
	TTL           time.Duration    // Lifetime of a preview (default: 60s, not renewable)
	SweepInterval time.Duration    // Eviction cadence (default: 1s)
	Now           func() time.Time // Clock (default: time.Now)
}

// DefaultConfig returns the standard 60-second preview lifetime.
func DefaultConfig() Config {
	return Config{
		TTL:           60 * time.Second,
		SweepInterval: time.Second,
		Now:           time.Now,
	}
}

// Store is the single owner of ephemeral preview state for a session.
// Readers get copies; all mutations go through its methods.
type Store struct {
	mu          sync.Mutex
	cfg         Config
	creator     Creator
	invalidator Invalidator
	observers   []Observer
	previews    []domain.PreviewTransaction // insertion order
	saving      map[string]struct{}         // ids with a promotion in flight
}

// New creates an empty store. creator may be nil if Save is never used.
func New(cfg Config, creator Creator) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Store{
		cfg:     cfg,
		creator: creator,
		saving:  make(map[string]struct{}),
	}
}

// SetInvalidator sets the cache invalidated after a successful promotion.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.mu.Lock()
	s.invalidator = inv
	s.mu.Unlock()
}

// Subscribe registers an observer for lifecycle events.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Config returns the store's effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Add creates a preview from payload and appends it to the live set.
// It always succeeds; validation is the caller's job.
func (s *Store) Add(payload domain.TransactionCreate) domain.PreviewTransaction {
	now := s.cfg.Now()
	p := domain.PreviewTransaction{
		ID:              domain.PreviewIDPrefix + uuid.NewString(),
		Description:     payload.Description,
		Amount:          payload.Amount,
		Type:            payload.Type,
		TransactionDate: payload.TransactionDate,
		CategoryID:      payload.CategoryID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.TTL),
	}

	s.mu.Lock()
	s.previews = append(s.previews, p)
	observers := s.snapshotObservers()
	s.updateGauge()
	s.mu.Unlock()

	s.emit(observers, domain.PreviewEvent{Type: domain.PreviewAdded, Preview: p, At: now})
	return p
}

// Remove drops a preview by id. Idempotent; reports whether anything was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	p, ok := s.removeLocked(id)
	observers := s.snapshotObservers()
	s.mu.Unlock()

	if ok {
		s.emit(observers, domain.PreviewEvent{Type: domain.PreviewRemoved, Preview: p, At: s.cfg.Now()})
	}
	return ok
}

// Get returns a live preview by id.
func (s *Store) Get(id string) (domain.PreviewTransaction, bool) {
	now := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.previews {
		if p.ID == id && p.Visible(now) {
			return p, true
		}
	}
	return domain.PreviewTransaction{}, false
}

// List returns a copy of every live preview in insertion order.
// Expired entries are filtered even if the sweep has not run yet.
func (s *Store) List() []domain.PreviewTransaction {
	now := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PreviewTransaction, 0, len(s.previews))
	for _, p := range s.previews {
		if p.Visible(now) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of live previews.
func (s *Store) Len() int {
	return len(s.List())
}

// Save promotes a preview into a real transaction.
//
// An unknown or expired id is a no-op (nil, nil). On collaborator failure the
// preview stays live and the error is returned unchanged so the caller can
// retry. On success the preview is removed first and only then are the
// transaction and daily-balance caches invalidated. The creator should be the
// uncached collaborator: one that invalidates on its own would let a reader
// see the new transaction while the preview is still listed.
func (s *Store) Save(ctx context.Context, id string) (*domain.Transaction, error) {
	now := s.cfg.Now()

	s.mu.Lock()
	var (
		p     domain.PreviewTransaction
		found bool
	)
	for _, cand := range s.previews {
		if cand.ID == id && cand.Visible(now) {
			p, found = cand, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return nil, nil
	}
	if _, busy := s.saving[id]; busy {
		s.mu.Unlock()
		return nil, domain.ErrPromotionInFlight
	}
	s.saving[id] = struct{}{}
	creator := s.creator
	s.mu.Unlock()

	if creator == nil {
		s.mu.Lock()
		delete(s.saving, id)
		s.mu.Unlock()
		return nil, errNoCreator
	}

	tx, err := creator.CreateTransaction(ctx, p.Create())

	s.mu.Lock()
	delete(s.saving, id)
	if err != nil {
		s.mu.Unlock()
		observability.PreviewPromotionFailures.Inc()
		log.Printf("[preview] promotion of %s failed: %v", id, err)
		return nil, err
	}
	s.removeLocked(id)
	inv := s.invalidator
	observers := s.snapshotObservers()
	s.mu.Unlock()

	if inv != nil {
		inv.InvalidateTransactions()
		inv.InvalidateDailyBalance()
	}

	ev := domain.PreviewEvent{Type: domain.PreviewPromoted, Preview: p, At: s.cfg.Now()}
	if tx != nil {
		ev.TransactionID = tx.ID
	}
	s.emit(observers, ev)
	return tx, nil
}

// ClearExpired evicts every preview with expiresAt <= now and returns them.
// Previews with a promotion in flight are left for Save to settle.
func (s *Store) ClearExpired() []domain.PreviewTransaction {
	now := s.cfg.Now()

	s.mu.Lock()
	var expired []domain.PreviewTransaction
	kept := s.previews[:0]
	for _, p := range s.previews {
		_, busy := s.saving[p.ID]
		if !p.Visible(now) && !busy {
			expired = append(expired, p)
			continue
		}
		kept = append(kept, p)
	}
	// Zero the tail so evicted entries do not linger in the backing array.
	for i := len(kept); i < len(s.previews); i++ {
		s.previews[i] = domain.PreviewTransaction{}
	}
	s.previews = kept
	observers := s.snapshotObservers()
	if len(expired) > 0 {
		s.updateGauge()
	}
	s.mu.Unlock()

	for _, p := range expired {
		log.Printf("[preview] %s expired and was removed", p.ID)
		s.emit(observers, domain.PreviewEvent{Type: domain.PreviewExpired, Preview: p, At: now})
	}
	return expired
}

// Run sweeps expired previews every SweepInterval. Blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ClearExpired()
		}
	}
}

// ─── Internal ───────────────────────────────────────────────────────────────

// removeLocked deletes id from the live set. Caller holds s.mu.
func (s *Store) removeLocked(id string) (domain.PreviewTransaction, bool) {
	for i, p := range s.previews {
		if p.ID == id {
			s.previews = append(s.previews[:i], s.previews[i+1:]...)
			s.updateGauge()
			return p, true
		}
	}
	return domain.PreviewTransaction{}, false
}

func (s *Store) snapshotObservers() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]Observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func (s *Store) updateGauge() {
	observability.PreviewsActive.Set(float64(len(s.previews)))
}

func (s *Store) emit(observers []Observer, ev domain.PreviewEvent) {
	observability.PreviewEvents.WithLabelValues(string(ev.Type)).Inc()
	for _, o := range observers {
		o(ev)
	}
}

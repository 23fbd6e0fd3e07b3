package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// SignalStore is an in-memory implementation of store.SignalStore.
type SignalStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*types.Signal
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		nextID: 1,
		data:   make(map[int64]*types.Signal),
	}
}

// Insert appends a new pending signal and returns its assigned id.
func (s *SignalStore) Insert(_ context.Context, sig *types.Signal) (int64, error) {
	if sig == nil {
		return 0, store.ErrInvalidInput
	}
	if err := sig.Validate(); err != nil {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sig
	cp.ID = s.nextID
	cp.Status = types.StatusPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.data[cp.ID] = &cp
	s.nextID++
	return cp.ID, nil
}

// PendingSignals returns all pending signals ordered by ascending id.
func (s *SignalStore) PendingSignals(_ context.Context) ([]*types.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Signal
	for _, sig := range s.data {
		if sig.Status == types.StatusPending {
			cp := *sig
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MarkExecuted transitions a pending signal to executed.
func (s *SignalStore) MarkExecuted(ctx context.Context, id int64) error {
	return s.transition(id, types.StatusExecuted)
}

// MarkFailed transitions a pending signal to failed.
func (s *SignalStore) MarkFailed(ctx context.Context, id int64) error {
	return s.transition(id, types.StatusFailed)
}

func (s *SignalStore) transition(id int64, to types.SignalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[id]
	if !ok {
		return store.ErrNotFound
	}
	// Terminal signals are never moved again.
	if sig.Status != types.StatusPending {
		return nil
	}
	sig.Status = to
	return nil
}

// HasPendingOpen reports whether an unexecuted open signal exists for symbol.
func (s *SignalStore) HasPendingOpen(_ context.Context, symbol string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sig := range s.data {
		if sig.Status == types.StatusPending && sig.Action == types.ActionOpen && sig.Symbol == symbol {
			return true, nil
		}
	}
	return false, nil
}

// ConsumePendingOpen marks any pending open signals for symbol as executed.
func (s *SignalStore) ConsumePendingOpen(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range s.data {
		if sig.Status == types.StatusPending && sig.Action == types.ActionOpen && sig.Symbol == symbol {
			sig.Status = types.StatusExecuted
		}
	}
	return nil
}

// RecentSignals returns up to limit signals ordered by descending id.
func (s *SignalStore) RecentSignals(_ context.Context, limit int) ([]*types.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Signal
	for _, sig := range s.data {
		cp := *sig
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PruneOlderThan deletes signals created before cutoff.
func (s *SignalStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, sig := range s.data {
		if sig.CreatedAt.Before(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}

var _ store.SignalStore = (*SignalStore)(nil)

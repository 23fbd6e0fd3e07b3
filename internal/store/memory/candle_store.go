package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// CandleStore is an in-memory implementation of store.CandleStore.
type CandleStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*types.Candle
	byTime map[int64]struct{} // unix timestamps already stored
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		nextID: 1,
		data:   make(map[int64]*types.Candle),
		byTime: make(map[int64]struct{}),
	}
}

// Insert appends a finished candle. Duplicate timestamps return ErrDuplicateKey.
func (s *CandleStore) Insert(_ context.Context, c *types.Candle) error {
	if c == nil {
		return store.ErrInvalidInput
	}
	if err := c.Validate(); err != nil {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := c.Timestamp.UTC().Unix()
	if _, exists := s.byTime[ts]; exists {
		return store.ErrDuplicateKey
	}

	cp := *c
	cp.ID = s.nextID
	s.data[cp.ID] = &cp
	s.byTime[ts] = struct{}{}
	s.nextID++
	return nil
}

// NextAfter returns the earliest candle with id greater than lastID.
func (s *CandleStore) NextAfter(_ context.Context, lastID int64) (*types.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *types.Candle
	for _, c := range s.data {
		if c.ID <= lastID {
			continue
		}
		if best == nil || c.ID < best.ID {
			best = c
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// RecentCandles returns up to limit candles ordered by descending id.
func (s *CandleStore) RecentCandles(_ context.Context, limit int) ([]*types.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Candle
	for _, c := range s.data {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PruneOlderThan deletes candles with timestamps before cutoff.
func (s *CandleStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, c := range s.data {
		if c.Timestamp.Before(cutoff) {
			delete(s.byTime, c.Timestamp.UTC().Unix())
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}

var _ store.CandleStore = (*CandleStore)(nil)

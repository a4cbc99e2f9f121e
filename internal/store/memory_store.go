package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

// MemoryStore keeps everything in maps. Used by tests and by one-off
// backfill runs that only want the fetch side effects.
type MemoryStore struct {
	mu    sync.RWMutex
	draws map[int]domain.Draw
	shops map[int][]domain.WinningShop
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		draws: make(map[int]domain.Draw),
		shops: make(map[int][]domain.WinningShop),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetDraw(_ context.Context, round int) (*domain.Draw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.draws[round]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryStore) UpsertDraw(_ context.Context, draw *domain.Draw) error {
	if err := draw.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draws[draw.Round] = *draw
	return nil
}

func (m *MemoryStore) CountShops(_ context.Context, round int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shops[round]), nil
}

func (m *MemoryStore) ReplaceShops(_ context.Context, round int, shops []domain.WinningShop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(shops) == 0 {
		delete(m.shops, round)
		return nil
	}
	m.shops[round] = append([]domain.WinningShop(nil), shops...)
	return nil
}

func (m *MemoryStore) ShopsByRound(_ context.Context, round int) ([]domain.WinningShop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WinningShop(nil), m.shops[round]...), nil
}

func (m *MemoryStore) MaxRound(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for r := range m.draws {
		if r > max {
			max = r
		}
	}
	return max, nil
}

func (m *MemoryStore) AllRounds(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.draws))
	for r := range m.draws {
		out = append(out, r)
	}
	sort.Ints(out)
	return out, nil
}

package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// MemoryGuard keeps keys in a bounded LRU; the oldest keys are evicted first
// once size is reached. Suitable for a single process.
type MemoryGuard struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

func NewMemoryGuard(size int) (*MemoryGuard, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("idempotency cache: %w", err)
	}
	return &MemoryGuard{cache: cache, now: time.Now}, nil
}

// WithClock swaps the time source, for tests.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.now = now
	return g
}

func (g *MemoryGuard) Acquire(_ context.Context, key common.Hash, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if v, ok := g.cache.Get(key); ok && now.Before(v.(time.Time)) {
		return false, nil
	}
	g.cache.Add(key, now.Add(ttl))
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key common.Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Remove(key)
	return nil
}

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/signal-watch/signalwatch/internal/model"
)

// Memory is an in-process ResultCache with TTL eviction. It is the default
// when no persistent cache is configured.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates a memory cache. A zero ttl keeps entries for the process
// lifetime.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Memory{store: gocache.New(ttl, 10*time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) (*model.EntityReport, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, nil
	}
	report := v.(model.EntityReport)
	return &report, nil
}

func (m *Memory) Put(_ context.Context, key string, report *model.EntityReport) error {
	m.store.SetDefault(key, *report)
	return nil
}

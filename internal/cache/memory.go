package cache

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

// Memory is the process-local TableCache. Values and write timestamps live in two maps guarded
// by one mutex so no reader can observe one without the other.
type Memory struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	values    map[string]*datastore.Table
	writtenAt map[string]time.Time
	recorder  Recorder
}

// NewMemory constructs an in-process cache. A non-positive ttl falls back to DefaultTTL.
func NewMemory(ttl time.Duration, recorder Recorder) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:       ttl,
		now:       time.Now,
		values:    make(map[string]*datastore.Table),
		writtenAt: make(map[string]time.Time),
		recorder:  recorderOrNop(recorder),
	}
}

// WithClock swaps the time source; used by tests that step through the TTL.
func (c *Memory) WithClock(now func() time.Time) *Memory {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *Memory) Get(ctx context.Context, table string) (*datastore.Table, error) {
	start := time.Now()
	c.mu.Lock()
	ts, fresh := c.writtenAt[table]
	value, ok := c.values[table]
	if fresh && c.now().Sub(ts) >= c.ttl {
		fresh = false
	}
	if !fresh || !ok {
		delete(c.values, table)
		delete(c.writtenAt, table)
		c.mu.Unlock()
		c.recorder.RecordCacheOperation(false, time.Since(start))
		return nil, appErrors.ErrCacheMiss
	}
	out := cloneTable(value)
	c.mu.Unlock()
	c.recorder.RecordCacheOperation(true, time.Since(start))
	return out, nil
}

func (c *Memory) Put(ctx context.Context, table string, snapshot *datastore.Table) error {
	if snapshot == nil {
		return c.Invalidate(ctx, table)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[table] = cloneTable(snapshot)
	c.writtenAt[table] = c.now()
	return nil
}

func (c *Memory) Invalidate(ctx context.Context, table string) error {
	c.mu.Lock()
	delete(c.values, table)
	delete(c.writtenAt, table)
	c.mu.Unlock()
	c.recorder.RecordCacheInvalidation(table)
	return nil
}

func (c *Memory) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.values = make(map[string]*datastore.Table)
	c.writtenAt = make(map[string]time.Time)
	c.mu.Unlock()
	c.recorder.RecordCacheInvalidation("*")
	return nil
}

func (c *Memory) Probe(ctx context.Context, table string) (Presence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, value := c.values[table]
	_, ts := c.writtenAt[table]
	return Presence{Value: value, Timestamp: ts}, nil
}

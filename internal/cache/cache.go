// Package cache holds the per-table snapshot cache that sits in front of datastore reads.
package cache

import (
	"context"
	"time"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
)

// DefaultTTL bounds how long a table snapshot is served without rereading the store.
const DefaultTTL = 5 * time.Minute

// TableCache caches whole-table snapshots keyed by table name. Get reports a miss with
// appErrors.ErrCacheMiss. Invalidate removes the rows and the freshness timestamp together.
type TableCache interface {
	Get(ctx context.Context, table string) (*datastore.Table, error)
	Put(ctx context.Context, table string, snapshot *datastore.Table) error
	Invalidate(ctx context.Context, table string) error
	InvalidateAll(ctx context.Context) error
}

// Presence describes what a cache holds for one table.
type Presence struct {
	Value     bool `json:"value"`
	Timestamp bool `json:"timestamp"`
}

// Empty reports whether neither the rows nor the timestamp are held.
func (p Presence) Empty() bool {
	return !p.Value && !p.Timestamp
}

// Prober inspects raw cache state without the freshness rules Get applies.
type Prober interface {
	Probe(ctx context.Context, table string) (Presence, error)
}

// Recorder receives cache instrumentation.
type Recorder interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	RecordCacheInvalidation(table string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheOperation(bool, time.Duration) {}
func (nopRecorder) RecordCacheInvalidation(string) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func cloneTable(t *datastore.Table) *datastore.Table {
	if t == nil {
		return nil
	}
	out := &datastore.Table{
		Name:   t.Name,
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

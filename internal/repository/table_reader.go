package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/cache"
	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

// TableReader serves whole-table reads through the table cache. It fills the cache on a miss
// and never invalidates; invalidation belongs to the write paths in the service layer.
type TableReader struct {
	store  datastore.Store
	cache  cache.TableCache
	logger *zap.Logger
}

// NewTableReader constructs a read-through reader. A nil cache reads the store every time.
func NewTableReader(store datastore.Store, tableCache cache.TableCache, logger *zap.Logger) *TableReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TableReader{store: store, cache: tableCache, logger: logger}
}

// Load returns the table snapshot, from cache when fresh.
func (r *TableReader) Load(ctx context.Context, table string) (*datastore.Table, error) {
	if r.cache != nil {
		snapshot, err := r.cache.Get(ctx, table)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			r.logger.Warn("table cache get failed", zap.String("table", table), zap.Error(err))
		}
	}

	snapshot, err := r.store.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, table, snapshot); err != nil {
			r.logger.Warn("table cache put failed", zap.String("table", table), zap.Error(err))
		}
	}
	return snapshot, nil
}

// tableBinder resolves a schema against the live header of each table it touches.
type tableBinder struct {
	store  datastore.Store
	reader *TableReader
	schema *datastore.Schema

	mu       sync.Mutex
	bindings map[string]*datastore.Binding
}

func newTableBinder(store datastore.Store, reader *TableReader, schema *datastore.Schema) *tableBinder {
	return &tableBinder{store: store, reader: reader, schema: schema, bindings: make(map[string]*datastore.Binding)}
}

// ensure creates the table when absent and validates its header.
func (b *tableBinder) ensure(ctx context.Context, table string) (*datastore.Binding, error) {
	b.mu.Lock()
	binding, ok := b.bindings[table]
	b.mu.Unlock()
	if ok {
		return binding, nil
	}

	header, err := b.store.EnsureTable(ctx, table, b.schema.Columns())
	if err != nil {
		return nil, err
	}
	binding, err = b.schema.Bind(header)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, err)
	}

	b.mu.Lock()
	b.bindings[table] = binding
	b.mu.Unlock()
	return binding, nil
}

// snapshot loads the table and binds its header. A missing table reads as empty.
func (b *tableBinder) snapshot(ctx context.Context, table string) (*datastore.Table, *datastore.Binding, error) {
	snap, err := b.reader.Load(ctx, table)
	if err != nil {
		if errors.Is(err, datastore.ErrTableNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	binding, err := b.schema.Bind(snap.Header)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", table, err)
	}
	return snap, binding, nil
}

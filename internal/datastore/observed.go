package datastore

import (
	"context"
	"time"
)

// Observer receives timing for every store call, labelled "<op>:<table>".
type Observer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type observedStore struct {
	next Store
	obs  Observer
}

// WithObserver wraps s so each call is timed. A nil observer returns s unchanged.
func WithObserver(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observedStore{next: s, obs: obs}
}

func (o *observedStore) observe(op, table string, start time.Time) {
	o.obs.ObserveDBQuery(op+":"+table, time.Since(start))
}

func (o *observedStore) ReadTable(ctx context.Context, table string) (*Table, error) {
	defer o.observe("read", table, time.Now())
	return o.next.ReadTable(ctx, table)
}

func (o *observedStore) AppendRow(ctx context.Context, table string, row []string) error {
	defer o.observe("append", table, time.Now())
	return o.next.AppendRow(ctx, table, row)
}

func (o *observedStore) UpdateRow(ctx context.Context, table, id string, row []string) error {
	defer o.observe("update", table, time.Now())
	return o.next.UpdateRow(ctx, table, id, row)
}

func (o *observedStore) DeleteRow(ctx context.Context, table, id string) error {
	defer o.observe("delete", table, time.Now())
	return o.next.DeleteRow(ctx, table, id)
}

func (o *observedStore) EnsureTable(ctx context.Context, table string, header []string) ([]string, error) {
	defer o.observe("ensure", table, time.Now())
	return o.next.EnsureTable(ctx, table, header)
}

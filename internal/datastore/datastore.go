// Package datastore defines the row-oriented table store the registration engine runs on.
// A store offers whole-table reads and single-row append, update and delete. There are no
// multi-row transactions and no locking; callers compose those guarantees themselves.
package datastore

import (
	"context"
	"errors"
)

// IDColumn is the column every table keys its rows by.
const IDColumn = "id"

var (
	ErrTableNotFound = errors.New("datastore: table not found")
	ErrRowNotFound   = errors.New("datastore: row not found")
	ErrDuplicateRow  = errors.New("datastore: duplicate row id")
	ErrNoIDColumn    = errors.New("datastore: header has no id column")
)

// Table is a full snapshot of one logical table. Rows are positional and align with Header.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// IDIndex returns the position of the id column, or -1.
func (t *Table) IDIndex() int {
	if t == nil {
		return -1
	}
	return indexOf(t.Header, IDColumn)
}

// Store is the data store collaborator.
type Store interface {
	// ReadTable returns every row of the table; never a partial read.
	ReadTable(ctx context.Context, table string) (*Table, error)
	// AppendRow adds a new row. The id cell must be unique within the table.
	AppendRow(ctx context.Context, table string, row []string) error
	// UpdateRow overwrites the whole row keyed by id.
	UpdateRow(ctx context.Context, table, id string, row []string) error
	// DeleteRow removes the row keyed by id.
	DeleteRow(ctx context.Context, table, id string) error
	// EnsureTable creates the table with header when absent and returns the live header.
	EnsureTable(ctx context.Context, table string, header []string) ([]string, error)
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

func rowID(header, row []string) (string, error) {
	idx := indexOf(header, IDColumn)
	if idx < 0 {
		return "", ErrNoIDColumn
	}
	if idx >= len(row) || row[idx] == "" {
		return "", errors.New("datastore: row has no id")
	}
	return row[idx], nil
}

func cloneRow(row []string) []string {
	return append([]string(nil), row...)
}

package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const postgresSchemaDDL = `CREATE TABLE IF NOT EXISTS datastore_tables (
    name TEXT PRIMARY KEY,
    columns TEXT[] NOT NULL
);
CREATE TABLE IF NOT EXISTS datastore_rows (
    table_name TEXT NOT NULL REFERENCES datastore_tables(name),
    row_id TEXT NOT NULL,
    seq BIGSERIAL,
    cells TEXT[] NOT NULL,
    PRIMARY KEY (table_name, row_id)
);`

// PostgresStore emulates header-plus-rows tables on PostgreSQL. Each logical row is a text array
// so the store stays schema-agnostic like the spreadsheet it replaces.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the backing tables when absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchemaDDL); err != nil {
		return fmt.Errorf("migrate datastore: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadTable(ctx context.Context, table string) (*Table, error) {
	header, err := s.header(ctx, table)
	if err != nil {
		return nil, err
	}
	const query = `SELECT cells FROM datastore_rows WHERE table_name = $1 ORDER BY seq ASC`
	rows, err := s.db.QueryxContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", table, err)
	}
	defer rows.Close()

	out := &Table{Name: table, Header: header}
	for rows.Next() {
		var cells pq.StringArray
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", table, err)
		}
		out.Rows = append(out.Rows, []string(cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", table, err)
	}
	return out, nil
}

func (s *PostgresStore) AppendRow(ctx context.Context, table string, row []string) error {
	header, err := s.header(ctx, table)
	if err != nil {
		return err
	}
	id, err := rowID(header, row)
	if err != nil {
		return err
	}
	const query = `INSERT INTO datastore_rows (table_name, row_id, cells) VALUES ($1, $2, $3) ON CONFLICT (table_name, row_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, table, id, pq.StringArray(row))
	if err != nil {
		return fmt.Errorf("append row to %s: %w", table, err)
	}
	return expectOne(res, ErrDuplicateRow)
}

func (s *PostgresStore) UpdateRow(ctx context.Context, table, id string, row []string) error {
	const query = `UPDATE datastore_rows SET cells = $3 WHERE table_name = $1 AND row_id = $2`
	res, err := s.db.ExecContext(ctx, query, table, id, pq.StringArray(row))
	if err != nil {
		return fmt.Errorf("update row %s in %s: %w", id, table, err)
	}
	return expectOne(res, ErrRowNotFound)
}

func (s *PostgresStore) DeleteRow(ctx context.Context, table, id string) error {
	const query = `DELETE FROM datastore_rows WHERE table_name = $1 AND row_id = $2`
	res, err := s.db.ExecContext(ctx, query, table, id)
	if err != nil {
		return fmt.Errorf("delete row %s from %s: %w", id, table, err)
	}
	return expectOne(res, ErrRowNotFound)
}

func (s *PostgresStore) EnsureTable(ctx context.Context, table string, header []string) ([]string, error) {
	if indexOf(header, IDColumn) < 0 {
		return nil, ErrNoIDColumn
	}
	const query = `INSERT INTO datastore_tables (name, columns) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, table, pq.StringArray(header)); err != nil {
		return nil, fmt.Errorf("ensure table %s: %w", table, err)
	}
	return s.header(ctx, table)
}

func (s *PostgresStore) header(ctx context.Context, table string) ([]string, error) {
	const query = `SELECT columns FROM datastore_tables WHERE name = $1`
	var cols pq.StringArray
	if err := s.db.GetContext(ctx, &cols, query, table); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("load header of %s: %w", table, err)
	}
	return []string(cols), nil
}

func expectOne(res sql.Result, zero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return zero
	}
	return nil
}

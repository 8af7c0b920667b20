package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sardine-ai/go-remote-records/model"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore persists the snapshot in a Postgres table. A save deletes
// every row and inserts the new batch inside one transaction, so readers see
// either the old batch or the new one.
type PostgresStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	table string

	// schemaReady is set once the table exists; failed attempts are retried.
	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgresStore opens dsn with the pgx driver and checks the connection.
// table must be a plain SQL identifier.
func NewPostgresStore(dsn, table string) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, table: table}, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()

	if p.schemaReady {
		return nil
	}
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	position INTEGER PRIMARY KEY,
	id       INTEGER NOT NULL,
	content  TEXT    NOT NULL
)`, p.table))
	if err != nil {
		return err
	}
	p.schemaReady = true
	return nil
}

func (p *PostgresStore) GetData(ctx context.Context) ([]model.Record, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, &model.StoreError{Op: "schema", Err: err}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, content FROM %s ORDER BY position`, p.table))
	if err != nil {
		return nil, &model.StoreError{Op: "read", Err: err}
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var record model.Record
		if err := rows.Scan(&record.ID, &record.Content); err != nil {
			return nil, &model.StoreError{Op: "read", Err: err}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "read", Err: err}
	}
	return records, nil
}

func (p *PostgresStore) SaveData(ctx context.Context, records []model.Record) error {
	if err := p.ensureSchema(ctx); err != nil {
		return &model.StoreError{Op: "schema", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table)); err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	insert := fmt.Sprintf(`INSERT INTO %s (position, id, content) VALUES ($1, $2, $3)`, p.table)
	for i, record := range records {
		if _, err := tx.ExecContext(ctx, insert, i, record.ID, record.Content); err != nil {
			return &model.StoreError{Op: "save", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

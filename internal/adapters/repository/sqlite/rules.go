// Package sqlite stores rules in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
	_ "modernc.org/sqlite"
)

// Store implements store.Store for SQLite
type Store struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// New creates a SQLite rule store on an open database.
func New(db *sql.DB, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{
		db:         db,
		serializer: serializer,
		tableName:  "rules",
	}
}

// Open opens the database at dsn (":memory:" for a private in-memory
// database) and creates the tables.
func Open(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// every connection to ":memory:" is a new database
	db.SetMaxOpenConns(1)
	s := New(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithTableName overrides the default table name. Only letters, digits and
// underscores are accepted; other names are ignored.
func (s *Store) WithTableName(name string) *Store {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Save upserts the record and bumps its version.
func (s *Store) Save(ctx context.Context, record *store.RuleRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := s.serializer.Serialize(record.Rule)
	if err != nil {
		return fmt.Errorf("failed to serialize rule: %w", err)
	}

	updatedAt := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %s (project_id, task_id, rule, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (project_id, task_id) DO UPDATE SET
			rule = excluded.rule,
			version = version + 1,
			updated_at = excluded.updated_at
		RETURNING version
	`, s.tableName)

	var version int64
	err = s.db.QueryRowContext(ctx, query,
		record.ProjectID, record.TaskID, data, updatedAt.UnixNano()).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	record.Version, record.UpdatedAt = version, updatedAt
	return nil
}

// Load retrieves the rule of a task
func (s *Store) Load(ctx context.Context, projectID, taskID string) (*store.RuleRecord, error) {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT project_id, task_id, rule, version, updated_at
		FROM %s
		WHERE project_id = ? AND task_id = ?
	`, s.tableName)

	r, err := s.scan(s.db.QueryRowContext(ctx, query, projectID, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	return r, nil
}

// List retrieves rules based on filter criteria
func (s *Store) List(ctx context.Context, filter store.Filter) ([]*store.RuleRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	records := []*store.RuleRecord{}
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes the rule of a task
func (s *Store) Delete(ctx context.Context, projectID, taskID string) error {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE project_id = ? AND task_id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, projectID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrRuleNotFound
	}
	return nil
}

// CreateTables creates the rules table and its index
func (s *Store) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			project_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			rule BLOB NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (project_id, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (*store.RuleRecord, error) {
	var (
		r         store.RuleRecord
		data      []byte
		updatedAt int64
	)
	if err := row.Scan(&r.ProjectID, &r.TaskID, &data, &r.Version, &updatedAt); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	r.Rule = &ruletree.Rule{}
	if err := s.serializer.Deserialize(data, r.Rule); err != nil {
		return nil, fmt.Errorf("failed to deserialize rule: %w", err)
	}
	return &r, nil
}

func (s *Store) buildListQuery(filter store.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT project_id, task_id, rule, version, updated_at FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0)

	if filter.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.Since != nil {
		query += " AND updated_at > ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND updated_at < ?"
		args = append(args, filter.Before.UnixNano())
	}

	query += " ORDER BY updated_at DESC, project_id, task_id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

// Package postgres stores rules in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements store.Store for PostgreSQL
type Store struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// New creates a PostgreSQL rule store
func New(pool *pgxpool.Pool, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{
		pool:       pool,
		serializer: serializer,
		tableName:  "rules",
	}
}

// Connect opens a pool for dsn and creates the tables.
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := New(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// WithTableName overrides the default table name. Only letters, digits and
// underscores are accepted.
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

// Save upserts the record and bumps its version
func (s *Store) Save(ctx context.Context, record *store.RuleRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := s.serializer.Serialize(record.Rule)
	if err != nil {
		return fmt.Errorf("failed to serialize rule: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (project_id, task_id, rule, version, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (project_id, task_id) DO UPDATE SET
			rule = EXCLUDED.rule,
			version = %s.version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING version, updated_at
	`, s.tableName, s.tableName)

	var updatedAt time.Time
	var version int64
	err = s.pool.QueryRow(ctx, query, record.ProjectID, record.TaskID, data).Scan(&version, &updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	record.Version, record.UpdatedAt = version, updatedAt.UTC()
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
		WHERE project_id = $1 AND task_id = $2
	`, s.tableName)

	r, err := s.scan(s.pool.QueryRow(ctx, query, projectID, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := s.pool.Query(ctx, query, args...)
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

	query := fmt.Sprintf("DELETE FROM %s WHERE project_id = $1 AND task_id = $2", s.tableName)
	result, err := s.pool.Exec(ctx, query, projectID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrRuleNotFound
	}
	return nil
}

// CreateTables creates the rules table and its index
func (s *Store) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			project_id VARCHAR(255) NOT NULL,
			task_id VARCHAR(255) NOT NULL,
			rule BYTEA NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (project_id, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) scan(row pgx.Row) (*store.RuleRecord, error) {
	var (
		r    store.RuleRecord
		data []byte
	)
	if err := row.Scan(&r.ProjectID, &r.TaskID, &data, &r.Version, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.Rule = &ruletree.Rule{}
	if err := s.serializer.Deserialize(data, r.Rule); err != nil {
		return nil, fmt.Errorf("failed to deserialize rule: %w", err)
	}
	return &r, nil
}

func (s *Store) buildListQuery(filter store.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT project_id, task_id, rule, version, updated_at FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0)
	argCount := 0

	if filter.ProjectID != "" {
		argCount++
		query += fmt.Sprintf(" AND project_id = $%d", argCount)
		args = append(args, filter.ProjectID)
	}
	if filter.Since != nil {
		argCount++
		query += fmt.Sprintf(" AND updated_at > $%d", argCount)
		args = append(args, *filter.Since)
	}
	if filter.Before != nil {
		argCount++
		query += fmt.Sprintf(" AND updated_at < $%d", argCount)
		args = append(args, *filter.Before)
	}

	query += " ORDER BY updated_at DESC, project_id, task_id"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}
	return query, args
}

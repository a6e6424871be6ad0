package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/godsplan/internal/domain"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Users ---

// UpsertUser inserts or updates a user by provider + provider_id.
func (s *PostgresStore) UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (email, name, avatar_url, provider, provider_id, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = CASE WHEN EXCLUDED.name = '' THEN users.name ELSE EXCLUDED.name END,
			avatar_url = CASE WHEN EXCLUDED.avatar_url = '' THEN users.avatar_url ELSE EXCLUDED.avatar_url END,
			updated_at = NOW()
		RETURNING id, email, name, avatar_url, provider, provider_id, role, created_at, updated_at`

	row := s.db.QueryRowContext(ctx, query,
		u.Email, u.Name, u.AvatarURL, u.Provider, u.ProviderID, "user",
	)

	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Provider, &user.ProviderID, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}

// --- Content ---

// Get implements port.ContentStore over the content_nodes table.
func (s *PostgresStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	query := `SELECT value::text FROM content_nodes WHERE path = $1`

	var raw string
	err := s.db.QueryRowContext(ctx, query, strings.Trim(path, "/")).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get content %s: %w", path, err)
	}
	return json.RawMessage(raw), true, nil
}

// PutContent inserts or replaces a content node.
func (s *PostgresStore) PutContent(ctx context.Context, path string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("put content %s: value is not JSON", path)
	}
	query := `INSERT INTO content_nodes (path, value) VALUES ($1, $2::jsonb)
	          ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, strings.Trim(path, "/"), string(value)); err != nil {
		return fmt.Errorf("put content %s: %w", path, err)
	}
	return nil
}

// --- Sign-in links ---

// Consume implements port.LinkLedger. The primary key on token_id makes a
// second redemption insert nothing.
func (s *PostgresStore) Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	query := `INSERT INTO consumed_link_tokens (token_id, expires_at) VALUES ($1, $2)
	          ON CONFLICT (token_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, id, expiresAt)
	if err != nil {
		return false, fmt.Errorf("consume link token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume link token: %w", err)
	}
	return n == 1, nil
}

// PurgeExpiredLinkTokens deletes ledger rows whose tokens can no longer verify.
func (s *PostgresStore) PurgeExpiredLinkTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consumed_link_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge link tokens: %w", err)
	}
	return res.RowsAffected()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	if details == "" || !json.Valid([]byte(details)) {
		wrapped, _ := json.Marshal(map[string]string{"raw": details})
		details = string(wrapped)
	}
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query,
		userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details::text, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

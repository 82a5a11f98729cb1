package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		first_seen_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL UNIQUE,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		text TEXT NOT NULL,
		display_ts TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(visitor_id, session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `SELECT visitor_id, first_seen_at, last_seen_at FROM visitors WHERE visitor_id = ?`

	var v domain.Visitor
	var firstSeen, lastSeen int64
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(&v.VisitorID, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.FirstSeenAt = time.Unix(firstSeen, 0)
	v.LastSeenAt = time.Unix(lastSeen, 0)
	return &v, nil
}

// TouchVisitor creates or refreshes a visitor record.
func (s *SQLiteStore) TouchVisitor(ctx context.Context, visitorID string, seen time.Time) error {
	query := `
	INSERT INTO visitors (visitor_id, first_seen_at, last_seen_at)
	VALUES (?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		last_seen_at = MAX(visitors.last_seen_at, excluded.last_seen_at)`

	return withRetry(ctx, "touch visitor", func() error {
		_, err := s.db.ExecContext(ctx, query, visitorID, seen.Unix(), seen.Unix())
		return err
	})
}

// AppendMessage archives one conversation message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.ArchivedMessage) error {
	query := `
	INSERT INTO messages (message_id, visitor_id, session_id, origin, text, display_ts, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return withRetry(ctx, "append message", func() error {
		_, err := s.db.ExecContext(ctx, query,
			msg.ID, msg.VisitorID, msg.SessionID, string(msg.Origin),
			msg.Text, msg.Timestamp, msg.CreatedAt.UnixNano(),
		)
		return err
	})
}

// ListMessages returns the newest limit messages of a page session, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, visitorID, sessionID string, limit int) ([]*domain.ArchivedMessage, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `
		SELECT message_id, visitor_id, session_id, origin, text, display_ts, created_at
		FROM (
			SELECT * FROM messages
			WHERE visitor_id = ? AND session_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, visitorID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []*domain.ArchivedMessage
	for rows.Next() {
		var m domain.ArchivedMessage
		var origin string
		var createdAt int64
		if err := rows.Scan(
			&m.ID, &m.VisitorID, &m.SessionID, &origin,
			&m.Text, &m.Timestamp, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Origin = domain.Origin(origin)
		m.CreatedAt = time.Unix(0, createdAt)
		msgs = append(msgs, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// PruneMessages removes archived messages older than retention.
func (s *SQLiteStore) PruneMessages(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixNano()

	var deleted int64
	err := withRetry(ctx, "prune messages", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

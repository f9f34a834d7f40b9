package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
)

// Store archives routed messages and orchestration errors in sqlite for
// post-run inspection. The in-memory router and coordinator work without
// one; attaching a store only adds persistence.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL mode for concurrent read/write access, plus a busy timeout so
	// writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id                TEXT PRIMARY KEY,
			from_agent        TEXT NOT NULL,
			to_agent          TEXT NOT NULL,
			type              TEXT NOT NULL,
			content           TEXT NOT NULL,
			metadata          TEXT,
			requires_response BOOLEAN DEFAULT FALSE,
			parent_id         TEXT,
			created_at        DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(from_agent, to_agent, created_at)`,
		`CREATE TABLE IF NOT EXISTS errors (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id      TEXT,
			type          TEXT NOT NULL,
			severity      TEXT NOT NULL,
			message       TEXT NOT NULL,
			intervention  BOOLEAN DEFAULT FALSE,
			created_at    DATETIME NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SaveMessage implements router.Archiver.
func (s *Store) SaveMessage(m router.Message) error {
	var meta []byte
	if len(m.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, from_agent, to_agent, type, content, metadata, requires_response, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.FromAgent, m.ToAgent, string(m.Type), m.Content, string(meta),
		m.RequiresResponse, m.ParentMessageID, m.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveError archives one orchestration error.
func (s *Store) SaveError(agentID, typ, severity, message string, intervention bool, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO errors (agent_id, type, severity, message, intervention, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		agentID, typ, severity, message, intervention, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n archived messages in
// chronological order.
func (s *Store) RecentMessages(n int) ([]router.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, from_agent, to_agent, type, content, metadata, requires_response, parent_id, created_at
		 FROM messages ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []router.Message
	for rows.Next() {
		var m router.Message
		var typ, meta string
		if err := rows.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &typ, &m.Content,
			&meta, &m.RequiresResponse, &m.ParentMessageID, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = router.Type(typ)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DESC query, chronological result.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ErrorCount returns how many errors are archived, optionally only those
// flagged for intervention.
func (s *Store) ErrorCount(interventionOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM errors`
	if interventionOnly {
		q += ` WHERE intervention`
	}
	var n int
	if err := s.db.QueryRow(q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count errors: %w", err)
	}
	return n, nil
}

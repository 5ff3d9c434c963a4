// Package outbox provides durable SQLite storage for drafts awaiting an
// explicit send confirmation.
//
// Drafts composed by an agent are never sent inside the run that produced
// them. The orchestrator records each draft here together with its
// idempotency token; a later SendDraft request looks the token up, delivers
// the draft, and marks it sent. Because the sent message id is persisted,
// confirming the same token twice delivers at most once.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaredassist/jared/internal/mailbox"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no pending draft exists for a token.
var ErrNotFound = errors.New("pending draft not found")

// PendingDraft is a draft recorded for later confirmation.
type PendingDraft struct {
	Token         string
	RequestID     string
	Draft         mailbox.Draft
	CreatedAt     time.Time
	SentMessageID string
	SentAt        time.Time
}

// Sent reports whether the draft has already been delivered.
func (p *PendingDraft) Sent() bool { return p.SentMessageID != "" }

// Store wraps a SQLite connection for outbox operations.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) an outbox database at the given path.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// OpenInMemory opens a private in-memory outbox, used in tests and for runs
// that do not need send confirmations to survive a restart.
func OpenInMemory() (*Store, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

// SavePending records a draft under its idempotency token. Saving the same
// token twice is an error; tokens are minted once per drafted message.
func (s *Store) SavePending(ctx context.Context, p PendingDraft) error {
	if p.Token == "" {
		return fmt.Errorf("pending draft requires a token")
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO pending_drafts
			(token, request_id, to_addr, cc, subject, body, thread_id, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Token, p.RequestID,
		strings.Join(p.Draft.To, ","), nullStr(strings.Join(p.Draft.Cc, ",")),
		p.Draft.Subject, p.Draft.Body,
		nullStr(p.Draft.ThreadID), nil,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save pending draft: %w", err)
	}
	return nil
}

// Get returns the pending draft for a token.
func (s *Store) Get(ctx context.Context, token string) (*PendingDraft, error) {
	p := &PendingDraft{}
	var to string
	var cc, threadID, sentID, sentAt sql.NullString
	var createdAt string
	err := s.conn.QueryRowContext(ctx, `
		SELECT token, request_id, to_addr, cc, subject, body, thread_id,
		       created_at, sent_message_id, sent_at
		FROM pending_drafts
		WHERE token = ?`, token).Scan(
		&p.Token, &p.RequestID, &to, &cc, &p.Draft.Subject, &p.Draft.Body,
		&threadID, &createdAt, &sentID, &sentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %q: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending draft: %w", err)
	}

	p.Draft.To = splitAddrs(to)
	p.Draft.Cc = splitAddrs(cc.String)
	p.Draft.ThreadID = threadID.String
	p.SentMessageID = sentID.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}
	if sentAt.Valid {
		if t, err := time.Parse(time.RFC3339, sentAt.String); err == nil {
			p.SentAt = t
		}
	}
	return p, nil
}

// MarkSent records the provider message id for a delivered draft.
func (s *Store) MarkSent(ctx context.Context, token, messageID string) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE pending_drafts SET sent_message_id = ?, sent_at = ? WHERE token = ?",
		messageID, time.Now().UTC().Format(time.RFC3339), token,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("token %q: %w", token, ErrNotFound)
	}
	return nil
}

// ListPending returns drafts awaiting confirmation, newest first.
func (s *Store) ListPending(ctx context.Context) ([]*PendingDraft, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT token, request_id, to_addr, cc, subject, body, thread_id,
		       created_at, sent_message_id, sent_at
		FROM pending_drafts
		WHERE sent_message_id IS NULL
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*PendingDraft
	for rows.Next() {
		p := &PendingDraft{}
		var to string
		var cc, threadID, sentID, sentAt sql.NullString
		var createdAt string
		if err := rows.Scan(
			&p.Token, &p.RequestID, &to, &cc, &p.Draft.Subject, &p.Draft.Body,
			&threadID, &createdAt, &sentID, &sentAt,
		); err != nil {
			return nil, err
		}
		p.Draft.To = splitAddrs(to)
		p.Draft.Cc = splitAddrs(cc.String)
		p.Draft.ThreadID = threadID.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			p.CreatedAt = t
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// PendingCount returns the number of unsent drafts.
func (s *Store) PendingCount(ctx context.Context) int {
	var n int
	s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_drafts WHERE sent_message_id IS NULL").Scan(&n)
	return n
}

func splitAddrs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

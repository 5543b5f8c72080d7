package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
)

// PgStore implements every store contract on Postgres with the pgvector
// extension handling similarity search.
type PgStore struct {
	db *sql.DB
}

// NewPgStore opens the pool, verifies connectivity and runs the schema
// bootstrap.
func NewPgStore(ctx context.Context, databaseURL string) (*PgStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := ensureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PgStore{db: db}, nil
}

func (s *PgStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PgStore) CreateUser(ctx context.Context, u user.User) error {
	const q = `
		INSERT INTO users (id, username, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, q, u.ID, u.Username, u.DisplayName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *PgStore) GetUserByName(ctx context.Context, username string) (user.User, error) {
	const q = `
		SELECT id, username, display_name, password_hash, created_at
		FROM users WHERE username = $1
	`
	var u user.User
	err := s.db.QueryRowContext(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *PgStore) GetUser(ctx context.Context, id string) (user.User, error) {
	const q = `
		SELECT id, username, display_name, password_hash, created_at
		FROM users WHERE id = $1
	`
	var u user.User
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *PgStore) CreateSession(ctx context.Context, userID, title string) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	session.LastActiveAt = session.CreatedAt

	const q = `
		INSERT INTO sessions (id, user_id, title, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, q,
		session.ID, session.UserID, session.Title, session.CreatedAt, session.LastActiveAt)
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func (s *PgStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	const q = `
		SELECT id, user_id, title, created_at, last_active_at
		FROM sessions WHERE id = $1
	`
	var session chat.Session
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(
		&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.LastActiveAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func (s *PgStore) ListSessions(ctx context.Context, userID string) ([]chat.Session, error) {
	const q = `
		SELECT id, user_id, title, created_at, last_active_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_active_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Session
	for rows.Next() {
		var session chat.Session
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.LastActiveAt,
		); err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// AppendTurn locks the session row for the duration of the transaction, which
// serializes concurrent appends and keeps turn IDs monotonic and gap-free.
func (s *PgStore) AppendTurn(ctx context.Context, sessionID string, role chat.Role, text, emotionLabel string) (chat.Turn, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return chat.Turn{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Turn{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Turn{}, err
	}

	turn := chat.Turn{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if role == chat.RoleAssistant {
		turn.Emotion = emotionLabel
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO turns (session_id, turn_id, role, text, emotion, created_at)
		SELECT $1, COALESCE(MAX(turn_id), 0) + 1, $2, $3, NULLIF($4, ''), $5
		FROM turns WHERE session_id = $1
		RETURNING turn_id
	`, sessionID, string(role), text, turn.Emotion, turn.CreatedAt).Scan(&turn.TurnID)
	if err != nil {
		return chat.Turn{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET last_active_at = $2,
		    title = CASE WHEN title = '' AND $3 = 'user' THEN LEFT($4, 60) ELSE title END
		WHERE id = $1
	`, sessionID, turn.CreatedAt, string(role), text); err != nil {
		return chat.Turn{}, err
	}

	if err := tx.Commit(); err != nil {
		return chat.Turn{}, err
	}
	return turn, nil
}

func (s *PgStore) History(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	q := `
		SELECT session_id, turn_id, role, text, COALESCE(emotion, ''), created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY turn_id ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		q = `
			SELECT session_id, turn_id, role, text, emotion, created_at FROM (
				SELECT session_id, turn_id, role, text, COALESCE(emotion, '') AS emotion, created_at
				FROM turns
				WHERE session_id = $1
				ORDER BY turn_id DESC
				LIMIT $2
			) recent ORDER BY turn_id ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func (s *PgStore) TurnsForUser(ctx context.Context, userID string, since time.Time) ([]chat.Turn, error) {
	const q = `
		SELECT t.session_id, t.turn_id, t.role, t.text, COALESCE(t.emotion, ''), t.created_at
		FROM turns t
		JOIN sessions s ON s.id = t.session_id
		WHERE s.user_id = $1 AND t.created_at >= $2
		ORDER BY t.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func (s *PgStore) AttachEmbedding(ctx context.Context, sessionID string, turnID int64, vec []float32) error {
	const q = `
		UPDATE turns SET embedding = $3
		WHERE session_id = $1 AND turn_id = $2
	`
	res, err := s.db.ExecContext(ctx, q, sessionID, turnID, pgvector.NewVector(vec))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PgStore) Insert(ctx context.Context, rec memory.Record) error {
	const q = `
		INSERT INTO memory_records (user_id, session_id, turn_id, embedding, snippet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, session_id, turn_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, q,
		rec.UserID, rec.SessionID, rec.TurnID, pgvector.NewVector(rec.Embedding), rec.Snippet, rec.CreatedAt)
	return err
}

// Search orders by pgvector cosine distance; ties prefer the more recent turn.
func (s *PgStore) Search(ctx context.Context, userID string, vec []float32, k int) ([]memory.Hit, error) {
	if k <= 0 {
		k = 5
	}
	const q = `
		SELECT session_id, turn_id, snippet, 1 - (embedding <=> $2) AS score
		FROM memory_records
		WHERE user_id = $1
		ORDER BY embedding <=> $2 ASC, created_at DESC, turn_id DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, userID, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []memory.Hit
	for rows.Next() {
		var h memory.Hit
		if err := rows.Scan(&h.SessionID, &h.TurnID, &h.Snippet, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Rebuild re-derives memory records from embedded turns; the conflict target
// makes it idempotent.
func (s *PgStore) Rebuild(ctx context.Context) error {
	const q = `
		INSERT INTO memory_records (user_id, session_id, turn_id, embedding, snippet, created_at)
		SELECT s.user_id, t.session_id, t.turn_id, t.embedding, t.text, t.created_at
		FROM turns t
		JOIN sessions s ON s.id = t.session_id
		WHERE t.embedding IS NOT NULL
		ON CONFLICT (user_id, session_id, turn_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *PgStore) Stats(ctx context.Context) (Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM turns),
			(SELECT COUNT(*) FROM memory_records)
	`
	var stats Stats
	err := s.db.QueryRowContext(ctx, q).Scan(&stats.Users, &stats.Sessions, &stats.Turns, &stats.Memories)
	return stats, err
}

func scanTurns(rows *sql.Rows) ([]chat.Turn, error) {
	var out []chat.Turn
	for rows.Next() {
		var turn chat.Turn
		var role string
		if err := rows.Scan(
			&turn.SessionID, &turn.TurnID, &role, &turn.Text, &turn.Emotion, &turn.CreatedAt,
		); err != nil {
			return nil, err
		}
		turn.Role = chat.Role(role)
		out = append(out, turn)
	}
	return out, rows.Err()
}

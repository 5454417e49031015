package auth

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps users and sessions in a local sqlite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: d, path: path}
	if err := s.init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, username TEXT UNIQUE, password_hash TEXT, created_at INTEGER);`,
		`CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, user_id TEXT, device_id TEXT, refresh_digest TEXT, refresh_expires_at INTEGER, created_at INTEGER, last_rotated_at INTEGER);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	u := &User{ID: newUserID(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users(id,username,password_hash,created_at) VALUES(?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,username,password_hash,created_at FROM users WHERE username = ?`, username)
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

func (s *SQLiteStore) PutSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id,user_id,device_id,refresh_digest,refresh_expires_at,created_at,last_rotated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET device_id=excluded.device_id, refresh_digest=excluded.refresh_digest,
		   refresh_expires_at=excluded.refresh_expires_at, last_rotated_at=excluded.last_rotated_at`,
		sess.ID, sess.UserID, sess.DeviceID, sess.RefreshDigest,
		sess.RefreshExpiresAt.Unix(), sess.CreatedAt.Unix(), sess.LastRotatedAt.Unix())
	return err
}

func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var sess Session
	var expires, created, rotated int64
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.DeviceID, &sess.RefreshDigest, &expires, &created, &rotated); err != nil {
		return nil, err
	}
	sess.RefreshExpiresAt = time.Unix(expires, 0)
	sess.CreatedAt = time.Unix(created, 0)
	sess.LastRotatedAt = time.Unix(rotated, 0)
	return &sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,device_id,refresh_digest,refresh_expires_at,created_at,last_rotated_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,user_id,device_id,refresh_digest,refresh_expires_at,created_at,last_rotated_at FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

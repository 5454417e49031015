package auth

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore backs the Session Authority with PostgreSQL. Schema is
// managed by migrations (see migrations/); init only verifies
// connectivity, matching the migration-first deployment flow.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	if err := p.db.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	existing, err := p.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	u := &User{ID: newUserID(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	_, err = p.db.ExecContext(ctx, `INSERT INTO users(id,username,password_hash,created_at) VALUES($1,$2,$3,$4)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id,username,password_hash,created_at FROM users WHERE username = $1`, username)
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

func (p *PostgresStore) PutSession(ctx context.Context, sess *Session) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO sessions(id,user_id,device_id,refresh_digest,refresh_expires_at,created_at,last_rotated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT(id) DO UPDATE SET device_id=EXCLUDED.device_id, refresh_digest=EXCLUDED.refresh_digest,
		   refresh_expires_at=EXCLUDED.refresh_expires_at, last_rotated_at=EXCLUDED.last_rotated_at`,
		sess.ID, sess.UserID, sess.DeviceID, sess.RefreshDigest,
		sess.RefreshExpiresAt.Unix(), sess.CreatedAt.Unix(), sess.LastRotatedAt.Unix())
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id,user_id,device_id,refresh_digest,refresh_expires_at,created_at,last_rotated_at FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (p *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx,
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

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresStore) Close() error                   { return p.db.Close() }

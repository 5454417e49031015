package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisUserPrefix    = "auth:user:"
	redisSessionPrefix = "auth:session:"
)

// RedisStore keeps sessions as JSON blobs that expire with the refresh
// window. Redis-reaped sessions surface as unknown-session on refresh,
// which is a permitted collapse of expired-and-reaped into unknown.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

type redisSession struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	DeviceID         string    `json:"device_id"`
	RefreshDigest    string    `json:"refresh_digest"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastRotatedAt    time.Time `json:"last_rotated_at"`
}

type redisUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *RedisStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{ID: newUserID(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	blob, err := json.Marshal(redisUser(*u))
	if err != nil {
		return nil, err
	}
	ok, err := r.rdb.SetNX(ctx, redisUserPrefix+username, blob, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserExists
	}
	return u, nil
}

func (r *RedisStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	blob, err := r.rdb.Get(ctx, redisUserPrefix+username).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ru redisUser
	if err := json.Unmarshal(blob, &ru); err != nil {
		return nil, err
	}
	u := User(ru)
	return &u, nil
}

func (r *RedisStore) PutSession(ctx context.Context, s *Session) error {
	blob, err := json.Marshal(redisSession(*s))
	if err != nil {
		return err
	}
	ttl := time.Until(s.RefreshExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.rdb.Set(ctx, redisSessionPrefix+s.ID, blob, ttl).Err()
}

func (r *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	blob, err := r.rdb.Get(ctx, redisSessionPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rs redisSession
	if err := json.Unmarshal(blob, &rs); err != nil {
		return nil, err
	}
	s := Session(rs)
	return &s, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, redisSessionPrefix+id).Err()
}

func (r *RedisStore) ListSessions(ctx context.Context) ([]*Session, error) {
	var out []*Session
	iter := r.rdb.Scan(ctx, 0, redisSessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		blob, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rs redisSession
		if err := json.Unmarshal(blob, &rs); err != nil {
			return nil, err
		}
		s := Session(rs)
		out = append(out, &s)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }
func (r *RedisStore) Close() error                   { return r.rdb.Close() }

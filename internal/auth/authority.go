package auth

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sessionLockStripes = 64

// Config carries the Authority's fixed settings.
type Config struct {
	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Authority issues short-lived access tokens and rotating refresh
// tokens, and revokes sessions on any sign of refresh-token reuse.
// Refresh calls for the same session are serialized through striped
// locks so rotation is atomic: of two racing calls presenting the
// current token, exactly one rotates and the other observes the stale
// digest and trips reuse detection.
type Authority struct {
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics

	locks [sessionLockStripes]sync.Mutex
}

func NewAuthority(store Store, cfg Config, logger *zap.Logger, metrics *Metrics) *Authority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authority{store: store, cfg: cfg, logger: logger, metrics: metrics}
}

func (a *Authority) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &a.locks[h.Sum32()%sessionLockStripes]
}

// LoginResult is returned once per login; the refresh token plaintext
// cannot be retrieved again.
type LoginResult struct {
	SessionID        string    `json:"sessionId"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// RefreshResult carries the rotated token pair.
type RefreshResult struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ProvisionUser creates a user with an argon2id-hashed password.
func (a *Authority) ProvisionUser(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidRequest
	}
	if err := checkPasswordPolicy(password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.store.CreateUser(ctx, username, hash)
}

// Login verifies credentials, creates a fresh session bound to deviceID,
// and issues the initial token pair. Concurrent sessions per user are
// allowed, one per login.
func (a *Authority) Login(ctx context.Context, username, password, deviceID string) (*LoginResult, error) {
	if username == "" || password == "" || deviceID == "" {
		a.metrics.login("invalid_request")
		return nil, ErrInvalidRequest
	}

	user, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if user == nil || !comparePassword(user.PasswordHash, password) {
		a.metrics.login("invalid_credentials")
		return nil, ErrAuthenticationFailed
	}

	sessionID, err := genToken(16)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &Session{ID: sessionID, UserID: user.ID, CreatedAt: now}

	refreshToken, err := a.rotate(sess, deviceID)
	if err != nil {
		return nil, err
	}
	if err := a.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("session create: %w", err)
	}

	access, err := createAccessToken(a.cfg.JWTSecret, user.ID, a.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	a.metrics.login("success")
	a.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("user_id", user.ID),
		zap.String("device_id", deviceID),
	)
	return &LoginResult{
		SessionID:        sessionID,
		AccessToken:      access,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	}, nil
}

// rotate replaces the session's current refresh digest with a fresh one
// and rebinds the device. The returned plaintext is the only copy.
func (a *Authority) rotate(sess *Session, deviceID string) (string, error) {
	token, err := genToken(32)
	if err != nil {
		return "", err
	}
	now := time.Now()
	sess.DeviceID = deviceID
	sess.RefreshDigest = hashRefreshToken(token)
	sess.RefreshExpiresAt = now.Add(a.cfg.RefreshTokenTTL)
	sess.LastRotatedAt = now
	return token, nil
}

// VerifyAccess validates an access token's signature and expiry and
// returns the subject user ID. Side-effect free.
func (a *Authority) VerifyAccess(token string) (string, error) {
	userID, err := parseAccessToken(a.cfg.JWTSecret, token)
	if err != nil {
		a.logger.Debug("access token rejected", zap.Error(err))
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Refresh runs the rotation state machine. A matching digest and device
// rotates; anything else revokes the whole session. Fail-closed by
// design: a benign race loses its session rather than risking a
// replayed token staying live.
func (a *Authority) Refresh(ctx context.Context, sessionID, refreshToken, deviceID string) (*RefreshResult, error) {
	if sessionID == "" || refreshToken == "" || deviceID == "" {
		return nil, ErrInvalidRequest
	}

	lock := a.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if sess == nil {
		a.metrics.refresh("unknown_session")
		return nil, ErrUnknownSession
	}

	if sess.Expired(time.Now()) {
		if err := a.store.DeleteSession(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("session revoke: %w", err)
		}
		a.metrics.refresh("expired")
		return nil, ErrRefreshExpired
	}

	if !refreshDigestEqual(refreshToken, sess.RefreshDigest) || deviceID != sess.DeviceID {
		if err := a.store.DeleteSession(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("session revoke: %w", err)
		}
		a.metrics.refresh("reuse_detected")
		a.logger.Warn("possible refresh token reuse or device mismatch, session revoked",
			zap.String("session_id", sessionID),
			zap.String("presented_device", deviceID),
			zap.String("expected_device", sess.DeviceID),
		)
		return nil, ErrTokenReuseDetected
	}

	newRefresh, err := a.rotate(sess, deviceID)
	if err != nil {
		return nil, err
	}
	if err := a.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("session rotate: %w", err)
	}

	access, err := createAccessToken(a.cfg.JWTSecret, sess.UserID, a.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	a.metrics.refresh("rotated")
	return &RefreshResult{
		AccessToken:      access,
		RefreshToken:     newRefresh,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	}, nil
}

// Logout revokes the session unconditionally; unknown IDs are a no-op.
func (a *Authority) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidRequest
	}
	return a.store.DeleteSession(ctx, sessionID)
}

// ListSessions returns all live sessions for the admin surface.
func (a *Authority) ListSessions(ctx context.Context) ([]*Session, error) {
	sessions, err := a.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	a.metrics.setActiveSessions(len(sessions))
	return sessions, nil
}

// SweepExpired deletes sessions whose refresh window has passed and
// returns how many were removed.
func (a *Authority) SweepExpired(ctx context.Context) (int, error) {
	sessions, err := a.store.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, sess := range sessions {
		if !sess.Expired(now) {
			continue
		}
		lock := a.sessionLock(sess.ID)
		lock.Lock()
		err := a.store.DeleteSession(ctx, sess.ID)
		lock.Unlock()
		if err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		a.metrics.swept(removed)
		a.logger.Info("expired sessions swept", zap.Int("removed", removed))
	}
	a.metrics.setActiveSessions(len(sessions) - removed)
	return removed, nil
}

// Ping reports store health for readiness checks.
func (a *Authority) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

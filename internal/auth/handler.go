package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Nishat2006/surakshanet/internal/httpx"
)

// Handler exposes the Session Authority over HTTP+JSON.
type Handler struct {
	authority *Authority
	logger    *zap.Logger
}

func NewHandler(authority *Authority, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{authority: authority, logger: logger}
}

// Register mounts the auth routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/auth/login", h.handleLogin).Methods("POST")
	r.HandleFunc("/auth/refresh", h.handleRefresh).Methods("POST")
	r.HandleFunc("/auth/logout", h.handleLogout).Methods("POST")
	r.HandleFunc("/api/protected", h.handleProtected).Methods("GET")
	r.HandleFunc("/admin/sessions", h.handleSessions).Methods("GET")
}

// writeAuthError maps core errors onto the wire taxonomy.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "username, password and deviceId are required")
	case errors.Is(err, ErrAuthenticationFailed):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	case errors.Is(err, ErrUnknownSession):
		httpx.WriteError(w, http.StatusUnauthorized, "UNKNOWN_SESSION", "Unknown session")
	case errors.Is(err, ErrRefreshExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "REFRESH_EXPIRED", "Refresh token expired - re-login required")
	case errors.Is(err, ErrTokenReuseDetected):
		httpx.WriteError(w, http.StatusForbidden, "TOKEN_REUSE_DETECTED", "Refresh token invalid or reused - session revoked. Re-login required.")
	case errors.Is(err, ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired access token")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.authority.Login(r.Context(), in.Username, in.Password, in.DeviceID)
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) && !errors.Is(err, ErrAuthenticationFailed) {
			h.logger.Error("login failed", zap.Error(err))
		}
		writeAuthError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID    string `json:"sessionId"`
		RefreshToken string `json:"refreshToken"`
		DeviceID     string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.SessionID == "" || in.RefreshToken == "" || in.DeviceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "sessionId, refreshToken and deviceId are required")
		return
	}

	res, err := h.authority.Refresh(r.Context(), in.SessionID, in.RefreshToken, in.DeviceID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.SessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "sessionId is required")
		return
	}

	if err := h.authority.Logout(r.Context(), in.SessionID); err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (h *Handler) handleProtected(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing bearer token")
		return
	}

	userID, err := h.authority.VerifyAccess(strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"userId":  userID,
		"message": "Protected data",
	})
}

// sessionSummary deliberately omits the refresh digest.
type sessionSummary struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	DeviceID         string    `json:"deviceId"`
	CreatedAt        time.Time `json:"createdAt"`
	LastRotatedAt    time.Time `json:"lastRotatedAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.authority.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("session listing failed", zap.Error(err))
		writeAuthError(w, err)
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			SessionID:        s.ID,
			UserID:           s.UserID,
			DeviceID:         s.DeviceID,
			CreatedAt:        s.CreatedAt,
			LastRotatedAt:    s.LastRotatedAt,
			RefreshExpiresAt: s.RefreshExpiresAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

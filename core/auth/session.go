package auth

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"helix-qms/config"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type SessionManager struct {
	store  store.SessionsStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewSessionManager(store store.SessionsStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{store: store, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, ip, userAgent string) (*store.SessionRecord, error) {
	id := uuid.Must(uuid.NewV4()).String()
	csrf, err := utils.RandString(32)
	if err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	sr := &store.SessionRecord{
		ID:           id,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		IP:           ip,
		UserAgent:    userAgent,
		CSRFToken:    csrf,
		CreatedAt:    now,
		LastSeenAt:   now,
		ExpiresAt:    now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.store.SaveSession(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

// Rotate replaces the session with a fresh ID and CSRF token, keeping the
// actor's identity. Called after credential changes so a stolen session token
// does not survive them.
func (m *SessionManager) Rotate(ctx context.Context, sessID string) (*store.SessionRecord, error) {
	old, err := m.store.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, errors.New("session not found")
	}
	_ = m.store.DeleteSession(ctx, sessID)
	return m.Create(ctx, &store.User{
		ID:           old.UserID,
		Username:     old.Username,
		Role:         old.Role,
		DepartmentID: old.DepartmentID,
	}, old.IP, old.UserAgent)
}

func (m *SessionManager) Delete(ctx context.Context, sessID string) error {
	return m.store.DeleteSession(ctx, sessID)
}

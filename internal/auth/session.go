package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// SessionCookieName is the single cookie carrying the raw session
// credential between the browser and the gateway.
const SessionCookieName = "admin_session"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrPrincipalNotFound = errors.New("principal not found")
)

// Session is one authenticated browsing period of the admin principal.
// Only the hash of the bearer credential is ever stored; the raw value
// exists outside the client exactly once, on issue.
type Session struct {
	ID             int64
	PrincipalID    int
	CredentialHash string
	CreatedAt      time.Time
	LastSeenAt     time.Time
	ExpiresAt      time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HashCredential derives the storage key for a raw bearer credential.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

type SessionRepo interface {
	Create(ctx context.Context, session *Session) (*Session, error)
	GetByHash(ctx context.Context, credentialHash string) (*Session, error)
	// UpdateSeen persists the rolling lastSeenAt/expiresAt maintenance;
	// last write wins on concurrent updates of the same session.
	UpdateSeen(ctx context.Context, id int64, lastSeenAt, expiresAt time.Time) error
	DeleteByHash(ctx context.Context, credentialHash string) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

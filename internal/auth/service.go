package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alcorzop/portal-gateway/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL              = 7 * 24 * time.Hour
	DefaultTouchInterval    = 10 * time.Minute
	DefaultRefreshThreshold = 24 * time.Hour

	credentialBytes = 32
)

// Service issues, validates and revokes opaque admin session credentials.
//
// Credentials are random 256-bit values handed to the client as a cookie;
// the backing store only ever sees their hash, so a leaked sessions table
// cannot be replayed.
type Service struct {
	repo             SessionRepo
	ttl              time.Duration
	touchInterval    time.Duration
	refreshThreshold time.Duration

	// ability to inject the credential generator and the clock (for unit testing)
	RandStringFunc func(s int) (string, error)
	NowFunc        func() time.Time
}

type ServiceParams struct {
	Repo             SessionRepo
	TTL              time.Duration
	TouchInterval    time.Duration
	RefreshThreshold time.Duration
}

func NewService(params ServiceParams) *Service {
	if params.TTL <= 0 {
		params.TTL = DefaultTTL
	}
	if params.TouchInterval <= 0 {
		params.TouchInterval = DefaultTouchInterval
	}
	if params.RefreshThreshold <= 0 {
		params.RefreshThreshold = DefaultRefreshThreshold
	}
	return &Service{
		repo:             params.Repo,
		ttl:              params.TTL,
		touchInterval:    params.TouchInterval,
		refreshThreshold: params.RefreshThreshold,
		RandStringFunc:   pkg.GenerateRandomString,
		NowFunc:          time.Now,
	}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue mints a new session for the principal and returns the raw
// credential for transmission to the client. Storage errors here are fatal
// to the login attempt.
func (s *Service) Issue(ctx context.Context, principalID int) (string, *Session, error) {
	credential, err := s.RandStringFunc(credentialBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate credential: %w", err)
	}

	now := s.NowFunc()
	session, err := s.repo.Create(ctx, &Session{
		PrincipalID:    principalID,
		CredentialHash: HashCredential(credential),
		CreatedAt:      now,
		LastSeenAt:     now,
		ExpiresAt:      now.Add(s.ttl),
	})
	if err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	return credential, session, nil
}

// Validate resolves the raw credential to its session. It returns
// (nil, nil) for unknown or expired credentials, and an error only when
// the store itself failed (callers treat that as unauthenticated too).
//
// Still-valid sessions get rolling maintenance: lastSeenAt is touched once
// per touchInterval, and expiresAt is pushed out by a full TTL once the
// session enters its refresh threshold. Both are courtesy updates - if
// they fail, the session simply expires on its original schedule.
func (s *Service) Validate(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, nil
	}

	session, err := s.repo.GetByHash(ctx, HashCredential(credential))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := s.NowFunc()
	if session.Expired(now) {
		// lazy expiry, no background sweep needed for correctness
		if err := s.repo.DeleteByID(ctx, session.ID); err != nil {
			log.Errorf("delete expired session %d: %s", session.ID, err)
		}
		return nil, nil
	}

	shouldTouch := now.Sub(session.LastSeenAt) > s.touchInterval
	shouldRefresh := session.ExpiresAt.Sub(now) < s.refreshThreshold
	if shouldTouch || shouldRefresh {
		expiresAt := session.ExpiresAt
		if shouldRefresh {
			expiresAt = now.Add(s.ttl)
		}
		if err := s.repo.UpdateSeen(ctx, session.ID, now, expiresAt); err != nil {
			log.Errorf("touch session %d: %s", session.ID, err)
		} else {
			session.LastSeenAt = now
			session.ExpiresAt = expiresAt
		}
	}

	return session, nil
}

// Revoke deletes the session for the given credential. Revoking an unknown
// or already revoked credential is not an error.
func (s *Service) Revoke(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	if err := s.repo.DeleteByHash(ctx, HashCredential(credential)); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SweepExpired removes expired session rows that lazy expiry never got to
// (sessions whose clients simply stopped coming back).
func (s *Service) SweepExpired(ctx context.Context) {
	removed, err := s.repo.DeleteExpired(ctx, s.NowFunc())
	if err != nil {
		log.Errorf("session sweep: %s", err)
		return
	}
	if removed > 0 {
		log.Debugf("session sweep: removed %d expired sessions", removed)
	}
}

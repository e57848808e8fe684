package auth

import (
	"context"
	"strings"
)

// Principal is the single admin user type this gateway authenticates.
type Principal struct {
	ID           int
	Email        string
	PasswordHash string
}

type PrincipalRepo interface {
	GetByEmail(ctx context.Context, email string) (*Principal, error)
}

// StaticPrincipals serves the one admin principal bootstrapped from the
// environment, for deployments that run without an admin_user table.
type StaticPrincipals struct {
	admin Principal
}

var _ PrincipalRepo = (*StaticPrincipals)(nil)

func NewStaticPrincipals(email, passwordHash string) *StaticPrincipals {
	return &StaticPrincipals{
		admin: Principal{
			ID:           1,
			Email:        strings.ToLower(strings.TrimSpace(email)),
			PasswordHash: passwordHash,
		},
	}
}

func (s *StaticPrincipals) GetByEmail(_ context.Context, email string) (*Principal, error) {
	if email == "" || email != s.admin.Email {
		return nil, ErrPrincipalNotFound
	}
	admin := s.admin
	return &admin, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PsqlSessionRepo struct {
	db *pgxpool.Pool
}

var _ SessionRepo = (*PsqlSessionRepo)(nil)

func NewPsqlSessionRepo(db *pgxpool.Pool) *PsqlSessionRepo {
	return &PsqlSessionRepo{db: db}
}

func (r *PsqlSessionRepo) Create(ctx context.Context, session *Session) (*Session, error) {
	if session.CredentialHash == "" || session.ExpiresAt.IsZero() {
		return nil, errors.New("session credential hash or expiry empty")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO admin_session (principal_id, credential_hash, created_at, last_seen_at, expires_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		session.PrincipalID, session.CredentialHash,
		session.CreatedAt, session.LastSeenAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int64
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	session.ID = id
	return session, nil
}

func (r *PsqlSessionRepo) GetByHash(ctx context.Context, credentialHash string) (*Session, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, principal_id, credential_hash, created_at, last_seen_at, expires_at
			FROM admin_session WHERE credential_hash = $1;`,
		credentialHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrSessionNotFound
	}

	var session Session
	if err := rows.Scan(
		&session.ID, &session.PrincipalID, &session.CredentialHash,
		&session.CreatedAt, &session.LastSeenAt, &session.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *PsqlSessionRepo) UpdateSeen(ctx context.Context, id int64, lastSeenAt, expiresAt time.Time) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE admin_session SET last_seen_at = $1, expires_at = $2 WHERE id = $3;`,
		lastSeenAt, expiresAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PsqlSessionRepo) DeleteByHash(ctx context.Context, credentialHash string) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM admin_session WHERE credential_hash = $1;`,
		credentialHash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PsqlSessionRepo) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM admin_session WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PsqlSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM admin_session WHERE expires_at <= $1;`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type PsqlPrincipalRepo struct {
	db *pgxpool.Pool
}

var _ PrincipalRepo = (*PsqlPrincipalRepo)(nil)

func NewPsqlPrincipalRepo(db *pgxpool.Pool) *PsqlPrincipalRepo {
	return &PsqlPrincipalRepo{db: db}
}

func (r *PsqlPrincipalRepo) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	var p Principal
	err := r.db.QueryRow(
		ctx,
		`SELECT id, email, password_hash FROM admin_user WHERE email = $1;`,
		email,
	).Scan(&p.ID, &p.Email, &p.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return &p, nil
}

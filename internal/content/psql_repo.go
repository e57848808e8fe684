package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PsqlRepo struct {
	db *pgxpool.Pool
}

var _ Repo = (*PsqlRepo)(nil)

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{db: db}
}

// unique_violation, the document table has a unique (kind, slug) index
const pgErrCodeUniqueViolation = "23505"

func (r *PsqlRepo) Add(ctx context.Context, doc *Document) (*Document, error) {
	if doc.Slug == "" || doc.Title == "" {
		return nil, errors.New("document slug or title empty")
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO document (kind, slug, title, content, published, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;`,
		doc.Kind, doc.Slug, doc.Title, doc.Content, doc.Published, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return nil, slugTakenOr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, slugTakenOr(err)
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	doc.ID = id
	return doc, nil
}

func (r *PsqlRepo) Get(ctx context.Context, id int) (*Document, error) {
	return r.get(
		ctx,
		`SELECT id, kind, slug, title, content, published, created_at, updated_at
			FROM document WHERE id = $1;`,
		id,
	)
}

func (r *PsqlRepo) GetBySlug(ctx context.Context, kind, slug string) (*Document, error) {
	return r.get(
		ctx,
		`SELECT id, kind, slug, title, content, published, created_at, updated_at
			FROM document WHERE kind = $1 AND slug = $2;`,
		kind, slug,
	)
}

func (r *PsqlRepo) get(ctx context.Context, query string, args ...any) (*Document, error) {
	var doc Document
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.Kind, &doc.Slug, &doc.Title, &doc.Content,
		&doc.Published, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *PsqlRepo) Update(ctx context.Context, doc *Document) error {
	if doc.Slug == "" || doc.Title == "" {
		return errors.New("document slug or title empty")
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE document
			SET slug = $1, title = $2, content = $3, published = $4, updated_at = $5
			WHERE id = $6;`,
		doc.Slug, doc.Title, doc.Content, doc.Published, doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return slugTakenOr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *PsqlRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM document WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *PsqlRepo) List(ctx context.Context, kind string, publishedOnly bool) ([]Document, error) {
	query := `SELECT id, kind, slug, title, content, published, created_at, updated_at
		FROM document WHERE kind = $1`
	if publishedOnly {
		query += ` AND published`
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := r.db.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.Kind, &doc.Slug, &doc.Title, &doc.Content,
			&doc.Published, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func slugTakenOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
		return ErrSlugTaken
	}
	return err
}

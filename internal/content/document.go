// Package content stores the portal's published material: documents and
// standalone pages. Both share one schema and differ only by kind.
package content

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSlugTaken        = errors.New("slug already taken")
)

const (
	KindDocument = "document"
	KindPage     = "page"
)

type Document struct {
	ID        int       `json:"id"`
	Kind      string    `json:"kind"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repo interface {
	Add(ctx context.Context, doc *Document) (*Document, error)
	Get(ctx context.Context, id int) (*Document, error)
	GetBySlug(ctx context.Context, kind, slug string) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id int) error
	// List returns documents of a kind, newest first; publishedOnly
	// hides drafts from the public site.
	List(ctx context.Context, kind string, publishedOnly bool) ([]Document, error)
}

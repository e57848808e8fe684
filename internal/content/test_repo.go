package content

import (
	"context"
	"sort"
	"sync"
)

// TestRepo is an in-memory Repo for handler tests.
type TestRepo struct {
	mu     sync.Mutex
	docs   map[int]*Document
	nextID int

	Err error
}

var _ Repo = (*TestRepo)(nil)

func NewTestRepo() *TestRepo {
	return &TestRepo{
		docs:   make(map[int]*Document),
		nextID: 1,
	}
}

func (r *TestRepo) Add(_ context.Context, doc *Document) (*Document, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.docs {
		if existing.Kind == doc.Kind && existing.Slug == doc.Slug {
			return nil, ErrSlugTaken
		}
	}
	stored := *doc
	stored.ID = r.nextID
	r.nextID++
	r.docs[stored.ID] = &stored
	result := stored
	return &result, nil
}

func (r *TestRepo) Get(_ context.Context, id int) (*Document, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	result := *doc
	return &result, nil
}

func (r *TestRepo) GetBySlug(_ context.Context, kind, slug string) (*Document, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.Kind == kind && doc.Slug == slug {
			result := *doc
			return &result, nil
		}
	}
	return nil, ErrDocumentNotFound
}

func (r *TestRepo) Update(_ context.Context, doc *Document) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.docs[doc.ID]
	if !ok {
		return ErrDocumentNotFound
	}
	for id, other := range r.docs {
		if id != doc.ID && other.Kind == existing.Kind && other.Slug == doc.Slug {
			return ErrSlugTaken
		}
	}
	updated := *doc
	updated.Kind = existing.Kind
	updated.CreatedAt = existing.CreatedAt
	r.docs[doc.ID] = &updated
	return nil
}

func (r *TestRepo) Delete(_ context.Context, id int) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *TestRepo) List(_ context.Context, kind string, publishedOnly bool) ([]Document, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []Document
	for _, doc := range r.docs {
		if doc.Kind != kind {
			continue
		}
		if publishedOnly && !doc.Published {
			continue
		}
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContentTestRouter(t *testing.T) (*TestRepo, *mux.Router) {
	t.Helper()
	repo := NewTestRepo()
	handler := NewHandler(repo)
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return repo, router
}

func addTestDoc(t *testing.T, repo *TestRepo, kind, slug string, published bool) *Document {
	t.Helper()
	doc, err := repo.Add(context.Background(), &Document{
		Kind:      kind,
		Slug:      slug,
		Title:     "Title of " + slug,
		Content:   "content of " + slug,
		Published: published,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	return doc
}

func TestHandler_PublicList_PublishedOnly(t *testing.T) {
	repo, router := newContentTestRouter(t)
	addTestDoc(t, repo, KindDocument, "welcome", true)
	addTestDoc(t, repo, KindDocument, "draft-notes", false)
	addTestDoc(t, repo, KindPage, "about", true)

	req := httptest.NewRequest("GET", "/documents", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var docs []Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "welcome", docs[0].Slug)
}

func TestHandler_PublicGet(t *testing.T) {
	repo, router := newContentTestRouter(t)
	addTestDoc(t, repo, KindDocument, "welcome", true)
	addTestDoc(t, repo, KindDocument, "draft-notes", false)
	addTestDoc(t, repo, KindPage, "about", true)

	testCases := []struct {
		name           string
		path           string
		expectedStatus int
		expectedSlug   string
	}{
		{
			name:           "published document",
			path:           "/documents/welcome",
			expectedStatus: http.StatusOK,
			expectedSlug:   "welcome",
		},
		{
			name:           "published page",
			path:           "/pages/about",
			expectedStatus: http.StatusOK,
			expectedSlug:   "about",
		},
		{
			name:           "draft is hidden",
			path:           "/documents/draft-notes",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown slug",
			path:           "/documents/nope",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "page slug does not resolve as document",
			path:           "/documents/about",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedSlug != "" {
				var doc Document
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
				assert.Equal(t, tc.expectedSlug, doc.Slug)
			}
		})
	}
}

func TestHandler_AdminListIncludesDrafts(t *testing.T) {
	repo, router := newContentTestRouter(t)
	addTestDoc(t, repo, KindDocument, "welcome", true)
	addTestDoc(t, repo, KindDocument, "draft-notes", false)

	req := httptest.NewRequest("GET", "/api/admin/documents", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var docs []Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
	assert.Len(t, docs, 2)
}

func TestHandler_Add(t *testing.T) {
	repo, router := newContentTestRouter(t)

	body := `{"slug":"welcome","title":"Welcome","content":"hello","published":true}`
	req := httptest.NewRequest("POST", "/api/admin/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var doc Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, 1, doc.ID)
	assert.Equal(t, KindDocument, doc.Kind)
	assert.Equal(t, "welcome", doc.Slug)
	assert.False(t, doc.CreatedAt.IsZero())

	stored, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", stored.Title)
}

func TestHandler_Add_Invalid(t *testing.T) {
	_, router := newContentTestRouter(t)

	// missing slug
	req := httptest.NewRequest("POST", "/api/admin/documents", strings.NewReader(`{"title":"Welcome"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// broken json
	req = httptest.NewRequest("POST", "/api/admin/documents", strings.NewReader(`{slug:`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Add_SlugTaken(t *testing.T) {
	repo, router := newContentTestRouter(t)
	addTestDoc(t, repo, KindDocument, "welcome", true)

	body := `{"slug":"welcome","title":"Welcome Again"}`
	req := httptest.NewRequest("POST", "/api/admin/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandler_Add_PageSlugIndependentOfDocuments(t *testing.T) {
	repo, router := newContentTestRouter(t)
	addTestDoc(t, repo, KindDocument, "welcome", true)

	// same slug, different kind
	body := `{"slug":"welcome","title":"Welcome Page"}`
	req := httptest.NewRequest("POST", "/api/admin/pages", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	page, err := repo.GetBySlug(context.Background(), KindPage, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Welcome Page", page.Title)
}

func TestHandler_Update(t *testing.T) {
	repo, router := newContentTestRouter(t)
	doc := addTestDoc(t, repo, KindDocument, "welcome", false)

	body := `{"slug":"welcome","title":"Welcome v2","content":"updated","published":true}`
	req := httptest.NewRequest("PUT", fmt.Sprintf("/api/admin/documents/%d", doc.ID), strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, fmt.Sprintf(`{"updated":%d}`, doc.ID), rr.Body.String())

	updated, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome v2", updated.Title)
	assert.True(t, updated.Published)
}

func TestHandler_Update_NotFound(t *testing.T) {
	_, router := newContentTestRouter(t)

	body := `{"slug":"welcome","title":"Welcome"}`
	req := httptest.NewRequest("PUT", "/api/admin/documents/42", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Delete(t *testing.T) {
	repo, router := newContentTestRouter(t)
	doc := addTestDoc(t, repo, KindDocument, "welcome", true)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/api/admin/documents/%d", doc.ID), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, err := repo.Get(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	// deleting again is a 404
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alcorzop/portal-gateway/internal/middleware"
	"github.com/alcorzop/portal-gateway/internal/telemetry/tracing"
	"github.com/alcorzop/portal-gateway/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type Handler struct {
	repo Repo

	NowFunc func() time.Time
}

func NewHandler(repo Repo) *Handler {
	return &Handler{
		repo:    repo,
		NowFunc: time.Now,
	}
}

// SetupRoutes registers the public read-only routes on mainRouter and the
// full CRUD under the admin API prefix. The auth gateway in front of the
// router is what keeps the admin routes out of public reach.
func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/documents", handler.handlePublicList(KindDocument)).Methods("GET", "OPTIONS").Name("list-documents")
	mainRouter.HandleFunc("/documents/{slug}", handler.handlePublicGet(KindDocument)).Methods("GET", "OPTIONS").Name("get-document")
	mainRouter.HandleFunc("/pages/{slug}", handler.handlePublicGet(KindPage)).Methods("GET", "OPTIONS").Name("get-page")

	adminRouter := mainRouter.PathPrefix(middleware.AdminAPIPrefix).Subrouter()
	for kind, route := range map[string]string{
		KindDocument: "/documents",
		KindPage:     "/pages",
	} {
		adminRouter.HandleFunc(route, handler.handleAdminList(kind)).Methods("GET", "OPTIONS")
		adminRouter.HandleFunc(route, handler.handleAdd(kind)).Methods("POST", "OPTIONS")
		adminRouter.HandleFunc(route+"/{id}", handler.handleUpdate).Methods("PUT", "OPTIONS")
		adminRouter.HandleFunc(route+"/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS")
	}
}

func (handler *Handler) handlePublicList(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.publicList")
		defer span.End()

		docs, err := handler.repo.List(ctx, kind, true)
		if err != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("list documents: %s", err))
			log.Errorf("list %ss: %s", kind, err)
			http.Error(w, "failed to list documents", http.StatusInternalServerError)
			return
		}
		handler.writeJSON(w, docs)
	}
}

func (handler *Handler) handlePublicGet(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.publicGet")
		defer span.End()

		slug := mux.Vars(r)["slug"]
		doc, err := handler.repo.GetBySlug(ctx, kind, slug)
		if err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				http.NotFound(w, r)
				return
			}
			span.SetStatus(codes.Error, fmt.Sprintf("get document: %s", err))
			log.Errorf("get %s [%s]: %s", kind, slug, err)
			http.Error(w, "failed to get document", http.StatusInternalServerError)
			return
		}

		// drafts are visible through the admin UI only
		if !doc.Published && !middleware.IsAdminUI(r.Context()) {
			http.NotFound(w, r)
			return
		}
		handler.writeJSON(w, doc)
	}
}

func (handler *Handler) handleAdminList(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.adminList")
		defer span.End()

		docs, err := handler.repo.List(ctx, kind, false)
		if err != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("list documents: %s", err))
			log.Errorf("admin list %ss: %s", kind, err)
			http.Error(w, "failed to list documents", http.StatusInternalServerError)
			return
		}
		handler.writeJSON(w, docs)
	}
}

type documentRequest struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

func (handler *Handler) handleAdd(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.add")
		defer span.End()

		var docReq documentRequest
		if err := json.NewDecoder(r.Body).Decode(&docReq); err != nil {
			log.Errorf("add %s, unmarshal json params: %s", kind, err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if docReq.Slug == "" || docReq.Title == "" {
			http.Error(w, "error, slug or title empty", http.StatusBadRequest)
			return
		}

		now := handler.NowFunc()
		doc, err := handler.repo.Add(ctx, &Document{
			Kind:      kind,
			Slug:      docReq.Slug,
			Title:     docReq.Title,
			Content:   docReq.Content,
			Published: docReq.Published,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			if errors.Is(err, ErrSlugTaken) {
				http.Error(w, "error, slug already taken", http.StatusConflict)
				return
			}
			span.SetStatus(codes.Error, fmt.Sprintf("add document: %s", err))
			log.Errorf("add %s [%s]: %s", kind, docReq.Slug, err)
			http.Error(w, "failed to add document", http.StatusInternalServerError)
			return
		}

		log.Tracef("new %s added: [%s] %d", kind, doc.Slug, doc.ID)
		handler.writeJSON(w, doc)
	}
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.update")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	var docReq documentRequest
	if err := json.NewDecoder(r.Body).Decode(&docReq); err != nil {
		log.Errorf("update document, unmarshal json params: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if docReq.Slug == "" || docReq.Title == "" {
		http.Error(w, "error, slug or title empty", http.StatusBadRequest)
		return
	}

	err = handler.repo.Update(ctx, &Document{
		ID:        id,
		Slug:      docReq.Slug,
		Title:     docReq.Title,
		Content:   docReq.Content,
		Published: docReq.Published,
		UpdatedAt: handler.NowFunc(),
	})
	switch {
	case err == nil:
		pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"updated":%d}`, id))
	case errors.Is(err, ErrDocumentNotFound):
		http.NotFound(w, r)
	case errors.Is(err, ErrSlugTaken):
		http.Error(w, "error, slug already taken", http.StatusConflict)
	default:
		span.SetStatus(codes.Error, fmt.Sprintf("update document: %s", err))
		log.Errorf("update document %d: %s", id, err)
		http.Error(w, "failed to update document", http.StatusInternalServerError)
	}
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			http.NotFound(w, r)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("delete document: %s", err))
		log.Errorf("delete document %d: %s", id, err)
		http.Error(w, "failed to delete document", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"deleted":%d}`, id))
}

func (handler *Handler) writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal documents response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, data)
}

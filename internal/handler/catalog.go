package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/service"
)

// Catalog is what CatalogHandler needs; *service.CatalogService implements it.
type Catalog interface {
	Projects(ctx context.Context, page int) (service.Listing[service.ProjectCard], error)
	Ranking(ctx context.Context, page int) (service.Listing[service.RankingRow], error)
	Project(ctx context.Context, id string) (service.ProjectDetail, error)
	DeleteProject(ctx context.Context, id string) error
	Evaluate(ctx context.Context, projectID string, draft rating.Draft) (service.EvaluationResult, error)
	Draft(projectID string) (rating.Draft, bool)
	DiscardDraft(projectID string)
}

var _ Catalog = (*service.CatalogService)(nil)

// CatalogHandler serves listings, project pages and evaluations.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleProjects returns a page of projects with rating summaries and the
// pagination window.
//
// HTTP: GET /api/projects?page=N
//
// An out-of-range page is not an error: the listing stays where it was and
// the response says so through pagination.currentPage.
func (h *CatalogHandler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	listing, err := h.catalog.Projects(r.Context(), page)
	if err != nil {
		h.logger.Warn("listing projects failed", slog.Int("page", page), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleRanking is HandleProjects for the ranking.
//
// HTTP: GET /api/ranking?page=N
func (h *CatalogHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	listing, err := h.catalog.Ranking(r.Context(), page)
	if err != nil {
		h.logger.Warn("listing ranking failed", slog.Int("page", page), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleProject returns a project page.
//
// HTTP: GET /api/projects/{id}
func (h *CatalogHandler) HandleProject(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleDeleteProject removes a project.
//
// HTTP: DELETE /api/projects/{id}
func (h *CatalogHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvaluate submits an evaluation and returns the average that was
// sent.
//
// HTTP: POST /api/projects/{id}/evaluations
//
// Request body:
//
//	{"dimensions": {"security": 3, "functionality": 4, "efficiency": 5,
//	                "design": 2, "architecture": 5},
//	 "feedback": "Buen trabajo"}
func (h *CatalogHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var draft rating.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.catalog.Evaluate(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleGetDraft returns the draft kept after a failed submission.
//
// HTTP: GET /api/projects/{id}/evaluations/draft
func (h *CatalogHandler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.catalog.Draft(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No hay un borrador para este proyecto",
		})
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// HandleDiscardDraft closes the evaluation form for a project.
//
// HTTP: DELETE /api/projects/{id}/evaluations/draft
func (h *CatalogHandler) HandleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	h.catalog.DiscardDraft(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

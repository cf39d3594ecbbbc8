// Package service contains the front-end's business logic.
//
// THE THREE LAYERS, CLIENT EDITION:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → role checks, pagination, evaluation forms
//	Repository (remote API)  → redapi.Client talking to the backend
//
// Services take repository interfaces, never *redapi.Client, so their tests
// run against in-memory fakes without an HTTP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/pagination"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/repository"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

// CatalogOptions sizes the listings.
type CatalogOptions struct {
	PageSize        int
	MaxVisiblePages int
}

// ProjectCard is a project as shown in a listing.
type ProjectCard struct {
	Project model.Project  `json:"project"`
	Rating  rating.Summary `json:"rating"`
}

// RankingRow is one line of the ranking.
type RankingRow struct {
	model.RankingEntry
	Rating rating.Summary `json:"rating"`
}

// Listing is one page of a listing plus what its pagination control needs.
type Listing[T any] struct {
	Items      []T             `json:"items"`
	Pagination pagination.View `json:"pagination"`
}

// ProjectDetail is the project page.
type ProjectDetail struct {
	Project     model.Project      `json:"project"`
	Rating      rating.Summary     `json:"rating"`
	Evaluations []model.Evaluation `json:"evaluations"`
	CanEvaluate bool               `json:"canEvaluate"`
}

// CatalogService serves the project listing, the ranking, project pages and
// evaluation submissions.
//
// It keeps one pager per listing and one evaluation form per project being
// rated. Forms are dropped when the session ends so a draft never outlives
// the user who typed it.
type CatalogService struct {
	projects repository.ProjectRepository
	session  *session.Store
	logger   *slog.Logger
	opts     CatalogOptions

	projectPager *pagination.Pager[ProjectCard]
	rankingPager *pagination.Pager[RankingRow]

	mu          sync.Mutex
	forms       map[string]*rating.Form
	unsubscribe func()
}

func NewCatalogService(
	projects repository.ProjectRepository,
	store *session.Store,
	opts CatalogOptions,
	logger *slog.Logger,
) *CatalogService {
	if opts.PageSize <= 0 {
		opts.PageSize = 9
	}
	if opts.MaxVisiblePages <= 0 {
		opts.MaxVisiblePages = 5
	}

	s := &CatalogService{
		projects: projects,
		session:  store,
		logger:   logger,
		opts:     opts,
		forms:    make(map[string]*rating.Form),
	}
	s.projectPager = pagination.NewPager(s.loadProjects, opts.MaxVisiblePages, logger)
	s.rankingPager = pagination.NewPager(s.loadRanking, opts.MaxVisiblePages, logger)
	s.unsubscribe = store.Subscribe(func(st session.State) {
		if !st.IsAuthenticated {
			s.discardForms()
		}
	})
	return s
}

// Close detaches every pager and form; results still in flight are dropped.
func (s *CatalogService) Close() {
	s.unsubscribe()
	s.projectPager.Close()
	s.rankingPager.Close()
	s.discardForms()
}

// =========================================================================
// LISTINGS
// =========================================================================

func (s *CatalogService) loadProjects(ctx context.Context, page int) (pagination.Page[ProjectCard], error) {
	res, err := s.projects.ListProjects(ctx, page, s.opts.PageSize)
	if err != nil {
		return pagination.Page[ProjectCard]{}, err
	}
	cards := make([]ProjectCard, len(res.Items))
	for i, p := range res.Items {
		cards[i] = ProjectCard{Project: p, Rating: rating.Summarize(p.Scores)}
	}
	return pagination.Page[ProjectCard]{Items: cards, TotalPages: res.TotalPages}, nil
}

func (s *CatalogService) loadRanking(ctx context.Context, page int) (pagination.Page[RankingRow], error) {
	res, err := s.projects.Ranking(ctx, page, s.opts.PageSize)
	if err != nil {
		return pagination.Page[RankingRow]{}, err
	}
	offset := (page - 1) * s.opts.PageSize
	rows := make([]RankingRow, len(res.Items))
	for i, p := range res.Items {
		rows[i] = RankingRow{
			RankingEntry: model.RankingEntry{Position: offset + i + 1, Project: p},
			Rating:       rating.Summarize(p.Scores),
		}
	}
	return pagination.Page[RankingRow]{Items: rows, TotalPages: res.TotalPages}, nil
}

// Projects returns the project listing at page. page <= 0 means "stay where
// you are". Invalid pages leave the listing unchanged.
func (s *CatalogService) Projects(ctx context.Context, page int) (Listing[ProjectCard], error) {
	return showPage(ctx, s.projectPager, page)
}

// Ranking returns the ranking at page, with the same rules as Projects.
func (s *CatalogService) Ranking(ctx context.Context, page int) (Listing[RankingRow], error) {
	return showPage(ctx, s.rankingPager, page)
}

func showPage[T any](ctx context.Context, p *pagination.Pager[T], page int) (Listing[T], error) {
	// Nothing is a valid page until the first load has reported a total.
	if p.State().TotalPages == 0 {
		if err := p.Reload(ctx); err != nil {
			return Listing[T]{}, err
		}
	}
	if page > 0 {
		if err := p.RequestPageChange(ctx, page); err != nil {
			return Listing[T]{}, err
		}
	}
	return Listing[T]{Items: p.Items(), Pagination: p.View()}, nil
}

// =========================================================================
// PROJECT PAGE
// =========================================================================

// Project loads a project and its evaluations in parallel.
func (s *CatalogService) Project(ctx context.Context, id string) (ProjectDetail, error) {
	var (
		project model.Project
		evals   []model.Evaluation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.projects.GetProject(gctx, id)
		if err != nil {
			return err
		}
		project = p
		return nil
	})
	g.Go(func() error {
		e, err := s.projects.ListEvaluations(gctx, id)
		if err != nil {
			// The page is still useful without the evaluation list.
			if errors.Is(err, apperror.ErrNotFound) {
				return nil
			}
			return err
		}
		evals = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return ProjectDetail{}, fmt.Errorf("loading project %s: %w", id, err)
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}

	scores := project.Scores
	if len(scores) == 0 {
		for _, e := range evals {
			scores = append(scores, e.Score)
		}
	}

	user, ok := s.session.User()
	return ProjectDetail{
		Project:     project,
		Rating:      rating.Summarize(scores),
		Evaluations: evals,
		CanEvaluate: ok && user.IsProfessor(),
	}, nil
}

// DeleteProject removes a project and refreshes the listing if one is shown.
func (s *CatalogService) DeleteProject(ctx context.Context, id string) error {
	if _, ok := s.session.User(); !ok {
		return apperror.Unauthorized(0, "")
	}
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if s.projectPager.State().TotalPages > 0 {
		if err := s.projectPager.Reload(ctx); err != nil {
			s.logger.Warn("refreshing listing after delete failed",
				slog.String("projectID", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

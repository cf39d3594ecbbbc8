package service

import (
	"context"
	"log/slog"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
)

// EvaluationResult is what a successful submission reports back.
type EvaluationResult struct {
	ProjectID string       `json:"projectId"`
	Average   float64      `json:"average"`
	Stars     rating.Stars `json:"stars"`
}

// requireProfessor checks the role client-side; the backend checks again.
func (s *CatalogService) requireProfessor() error {
	user, ok := s.session.User()
	if !ok {
		return apperror.Unauthorized(0, "")
	}
	if !user.IsProfessor() {
		return apperror.Forbidden("Solo los profesores pueden evaluar proyectos")
	}
	return nil
}

// form returns the open form for projectID, creating it on first use.
func (s *CatalogService) form(projectID string) *rating.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[projectID]
	if !ok {
		f = rating.NewForm(projectID, s.projects, s.logger)
		s.forms[projectID] = f
	}
	return f
}

// Evaluate stores draft as the form's content and submits it. On failure the
// draft stays available through Draft for a retry; on success the form is
// retired.
func (s *CatalogService) Evaluate(ctx context.Context, projectID string, draft rating.Draft) (EvaluationResult, error) {
	if err := s.requireProfessor(); err != nil {
		return EvaluationResult{}, err
	}

	f := s.form(projectID)
	if f.Pending() {
		return EvaluationResult{}, apperror.Conflict("ya hay una evaluación en curso para este proyecto")
	}
	f.SetDraft(draft)

	avg, err := f.Submit(ctx)
	if err != nil {
		return EvaluationResult{}, err
	}

	s.mu.Lock()
	if s.forms[projectID] == f {
		delete(s.forms, projectID)
	}
	s.mu.Unlock()

	return EvaluationResult{
		ProjectID: projectID,
		Average:   avg,
		Stars:     rating.StarBreakdown(avg, rating.DefaultMaxStars),
	}, nil
}

// Draft returns what is left in the form for projectID, if a form is open.
func (s *CatalogService) Draft(projectID string) (rating.Draft, bool) {
	s.mu.Lock()
	f, ok := s.forms[projectID]
	s.mu.Unlock()
	if !ok {
		return rating.Draft{}, false
	}
	return f.Draft(), true
}

// DiscardDraft closes the form for projectID. A submission still in flight
// completes on the backend but its result is dropped.
func (s *CatalogService) DiscardDraft(projectID string) {
	s.mu.Lock()
	f, ok := s.forms[projectID]
	delete(s.forms, projectID)
	s.mu.Unlock()
	if ok {
		f.Close()
	}
}

func (s *CatalogService) discardForms() {
	s.mu.Lock()
	forms := s.forms
	s.forms = make(map[string]*rating.Form)
	s.mu.Unlock()

	for id, f := range forms {
		f.Close()
		s.logger.Debug("evaluation form discarded", slog.String("projectID", id))
	}
}

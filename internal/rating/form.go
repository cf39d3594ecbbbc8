package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/inflight"
)

// MaxFeedbackLength bounds the free-text feedback, in characters.
const MaxFeedbackLength = 2000

// ErrClosed is returned when a form is used, or a response arrives, after
// Close. The result is dropped without touching the form.
var ErrClosed = errors.New("rating: form closed")

// Dimensions are the five criteria a professor scores, each 1-5.
// A zero value means the criterion was left unanswered.
type Dimensions struct {
	Security      int `json:"security"`
	Functionality int `json:"functionality"`
	Efficiency    int `json:"efficiency"`
	Design        int `json:"design"`
	Architecture  int `json:"architecture"`
}

func (d Dimensions) fields() []struct {
	name  string
	value int
} {
	return []struct {
		name  string
		value int
	}{
		{"security", d.Security},
		{"functionality", d.Functionality},
		{"efficiency", d.Efficiency},
		{"design", d.Design},
		{"architecture", d.Architecture},
	}
}

// Validate rejects unanswered or out-of-range criteria. Nothing is
// defaulted: a missing answer is the user's to give.
func (d Dimensions) Validate() error {
	for _, f := range d.fields() {
		if f.value == 0 {
			return apperror.ValidationFailed(f.name,
				fmt.Sprintf("falta calificar %s", f.name))
		}
		if f.value < MinScore || f.value > MaxScore {
			return apperror.ValidationFailed(f.name,
				fmt.Sprintf("%s debe estar entre %d y %d", f.name, MinScore, MaxScore))
		}
	}
	return nil
}

// Average is the single score sent to the backend. The five criteria are
// not transmitted individually.
func (d Dimensions) Average() float64 {
	sum := 0
	for _, f := range d.fields() {
		sum += f.value
	}
	return float64(sum) / float64(len(d.fields()))
}

// Submitter transmits one aggregated score. redapi.Client implements it.
type Submitter interface {
	SubmitScore(ctx context.Context, projectID string, score float64, feedback string) error
}

// SubmitEvaluation validates dims, averages them, and sends only the average
// (plus feedback) for projectID. Validation errors never reach the network.
func SubmitEvaluation(ctx context.Context, s Submitter, projectID string, dims Dimensions, feedback string) (float64, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return 0, apperror.ValidationFailed("projectId", "el proyecto es obligatorio")
	}
	if err := dims.Validate(); err != nil {
		return 0, err
	}
	feedback = strings.TrimSpace(feedback)
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return 0, apperror.ValidationFailed("feedback",
			fmt.Sprintf("el comentario debe tener %d caracteres o menos", MaxFeedbackLength))
	}

	avg := dims.Average()
	if err := s.SubmitScore(ctx, projectID, avg, feedback); err != nil {
		return 0, fmt.Errorf("rating: submitting evaluation for %s: %w", projectID, err)
	}
	return avg, nil
}

// Draft is what the user has typed so far.
type Draft struct {
	Dimensions Dimensions `json:"dimensions"`
	Feedback   string     `json:"feedback"`
}

// Form is one evaluation form instance for one project.
//
// While a submission is pending, further Submit calls are refused with a
// Conflict (the button is "disabled"). The draft survives failures so the
// user can retry and is cleared only on confirmed success.
type Form struct {
	projectID string
	submitter Submitter
	logger    *slog.Logger
	latch     inflight.Latch

	mu     sync.Mutex
	draft  Draft
	closed bool
}

func NewForm(projectID string, submitter Submitter, logger *slog.Logger) *Form {
	return &Form{
		projectID: projectID,
		submitter: submitter,
		logger:    logger,
	}
}

func (f *Form) ProjectID() string { return f.projectID }

// Draft returns the current draft.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetDraft replaces the draft, e.g. on every form change.
func (f *Form) SetDraft(d Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
}

// Pending reports whether a submission is in flight.
func (f *Form) Pending() bool {
	return f.latch.Held()
}

// Close marks the form as gone. A response arriving afterwards is dropped.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Submit sends the current draft and returns the transmitted average.
func (f *Form) Submit(ctx context.Context) (float64, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}
	draft := f.draft
	f.mu.Unlock()

	if !f.latch.TryAcquire() {
		return 0, apperror.Conflict("ya hay una evaluación en curso para este proyecto")
	}
	defer f.latch.Release()

	avg, err := SubmitEvaluation(ctx, f.submitter, f.projectID, draft.Dimensions, draft.Feedback)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.logger.Debug("discarding evaluation result for closed form",
			slog.String("projectID", f.projectID),
		)
		return 0, ErrClosed
	}
	if err != nil {
		f.logger.Warn("evaluation submission failed",
			slog.String("projectID", f.projectID),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	f.draft = Draft{}
	f.logger.Info("evaluation submitted",
		slog.String("projectID", f.projectID),
		slog.Float64("average", avg),
	)
	return avg, nil
}

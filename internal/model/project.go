package model

import (
	"encoding/json"
	"time"

	"github.com/montanaflynn/stats"
)

// Project is a student submission as returned by the backend.
//
// Scores holds every individual rating received. The average is always
// derived from it (see AverageScore) and never stored next to it, so the two
// can not drift apart.
type Project struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Authors        []string  `json:"authors"`
	Tags           []string  `json:"tags"`
	Tools          []string  `json:"tools"`
	RepositoryLink string    `json:"repositoryLink"`
	Image          string    `json:"image"`
	Document       string    `json:"document"`
	Scores         []float64 `json:"scores"`
	Comments       []string  `json:"comments"`
	Date           time.Time `json:"date"`
}

// AverageScore returns the mean of Scores and false when there are none.
func (p Project) AverageScore() (float64, bool) {
	if len(p.Scores) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(p.Scores)
	if err != nil {
		return 0, false
	}
	return mean, true
}

// Evaluation is one rater's score and feedback for one project.
type Evaluation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	TeacherID string    `json:"teacherId"`
	Score     float64   `json:"score"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts the backend's "_id" as a fallback for "id".
func (p *Project) UnmarshalJSON(b []byte) error {
	type alias Project
	var w struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Project(w.alias)
	if p.ID == "" {
		p.ID = w.MongoID
	}
	return nil
}

// UnmarshalJSON accepts the backend's "_id" as a fallback for "id".
func (e *Evaluation) UnmarshalJSON(b []byte) error {
	type alias Evaluation
	var w struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Evaluation(w.alias)
	if e.ID == "" {
		e.ID = w.MongoID
	}
	return nil
}

// RankingEntry is one row of the ranking: a project and its 1-based place.
type RankingEntry struct {
	Position int     `json:"position"`
	Project  Project `json:"project"`
}

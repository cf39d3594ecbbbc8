// Package repository declares what the front-end needs from the remote
// backend. redapi.Client implements every interface here; services depend on
// the interfaces so tests can swap in hand-written fakes.
package repository

import (
	"context"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
)

type ProjectRepository interface {
	ListProjects(ctx context.Context, page, limit int) (model.Page[model.Project], error)
	Ranking(ctx context.Context, page, limit int) (model.Page[model.Project], error)
	GetProject(ctx context.Context, id string) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListEvaluations(ctx context.Context, projectID string) ([]model.Evaluation, error)
	rating.Submitter
}

type AccountRepository interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req model.Registration) (model.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangeRole(ctx context.Context, userID, role string) error
	DeleteUser(ctx context.Context, userID string) error
}

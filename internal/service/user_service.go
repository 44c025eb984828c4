package service

import (
	"context"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type userLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// UserService exposes the admin user directory.
type UserService struct {
	repo userLister
}

// NewUserService constructs the service.
func NewUserService(repo userLister) *UserService {
	return &UserService{repo: repo}
}

// List returns users with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "rol inválido")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron listar los usuarios")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

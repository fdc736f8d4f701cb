package user

import (
	"context"

	"github.com/clarahq/clara-backend/internal/model/request"
	"github.com/clarahq/clara-backend/internal/model/response"
	"github.com/clarahq/clara-backend/internal/repository"
	"github.com/gofrs/uuid"
)

// UserService wraps the admin-account repository for the dashboard
// auth endpoints. Password hashing stays in the handler.
type UserService struct {
	Repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{Repo: repo}
}

func (s *UserService) CheckIfUserExistsByUsername(ctx context.Context, username string) bool {
	user, err := s.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		return false
	}
	return user.ID != uuid.Nil
}

func (s *UserService) GetUserById(ctx context.Context, userID uuid.UUID) (response.User, error) {
	return s.Repo.GetUserById(ctx, userID)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (response.User, error) {
	return s.Repo.GetUserByUsername(ctx, username)
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]response.User, error) {
	return s.Repo.GetAllUsers(ctx)
}

func (s *UserService) CreateOrAuthenticateUserWithPassword(ctx context.Context, user *request.CreateUserWithPassword) (response.User, error) {
	return s.Repo.CreateOrAuthenticateUserWithPassword(ctx, user)
}

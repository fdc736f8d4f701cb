package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clarahq/clara-backend/internal/model/request"
	"github.com/clarahq/clara-backend/internal/model/response"
	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository stores the admin accounts behind the CLARA dashboard.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUserWithPassword(ctx context.Context, req *request.CreateUserWithPassword) (response.User, error) {
	var user response.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id, username`,
		req.Username, req.Password)
	if err != nil {
		return response.User{}, fmt.Errorf("failed to create admin user: %w", err)
	}
	return user, nil
}

// CreateOrAuthenticateUserWithPassword returns the existing account or
// registers one on first login. The handler verifies the password before
// calling this with an existing username.
func (r *UserRepository) CreateOrAuthenticateUserWithPassword(ctx context.Context, req *request.CreateUserWithPassword) (response.User, error) {
	var user response.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username FROM users WHERE username = $1`, req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return r.CreateUserWithPassword(ctx, req)
	}
	if err != nil {
		return response.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetUserById(ctx context.Context, userID uuid.UUID) (response.User, error) {
	var user response.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, is_super_admin FROM users WHERE id = $1`, userID)
	if err != nil {
		return response.User{}, err
	}
	// Only super admins see the flag in their profile.
	if user.IsSuperAdmin != nil && !*user.IsSuperAdmin {
		user.IsSuperAdmin = nil
	}
	return user, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (response.User, error) {
	var user response.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, is_super_admin, password FROM users WHERE username = $1`, username)
	if err != nil {
		return response.User{}, err
	}
	return user, nil
}

func (r *UserRepository) IsUserSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var isSuperAdmin sql.NullBool
	err := r.db.GetContext(ctx, &isSuperAdmin, `SELECT is_super_admin FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return isSuperAdmin.Valid && isSuperAdmin.Bool, nil
}

func (r *UserRepository) GetAllUsers(ctx context.Context) ([]response.User, error) {
	var users []response.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, username, is_super_admin, created_at, updated_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	return users, nil
}

package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/repository"
	"github.com/gofrs/uuid"
)

type ServiceInterface interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, message string) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, perPage int) ([]entity.Notification, *entity.PaginationInfo, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// Service stores notifications for the extension to poll; the server has
// no push channel to the browser.
type Service struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Notify(ctx context.Context, userID uuid.UUID, kind, title, message string) error {
	n := &entity.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver %s notification: %w", kind, err)
	}
	log.Printf("notification: %s -> %s: %s", kind, userID, title)
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, perPage int) ([]entity.Notification, *entity.PaginationInfo, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}

	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + perPage - 1) / perPage
	return items, &entity.PaginationInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

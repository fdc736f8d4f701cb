// internal/handler/notification/notification_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	"github.com/clarahq/clara-backend/internal/service/notification"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type NotificationHandler struct {
	notifications notification.ServiceInterface
}

func NewNotificationHandler(notifications notification.ServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
	}
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (h *NotificationHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.FromString(c.GetString("extension_user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
			Message: "Extension user not found in context",
			Success: false,
		})
		return uuid.Nil, false
	}
	return userID, true
}

// List godoc
// @Summary      List notifications
// @Description  Notifications for the extension to poll, newest first
// @Tags         /api/v1/clara/notifications
// @Produce      json
// @Param        unread_only  query     bool  false  "Only unread"
// @Param        page         query     int   false  "Page (default 1)"
// @Param        per_page     query     int   false  "Items per page (default 50, cap 100)"
// @Success      200  {object}  entity.PaginatedResponse{data=[]entity.Notification}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread_only") == "true"
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	items, pagination, err := h.notifications.List(c.Request.Context(), userID, unreadOnly, page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, entity.PaginatedResponse{
		Data:       items,
		Success:    true,
		Pagination: *pagination,
	})
}

// MarkRead godoc
// @Summary      Mark notifications read
// @Description  Marks the given ids, or every unread notification when ids is empty
// @Tags         /api/v1/clara/notifications
// @Accept       json
// @Produce      json
// @Param        ids  body      markReadRequest  false  "Notification ids"
// @Success      200  {object}  wrapper.ResponseWrapper{data=int64}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /notifications/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req markReadRequest
	_ = c.ShouldBindJSON(&req)

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.FromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
				Message: "Invalid notification id: " + raw,
				Success: false,
			})
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), userID, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: updated, Success: true})
}

// UnreadCount godoc
// @Summary      Unread notification count
// @Tags         /api/v1/clara/notifications
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=int}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: count, Success: true})
}

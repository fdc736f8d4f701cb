// internal/handler/extension_user_handler.go
package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	"github.com/clarahq/clara-backend/internal/service/extension_user"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// ExtensionUserHandler manages CLARA extension installs: the admin UI
// provisions API keys here, the extension validates its own key.
type ExtensionUserHandler struct {
	service service.ExtensionUserService
}

func NewExtensionUserHandler(service service.ExtensionUserService) *ExtensionUserHandler {
	return &ExtensionUserHandler{
		service: service,
	}
}

// respondServiceError maps the known service failures onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case msg == "user not found" || errors.Is(err, sql.ErrNoRows):
		status, msg = http.StatusNotFound, "Extension user not found"
	case msg == "username already exists":
		status = http.StatusBadRequest
	case msg == "user is inactive":
		status, msg = http.StatusBadRequest, "Cannot regenerate API key for inactive user"
	}
	c.JSON(status, wrapper.ErrorWrapper{
		Message: msg,
		Success: false,
	})
}

func pathUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid UUID format",
			Success: false,
		})
		return uuid.Nil, false
	}
	return userID, true
}

// CreateExtensionUser godoc
// @Summary      Create extension user
// @Description  Provision a CLARA extension install with a fresh API key
// @Tags         /api/v1/admin/extension
// @Accept       json
// @Produce      json
// @Param        user  body      entity.CreateExtensionUserRequest  true  "User data"
// @Success      201   {object}  wrapper.ResponseWrapper{data=entity.ExtensionUser}
// @Failure      400   {object}  wrapper.ErrorWrapper
// @Failure      500   {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/generate [post]
func (h *ExtensionUserHandler) CreateExtensionUser(c *gin.Context) {
	var req entity.CreateExtensionUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// The only response that ever carries the plain API key.
	c.JSON(http.StatusCreated, wrapper.ResponseWrapper{
		Data:    user,
		Success: true,
	})
}

// GetExtensionUserByID godoc
// @Summary      Get extension user by ID
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.ExtensionUserPublic}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      404  {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/{id} [get]
func (h *ExtensionUserHandler) GetExtensionUserByID(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    user,
		Success: true,
	})
}

// GetExtensionUserByUsername godoc
// @Summary      Get extension user by username
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Param        username   path      string  true  "Username"
// @Success      200        {object}  wrapper.ResponseWrapper{data=entity.ExtensionUserPublic}
// @Failure      404        {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/by-username/{username} [get]
func (h *ExtensionUserHandler) GetExtensionUserByUsername(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Username is required",
			Success: false,
		})
		return
	}

	user, err := h.service.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    user,
		Success: true,
	})
}

// GetAllExtensionUsers godoc
// @Summary      List extension users
// @Description  List extension installs with optional filters
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Param        username   query     string  false  "Filter by username"
// @Param        isActive   query     bool    false  "Filter by active status"
// @Param        limit      query     int     false  "Limit (default: 50, max: 200)"
// @Param        offset     query     int     false  "Offset (default: 0)"
// @Success      200        {object}  wrapper.ResponseWrapper{data=[]entity.ExtensionUserPublic}
// @Failure      400        {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users [get]
func (h *ExtensionUserHandler) GetAllExtensionUsers(c *gin.Context) {
	var filter entity.ExtensionUserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid query parameters: " + err.Error(),
			Success: false,
		})
		return
	}

	users, err := h.service.GetAllUsers(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    users,
		Success: true,
	})
}

// UpdateExtensionUser godoc
// @Summary      Update extension user
// @Tags         /api/v1/admin/extension
// @Accept       json
// @Produce      json
// @Param        id    path      string                             true  "User ID"
// @Param        user  body      entity.UpdateExtensionUserRequest  true  "Update user data"
// @Success      200   {object}  wrapper.ResponseWrapper{data=entity.ExtensionUserPublic}
// @Failure      400   {object}  wrapper.ErrorWrapper
// @Failure      404   {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/{id} [put]
func (h *ExtensionUserHandler) UpdateExtensionUser(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req entity.UpdateExtensionUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    user,
		Success: true,
	})
}

// RegenerateAPIKey godoc
// @Summary      Regenerate API key
// @Description  Rotate the API key of an extension install; the old key stops working immediately
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.RegenerateAPIKeyResponse}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      404  {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/{id}/regenerate-key [post]
func (h *ExtensionUserHandler) RegenerateAPIKey(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	response, err := h.service.RegenerateAPIKey(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    response,
		Success: true,
	})
}

// DeleteExtensionUser godoc
// @Summary      Delete extension user
// @Description  Delete an extension install together with its tracker state
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  wrapper.ResponseWrapper{data=string}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      404  {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/{id} [delete]
func (h *ExtensionUserHandler) DeleteExtensionUser(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    "Extension user deleted successfully",
		Success: true,
	})
}

// ValidateAPIKey godoc
// @Summary      Validate API key
// @Description  The extension calls this on startup to confirm its key is still active
// @Tags         /api/v1/clara
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200        {object}  wrapper.ResponseWrapper{data=entity.ExtensionUserPublic}
// @Failure      400        {object}  wrapper.ErrorWrapper
// @Failure      401        {object}  wrapper.ErrorWrapper
// @Router       /clara/users/auth [get]
func (h *ExtensionUserHandler) ValidateAPIKey(c *gin.Context) {
	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "X-API-Key header is required",
			Success: false,
		})
		return
	}

	user, err := h.service.ValidateAPIKey(c.Request.Context(), apiKey)
	if err != nil {
		if err.Error() == "invalid or inactive API key" || err.Error() == "API key is required" {
			c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
				Message: "Invalid API key",
				Success: false,
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data: &entity.ExtensionUserPublic{
			ID:         user.ID,
			Username:   user.Username,
			IsActive:   user.IsActive,
			CreatedAt:  user.CreatedAt,
			UpdatedAt:  user.UpdatedAt,
			LastUsedAt: user.LastUsedAt,
		},
		Success: true,
	})
}

// GetExtensionUserStats godoc
// @Summary      Extension user statistics
// @Description  Install counts and activity the admin dashboard shows
// @Tags         /api/v1/admin/extension
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.ExtensionUserStats}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /admin/extension/users/stats [get]
func (h *ExtensionUserHandler) GetExtensionUserStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    stats,
		Success: true,
	})
}

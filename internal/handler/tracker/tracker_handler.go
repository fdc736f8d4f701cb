// internal/handler/tracker/tracker_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clarahq/clara-backend/internal/entity"
	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	"github.com/clarahq/clara-backend/internal/service/redis"
	"github.com/clarahq/clara-backend/internal/service/tracker"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// heartbeatWindow mirrors the content script's own throttle; bursts
// beyond one heartbeat per tab per window are dropped, not errors.
const heartbeatWindow = 15 * time.Second

type TrackerHandler struct {
	manager *tracker.Manager
	cache   redis.ServiceInterface
}

func NewTrackerHandler(manager *tracker.Manager, cache redis.ServiceInterface) *TrackerHandler {
	return &TrackerHandler{
		manager: manager,
		cache:   cache,
	}
}

// throttledHeartbeat reports whether a heartbeat for this tab already
// arrived within the window. Fails open without redis.
func (h *TrackerHandler) throttledHeartbeat(c *gin.Context, userID uuid.UUID, ev entity.TrackerEvent) bool {
	if h.cache == nil || ev.Type != entity.EventHeartbeat {
		return false
	}
	key := fmt.Sprintf("hb:%s:%d", userID, ev.TabID)
	allowed, err := h.cache.CheckRateLimit(c.Request.Context(), key, 1, heartbeatWindow)
	if err != nil {
		return false
	}
	return !allowed
}

// engineFor resolves the authenticated extension user's engine.
func (h *TrackerHandler) engineFor(c *gin.Context) (*tracker.Engine, bool) {
	userID, err := uuid.FromString(c.GetString("extension_user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
			Message: "Extension user not found in context",
			Success: false,
		})
		return nil, false
	}
	return h.manager.Engine(userID), true
}

// BatchEvents godoc
// @Summary      Ingest browser events
// @Description  Apply a batch of tab/focus/heartbeat events to the user's session state
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        events  body      entity.BatchTrackerEventsRequest  true  "Events"
// @Success      201     {object}  wrapper.ResponseWrapper{data=string}
// @Failure      400     {object}  wrapper.ErrorWrapper
// @Failure      500     {object}  wrapper.ErrorWrapper
// @Router       /tracker/events [post]
func (h *TrackerHandler) BatchEvents(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.BatchTrackerEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	for _, ev := range req.Events {
		if h.throttledHeartbeat(c, eng.UserID(), ev) {
			continue
		}
		if err := eng.ProcessEvent(c.Request.Context(), ev); err != nil {
			c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{
				Message: err.Error(),
				Success: false,
			})
			return
		}
	}

	c.JSON(http.StatusCreated, wrapper.ResponseWrapper{
		Data:    "Processed " + strconv.Itoa(len(req.Events)) + " events",
		Success: true,
	})
}

// GetState godoc
// @Summary      Get tracker state
// @Description  Full tracker snapshot: rules, logs, active session, pause and badge mode
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.TrackerSnapshot}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/state [get]
func (h *TrackerHandler) GetState(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	snap, err := eng.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: snap, Success: true})
}

// GetBadge godoc
// @Summary      Get toolbar badge
// @Description  Badge text and color for the user's badge mode
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.Badge}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/badge [get]
func (h *TrackerHandler) GetBadge(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	badge, err := eng.Badge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: badge, Success: true})
}

// Pause godoc
// @Summary      Pause tracking
// @Description  Suppress tracking for N minutes (default 15), ending the active session
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        pause  body      entity.PauseRequest  false  "Minutes"
// @Success      200    {object}  wrapper.SuccessWrapper
// @Failure      500    {object}  wrapper.ErrorWrapper
// @Router       /tracker/pause [post]
func (h *TrackerHandler) Pause(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.PauseRequest
	_ = c.ShouldBindJSON(&req)

	if err := eng.PauseFor(c.Request.Context(), req.Minutes); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Tracking paused", Success: true})
}

// PauseToday godoc
// @Summary      Pause tracking until midnight
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.SuccessWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/pause/today [post]
func (h *TrackerHandler) PauseToday(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	if err := eng.PauseForToday(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Tracking paused for today", Success: true})
}

// Resume godoc
// @Summary      Resume tracking
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.SuccessWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/resume [post]
func (h *TrackerHandler) Resume(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	if err := eng.Resume(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Tracking resumed", Success: true})
}

// SetTracking godoc
// @Summary      Enable or disable tracking
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        tracking  body      entity.TrackingRequest  true  "Enabled flag"
// @Success      200       {object}  wrapper.SuccessWrapper
// @Failure      400       {object}  wrapper.ErrorWrapper
// @Failure      500       {object}  wrapper.ErrorWrapper
// @Router       /tracker/tracking [post]
func (h *TrackerHandler) SetTracking(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.TrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.SetTrackingEnabled(c.Request.Context(), *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Tracking setting updated", Success: true})
}

// AddRule godoc
// @Summary      Add a tracking rule
// @Description  Add a domain or substring pattern to the match list
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        rule  body      entity.RuleRequest  true  "Rule"
// @Success      200   {object}  wrapper.SuccessWrapper
// @Failure      400   {object}  wrapper.ErrorWrapper
// @Failure      500   {object}  wrapper.ErrorWrapper
// @Router       /tracker/rules [post]
func (h *TrackerHandler) AddRule(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.AddRule(c.Request.Context(), req.Value); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Rule added", Success: true})
}

// RemoveRule godoc
// @Summary      Remove a tracking rule
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        rule  body      entity.RuleRequest  true  "Rule"
// @Success      200   {object}  wrapper.SuccessWrapper
// @Failure      400   {object}  wrapper.ErrorWrapper
// @Failure      500   {object}  wrapper.ErrorWrapper
// @Router       /tracker/rules [delete]
func (h *TrackerHandler) RemoveRule(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.RemoveRule(c.Request.Context(), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Rule removed", Success: true})
}

// ResetRules godoc
// @Summary      Restore the default rule list
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.SuccessWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/rules/reset [post]
func (h *TrackerHandler) ResetRules(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	if err := eng.ResetRules(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Rules reset to defaults", Success: true})
}

// SetBadgeMode godoc
// @Summary      Set badge mode
// @Description  One of minutes, onoff, none
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        mode  body      entity.BadgeModeRequest  true  "Badge mode"
// @Success      200   {object}  wrapper.SuccessWrapper
// @Failure      500   {object}  wrapper.ErrorWrapper
// @Router       /tracker/badge-mode [post]
func (h *TrackerHandler) SetBadgeMode(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req entity.BadgeModeRequest
	_ = c.ShouldBindJSON(&req)

	if err := eng.SetBadgeMode(c.Request.Context(), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Badge mode updated", Success: true})
}

// ResetToday godoc
// @Summary      Drop today's usage
// @Description  Remove log entries from today and end the active session
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.SuccessWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/reset-today [post]
func (h *TrackerHandler) ResetToday(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	if err := eng.ResetToday(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Today's data reset", Success: true})
}

// ClearData godoc
// @Summary      Clear all session data
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  wrapper.SuccessWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/clear [post]
func (h *TrackerHandler) ClearData(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	if err := eng.ClearData(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "All session data cleared", Success: true})
}

// ExportBackup godoc
// @Summary      Export raw backup
// @Description  Raw stored values for every backup key
// @Tags         /api/v1/clara/tracker
// @Produce      json
// @Success      200  {object}  entity.BackupExportResponse
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /tracker/backup [get]
func (h *TrackerHandler) ExportBackup(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	backup, err := eng.ExportBackup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, backup)
}

// GetNotifyPrefs godoc
// @Summary      Get notification preferences
// @Tags         /api/v1/clara/prefs
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.NotifyPrefs}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /prefs/notifications [get]
func (h *TrackerHandler) GetNotifyPrefs(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	prefs, err := eng.NotifyPrefs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: prefs, Success: true})
}

// SetNotifyPrefs godoc
// @Summary      Update notification preferences
// @Tags         /api/v1/clara/prefs
// @Accept       json
// @Produce      json
// @Param        prefs  body      entity.NotifyPrefs  true  "Preferences"
// @Success      200    {object}  wrapper.SuccessWrapper
// @Failure      400    {object}  wrapper.ErrorWrapper
// @Failure      500    {object}  wrapper.ErrorWrapper
// @Router       /prefs/notifications [put]
func (h *TrackerHandler) SetNotifyPrefs(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var prefs entity.NotifyPrefs
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.SetNotifyPrefs(c.Request.Context(), prefs); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Notification preferences updated", Success: true})
}

// SetPortfolioPrefs godoc
// @Summary      Update portfolio preferences
// @Description  Alias and consent used by the export endpoints
// @Tags         /api/v1/clara/prefs
// @Accept       json
// @Produce      json
// @Param        prefs  body      entity.PortfolioPrefs  true  "Preferences"
// @Success      200    {object}  wrapper.SuccessWrapper
// @Failure      400    {object}  wrapper.ErrorWrapper
// @Failure      500    {object}  wrapper.ErrorWrapper
// @Router       /prefs/portfolio [put]
func (h *TrackerHandler) SetPortfolioPrefs(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var prefs entity.PortfolioPrefs
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.SetPortfolioPrefs(c.Request.Context(), prefs); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Portfolio preferences updated", Success: true})
}

// GetSettings godoc
// @Summary      Get export settings
// @Tags         /api/v1/clara/prefs
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.Settings}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /prefs/settings [get]
func (h *TrackerHandler) GetSettings(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	settings, err := eng.Settings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: settings, Success: true})
}

// SetSettings godoc
// @Summary      Update export settings
// @Description  The per-institution salt is managed server-side and cannot be changed here
// @Tags         /api/v1/clara/prefs
// @Accept       json
// @Produce      json
// @Param        settings  body      entity.Settings  true  "Settings"
// @Success      200       {object}  wrapper.SuccessWrapper
// @Failure      400       {object}  wrapper.ErrorWrapper
// @Failure      500       {object}  wrapper.ErrorWrapper
// @Router       /prefs/settings [put]
func (h *TrackerHandler) SetSettings(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var settings entity.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.SetSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Settings updated", Success: true})
}

// GetUIFlags godoc
// @Summary      Get popup UI flags
// @Tags         /api/v1/clara/prefs
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=object}
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /prefs/ui-flags [get]
func (h *TrackerHandler) GetUIFlags(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	flags, err := eng.UIFlags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: flags, Success: true})
}

// SetUIFlags godoc
// @Summary      Replace popup UI flags
// @Tags         /api/v1/clara/prefs
// @Accept       json
// @Produce      json
// @Param        flags  body      object  true  "Flags"
// @Success      200    {object}  wrapper.SuccessWrapper
// @Failure      400    {object}  wrapper.ErrorWrapper
// @Failure      500    {object}  wrapper.ErrorWrapper
// @Router       /prefs/ui-flags [put]
func (h *TrackerHandler) SetUIFlags(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	flags := map[string]interface{}{}
	if err := c.ShouldBindJSON(&flags); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid request body: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.SetUIFlags(c.Request.Context(), flags); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "UI flags updated", Success: true})
}

// ImportBackup godoc
// @Summary      Import a backup
// @Description  Restore a previously exported snapshot
// @Tags         /api/v1/clara/tracker
// @Accept       json
// @Produce      json
// @Param        backup  body      entity.BackupPayload  true  "Backup data"
// @Success      200     {object}  wrapper.SuccessWrapper
// @Failure      400     {object}  wrapper.ErrorWrapper
// @Failure      500     {object}  wrapper.ErrorWrapper
// @Router       /tracker/backup [post]
func (h *TrackerHandler) ImportBackup(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var payload entity.BackupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
			Message: "Invalid backup payload: " + err.Error(),
			Success: false,
		})
		return
	}

	if err := eng.ImportBackup(c.Request.Context(), payload); err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.SuccessWrapper{Message: "Backup imported", Success: true})
}

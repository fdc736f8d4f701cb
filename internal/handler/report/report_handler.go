// internal/handler/report/report_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	"github.com/clarahq/clara-backend/internal/service/report"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type ReportHandler struct {
	reports report.ServiceInterface
}

func NewReportHandler(reports report.ServiceInterface) *ReportHandler {
	return &ReportHandler{
		reports: reports,
	}
}

func (h *ReportHandler) userID(c *gin.Context) (uuid.UUID, bool) {
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

// GetWeek godoc
// @Summary      Weekly usage report
// @Description  Current week by default, or the week containing ?ts= (unix ms)
// @Tags         /api/v1/clara/reports
// @Produce      json
// @Param        ts   query     int  false  "Timestamp inside the requested week, unix ms"
// @Success      200  {object}  wrapper.ResponseWrapper{data=report.WeekStats}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /reports/week [get]
func (h *ReportHandler) GetWeek(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var (
		stats *report.WeekStats
		err   error
	)
	if raw := c.Query("ts"); raw != "" {
		ts, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, wrapper.ErrorWrapper{
				Message: "Invalid ts parameter",
				Success: false,
			})
			return
		}
		stats, err = h.reports.WeekAt(c.Request.Context(), userID, ts)
	} else {
		stats, err = h.reports.CurrentWeek(c.Request.Context(), userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: stats, Success: true})
}

// ExportPortfolio godoc
// @Summary      Portfolio export
// @Description  Signed-off weekly summary in the portfolio v0.1 shape
// @Tags         /api/v1/clara/exports
// @Produce      json
// @Success      200  {object}  entity.PortfolioExport
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /exports/portfolio [get]
func (h *ReportHandler) ExportPortfolio(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	export, err := h.reports.Portfolio(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, export)
}

// ExportWeeklyPortfolio godoc
// @Summary      Weekly portfolio export
// @Description  Portfolio plus a four-week history and an integrity window
// @Tags         /api/v1/clara/exports
// @Produce      json
// @Success      200  {object}  entity.WeeklyPortfolioExport
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /exports/portfolio/weekly [get]
func (h *ReportHandler) ExportWeeklyPortfolio(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	export, err := h.reports.WeeklyPortfolio(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, export)
}

// ExportAttachment godoc
// @Summary      Attachment export
// @Description  Minimal summary meant to be attached to submitted work
// @Tags         /api/v1/clara/exports
// @Produce      json
// @Success      200  {object}  entity.AttachmentExport
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /exports/attachment [get]
func (h *ReportHandler) ExportAttachment(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	export, err := h.reports.Attachment(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, export)
}

// ExportAnalytics godoc
// @Summary      Analytics export
// @Description  Institution-facing export honoring the analytics privacy settings
// @Tags         /api/v1/clara/exports
// @Produce      json
// @Success      200  {object}  entity.AnalyticsExport
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /exports/analytics [get]
func (h *ReportHandler) ExportAnalytics(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	export, err := h.reports.Analytics(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, export)
}

// ExportCSV godoc
// @Summary      CSV log export
// @Description  All log entries as CSV, one row per session
// @Tags         /api/v1/clara/exports
// @Produce      text/csv
// @Success      200  {string}  string
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /exports/csv [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	data, err := h.reports.CSV(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	filename := "ai_use_logs_" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", data)
}

// GetFriendlyLabels godoc
// @Summary      Field labels
// @Description  Human-readable labels for export field paths
// @Tags         /api/v1/clara/exports
// @Produce      json
// @Success      200  {object}  wrapper.ResponseWrapper{data=map[string]string}
// @Router       /exports/labels [get]
func (h *ReportHandler) GetFriendlyLabels(c *gin.Context) {
	c.JSON(http.StatusOK, wrapper.ResponseWrapper{
		Data:    h.reports.FriendlyLabels(),
		Success: true,
	})
}

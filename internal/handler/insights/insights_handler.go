// internal/handler/insights/insights_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/clarahq/clara-backend/internal/model/response/wrapper"
	"github.com/clarahq/clara-backend/internal/service/insights"
	"github.com/clarahq/clara-backend/internal/service/report"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type InsightsHandler struct {
	insights *insights.InsightsService
	reports  report.ServiceInterface
}

func NewInsightsHandler(insightsService *insights.InsightsService, reports report.ServiceInterface) *InsightsHandler {
	return &InsightsHandler{
		insights: insightsService,
		reports:  reports,
	}
}

// GetWeeklyInsight godoc
// @Summary      AI commentary on the week
// @Description  Short model-generated read on the current week's usage, current week by default or the week containing ?ts=
// @Tags         /api/v1/clara/insights
// @Produce      json
// @Param        ts   query     int  false  "Timestamp inside the requested week, unix ms"
// @Success      200  {object}  wrapper.ResponseWrapper{data=entity.WeeklyInsight}
// @Failure      400  {object}  wrapper.ErrorWrapper
// @Failure      500  {object}  wrapper.ErrorWrapper
// @Router       /insights/weekly [get]
func (h *InsightsHandler) GetWeeklyInsight(c *gin.Context) {
	userID, err := uuid.FromString(c.GetString("extension_user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, wrapper.ErrorWrapper{
			Message: "Extension user not found in context",
			Success: false,
		})
		return
	}

	var stats *report.WeekStats
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

	insight, err := h.insights.WeeklyInsight(c.Request.Context(), stats)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wrapper.ErrorWrapper{Message: err.Error(), Success: false})
		return
	}

	c.JSON(http.StatusOK, wrapper.ResponseWrapper{Data: insight, Success: true})
}

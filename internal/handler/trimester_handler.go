package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-registration-api/internal/dto"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/service"
	"github.com/noah-isme/lesson-registration-api/pkg/response"
)

type trimesterCalendar interface {
	Tables() models.TrimesterTables
	Windows() []service.TrimesterWindow
}

// TrimesterHandler exposes trimester routing.
type TrimesterHandler struct {
	calendar trimesterCalendar
}

// NewTrimesterHandler constructs the handler.
func NewTrimesterHandler(calendar trimesterCalendar) *TrimesterHandler {
	return &TrimesterHandler{calendar: calendar}
}

// Overview godoc
// @Summary Current and enrollment trimester tables with the calendar
// @Tags Trimesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trimesters [get]
func (h *TrimesterHandler) Overview(c *gin.Context) {
	tables := h.calendar.Tables()
	windows := h.calendar.Windows()
	out := dto.TrimesterOverview{
		Current:          tables.Current,
		Enrollment:       tables.Enrollment,
		EnrollmentWindow: tables.EnrollmentWindow,
		AsOf:             tables.AsOf,
		Calendar:         make([]dto.TrimesterWindow, 0, len(windows)),
	}
	for _, w := range windows {
		out.Calendar = append(out.Calendar, dto.TrimesterWindow{
			Trimester:       w.Trimester,
			Table:           w.Table,
			Start:           w.Start,
			End:             w.End,
			EnrollmentOpens: w.EnrollmentOpens,
		})
	}
	response.JSON(c, http.StatusOK, out, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/attendance-api/internal/service"
	"github.com/classdesk/attendance-api/pkg/response"
)

// RosterHandler exposes the course roster.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(roster *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// ByCourse godoc
// @Summary Course roster
// @Description Lists enrolled students, or the demo roster when enrollment data is unavailable
// @Tags roster
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=[]models.Student}
// @Router /courses/{id}/roster [get]
func (h *RosterHandler) ByCourse(c *gin.Context) {
	students := h.roster.Roster(c.Request.Context(), c.Param("id"))
	response.JSON(c, http.StatusOK, students, nil, map[string]interface{}{
		"count": len(students),
	})
}

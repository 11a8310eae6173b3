package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/service"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
	"github.com/classdesk/attendance-api/pkg/response"
)

// CourseViewHandler drives the per-course attendance view state.
type CourseViewHandler struct {
	view *service.CourseViewService
}

// NewCourseViewHandler constructs the handler.
func NewCourseViewHandler(view *service.CourseViewService) *CourseViewHandler {
	return &CourseViewHandler{view: view}
}

// Overview godoc
// @Summary Course day overview
// @Description Activates the course for the given date and returns roster, records and aggregated stats in one payload
// @Tags courseview
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=service.CourseViewState}
// @Router /courses/{id}/attendance/overview [get]
func (h *CourseViewHandler) Overview(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	state, err := h.view.Activate(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

type viewMarkBody struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// Mark godoc
// @Summary Mark through the view
// @Description Marks one student (or every roster student when student_id is omitted) for the active date and returns the refreshed view state
// @Tags courseview
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body viewMarkBody true "Mark"
// @Success 200 {object} response.Envelope{data=service.CourseViewState}
// @Router /courses/{id}/attendance/overview/mark [post]
func (h *CourseViewHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body viewMarkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	status := models.AttendanceStatus(strings.ToLower(body.Status))
	if !status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late"))
		return
	}

	var (
		state *service.CourseViewState
		err   error
	)
	if body.StudentID == "" {
		state, err = h.view.MarkAll(c.Request.Context(), status, claims.UserID)
	} else {
		state, err = h.view.MarkOne(c.Request.Context(), body.StudentID, status, claims.UserID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// History godoc
// @Summary Toggle the history panel
// @Description Opens or closes the marked-dates history for the active course
// @Tags courseview
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param open query bool false "Open (default true)"
// @Success 200 {object} response.Envelope{data=service.CourseViewState}
// @Router /courses/{id}/attendance/overview/history [post]
func (h *CourseViewHandler) History(c *gin.Context) {
	if c.DefaultQuery("open", "true") == "false" {
		response.JSON(c, http.StatusOK, h.view.CloseHistory(), nil)
		return
	}
	state, err := h.view.OpenHistory(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

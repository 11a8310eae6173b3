package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/service"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
	"github.com/classdesk/attendance-api/pkg/response"
)

// AttendanceHandler exposes the attendance store and the export surface.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exports    *service.ExportService
}

// NewAttendanceHandler constructs the handler. exports may be nil when the
// export feature is disabled.
func NewAttendanceHandler(attendance *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

type markOneBody struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

type markBulkBody struct {
	Date  string                 `json:"date"`
	Items []service.MarkBulkItem `json:"items"`
}

// MarkOne godoc
// @Summary Mark one student
// @Description Upserts a single attendance mark. Responds with persisted=local-only when the durable store is unreachable.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body markOneBody true "Mark"
// @Success 200 {object} response.Envelope{data=service.MarkResult}
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/attendance [post]
func (h *AttendanceHandler) MarkOne(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body markOneBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.attendance.MarkOne(c.Request.Context(), service.MarkOneRequest{
		CourseID:  c.Param("id"),
		StudentID: body.StudentID,
		Date:      body.Date,
		Status:    body.Status,
		MarkedBy:  claims.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkBulk godoc
// @Summary Mark the whole day
// @Description Replaces every record for the course and date with the given items. Existing records for students not listed are removed.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body markBulkBody true "Day marks"
// @Success 200 {object} response.Envelope{data=service.MarkResult}
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/attendance/bulk [post]
func (h *AttendanceHandler) MarkBulk(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body markBulkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.attendance.MarkBulk(c.Request.Context(), service.MarkBulkRequest{
		CourseID: c.Param("id"),
		Date:     body.Date,
		Items:    body.Items,
		MarkedBy: claims.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ByDate godoc
// @Summary Day records
// @Description Returns the day's records. The meta.source field reports whether the remote store or the local snapshot served the read.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=[]models.AttendanceRecord}
// @Router /courses/{id}/attendance [get]
func (h *AttendanceHandler) ByDate(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, source, err := h.attendance.ReadByDate(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{
		"source": source,
		"count":  len(records),
	})
}

// MarkedDates godoc
// @Summary Marked dates
// @Description Distinct dates with at least one record, newest first
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=[]string}
// @Router /courses/{id}/attendance/dates [get]
func (h *AttendanceHandler) MarkedDates(c *gin.Context) {
	dates, err := h.attendance.ListMarkedDates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format("2006-01-02")
	}
	response.JSON(c, http.StatusOK, formatted, nil)
}

// ByStudent godoc
// @Summary Student history
// @Description A student's attendance records, optionally scoped to a course and date range
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param course_id query string false "Course ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=[]models.AttendanceRecord}
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) ByStudent(c *gin.Context) {
	filter := models.AttendanceFilter{
		StudentID: c.Param("id"),
		CourseID:  c.Query("course_id"),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := parseDateQuery(c, "from")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDateQuery(c, "to")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.DateTo = &to
	}
	records, err := h.attendance.ReadByStudent(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{
		"count": len(records),
	})
}

// Export godoc
// @Summary Export a day report
// @Description Renders the day's attendance table to CSV or PDF and returns a signed download token
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 201 {object} response.Envelope{data=service.DayReportResult}
// @Router /courses/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export is disabled"))
		return
	}
	date, err := parseDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.GenerateDayReport(c.Request.Context(), c.Param("id"), date, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a report
// @Description Streams a previously exported report. Authenticated by the signed token, not by a session.
// @Tags attendance
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/download [get]
func (h *AttendanceHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export is disabled"))
		return
	}
	file, name, err := h.exports.OpenDownload(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

func parseDateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s query parameter required", key))
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", key, raw))
	}
	return date, nil
}

package handler

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/notify"
	"github.com/classdesk/attendance-api/internal/service"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
	"github.com/classdesk/attendance-api/pkg/response"
)

// EventsHandler streams coarse table-change signals to the signed-in client
// over SSE. One subscription set is live at a time: a connection for a new
// identity tears the previous session's subscriptions down first.
type EventsHandler struct {
	manager *notify.SubscriptionManager
	view    *service.CourseViewService
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(manager *notify.SubscriptionManager, view *service.CourseViewService, metrics *service.MetricsService, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{manager: manager, view: view, metrics: metrics, logger: logger}
}

// Stream godoc
// @Summary Change-feed stream
// @Description SSE stream of table-change signals. Events carry the table name only; clients re-read affected data in full.
// @Tags events
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tables := []string{notify.TableCourses, notify.TableEnrollments, notify.TableAttendance, notify.TableNotifications}
	var filter notify.Filter
	if claims.Role == models.RoleStudent {
		// Students only see enrollment signals scoped to themselves.
		filter = notify.ScopeFilter(claims.UserID)
	}

	out := make(chan notify.Event, 16)
	err := h.manager.Start(c.Request.Context(), claims.UserID, tables, filter, h.forward(c.Request.Context(), out))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to subscribe"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	streamCtx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-streamCtx.Done():
			return false
		case event := <-out:
			payload, err := json.Marshal(event)
			if err != nil {
				return true
			}
			c.SSEvent("change", string(payload))
			return true
		}
	})
}

// forward builds the subscription callback. Reloads run on a context detached
// from the request: an event racing the disconnect still completes its
// re-read instead of failing on a cancelled context.
func (h *EventsHandler) forward(ctx context.Context, out chan<- notify.Event) func(notify.Event) {
	reload := context.WithoutCancel(ctx)
	return func(event notify.Event) {
		if h.metrics != nil {
			h.metrics.RecordChangeEvent(event.Table)
		}
		h.view.HandleChange(reload, event)
		select {
		case out <- event:
		default:
			h.logger.Warn("slow event stream consumer, dropping signal", zap.String("table", event.Table))
		}
	}
}

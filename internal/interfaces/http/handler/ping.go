package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appping "github.com/pingboard/backend/internal/application/ping"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// PingHandler handles researcher-facing ping endpoints
type PingHandler struct {
	BaseHandler
	pingService *appping.PingService
}

// NewPingHandler creates a new ping handler
func NewPingHandler(pingService *appping.PingService) *PingHandler {
	return &PingHandler{pingService: pingService}
}

// RegisterRoutes registers ping routes
func (h *PingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pings := rg.Group("/studies/:studyId/pings")
	{
		pings.GET("", h.List)
		pings.GET("/:pingId", h.Get)
		pings.DELETE("/:pingId", h.Delete)
	}
}

// PingResponse is the ping representation returned to researchers
type PingResponse struct {
	ID             uuid.UUID  `json:"id"`
	StudyID        uuid.UUID  `json:"study_id"`
	TemplateID     uuid.UUID  `json:"ping_template_id"`
	EnrollmentID   uuid.UUID  `json:"enrollment_id"`
	ScheduledTS    time.Time  `json:"scheduled_ts"`
	ExpireTS       *time.Time `json:"expire_ts,omitempty"`
	ReminderTS     *time.Time `json:"reminder_ts,omitempty"`
	DayNum         int        `json:"day_num"`
	SentTS         *time.Time `json:"sent_ts,omitempty"`
	ReminderSentTS *time.Time `json:"reminder_sent_ts,omitempty"`
	FirstClickedTS *time.Time `json:"first_clicked_ts,omitempty"`
	LastClickedTS  *time.Time `json:"last_clicked_ts,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// List lists a study's pings, optionally filtered by enrollment, template
// or sent state.
func (h *PingHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	studyID, err := parseUUIDParam(c, "studyId")
	if err != nil {
		h.BadRequest(c, "Invalid study ID")
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if v := c.Query("enrollment_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.BadRequest(c, "Invalid enrollment_id filter")
			return
		}
		filter.Filters["enrollment_id"] = id
	}
	if v := c.Query("ping_template_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.BadRequest(c, "Invalid ping_template_id filter")
			return
		}
		filter.Filters["ping_template_id"] = id
	}
	if v := c.Query("sent"); v != "" {
		filter.Filters["sent"] = v == "true"
	}

	result, err := h.pingService.ListPings(c.Request.Context(), userID, studyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]PingResponse, len(result.Items))
	for i := range result.Items {
		items[i] = pingResponse(&result.Items[i])
	}
	h.SuccessWithMeta(c, items, result.Total, result.Page, result.PageSize)
}

// Get returns one ping
func (h *PingHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	studyID, err := parseUUIDParam(c, "studyId")
	if err != nil {
		h.BadRequest(c, "Invalid study ID")
		return
	}
	pingID, err := parseUUIDParam(c, "pingId")
	if err != nil {
		h.BadRequest(c, "Invalid ping ID")
		return
	}

	result, err := h.pingService.GetPing(c.Request.Context(), userID, studyID, pingID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, pingResponse(result))
}

// Delete removes one ping
func (h *PingHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	studyID, err := parseUUIDParam(c, "studyId")
	if err != nil {
		h.BadRequest(c, "Invalid study ID")
		return
	}
	pingID, err := parseUUIDParam(c, "pingId")
	if err != nil {
		h.BadRequest(c, "Invalid ping ID")
		return
	}

	if err := h.pingService.DeletePing(c.Request.Context(), userID, studyID, pingID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

func pingResponse(p *appping.PingInfo) PingResponse {
	return PingResponse{
		ID:             p.ID,
		StudyID:        p.StudyID,
		TemplateID:     p.TemplateID,
		EnrollmentID:   p.EnrollmentID,
		ScheduledTS:    p.ScheduledTS,
		ExpireTS:       p.ExpireTS,
		ReminderTS:     p.ReminderTS,
		DayNum:         p.DayNum,
		SentTS:         p.SentTS,
		ReminderSentTS: p.ReminderSentTS,
		FirstClickedTS: p.FirstClickedTS,
		LastClickedTS:  p.LastClickedTS,
		CreatedAt:      p.CreatedAt,
	}
}

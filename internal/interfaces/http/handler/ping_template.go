package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appping "github.com/pingboard/backend/internal/application/ping"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// PingTemplateHandler handles ping template endpoints, nested under a study
type PingTemplateHandler struct {
	BaseHandler
	templateService *appping.TemplateService
}

// NewPingTemplateHandler creates a new ping template handler
func NewPingTemplateHandler(templateService *appping.TemplateService) *PingTemplateHandler {
	return &PingTemplateHandler{templateService: templateService}
}

// RegisterRoutes registers ping template routes
func (h *PingTemplateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	templates := rg.Group("/studies/:studyId/ping-templates")
	{
		templates.POST("", h.Create)
		templates.GET("", h.List)
		templates.GET("/:templateId", h.Get)
		templates.PUT("/:templateId", h.Update)
		templates.DELETE("/:templateId", h.Delete)
	}
}

// WindowRequest is one schedule window in a template payload
type WindowRequest struct {
	StartDayNum int    `json:"start_day_num" binding:"min=0"`
	StartTime   string `json:"start_time" binding:"required"`
	EndDayNum   int    `json:"end_day_num" binding:"min=0"`
	EndTime     string `json:"end_time" binding:"required"`
}

// TemplateRequest is the create/update payload for a template. Latencies
// are given in seconds; zero disables the corresponding stamp.
type TemplateRequest struct {
	Name                   string          `json:"name" binding:"required,max=255"`
	Message                string          `json:"message" binding:"required"`
	URL                    string          `json:"url" binding:"omitempty,url"`
	URLText                string          `json:"url_text" binding:"max=255"`
	Schedule               []WindowRequest `json:"schedule" binding:"required,min=1,dive"`
	ReminderLatencySeconds int64           `json:"reminder_latency_seconds" binding:"min=0"`
	ExpireLatencySeconds   int64           `json:"expire_latency_seconds" binding:"min=0"`
}

// TemplateResponse is the template representation returned to researchers
type TemplateResponse struct {
	ID                     uuid.UUID       `json:"id"`
	StudyID                uuid.UUID       `json:"study_id"`
	Name                   string          `json:"name"`
	Message                string          `json:"message"`
	URL                    *string         `json:"url,omitempty"`
	URLText                *string         `json:"url_text,omitempty"`
	Schedule               []ping.Window   `json:"schedule"`
	ReminderLatencySeconds int64           `json:"reminder_latency_seconds"`
	ExpireLatencySeconds   int64           `json:"expire_latency_seconds"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// CreateTemplateResponse includes how many pings were backfilled
type CreateTemplateResponse struct {
	Template  TemplateResponse `json:"template"`
	PingCount int              `json:"ping_count"`
}

// Create creates a template and backfills pings for enrolled participants
func (h *PingTemplateHandler) Create(c *gin.Context) {
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

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.templateService.CreateTemplate(c.Request.Context(), appping.CreateTemplateInput{
		UserID:          userID,
		StudyID:         studyID,
		Name:            req.Name,
		Message:         req.Message,
		URL:             req.URL,
		URLText:         req.URLText,
		Schedule:        toWindows(req.Schedule),
		ReminderLatency: time.Duration(req.ReminderLatencySeconds) * time.Second,
		ExpireLatency:   time.Duration(req.ExpireLatencySeconds) * time.Second,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, CreateTemplateResponse{
		Template:  templateResponse(&result.Template),
		PingCount: result.PingCount,
	})
}

// List lists a study's templates
func (h *PingTemplateHandler) List(c *gin.Context) {
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

	result, err := h.templateService.ListTemplates(c.Request.Context(), userID, studyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TemplateResponse, len(result.Items))
	for i := range result.Items {
		items[i] = templateResponse(&result.Items[i])
	}
	h.SuccessWithMeta(c, items, result.Total, result.Page, result.PageSize)
}

// Get returns one template
func (h *PingTemplateHandler) Get(c *gin.Context) {
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
	templateID, err := parseUUIDParam(c, "templateId")
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	result, err := h.templateService.GetTemplate(c.Request.Context(), userID, studyID, templateID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, templateResponse(result))
}

// Update updates a template
func (h *PingTemplateHandler) Update(c *gin.Context) {
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
	templateID, err := parseUUIDParam(c, "templateId")
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.templateService.UpdateTemplate(c.Request.Context(), appping.UpdateTemplateInput{
		UserID:          userID,
		StudyID:         studyID,
		TemplateID:      templateID,
		Name:            req.Name,
		Message:         req.Message,
		URL:             req.URL,
		URLText:         req.URLText,
		Schedule:        toWindows(req.Schedule),
		ReminderLatency: time.Duration(req.ReminderLatencySeconds) * time.Second,
		ExpireLatency:   time.Duration(req.ExpireLatencySeconds) * time.Second,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, templateResponse(result))
}

// Delete soft-deletes a template and its pings
func (h *PingTemplateHandler) Delete(c *gin.Context) {
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
	templateID, err := parseUUIDParam(c, "templateId")
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	if err := h.templateService.DeleteTemplate(c.Request.Context(), userID, studyID, templateID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

func toWindows(reqs []WindowRequest) []ping.Window {
	windows := make([]ping.Window, len(reqs))
	for i, w := range reqs {
		windows[i] = ping.Window{
			StartDayNum: w.StartDayNum,
			StartTime:   w.StartTime,
			EndDayNum:   w.EndDayNum,
			EndTime:     w.EndTime,
		}
	}
	return windows
}

func templateResponse(t *appping.TemplateInfo) TemplateResponse {
	return TemplateResponse{
		ID:                     t.ID,
		StudyID:                t.StudyID,
		Name:                   t.Name,
		Message:                t.Message,
		URL:                    t.URL,
		URLText:                t.URLText,
		Schedule:               t.Schedule,
		ReminderLatencySeconds: int64(t.ReminderLatency / time.Second),
		ExpireLatencySeconds:   int64(t.ExpireLatency / time.Second),
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appenrollment "github.com/pingboard/backend/internal/application/enrollment"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// ParticipantHandler handles the public participant surface: signup by
// study code and the token-guarded dashboard. No researcher JWT applies.
type ParticipantHandler struct {
	BaseHandler
	enrollmentService *appenrollment.EnrollmentService
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(enrollmentService *appenrollment.EnrollmentService) *ParticipantHandler {
	return &ParticipantHandler{enrollmentService: enrollmentService}
}

// RegisterRoutes registers participant routes
func (h *ParticipantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signup", h.Signup)
	rg.POST("/dashboard", h.Dashboard)
}

// SignupRequest is the participant signup payload. StartDate is a calendar
// date; the timezone anchors all ping scheduling.
type SignupRequest struct {
	StudyCode string `json:"study_code" binding:"required"`
	StudyPID  string `json:"study_pid" binding:"required,max=255"`
	Timezone  string `json:"timezone" binding:"required,timezone"`
	StartDate string `json:"start_date" binding:"required"`
}

// SignupResponse is returned to the participant after signup
type SignupResponse struct {
	EnrollmentID             uuid.UUID `json:"enrollment_id"`
	TelegramLinkCode         string    `json:"telegram_link_code"`
	TelegramLinkCodeExpireTS time.Time `json:"telegram_link_code_expire_ts"`
	PingCount                int       `json:"ping_count"`
}

// DashboardRequest presents a dashboard one-time token
type DashboardRequest struct {
	EnrollmentID string `json:"enrollment_id" binding:"required,uuid"`
	OTP          string `json:"otp" binding:"required"`
}

// DashboardPingResponse is one ping on the participant dashboard. Click
// and send stamps are visible; codes are not.
type DashboardPingResponse struct {
	ID             uuid.UUID  `json:"id"`
	ScheduledTS    time.Time  `json:"scheduled_ts"`
	ExpireTS       *time.Time `json:"expire_ts,omitempty"`
	DayNum         int        `json:"day_num"`
	SentTS         *time.Time `json:"sent_ts,omitempty"`
	FirstClickedTS *time.Time `json:"first_clicked_ts,omitempty"`
}

// DashboardResponse is the participant dashboard view
type DashboardResponse struct {
	Enrollment EnrollmentResponse      `json:"enrollment"`
	Pings      []DashboardPingResponse `json:"pings"`
}

// Signup enrolls a participant into a study by signup code
func (h *ParticipantHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		h.BadRequest(c, "start_date must be YYYY-MM-DD")
		return
	}

	result, err := h.enrollmentService.Signup(c.Request.Context(), appenrollment.SignupInput{
		StudyCode: req.StudyCode,
		StudyPID:  req.StudyPID,
		Timezone:  req.Timezone,
		StartDate: startDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, SignupResponse{
		EnrollmentID:             result.Enrollment.ID,
		TelegramLinkCode:         result.TelegramLinkCode,
		TelegramLinkCodeExpireTS: result.Enrollment.TelegramLinkCodeExpireTS,
		PingCount:                result.PingCount,
	})
}

// Dashboard returns the enrollment and its pings for a valid dashboard token
func (h *ParticipantHandler) Dashboard(c *gin.Context) {
	var req DashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	enrollmentID, err := uuid.Parse(req.EnrollmentID)
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID")
		return
	}

	result, err := h.enrollmentService.Dashboard(c.Request.Context(), enrollmentID, req.OTP)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	pings := make([]DashboardPingResponse, len(result.Pings))
	for i := range result.Pings {
		p := &result.Pings[i]
		pings[i] = DashboardPingResponse{
			ID:             p.ID,
			ScheduledTS:    p.ScheduledTS,
			ExpireTS:       p.ExpireTS,
			DayNum:         p.DayNum,
			SentTS:         p.SentTS,
			FirstClickedTS: p.FirstClickedTS,
		}
	}

	h.Success(c, DashboardResponse{
		Enrollment: enrollmentResponse(&result.Enrollment),
		Pings:      pings,
	})
}

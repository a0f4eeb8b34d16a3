package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appenrollment "github.com/pingboard/backend/internal/application/enrollment"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// BotHandler handles the Telegram bot's server-to-server endpoints. The
// bot secret middleware guards every route registered here.
type BotHandler struct {
	BaseHandler
	enrollmentService *appenrollment.EnrollmentService
}

// NewBotHandler creates a new bot handler
func NewBotHandler(enrollmentService *appenrollment.EnrollmentService) *BotHandler {
	return &BotHandler{enrollmentService: enrollmentService}
}

// RegisterRoutes registers bot routes behind the shared-secret check
func (h *BotHandler) RegisterRoutes(rg *gin.RouterGroup, botSecret string) {
	bot := rg.Group("/bot")
	bot.Use(middleware.BotAuth(botSecret))
	{
		bot.POST("/link", h.Link)
		bot.POST("/unenroll", h.Unenroll)
		bot.GET("/pings", h.PingsForDate)
		bot.POST("/dashboard-otp", h.DashboardOTP)
	}
}

// BotLinkRequest pairs a Telegram account with an enrollment by link code
type BotLinkRequest struct {
	LinkCode   string `json:"link_code" binding:"required"`
	TelegramID string `json:"telegram_id" binding:"required"`
}

// BotStudyRequest identifies a participant's enrollment in one study
type BotStudyRequest struct {
	TelegramID string `json:"telegram_id" binding:"required"`
	StudyCode  string `json:"study_code" binding:"required"`
}

// BotPingResponse is one ping in a bot listing, with times already in the
// participant's timezone.
type BotPingResponse struct {
	ID          uuid.UUID  `json:"id"`
	ScheduledTS time.Time  `json:"scheduled_ts"`
	ExpireTS    *time.Time `json:"expire_ts,omitempty"`
	DayNum      int        `json:"day_num"`
	SentTS      *time.Time `json:"sent_ts,omitempty"`
}

// BotDashboardOTPResponse carries a freshly issued dashboard token
type BotDashboardOTPResponse struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	OTP          string    `json:"otp"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Link pairs a Telegram account with an enrollment
func (h *BotHandler) Link(c *gin.Context) {
	var req BotLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.enrollmentService.LinkTelegram(c.Request.Context(), appenrollment.LinkTelegramInput{
		LinkCode:   req.LinkCode,
		TelegramID: req.TelegramID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, enrollmentResponse(result))
}

// Unenroll stops ping delivery for the participant in one study
func (h *BotHandler) Unenroll(c *gin.Context) {
	var req BotStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	err := h.enrollmentService.UnenrollByTelegram(c.Request.Context(), appenrollment.BotUnenrollInput{
		TelegramID: req.TelegramID,
		StudyCode:  req.StudyCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "Unenrolled"})
}

// PingsForDate lists the participant's pings on one calendar date across
// all their enrollments. The date defaults to today.
func (h *BotHandler) PingsForDate(c *gin.Context) {
	telegramID := c.Query("telegram_id")
	if telegramID == "" {
		h.BadRequest(c, "telegram_id is required")
		return
	}

	date := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	pings, err := h.enrollmentService.ListPingsForDate(c.Request.Context(), telegramID, date)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]BotPingResponse, len(pings))
	for i := range pings {
		items[i] = BotPingResponse{
			ID:          pings[i].ID,
			ScheduledTS: pings[i].ScheduledTS,
			ExpireTS:    pings[i].ExpireTS,
			DayNum:      pings[i].DayNum,
			SentTS:      pings[i].SentTS,
		}
	}
	h.Success(c, items)
}

// DashboardOTP issues a dashboard one-time token for the participant
func (h *BotHandler) DashboardOTP(c *gin.Context) {
	var req BotStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.enrollmentService.IssueDashboardOTP(c.Request.Context(), appenrollment.BotUnenrollInput{
		TelegramID: req.TelegramID,
		StudyCode:  req.StudyCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, BotDashboardOTPResponse{
		EnrollmentID: result.EnrollmentID,
		OTP:          result.OTP,
		ExpiresAt:    result.ExpiresAt,
	})
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appenrollment "github.com/pingboard/backend/internal/application/enrollment"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// EnrollmentHandler handles researcher-facing enrollment endpoints
type EnrollmentHandler struct {
	BaseHandler
	enrollmentService *appenrollment.EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService *appenrollment.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// RegisterRoutes registers enrollment routes
func (h *EnrollmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	enrollments := rg.Group("/studies/:studyId/enrollments")
	{
		enrollments.GET("", h.List)
		enrollments.GET("/:enrollmentId", h.Get)
		enrollments.PUT("/:enrollmentId", h.Update)
		enrollments.POST("/:enrollmentId/unenroll", h.Unenroll)
		enrollments.DELETE("/:enrollmentId", h.Delete)
	}
}

// UpdateEnrollmentRequest is the researcher update payload
type UpdateEnrollmentRequest struct {
	StudyPID    string  `json:"study_pid" binding:"max=255"`
	PRCompleted float64 `json:"pr_completed" binding:"min=0,max=1"`
}

// EnrollmentResponse is the enrollment representation returned to researchers
type EnrollmentResponse struct {
	ID             uuid.UUID `json:"id"`
	StudyID        uuid.UUID `json:"study_id"`
	StudyPID       string    `json:"study_pid"`
	TelegramLinked bool      `json:"telegram_linked"`
	SignupTS       time.Time `json:"signup_ts"`
	StartDate      time.Time `json:"start_date"`
	Timezone       string    `json:"timezone"`
	Enrolled       bool      `json:"enrolled"`
	PRCompleted    float64   `json:"pr_completed"`
	CreatedAt      time.Time `json:"created_at"`
}

// List lists a study's enrollments
func (h *EnrollmentHandler) List(c *gin.Context) {
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

	result, err := h.enrollmentService.ListEnrollments(c.Request.Context(), userID, studyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]EnrollmentResponse, len(result.Items))
	for i := range result.Items {
		items[i] = enrollmentResponse(&result.Items[i])
	}
	h.SuccessWithMeta(c, items, result.Total, result.Page, result.PageSize)
}

// Get returns one enrollment
func (h *EnrollmentHandler) Get(c *gin.Context) {
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
	enrollmentID, err := parseUUIDParam(c, "enrollmentId")
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID")
		return
	}

	result, err := h.enrollmentService.GetEnrollment(c.Request.Context(), userID, studyID, enrollmentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, enrollmentResponse(result))
}

// Update updates the researcher-editable fields of an enrollment
func (h *EnrollmentHandler) Update(c *gin.Context) {
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
	enrollmentID, err := parseUUIDParam(c, "enrollmentId")
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID")
		return
	}

	var req UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.enrollmentService.UpdateEnrollment(c.Request.Context(), appenrollment.UpdateEnrollmentInput{
		UserID:       userID,
		StudyID:      studyID,
		EnrollmentID: enrollmentID,
		StudyPID:     req.StudyPID,
		PRCompleted:  req.PRCompleted,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, enrollmentResponse(result))
}

// Unenroll stops ping delivery for an enrollment without deleting it
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
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
	enrollmentID, err := parseUUIDParam(c, "enrollmentId")
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID")
		return
	}

	if err := h.enrollmentService.Unenroll(c.Request.Context(), userID, studyID, enrollmentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "Participant unenrolled"})
}

// Delete soft-deletes an enrollment and its pings
func (h *EnrollmentHandler) Delete(c *gin.Context) {
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
	enrollmentID, err := parseUUIDParam(c, "enrollmentId")
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID")
		return
	}

	if err := h.enrollmentService.DeleteEnrollment(c.Request.Context(), userID, studyID, enrollmentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

func enrollmentResponse(e *appenrollment.EnrollmentInfo) EnrollmentResponse {
	return EnrollmentResponse{
		ID:             e.ID,
		StudyID:        e.StudyID,
		StudyPID:       e.StudyPID,
		TelegramLinked: e.TelegramLinked,
		SignupTS:       e.SignupTS,
		StartDate:      e.StartDate,
		Timezone:       e.Timezone,
		Enrolled:       e.Enrolled,
		PRCompleted:    e.PRCompleted,
		CreatedAt:      e.CreatedAt,
	}
}

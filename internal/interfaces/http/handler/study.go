package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appstudy "github.com/pingboard/backend/internal/application/study"
	"github.com/pingboard/backend/internal/domain/study"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
)

// StudyHandler handles study CRUD and collaborator endpoints
type StudyHandler struct {
	BaseHandler
	studyService *appstudy.StudyService
}

// NewStudyHandler creates a new study handler
func NewStudyHandler(studyService *appstudy.StudyService) *StudyHandler {
	return &StudyHandler{studyService: studyService}
}

// RegisterRoutes registers study routes
func (h *StudyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	studies := rg.Group("/studies")
	{
		studies.POST("", h.Create)
		studies.GET("", h.List)
		studies.GET("/:studyId", h.Get)
		studies.PUT("/:studyId", h.Update)
		studies.DELETE("/:studyId", h.Delete)

		studies.GET("/:studyId/members", h.ListMembers)
		studies.POST("/:studyId/members", h.AddMember)
		studies.PUT("/:studyId/members/:userId", h.ChangeMemberRole)
		studies.DELETE("/:studyId/members/:userId", h.RemoveMember)
	}
}

// CreateStudyRequest is the study creation payload
type CreateStudyRequest struct {
	PublicName     string `json:"public_name" binding:"required,max=255"`
	InternalName   string `json:"internal_name" binding:"max=255"`
	ContactMessage string `json:"contact_message"`
}

// UpdateStudyRequest is the study update payload
type UpdateStudyRequest struct {
	PublicName     string `json:"public_name" binding:"required,max=255"`
	InternalName   string `json:"internal_name" binding:"max=255"`
	ContactMessage string `json:"contact_message"`
}

// AddMemberRequest adds a collaborator by email
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=owner editor viewer"`
}

// ChangeMemberRoleRequest changes a collaborator's role
type ChangeMemberRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=owner editor viewer"`
}

// StudyResponse is the study representation returned to researchers
type StudyResponse struct {
	ID             uuid.UUID `json:"id"`
	PublicName     string    `json:"public_name"`
	InternalName   string    `json:"internal_name"`
	Code           string    `json:"code"`
	ContactMessage string    `json:"contact_message"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemberResponse describes one collaborator
type MemberResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	AddedAt   time.Time `json:"added_at"`
}

// Create creates a study owned by the caller
func (h *StudyHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.studyService.CreateStudy(c.Request.Context(), appstudy.CreateStudyInput{
		UserID:         userID,
		PublicName:     req.PublicName,
		InternalName:   req.InternalName,
		ContactMessage: req.ContactMessage,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, studyResponse(result))
}

// List lists the caller's studies
func (h *StudyHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.studyService.ListStudies(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]StudyResponse, len(result.Items))
	for i := range result.Items {
		items[i] = *studyResponse(&result.Items[i])
	}
	h.SuccessWithMeta(c, items, result.Total, result.Page, result.PageSize)
}

// Get returns one study
func (h *StudyHandler) Get(c *gin.Context) {
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

	result, err := h.studyService.GetStudy(c.Request.Context(), userID, studyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, studyResponse(result))
}

// Update updates a study
func (h *StudyHandler) Update(c *gin.Context) {
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

	var req UpdateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.studyService.UpdateStudy(c.Request.Context(), appstudy.UpdateStudyInput{
		UserID:         userID,
		StudyID:        studyID,
		PublicName:     req.PublicName,
		InternalName:   req.InternalName,
		ContactMessage: req.ContactMessage,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, studyResponse(result))
}

// Delete soft-deletes a study
func (h *StudyHandler) Delete(c *gin.Context) {
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

	if err := h.studyService.DeleteStudy(c.Request.Context(), userID, studyID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListMembers lists a study's collaborators
func (h *StudyHandler) ListMembers(c *gin.Context) {
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

	members, err := h.studyService.ListMembers(c.Request.Context(), userID, studyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]MemberResponse, len(members))
	for i := range members {
		items[i] = memberResponse(&members[i])
	}
	h.Success(c, items)
}

// AddMember adds a collaborator by email
func (h *StudyHandler) AddMember(c *gin.Context) {
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

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	member, err := h.studyService.AddMember(c.Request.Context(), appstudy.AddMemberInput{
		OwnerID: userID,
		StudyID: studyID,
		Email:   req.Email,
		Role:    study.Role(req.Role),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, memberResponse(member))
}

// ChangeMemberRole changes a collaborator's role
func (h *StudyHandler) ChangeMemberRole(c *gin.Context) {
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
	targetID, err := parseUUIDParam(c, "userId")
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req ChangeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	err = h.studyService.ChangeMemberRole(c.Request.Context(), appstudy.ChangeMemberRoleInput{
		OwnerID:      userID,
		StudyID:      studyID,
		TargetUserID: targetID,
		Role:         study.Role(req.Role),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "Role updated"})
}

// RemoveMember removes a collaborator
func (h *StudyHandler) RemoveMember(c *gin.Context) {
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
	targetID, err := parseUUIDParam(c, "userId")
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	err = h.studyService.RemoveMember(c.Request.Context(), appstudy.RemoveMemberInput{
		ActingUserID: userID,
		StudyID:      studyID,
		TargetUserID: targetID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

func studyResponse(s *appstudy.StudyInfo) *StudyResponse {
	return &StudyResponse{
		ID:             s.ID,
		PublicName:     s.PublicName,
		InternalName:   s.InternalName,
		Code:           s.Code,
		ContactMessage: s.ContactMessage,
		Role:           string(s.Role),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func memberResponse(m *appstudy.MemberInfo) MemberResponse {
	return MemberResponse{
		UserID:    m.UserID,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Role:      string(m.Role),
		AddedAt:   m.AddedAt,
	}
}

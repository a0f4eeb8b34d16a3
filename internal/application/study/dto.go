package study

import (
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/study"
)

// CreateStudyInput contains the input for study creation
type CreateStudyInput struct {
	UserID         uuid.UUID
	PublicName     string
	InternalName   string
	ContactMessage string
}

// UpdateStudyInput contains the input for study update
type UpdateStudyInput struct {
	UserID         uuid.UUID
	StudyID        uuid.UUID
	PublicName     string
	InternalName   string
	ContactMessage string
}

// StudyInfo is the study representation returned to clients
type StudyInfo struct {
	ID             uuid.UUID
	PublicName     string
	InternalName   string
	Code           string
	ContactMessage string
	Role           study.Role // caller's role on this study
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MemberInfo describes one collaborator on a study
type MemberInfo struct {
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      study.Role
	AddedAt   time.Time
}

// AddMemberInput contains the input for adding a collaborator
type AddMemberInput struct {
	OwnerID uuid.UUID // acting user, must be an owner
	StudyID uuid.UUID
	Email   string
	Role    study.Role
}

// ChangeMemberRoleInput contains the input for changing a collaborator's role
type ChangeMemberRoleInput struct {
	OwnerID      uuid.UUID
	StudyID      uuid.UUID
	TargetUserID uuid.UUID
	Role         study.Role
}

// RemoveMemberInput contains the input for removing a collaborator
type RemoveMemberInput struct {
	ActingUserID uuid.UUID
	StudyID      uuid.UUID
	TargetUserID uuid.UUID
}

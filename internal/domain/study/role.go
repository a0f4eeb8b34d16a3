package study

import (
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// Role is a user's role on a single study
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// roleRank orders roles by privilege; higher rank means more access
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of min
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// ParseRole validates and converts a role string
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", shared.NewDomainError("INVALID_ROLE", "Role must be owner, editor or viewer")
	}
	return r, nil
}

// UserStudy links a researcher account to a study with a role
type UserStudy struct {
	shared.BaseEntity
	UserID  uuid.UUID
	StudyID uuid.UUID
	Role    Role
}

// NewUserStudy creates a study membership
func NewUserStudy(userID, studyID uuid.UUID, role Role) (*UserStudy, error) {
	if !role.Valid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Role must be owner, editor or viewer")
	}
	return &UserStudy{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		StudyID:    studyID,
		Role:       role,
	}, nil
}

// ChangeRole updates the membership role
func (us *UserStudy) ChangeRole(role Role) error {
	if !role.Valid() {
		return shared.NewDomainError("INVALID_ROLE", "Role must be owner, editor or viewer")
	}
	us.Role = role
	us.UpdatedAt = time.Now()
	return nil
}

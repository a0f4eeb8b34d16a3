package study

import (
	"context"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// StudyRepository defines persistence operations for studies
type StudyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Study, error)
	FindByCode(ctx context.Context, code string) (*Study, error)
	// FindAllForUser returns studies the user is a member of, honoring
	// pagination, name search and sorting from the filter.
	FindAllForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Study, error)
	CountForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, s *Study) error
	// Delete soft-deletes the study and cascades to its templates,
	// enrollments, pings and memberships in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserStudyRepository defines persistence operations for study memberships
type UserStudyRepository interface {
	Find(ctx context.Context, userID, studyID uuid.UUID) (*UserStudy, error)
	FindAllForStudy(ctx context.Context, studyID uuid.UUID) ([]UserStudy, error)
	CountOwners(ctx context.Context, studyID uuid.UUID) (int64, error)
	Save(ctx context.Context, us *UserStudy) error
	Delete(ctx context.Context, userID, studyID uuid.UUID) error
}

package enrollment

import (
	"context"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// EnrollmentRepository defines persistence operations for enrollments
type EnrollmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	FindByLinkCode(ctx context.Context, code string) (*Enrollment, error)
	FindByTelegramIDAndStudy(ctx context.Context, telegramID string, studyID uuid.UUID) (*Enrollment, error)
	FindAllByTelegramID(ctx context.Context, telegramID string) ([]Enrollment, error)
	FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]Enrollment, error)
	CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, e *Enrollment) error
	// Delete soft-deletes the enrollment and cascades to its pings.
	Delete(ctx context.Context, id uuid.UUID) error
}

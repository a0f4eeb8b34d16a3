package ping

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// TemplateRepository defines persistence operations for ping templates
type TemplateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Template, error)
	FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]Template, error)
	CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, t *Template) error
	// Delete soft-deletes the template and cascades to its pings.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ClaimFunc receives the claimed deliveries and returns the IDs of pings
// that were actually handed to the messenger. Only those get their sent
// stamp; everything else is released when the claim transaction ends.
type ClaimFunc func(ctx context.Context, due []Delivery) []uuid.UUID

// PingRepository defines persistence operations for pings
type PingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Ping, error)
	// FindDelivery loads a ping together with its template, enrollment
	// and study for rendering.
	FindDelivery(ctx context.Context, id uuid.UUID) (*Delivery, error)
	FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]Ping, error)
	CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error)
	FindAllForEnrollmentBetween(ctx context.Context, enrollmentID uuid.UUID, from, to time.Time) ([]Ping, error)
	Save(ctx context.Context, p *Ping) error
	SaveBatch(ctx context.Context, pings []*Ping) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ClaimDue selects unsent pings whose scheduled time has arrived
	// within the late tolerance, locking the rows with SKIP LOCKED so
	// concurrent sweepers never claim the same ping. The sent stamp is
	// written inside the claiming transaction.
	ClaimDue(ctx context.Context, now time.Time, tolerance time.Duration, fn ClaimFunc) error

	// ClaimReminders does the same for sent pings whose reminder time
	// has arrived and that have not been clicked.
	ClaimReminders(ctx context.Context, now time.Time, fn ClaimFunc) error
}

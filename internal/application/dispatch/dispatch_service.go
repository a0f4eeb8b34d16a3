package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/infrastructure/messenger"
	"go.uber.org/zap"
)

// reminderPrefix is prepended to a reminder resend of a ping message
const reminderPrefix = "Reminder: "

// SweepResult reports what one sweep accomplished
type SweepResult struct {
	Sent      int
	Reminders int
}

// DispatchService claims due pings and hands them to the messenger. Sends
// happen inside the claim transaction so a crashed sweeper never leaves a
// sent ping unstamped; a failed send leaves the ping unstamped for the next
// sweep.
type DispatchService struct {
	pingRepo  ping.PingRepository
	messenger messenger.Messenger
	baseURL   string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewDispatchService creates a new dispatch service. baseURL is the public
// origin forwarding links are built against; tolerance is how far past its
// scheduled time a ping may still be delivered.
func NewDispatchService(
	pingRepo ping.PingRepository,
	m messenger.Messenger,
	baseURL string,
	tolerance time.Duration,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		pingRepo:  pingRepo,
		messenger: m,
		baseURL:   baseURL,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Sweep delivers due pings and due reminders once
func (s *DispatchService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	err := s.pingRepo.ClaimDue(ctx, now, s.tolerance, func(ctx context.Context, due []ping.Delivery) []uuid.UUID {
		sent := s.deliver(ctx, due, false)
		result.Sent = len(sent)
		return sent
	})
	if err != nil {
		return result, err
	}

	err = s.pingRepo.ClaimReminders(ctx, now, func(ctx context.Context, due []ping.Delivery) []uuid.UUID {
		sent := s.deliver(ctx, due, true)
		result.Reminders = len(sent)
		return sent
	})
	return result, err
}

// deliver sends each claimed ping and returns the IDs that went out
func (s *DispatchService) deliver(ctx context.Context, due []ping.Delivery, reminder bool) []uuid.UUID {
	sent := make([]uuid.UUID, 0, len(due))
	for _, d := range due {
		if d.Enrollment.TelegramID == nil {
			continue
		}

		msg := ping.RenderMessage(d, s.baseURL)
		if reminder {
			msg = reminderPrefix + msg
		}

		if err := s.messenger.Send(ctx, *d.Enrollment.TelegramID, msg); err != nil {
			s.logger.Warn("Ping delivery failed",
				zap.String("ping_id", d.Ping.ID.String()),
				zap.Bool("reminder", reminder),
				zap.Error(err))
			continue
		}
		sent = append(sent, d.Ping.ID)
	}
	return sent
}

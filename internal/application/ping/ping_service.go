package ping

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	appstudy "github.com/pingboard/backend/internal/application/study"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
	"go.uber.org/zap"
)

// PingService handles researcher-facing ping queries and the public
// click-through forwarder.
type PingService struct {
	pingRepo   ping.PingRepository
	authorizer appstudy.Authorizer
	logger     *zap.Logger
}

// NewPingService creates a new ping service
func NewPingService(pingRepo ping.PingRepository, authorizer appstudy.Authorizer, logger *zap.Logger) *PingService {
	return &PingService{
		pingRepo:   pingRepo,
		authorizer: authorizer,
		logger:     logger,
	}
}

// GetPing returns one ping of a study (any member)
func (s *PingService) GetPing(ctx context.Context, userID, studyID, pingID uuid.UUID) (*PingInfo, error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	p, err := s.pingRepo.FindByID(ctx, pingID)
	if err != nil {
		return nil, err
	}
	if p.StudyID != studyID {
		return nil, shared.ErrNotFound
	}
	info := pingInfo(p)
	return &info, nil
}

// ListPings lists a study's pings (any member). The filter supports
// enrollment_id, ping_template_id and sent.
func (s *PingService) ListPings(ctx context.Context, userID, studyID uuid.UUID, filter shared.Filter) (*shared.Paginated[PingInfo], error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	pings, err := s.pingRepo.FindAllForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.pingRepo.CountForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}

	infos := make([]PingInfo, len(pings))
	for i := range pings {
		infos[i] = pingInfo(&pings[i])
	}
	result := shared.NewPaginated(infos, total, filter.Page, filter.PageSize)
	return &result, nil
}

// DeletePing removes one ping (editor+)
func (s *PingService) DeletePing(ctx context.Context, userID, studyID, pingID uuid.UUID) error {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleEditor); err != nil {
		return err
	}

	p, err := s.pingRepo.FindByID(ctx, pingID)
	if err != nil {
		return err
	}
	if p.StudyID != studyID {
		return shared.ErrNotFound
	}
	return s.pingRepo.Delete(ctx, pingID)
}

// Forward records a click on a ping's forwarding link and returns the
// rendered survey URL to redirect to. Any mismatch (unknown ping, wrong
// code, template without a URL) reports not found so the forwarder leaks
// nothing about which pings exist.
func (s *PingService) Forward(ctx context.Context, pingID uuid.UUID, code string) (string, error) {
	d, err := s.pingRepo.FindDelivery(ctx, pingID)
	if err != nil {
		return "", shared.ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(d.Ping.ForwardingCode), []byte(code)) != 1 {
		return "", shared.ErrNotFound
	}

	target := ping.RenderTargetURL(*d)
	if target == nil {
		return "", shared.ErrNotFound
	}

	d.Ping.RecordClick(time.Now())
	if err := s.pingRepo.Save(ctx, &d.Ping); err != nil {
		// the redirect matters more than the click stamp
		s.logger.Error("Failed to record ping click",
			zap.String("ping_id", pingID.String()),
			zap.Error(err))
	}

	return *target, nil
}

func pingInfo(p *ping.Ping) PingInfo {
	return PingInfo{
		ID:             p.ID,
		StudyID:        p.StudyID,
		TemplateID:     p.TemplateID,
		EnrollmentID:   p.EnrollmentID,
		ScheduledTS:    p.ScheduledTS,
		ExpireTS:       p.ExpireTS,
		ReminderTS:     p.ReminderTS,
		DayNum:         p.DayNum,
		SentTS:         p.SentTS,
		ReminderSentTS: p.ReminderSentTS,
		FirstClickedTS: p.FirstClickedTS,
		LastClickedTS:  p.LastClickedTS,
		CreatedAt:      p.CreatedAt,
	}
}

package ping

import (
	"context"

	"github.com/google/uuid"
	appstudy "github.com/pingboard/backend/internal/application/study"
	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
	"go.uber.org/zap"
)

// TemplateService handles ping template CRUD. Creating a template also
// generates pings for participants who are already enrolled.
type TemplateService struct {
	templateRepo   ping.TemplateRepository
	enrollmentRepo enrollment.EnrollmentRepository
	pingRepo       ping.PingRepository
	scheduler      *ping.Scheduler
	authorizer     appstudy.Authorizer
	logger         *zap.Logger
}

// NewTemplateService creates a new template service
func NewTemplateService(
	templateRepo ping.TemplateRepository,
	enrollmentRepo enrollment.EnrollmentRepository,
	pingRepo ping.PingRepository,
	scheduler *ping.Scheduler,
	authorizer appstudy.Authorizer,
	logger *zap.Logger,
) *TemplateService {
	return &TemplateService{
		templateRepo:   templateRepo,
		enrollmentRepo: enrollmentRepo,
		pingRepo:       pingRepo,
		scheduler:      scheduler,
		authorizer:     authorizer,
		logger:         logger,
	}
}

// CreateTemplate creates a template (editor+) and backfills pings for
// participants already enrolled in the study.
func (s *TemplateService) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*CreateTemplateResult, error) {
	if err := s.authorizer.Authorize(ctx, input.UserID, input.StudyID, study.RoleEditor); err != nil {
		return nil, err
	}

	tmpl, err := ping.NewTemplate(input.StudyID, input.Name, input.Message, input.Schedule, input.ReminderLatency, input.ExpireLatency)
	if err != nil {
		return nil, err
	}
	if err := tmpl.SetURL(input.URL, input.URLText); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Save(ctx, tmpl); err != nil {
		s.logger.Error("Failed to save template", zap.Error(err))
		return nil, err
	}

	count, err := s.backfillPings(ctx, tmpl)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Template created",
		zap.String("template_id", tmpl.ID.String()),
		zap.String("study_id", input.StudyID.String()),
		zap.Int("pings", count))

	return &CreateTemplateResult{Template: templateInfo(tmpl), PingCount: count}, nil
}

// backfillPings generates pings from the template for every enrollment that
// is still receiving pings.
func (s *TemplateService) backfillPings(ctx context.Context, tmpl *ping.Template) (int, error) {
	enrollments, err := s.enrollmentRepo.FindAllForStudy(ctx, tmpl.StudyID, shared.Filter{})
	if err != nil {
		return 0, err
	}

	var pings []*ping.Ping
	for i := range enrollments {
		if !enrollments[i].Enrolled {
			continue
		}
		built, err := s.scheduler.BuildPings(tmpl, &enrollments[i])
		if err != nil {
			// a bad stored timezone on one enrollment must not block the rest
			s.logger.Warn("Skipping ping generation for enrollment",
				zap.String("enrollment_id", enrollments[i].ID.String()),
				zap.Error(err))
			continue
		}
		pings = append(pings, built...)
	}

	if err := s.pingRepo.SaveBatch(ctx, pings); err != nil {
		s.logger.Error("Failed to save backfilled pings", zap.Error(err))
		return 0, err
	}
	return len(pings), nil
}

// GetTemplate returns one template of a study (any member)
func (s *TemplateService) GetTemplate(ctx context.Context, userID, studyID, templateID uuid.UUID) (*TemplateInfo, error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	tmpl, err := s.findInStudy(ctx, studyID, templateID)
	if err != nil {
		return nil, err
	}
	info := templateInfo(tmpl)
	return &info, nil
}

// ListTemplates lists a study's templates (any member)
func (s *TemplateService) ListTemplates(ctx context.Context, userID, studyID uuid.UUID, filter shared.Filter) (*shared.Paginated[TemplateInfo], error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	templates, err := s.templateRepo.FindAllForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.templateRepo.CountForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}

	infos := make([]TemplateInfo, len(templates))
	for i := range templates {
		infos[i] = templateInfo(&templates[i])
	}
	result := shared.NewPaginated(infos, total, filter.Page, filter.PageSize)
	return &result, nil
}

// UpdateTemplate updates a template (editor+). Pings already generated from
// the old definition are kept as scheduled.
func (s *TemplateService) UpdateTemplate(ctx context.Context, input UpdateTemplateInput) (*TemplateInfo, error) {
	if err := s.authorizer.Authorize(ctx, input.UserID, input.StudyID, study.RoleEditor); err != nil {
		return nil, err
	}

	tmpl, err := s.findInStudy(ctx, input.StudyID, input.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := tmpl.Update(input.Name, input.Message, input.Schedule, input.ReminderLatency, input.ExpireLatency); err != nil {
		return nil, err
	}
	if err := tmpl.SetURL(input.URL, input.URLText); err != nil {
		return nil, err
	}
	if err := s.templateRepo.Save(ctx, tmpl); err != nil {
		s.logger.Error("Failed to update template", zap.Error(err))
		return nil, err
	}

	info := templateInfo(tmpl)
	return &info, nil
}

// DeleteTemplate soft-deletes a template and its pings (editor+)
func (s *TemplateService) DeleteTemplate(ctx context.Context, userID, studyID, templateID uuid.UUID) error {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleEditor); err != nil {
		return err
	}

	if _, err := s.findInStudy(ctx, studyID, templateID); err != nil {
		return err
	}
	if err := s.templateRepo.Delete(ctx, templateID); err != nil {
		return err
	}

	s.logger.Info("Template deleted",
		zap.String("template_id", templateID.String()),
		zap.String("study_id", studyID.String()))
	return nil
}

func (s *TemplateService) findInStudy(ctx context.Context, studyID, templateID uuid.UUID) (*ping.Template, error) {
	tmpl, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl.StudyID != studyID {
		return nil, shared.ErrNotFound
	}
	return tmpl, nil
}

func templateInfo(tmpl *ping.Template) TemplateInfo {
	return TemplateInfo{
		ID:              tmpl.ID,
		StudyID:         tmpl.StudyID,
		Name:            tmpl.Name,
		Message:         tmpl.Message,
		URL:             tmpl.URL,
		URLText:         tmpl.URLText,
		Schedule:        tmpl.Schedule,
		ReminderLatency: tmpl.ReminderLatency,
		ExpireLatency:   tmpl.ExpireLatency,
		CreatedAt:       tmpl.CreatedAt,
		UpdatedAt:       tmpl.UpdatedAt,
	}
}

package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	appstudy "github.com/pingboard/backend/internal/application/study"
	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
	"go.uber.org/zap"
)

// EnrollmentService handles participant signups, Telegram linking and the
// researcher-facing enrollment views.
type EnrollmentService struct {
	enrollmentRepo enrollment.EnrollmentRepository
	studyRepo      study.StudyRepository
	templateRepo   ping.TemplateRepository
	pingRepo       ping.PingRepository
	scheduler      *ping.Scheduler
	authorizer     appstudy.Authorizer
	logger         *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	enrollmentRepo enrollment.EnrollmentRepository,
	studyRepo study.StudyRepository,
	templateRepo ping.TemplateRepository,
	pingRepo ping.PingRepository,
	scheduler *ping.Scheduler,
	authorizer appstudy.Authorizer,
	logger *zap.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		enrollmentRepo: enrollmentRepo,
		studyRepo:      studyRepo,
		templateRepo:   templateRepo,
		pingRepo:       pingRepo,
		scheduler:      scheduler,
		authorizer:     authorizer,
		logger:         logger,
	}
}

// Signup enrolls a participant into the study identified by its signup code
// and generates the full ping set from every template of the study.
func (s *EnrollmentService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	st, err := s.studyRepo.FindByCode(ctx, input.StudyCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("STUDY_NOT_FOUND", "No study exists with this signup code")
		}
		return nil, err
	}

	enr, err := enrollment.NewEnrollment(st.ID, input.StudyPID, input.Timezone, input.StartDate)
	if err != nil {
		return nil, err
	}

	if err := s.enrollmentRepo.Save(ctx, enr); err != nil {
		s.logger.Error("Failed to save enrollment", zap.Error(err))
		return nil, err
	}

	count, err := s.generatePings(ctx, st.ID, enr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Participant enrolled",
		zap.String("enrollment_id", enr.ID.String()),
		zap.String("study_id", st.ID.String()),
		zap.Int("pings", count))

	return &SignupResult{
		Enrollment:       enrollmentInfo(enr),
		TelegramLinkCode: enr.TelegramLinkCode,
		PingCount:        count,
	}, nil
}

// generatePings builds and persists one ping per template window
func (s *EnrollmentService) generatePings(ctx context.Context, studyID uuid.UUID, enr *enrollment.Enrollment) (int, error) {
	templates, err := s.templateRepo.FindAllForStudy(ctx, studyID, shared.Filter{})
	if err != nil {
		return 0, err
	}

	var pings []*ping.Ping
	for i := range templates {
		built, err := s.scheduler.BuildPings(&templates[i], enr)
		if err != nil {
			return 0, err
		}
		pings = append(pings, built...)
	}

	if err := s.pingRepo.SaveBatch(ctx, pings); err != nil {
		s.logger.Error("Failed to save generated pings", zap.Error(err))
		return 0, err
	}
	return len(pings), nil
}

// GetEnrollment returns one enrollment of a study (any member)
func (s *EnrollmentService) GetEnrollment(ctx context.Context, userID, studyID, enrollmentID uuid.UUID) (*EnrollmentInfo, error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	enr, err := s.findInStudy(ctx, studyID, enrollmentID)
	if err != nil {
		return nil, err
	}
	info := enrollmentInfo(enr)
	return &info, nil
}

// ListEnrollments lists a study's enrollments (any member)
func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID, studyID uuid.UUID, filter shared.Filter) (*shared.Paginated[EnrollmentInfo], error) {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleViewer); err != nil {
		return nil, err
	}

	enrollments, err := s.enrollmentRepo.FindAllForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.enrollmentRepo.CountForStudy(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}

	infos := make([]EnrollmentInfo, len(enrollments))
	for i := range enrollments {
		infos[i] = enrollmentInfo(&enrollments[i])
	}
	result := shared.NewPaginated(infos, total, filter.Page, filter.PageSize)
	return &result, nil
}

// UpdateEnrollment updates researcher-editable fields (editor+)
func (s *EnrollmentService) UpdateEnrollment(ctx context.Context, input UpdateEnrollmentInput) (*EnrollmentInfo, error) {
	if err := s.authorizer.Authorize(ctx, input.UserID, input.StudyID, study.RoleEditor); err != nil {
		return nil, err
	}

	enr, err := s.findInStudy(ctx, input.StudyID, input.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if input.StudyPID != "" {
		enr.StudyPID = input.StudyPID
	}
	if err := enr.RecordCompletionRate(input.PRCompleted); err != nil {
		return nil, err
	}
	if err := s.enrollmentRepo.Save(ctx, enr); err != nil {
		return nil, err
	}

	info := enrollmentInfo(enr)
	return &info, nil
}

// Unenroll stops ping delivery for an enrollment (editor+)
func (s *EnrollmentService) Unenroll(ctx context.Context, userID, studyID, enrollmentID uuid.UUID) error {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleEditor); err != nil {
		return err
	}

	enr, err := s.findInStudy(ctx, studyID, enrollmentID)
	if err != nil {
		return err
	}
	enr.Unenroll(time.Now())
	return s.enrollmentRepo.Save(ctx, enr)
}

// DeleteEnrollment soft-deletes an enrollment and its pings (editor+)
func (s *EnrollmentService) DeleteEnrollment(ctx context.Context, userID, studyID, enrollmentID uuid.UUID) error {
	if err := s.authorizer.Authorize(ctx, userID, studyID, study.RoleEditor); err != nil {
		return err
	}

	if _, err := s.findInStudy(ctx, studyID, enrollmentID); err != nil {
		return err
	}
	return s.enrollmentRepo.Delete(ctx, enrollmentID)
}

// LinkTelegram pairs a Telegram account with an enrollment via link code.
// Called by the bot after a participant types their code.
func (s *EnrollmentService) LinkTelegram(ctx context.Context, input LinkTelegramInput) (*EnrollmentInfo, error) {
	enr, err := s.enrollmentRepo.FindByLinkCode(ctx, input.LinkCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("CODE_NOT_FOUND", "No enrollment matches this link code")
		}
		return nil, err
	}

	if err := enr.LinkTelegram(input.TelegramID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.enrollmentRepo.Save(ctx, enr); err != nil {
		return nil, err
	}

	s.logger.Info("Telegram account linked",
		zap.String("enrollment_id", enr.ID.String()))

	info := enrollmentInfo(enr)
	return &info, nil
}

// UnenrollByTelegram unenrolls a participant identified by telegram id and
// study signup code. Called by the bot.
func (s *EnrollmentService) UnenrollByTelegram(ctx context.Context, input BotUnenrollInput) error {
	enr, err := s.findByTelegramAndCode(ctx, input.TelegramID, input.StudyCode)
	if err != nil {
		return err
	}

	enr.Unenroll(time.Now())
	if err := s.enrollmentRepo.Save(ctx, enr); err != nil {
		return err
	}

	s.logger.Info("Participant unenrolled via bot",
		zap.String("enrollment_id", enr.ID.String()))
	return nil
}

// IssueDashboardOTP issues a short-lived dashboard token for a participant
// identified by telegram id and study signup code. Called by the bot.
func (s *EnrollmentService) IssueDashboardOTP(ctx context.Context, input BotUnenrollInput) (*DashboardOTPResult, error) {
	enr, err := s.findByTelegramAndCode(ctx, input.TelegramID, input.StudyCode)
	if err != nil {
		return nil, err
	}

	otp, err := enr.IssueDashboardOTP(time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.enrollmentRepo.Save(ctx, enr); err != nil {
		return nil, err
	}

	return &DashboardOTPResult{
		EnrollmentID: enr.ID,
		OTP:          otp,
		ExpiresAt:    *enr.DashboardOTPExpireTS,
	}, nil
}

// ValidateDashboardOTP checks a presented dashboard token
func (s *EnrollmentService) ValidateDashboardOTP(ctx context.Context, enrollmentID uuid.UUID, otp string) (*EnrollmentInfo, error) {
	enr, err := s.enrollmentRepo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := enr.ValidateDashboardOTP(otp, time.Now()); err != nil {
		return nil, err
	}
	info := enrollmentInfo(enr)
	return &info, nil
}

// Dashboard validates a dashboard token and returns the enrollment together
// with every ping scheduled for it.
func (s *EnrollmentService) Dashboard(ctx context.Context, enrollmentID uuid.UUID, otp string) (*DashboardResult, error) {
	info, err := s.ValidateDashboardOTP(ctx, enrollmentID, otp)
	if err != nil {
		return nil, err
	}

	// the whole enrollment span, unpaginated
	pings, err := s.pingRepo.FindAllForEnrollmentBetween(ctx, enrollmentID, time.Time{}, time.Now().AddDate(10, 0, 0))
	if err != nil {
		return nil, err
	}

	return &DashboardResult{Enrollment: *info, Pings: pings}, nil
}

// ListPingsForDate lists a linked participant's pings scheduled on a given
// calendar date in their timezone, across all their enrollments. Called by
// the bot.
func (s *EnrollmentService) ListPingsForDate(ctx context.Context, telegramID string, date time.Time) ([]ping.Ping, error) {
	enrollments, err := s.enrollmentRepo.FindAllByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, shared.ErrNotEnrolled
	}

	var all []ping.Ping
	for i := range enrollments {
		loc, err := enrollments[i].Location()
		if err != nil {
			return nil, err
		}
		from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
		to := from.AddDate(0, 0, 1)

		pings, err := s.pingRepo.FindAllForEnrollmentBetween(ctx, enrollments[i].ID, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, pings...)
	}
	return all, nil
}

// findInStudy loads an enrollment and verifies it belongs to the study
func (s *EnrollmentService) findInStudy(ctx context.Context, studyID, enrollmentID uuid.UUID) (*enrollment.Enrollment, error) {
	enr, err := s.enrollmentRepo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.StudyID != studyID {
		return nil, shared.ErrNotFound
	}
	return enr, nil
}

func (s *EnrollmentService) findByTelegramAndCode(ctx context.Context, telegramID, studyCode string) (*enrollment.Enrollment, error) {
	st, err := s.studyRepo.FindByCode(ctx, studyCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("STUDY_NOT_FOUND", "No study exists with this signup code")
		}
		return nil, err
	}

	enr, err := s.enrollmentRepo.FindByTelegramIDAndStudy(ctx, telegramID, st.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotEnrolled
		}
		return nil, err
	}
	return enr, nil
}

func enrollmentInfo(enr *enrollment.Enrollment) EnrollmentInfo {
	return EnrollmentInfo{
		ID:                       enr.ID,
		StudyID:                  enr.StudyID,
		StudyPID:                 enr.StudyPID,
		TelegramLinked:           enr.TelegramLinked,
		TelegramLinkCodeExpireTS: enr.TelegramLinkCodeExpireTS,
		SignupTS:                 enr.SignupTS,
		StartDate:                enr.StartDate,
		Timezone:                 enr.Timezone,
		Enrolled:                 enr.Enrolled,
		PRCompleted:              enr.PRCompleted,
		CreatedAt:                enr.CreatedAt,
	}
}

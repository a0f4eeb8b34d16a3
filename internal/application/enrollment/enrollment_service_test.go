package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
)

type fakeEnrollmentRepo struct {
	enrollments map[uuid.UUID]*enrollment.Enrollment
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: make(map[uuid.UUID]*enrollment.Enrollment)}
}

func (r *fakeEnrollmentRepo) FindByID(_ context.Context, id uuid.UUID) (*enrollment.Enrollment, error) {
	e, ok := r.enrollments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEnrollmentRepo) FindByLinkCode(_ context.Context, code string) (*enrollment.Enrollment, error) {
	for _, e := range r.enrollments {
		if e.TelegramLinkCode == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEnrollmentRepo) FindByTelegramIDAndStudy(_ context.Context, telegramID string, studyID uuid.UUID) (*enrollment.Enrollment, error) {
	for _, e := range r.enrollments {
		if e.StudyID == studyID && e.TelegramID != nil && *e.TelegramID == telegramID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEnrollmentRepo) FindAllByTelegramID(_ context.Context, telegramID string) ([]enrollment.Enrollment, error) {
	var out []enrollment.Enrollment
	for _, e := range r.enrollments {
		if e.TelegramID != nil && *e.TelegramID == telegramID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) FindAllForStudy(_ context.Context, studyID uuid.UUID, _ shared.Filter) ([]enrollment.Enrollment, error) {
	var out []enrollment.Enrollment
	for _, e := range r.enrollments {
		if e.StudyID == studyID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	all, _ := r.FindAllForStudy(ctx, studyID, filter)
	return int64(len(all)), nil
}

func (r *fakeEnrollmentRepo) Save(_ context.Context, e *enrollment.Enrollment) error {
	cp := *e
	r.enrollments[e.ID] = &cp
	return nil
}

func (r *fakeEnrollmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.enrollments, id)
	return nil
}

type fakeStudyRepo struct {
	studies map[uuid.UUID]*study.Study
}

func newFakeStudyRepo() *fakeStudyRepo {
	return &fakeStudyRepo{studies: make(map[uuid.UUID]*study.Study)}
}

func (r *fakeStudyRepo) FindByID(_ context.Context, id uuid.UUID) (*study.Study, error) {
	st, ok := r.studies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *fakeStudyRepo) FindByCode(_ context.Context, code string) (*study.Study, error) {
	for _, st := range r.studies {
		if st.Code == code {
			cp := *st
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeStudyRepo) FindAllForUser(_ context.Context, _ uuid.UUID, _ shared.Filter) ([]study.Study, error) {
	return nil, nil
}

func (r *fakeStudyRepo) CountForUser(_ context.Context, _ uuid.UUID, _ shared.Filter) (int64, error) {
	return 0, nil
}

func (r *fakeStudyRepo) ExistsByCode(_ context.Context, _ string) (bool, error) { return false, nil }

func (r *fakeStudyRepo) Save(_ context.Context, st *study.Study) error {
	cp := *st
	r.studies[st.ID] = &cp
	return nil
}

func (r *fakeStudyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.studies, id)
	return nil
}

type fakeTemplateRepo struct {
	templates map[uuid.UUID]*ping.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[uuid.UUID]*ping.Template)}
}

func (r *fakeTemplateRepo) FindByID(_ context.Context, id uuid.UUID) (*ping.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTemplateRepo) FindAllForStudy(_ context.Context, studyID uuid.UUID, _ shared.Filter) ([]ping.Template, error) {
	var out []ping.Template
	for _, t := range r.templates {
		if t.StudyID == studyID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	all, _ := r.FindAllForStudy(ctx, studyID, filter)
	return int64(len(all)), nil
}

func (r *fakeTemplateRepo) Save(_ context.Context, t *ping.Template) error {
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.templates, id)
	return nil
}

type fakePingRepo struct {
	pings map[uuid.UUID]*ping.Ping
}

func newFakePingRepo() *fakePingRepo {
	return &fakePingRepo{pings: make(map[uuid.UUID]*ping.Ping)}
}

func (r *fakePingRepo) FindByID(_ context.Context, id uuid.UUID) (*ping.Ping, error) {
	p, ok := r.pings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePingRepo) FindDelivery(_ context.Context, _ uuid.UUID) (*ping.Delivery, error) {
	return nil, shared.ErrNotFound
}

func (r *fakePingRepo) FindAllForStudy(_ context.Context, studyID uuid.UUID, _ shared.Filter) ([]ping.Ping, error) {
	var out []ping.Ping
	for _, p := range r.pings {
		if p.StudyID == studyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePingRepo) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	all, _ := r.FindAllForStudy(ctx, studyID, filter)
	return int64(len(all)), nil
}

func (r *fakePingRepo) FindAllForEnrollmentBetween(_ context.Context, enrollmentID uuid.UUID, from, to time.Time) ([]ping.Ping, error) {
	var out []ping.Ping
	for _, p := range r.pings {
		if p.EnrollmentID == enrollmentID && !p.ScheduledTS.Before(from) && p.ScheduledTS.Before(to) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePingRepo) Save(_ context.Context, p *ping.Ping) error {
	cp := *p
	r.pings[p.ID] = &cp
	return nil
}

func (r *fakePingRepo) SaveBatch(ctx context.Context, pings []*ping.Ping) error {
	for _, p := range pings {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePingRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.pings, id)
	return nil
}

func (r *fakePingRepo) ClaimDue(_ context.Context, _ time.Time, _ time.Duration, _ ping.ClaimFunc) error {
	return nil
}

func (r *fakePingRepo) ClaimReminders(_ context.Context, _ time.Time, _ ping.ClaimFunc) error {
	return nil
}

// allowAll authorizes everyone; denyAll rejects everyone.
type allowAll struct{}

func (allowAll) Authorize(_ context.Context, _, _ uuid.UUID, _ study.Role) error { return nil }

type denyAll struct{}

func (denyAll) Authorize(_ context.Context, _, _ uuid.UUID, _ study.Role) error {
	return shared.ErrForbidden
}

type enrollmentFixture struct {
	svc            *EnrollmentService
	enrollmentRepo *fakeEnrollmentRepo
	studyRepo      *fakeStudyRepo
	templateRepo   *fakeTemplateRepo
	pingRepo       *fakePingRepo
	study          *study.Study
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	f := &enrollmentFixture{
		enrollmentRepo: newFakeEnrollmentRepo(),
		studyRepo:      newFakeStudyRepo(),
		templateRepo:   newFakeTemplateRepo(),
		pingRepo:       newFakePingRepo(),
	}
	f.svc = NewEnrollmentService(
		f.enrollmentRepo, f.studyRepo, f.templateRepo, f.pingRepo,
		ping.NewScheduler(), allowAll{}, zap.NewNop(),
	)

	st, err := study.NewStudy("Sleep Study", "sleep-2025", "")
	require.NoError(t, err)
	require.NoError(t, f.studyRepo.Save(context.Background(), st))
	f.study = st
	return f
}

func (f *enrollmentFixture) addTemplate(t *testing.T, windows ...ping.Window) *ping.Template {
	t.Helper()
	if len(windows) == 0 {
		windows = []ping.Window{{StartDayNum: 0, StartTime: "09:00", EndDayNum: 0, EndTime: "17:00"}}
	}
	tmpl, err := ping.NewTemplate(f.study.ID, "Daily", "Ping!", windows, 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.templateRepo.Save(context.Background(), tmpl))
	return tmpl
}

func (f *enrollmentFixture) signup(t *testing.T) *SignupResult {
	t.Helper()
	result, err := f.svc.Signup(context.Background(), SignupInput{
		StudyCode: f.study.Code,
		StudyPID:  "p001",
		Timezone:  "UTC",
		StartDate: time.Now().AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	return result
}

func TestEnrollmentService_Signup(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.addTemplate(t,
		ping.Window{StartDayNum: 0, StartTime: "09:00", EndDayNum: 0, EndTime: "17:00"},
		ping.Window{StartDayNum: 1, StartTime: "09:00", EndDayNum: 1, EndTime: "17:00"},
	)

	result := f.signup(t)

	assert.Equal(t, 2, result.PingCount)
	assert.Len(t, result.TelegramLinkCode, enrollment.LinkCodeLength)
	assert.True(t, result.Enrollment.Enrolled)

	stored, err := f.enrollmentRepo.FindByID(context.Background(), result.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, "p001", stored.StudyPID)

	pings, err := f.pingRepo.FindAllForStudy(context.Background(), f.study.ID, shared.Filter{})
	require.NoError(t, err)
	assert.Len(t, pings, 2)
}

func TestEnrollmentService_Signup_UnknownCode(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupInput{
		StudyCode: "nope1234",
		StudyPID:  "p001",
		Timezone:  "UTC",
		StartDate: time.Now(),
	})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "STUDY_NOT_FOUND", derr.Code)
}

func TestEnrollmentService_Signup_NoTemplates(t *testing.T) {
	f := newEnrollmentFixture(t)

	result := f.signup(t)
	assert.Zero(t, result.PingCount)
}

func TestEnrollmentService_LinkTelegram(t *testing.T) {
	f := newEnrollmentFixture(t)
	result := f.signup(t)
	ctx := context.Background()

	info, err := f.svc.LinkTelegram(ctx, LinkTelegramInput{
		LinkCode:   result.TelegramLinkCode,
		TelegramID: "555001",
	})
	require.NoError(t, err)
	assert.True(t, info.TelegramLinked)

	// The code is single-use
	_, err = f.svc.LinkTelegram(ctx, LinkTelegramInput{
		LinkCode:   result.TelegramLinkCode,
		TelegramID: "555002",
	})
	assert.ErrorIs(t, err, shared.ErrCodeAlreadyUsed)

	// Unknown codes report a distinct error
	_, err = f.svc.LinkTelegram(ctx, LinkTelegramInput{LinkCode: "zzzzzz", TelegramID: "555003"})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "CODE_NOT_FOUND", derr.Code)
}

func TestEnrollmentService_UnenrollByTelegram(t *testing.T) {
	f := newEnrollmentFixture(t)
	result := f.signup(t)
	ctx := context.Background()

	_, err := f.svc.LinkTelegram(ctx, LinkTelegramInput{
		LinkCode:   result.TelegramLinkCode,
		TelegramID: "555001",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.UnenrollByTelegram(ctx, BotUnenrollInput{
		TelegramID: "555001",
		StudyCode:  f.study.Code,
	}))
	stored, err := f.enrollmentRepo.FindByID(ctx, result.Enrollment.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enrolled)

	// Unknown telegram id in a known study
	err = f.svc.UnenrollByTelegram(ctx, BotUnenrollInput{TelegramID: "999", StudyCode: f.study.Code})
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)
}

func TestEnrollmentService_DashboardFlow(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.addTemplate(t)
	result := f.signup(t)
	ctx := context.Background()

	_, err := f.svc.LinkTelegram(ctx, LinkTelegramInput{
		LinkCode:   result.TelegramLinkCode,
		TelegramID: "555001",
	})
	require.NoError(t, err)

	otp, err := f.svc.IssueDashboardOTP(ctx, BotUnenrollInput{
		TelegramID: "555001",
		StudyCode:  f.study.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, result.Enrollment.ID, otp.EnrollmentID)
	assert.NotEmpty(t, otp.OTP)

	dash, err := f.svc.Dashboard(ctx, otp.EnrollmentID, otp.OTP)
	require.NoError(t, err)
	assert.Equal(t, result.Enrollment.ID, dash.Enrollment.ID)
	assert.Len(t, dash.Pings, 1)

	_, err = f.svc.Dashboard(ctx, otp.EnrollmentID, "wrong-token")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestEnrollmentService_ListPingsForDate(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.addTemplate(t)
	result := f.signup(t)
	ctx := context.Background()

	_, err := f.svc.LinkTelegram(ctx, LinkTelegramInput{
		LinkCode:   result.TelegramLinkCode,
		TelegramID: "555001",
	})
	require.NoError(t, err)

	// The single generated ping lands inside day 0's window
	day := result.Enrollment.StartDate
	pings, err := f.svc.ListPingsForDate(ctx, "555001", day)
	require.NoError(t, err)
	assert.Len(t, pings, 1)

	// A different day is empty
	pings, err = f.svc.ListPingsForDate(ctx, "555001", day.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, pings)

	// Unlinked telegram ids are not enrolled anywhere
	_, err = f.svc.ListPingsForDate(ctx, "999", day)
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)
}

func TestEnrollmentService_UpdateEnrollment(t *testing.T) {
	f := newEnrollmentFixture(t)
	result := f.signup(t)
	ctx := context.Background()

	info, err := f.svc.UpdateEnrollment(ctx, UpdateEnrollmentInput{
		UserID:       uuid.New(),
		StudyID:      f.study.ID,
		EnrollmentID: result.Enrollment.ID,
		StudyPID:     "p001-renamed",
		PRCompleted:  0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "p001-renamed", info.StudyPID)
	assert.Equal(t, 0.4, info.PRCompleted)
}

func TestEnrollmentService_GetEnrollment_WrongStudy(t *testing.T) {
	f := newEnrollmentFixture(t)
	result := f.signup(t)

	_, err := f.svc.GetEnrollment(context.Background(), uuid.New(), uuid.New(), result.Enrollment.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnrollmentService_AuthorizationDenied(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.svc = NewEnrollmentService(
		f.enrollmentRepo, f.studyRepo, f.templateRepo, f.pingRepo,
		ping.NewScheduler(), denyAll{}, zap.NewNop(),
	)
	result := f.signup(t)

	_, err := f.svc.GetEnrollment(context.Background(), uuid.New(), f.study.ID, result.Enrollment.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	err = f.svc.Unenroll(context.Background(), uuid.New(), f.study.ID, result.Enrollment.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingboard/backend/internal/domain/ping"
)

var pingColumns = []string{
	"id", "created_at", "updated_at", "deleted_at",
	"study_id", "ping_template_id", "enrollment_id",
	"scheduled_ts", "expire_ts", "reminder_ts", "day_num",
	"message", "url", "forwarding_code",
	"sent_ts", "reminder_sent_ts", "first_clicked_ts", "last_clicked_ts",
}

// claimDuePattern pins the due predicate: unsent, inside the late-tolerance
// window, not expired, joined rows live, participant reachable, rows locked
// with SKIP LOCKED.
const claimDuePattern = `SELECT pings\..+ FROM "pings"` +
	`.*JOIN enrollments ON enrollments\.id = pings\.enrollment_id AND enrollments\.deleted_at IS NULL` +
	`.*JOIN ping_templates ON ping_templates\.id = pings\.ping_template_id AND ping_templates\.deleted_at IS NULL` +
	`.*JOIN studies ON studies\.id = pings\.study_id AND studies\.deleted_at IS NULL` +
	`.*enrollments\.enrolled = .+ AND enrollments\.telegram_linked = ` +
	`.*pings\.sent_ts IS NULL` +
	`.*pings\.scheduled_ts <= .+ AND pings\.scheduled_ts >= ` +
	`.*pings\.expire_ts IS NULL OR pings\.expire_ts > ` +
	`.*"pings"\."deleted_at" IS NULL` +
	`.*FOR UPDATE OF "pings" SKIP LOCKED`

// claimRemindersPattern pins the reminder predicate: already sent, reminder
// due, not yet reminded, never clicked, not expired.
const claimRemindersPattern = `SELECT pings\..+ FROM "pings"` +
	`.*JOIN enrollments .+JOIN ping_templates .+JOIN studies ` +
	`.*pings\.sent_ts IS NOT NULL` +
	`.*pings\.reminder_sent_ts IS NULL` +
	`.*pings\.reminder_ts IS NOT NULL AND pings\.reminder_ts <= ` +
	`.*pings\.expire_ts IS NULL OR pings\.expire_ts > ` +
	`.*pings\.first_clicked_ts IS NULL` +
	`.*"pings"\."deleted_at" IS NULL` +
	`.*FOR UPDATE OF "pings" SKIP LOCKED`

type claimFixtureIDs struct {
	pingID       uuid.UUID
	templateID   uuid.UUID
	enrollmentID uuid.UUID
	studyID      uuid.UUID
}

func newClaimFixtureIDs() claimFixtureIDs {
	return claimFixtureIDs{
		pingID:       uuid.New(),
		templateID:   uuid.New(),
		enrollmentID: uuid.New(),
		studyID:      uuid.New(),
	}
}

func (f claimFixtureIDs) pingRow(now time.Time, sentTS interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(pingColumns).AddRow(
		f.pingID.String(), now, now, nil,
		f.studyID.String(), f.templateID.String(), f.enrollmentID.String(),
		now, nil, nil, 0,
		nil, nil, "aabbccddeeff00112233445566778899",
		sentTS, nil, nil, nil,
	)
}

// expectHydration queues the template/enrollment/study lookups that follow a
// successful claim.
func (f claimFixtureIDs) expectHydration(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectQuery(`SELECT \* FROM "ping_templates" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "deleted_at",
			"study_id", "name", "message", "url", "url_text",
			"reminder_latency", "expire_latency", "schedule",
		}).AddRow(
			f.templateID.String(), now, now, nil,
			f.studyID.String(), "Daily check-in", "How are you, <PID>?", nil, nil,
			0, 0, `[{"start_day_num":0,"start_time":"09:00","end_day_num":0,"end_time":"17:00"}]`,
		))
	mock.ExpectQuery(`SELECT \* FROM "enrollments" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "deleted_at",
			"study_id", "telegram_id", "telegram_link_code", "telegram_link_code_expire_ts",
			"telegram_linked", "signup_ts", "start_date", "timezone",
			"enrolled", "study_pid", "pr_completed", "dashboard_otp", "dashboard_otp_expire_ts",
		}).AddRow(
			f.enrollmentID.String(), now, now, nil,
			f.studyID.String(), "12345", "abc234", now.Add(24*time.Hour),
			true, now, now, "UTC",
			true, "p001", 0.0, nil, nil,
		))
	mock.ExpectQuery(`SELECT \* FROM "studies" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "deleted_at",
			"public_name", "internal_name", "code", "contact_message",
		}).AddRow(
			f.studyID.String(), now, now, nil,
			"Sleep Study", "sleep-2025", "abcd2345", "",
		))
}

func TestGormPingRepository_ClaimDue_PredicatesAndLocking(t *testing.T) {
	db, mock := newMockDatabase(t)
	repo := NewGormPingRepository(db.DB)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(claimDuePattern).WillReturnRows(sqlmock.NewRows(pingColumns))
	mock.ExpectCommit()

	err := repo.ClaimDue(context.Background(), now, 15*time.Minute, func(_ context.Context, due []ping.Delivery) []uuid.UUID {
		t.Fatal("claim callback must not run when nothing is due")
		return nil
	})
	require.NoError(t, err)
}

func TestGormPingRepository_ClaimDue_StampsSentInTransaction(t *testing.T) {
	db, mock := newMockDatabase(t)
	repo := NewGormPingRepository(db.DB)
	now := time.Now()
	f := newClaimFixtureIDs()

	mock.ExpectBegin()
	mock.ExpectQuery(claimDuePattern).WillReturnRows(f.pingRow(now, nil))
	f.expectHydration(mock, now)
	mock.ExpectExec(`UPDATE "pings" SET "sent_ts"=.+,"updated_at"=.+ WHERE id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ClaimDue(context.Background(), now, 15*time.Minute, func(_ context.Context, due []ping.Delivery) []uuid.UUID {
		require.Len(t, due, 1)
		assert.Equal(t, f.pingID, due[0].Ping.ID)
		assert.Equal(t, "Daily check-in", due[0].Template.Name)
		assert.Equal(t, "p001", due[0].Enrollment.StudyPID)
		assert.Equal(t, "Sleep Study", due[0].Study.PublicName)
		return []uuid.UUID{due[0].Ping.ID}
	})
	require.NoError(t, err)
}

func TestGormPingRepository_ClaimDue_NoStampWhenNothingSent(t *testing.T) {
	db, mock := newMockDatabase(t)
	repo := NewGormPingRepository(db.DB)
	now := time.Now()
	f := newClaimFixtureIDs()

	mock.ExpectBegin()
	mock.ExpectQuery(claimDuePattern).WillReturnRows(f.pingRow(now, nil))
	f.expectHydration(mock, now)
	// no UPDATE: the messenger delivered nothing, the rows stay unstamped
	mock.ExpectCommit()

	err := repo.ClaimDue(context.Background(), now, 15*time.Minute, func(_ context.Context, due []ping.Delivery) []uuid.UUID {
		return nil
	})
	require.NoError(t, err)
}

func TestGormPingRepository_ClaimReminders_PredicatesAndStamp(t *testing.T) {
	db, mock := newMockDatabase(t)
	repo := NewGormPingRepository(db.DB)
	now := time.Now()
	f := newClaimFixtureIDs()

	mock.ExpectBegin()
	mock.ExpectQuery(claimRemindersPattern).WillReturnRows(f.pingRow(now, now.Add(-time.Hour)))
	f.expectHydration(mock, now)
	mock.ExpectExec(`UPDATE "pings" SET "reminder_sent_ts"=.+,"updated_at"=.+ WHERE id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ClaimReminders(context.Background(), now, func(_ context.Context, due []ping.Delivery) []uuid.UUID {
		require.Len(t, due, 1)
		require.NotNil(t, due[0].Ping.SentTS)
		return []uuid.UUID{due[0].Ping.ID}
	})
	require.NoError(t, err)
}

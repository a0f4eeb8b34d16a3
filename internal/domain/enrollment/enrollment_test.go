package enrollment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingboard/backend/internal/domain/shared"
)

func TestNewEnrollment(t *testing.T) {
	studyID := uuid.New()
	startDate := time.Date(2025, 6, 15, 13, 45, 12, 0, time.UTC)

	enr, err := NewEnrollment(studyID, "p001", "America/Chicago", startDate)
	require.NoError(t, err)

	assert.Equal(t, studyID, enr.StudyID)
	assert.Equal(t, "p001", enr.StudyPID)
	assert.Equal(t, "America/Chicago", enr.Timezone)
	assert.True(t, enr.Enrolled)
	assert.False(t, enr.TelegramLinked)
	assert.Nil(t, enr.TelegramID)

	// Start date is normalized to a bare calendar date
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), enr.StartDate)

	assert.Len(t, enr.TelegramLinkCode, LinkCodeLength)
	assert.WithinDuration(t, time.Now().Add(LinkCodeTTL), enr.TelegramLinkCodeExpireTS, time.Minute)
}

func TestNewEnrollment_Invalid(t *testing.T) {
	studyID := uuid.New()
	startDate := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := NewEnrollment(studyID, "  ", "America/Chicago", startDate)
	assert.Error(t, err)

	_, err = NewEnrollment(studyID, "p001", "Not/AZone", startDate)
	assert.ErrorIs(t, err, shared.ErrInvalidTimezone)
}

func TestEnrollment_LinkTelegram(t *testing.T) {
	enr, err := NewEnrollment(uuid.New(), "p001", "UTC", time.Now())
	require.NoError(t, err)
	now := time.Now()

	err = enr.LinkTelegram("", now)
	assert.Error(t, err)
	assert.False(t, enr.TelegramLinked)

	err = enr.LinkTelegram("12345", now)
	require.NoError(t, err)
	assert.True(t, enr.TelegramLinked)
	require.NotNil(t, enr.TelegramID)
	assert.Equal(t, "12345", *enr.TelegramID)

	// The code is single-use
	err = enr.LinkTelegram("67890", now)
	assert.ErrorIs(t, err, shared.ErrCodeAlreadyUsed)
	assert.Equal(t, "12345", *enr.TelegramID)
}

func TestEnrollment_LinkTelegram_ExpiredCode(t *testing.T) {
	enr, err := NewEnrollment(uuid.New(), "p001", "UTC", time.Now())
	require.NoError(t, err)

	err = enr.LinkTelegram("12345", enr.TelegramLinkCodeExpireTS.Add(time.Second))
	assert.ErrorIs(t, err, shared.ErrCodeExpired)
	assert.False(t, enr.TelegramLinked)
}

func TestEnrollment_Unenroll(t *testing.T) {
	enr, err := NewEnrollment(uuid.New(), "p001", "UTC", time.Now())
	require.NoError(t, err)

	enr.Unenroll(time.Now())
	assert.False(t, enr.Enrolled)
}

func TestEnrollment_DashboardOTP(t *testing.T) {
	enr, err := NewEnrollment(uuid.New(), "p001", "UTC", time.Now())
	require.NoError(t, err)
	now := time.Now()

	// Nothing issued yet
	assert.ErrorIs(t, enr.ValidateDashboardOTP("anything", now), shared.ErrUnauthorized)

	otp, err := enr.IssueDashboardOTP(now)
	require.NoError(t, err)
	assert.NotEmpty(t, otp)

	assert.NoError(t, enr.ValidateDashboardOTP(otp, now))
	assert.ErrorIs(t, enr.ValidateDashboardOTP("wrong", now), shared.ErrUnauthorized)
	assert.ErrorIs(t, enr.ValidateDashboardOTP(otp, now.Add(DashboardOTPTTL+time.Second)), shared.ErrCodeExpired)

	// Reissuing replaces the previous token
	otp2, err := enr.IssueDashboardOTP(now)
	require.NoError(t, err)
	assert.NotEqual(t, otp, otp2)
	assert.ErrorIs(t, enr.ValidateDashboardOTP(otp, now), shared.ErrUnauthorized)
	assert.NoError(t, enr.ValidateDashboardOTP(otp2, now))
}

func TestEnrollment_RecordCompletionRate(t *testing.T) {
	enr, err := NewEnrollment(uuid.New(), "p001", "UTC", time.Now())
	require.NoError(t, err)

	assert.Error(t, enr.RecordCompletionRate(-0.1))
	assert.Error(t, enr.RecordCompletionRate(1.1))

	require.NoError(t, enr.RecordCompletionRate(0.75))
	assert.Equal(t, 0.75, enr.PRCompleted)
}

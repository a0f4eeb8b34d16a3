package enrollment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
)

const (
	// LinkCodeLength is the length of the Telegram link code a
	// participant types at the bot to pair their account.
	LinkCodeLength = 6

	// LinkCodeTTL is how long a Telegram link code stays valid.
	LinkCodeTTL = 24 * time.Hour

	// DashboardOTPTTL is how long a dashboard one-time token stays valid.
	DashboardOTPTTL = 60 * time.Minute
)

// Enrollment is one participant's registration in one study.
// It carries the timezone and start date that anchor ping scheduling.
type Enrollment struct {
	shared.BaseEntity
	StudyID                  uuid.UUID
	TelegramID               *string
	TelegramLinkCode         string
	TelegramLinkCodeExpireTS time.Time
	TelegramLinked           bool
	SignupTS                 time.Time
	StartDate                time.Time // calendar date stored as midnight UTC; Window.Bounds reads Y/M/D only
	Timezone                 string    // IANA identifier
	Enrolled                 bool
	StudyPID                 string
	PRCompleted              float64
	DashboardOTP             *string
	DashboardOTPExpireTS     *time.Time
}

// NewEnrollment creates an enrollment for a study signup. The timezone must
// be a valid IANA identifier; startDate is interpreted as a calendar date.
func NewEnrollment(studyID uuid.UUID, studyPID, timezone string, startDate time.Time) (*Enrollment, error) {
	studyPID = strings.TrimSpace(studyPID)
	if studyPID == "" {
		return nil, shared.NewDomainError("INVALID_PID", "Participant ID is required")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, shared.ErrInvalidTimezone
	}

	code, err := study.GenerateCode(LinkCodeLength)
	if err != nil {
		return nil, shared.NewDomainError("CODE_GENERATION_ERROR", "Failed to generate link code")
	}

	now := time.Now()
	return &Enrollment{
		BaseEntity:               shared.NewBaseEntity(),
		StudyID:                  studyID,
		TelegramLinkCode:         code,
		TelegramLinkCodeExpireTS: now.Add(LinkCodeTTL),
		SignupTS:                 now,
		StartDate:                time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC),
		Timezone:                 timezone,
		Enrolled:                 true,
		StudyPID:                 studyPID,
	}, nil
}

// Location resolves the enrollment's timezone
func (e *Enrollment) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, shared.ErrInvalidTimezone
	}
	return loc, nil
}

// LinkTelegram pairs a Telegram account using the link code. The code is
// single-use: once linked, further link attempts are rejected.
func (e *Enrollment) LinkTelegram(telegramID string, now time.Time) error {
	if e.TelegramLinked {
		return shared.ErrCodeAlreadyUsed
	}
	if now.After(e.TelegramLinkCodeExpireTS) {
		return shared.ErrCodeExpired
	}
	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return shared.NewDomainError("INVALID_TELEGRAM_ID", "Telegram ID is required")
	}
	e.TelegramID = &telegramID
	e.TelegramLinked = true
	e.UpdatedAt = now
	return nil
}

// Unenroll stops further ping delivery without deleting history
func (e *Enrollment) Unenroll(now time.Time) {
	e.Enrolled = false
	e.UpdatedAt = now
}

// IssueDashboardOTP generates a URL-safe one-time token for the
// participant dashboard, valid for DashboardOTPTTL.
func (e *Enrollment) IssueDashboardOTP(now time.Time) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", shared.NewDomainError("CODE_GENERATION_ERROR", "Failed to generate dashboard token")
	}
	otp := base64.RawURLEncoding.EncodeToString(raw)
	expiry := now.Add(DashboardOTPTTL)
	e.DashboardOTP = &otp
	e.DashboardOTPExpireTS = &expiry
	e.UpdatedAt = now
	return otp, nil
}

// ValidateDashboardOTP checks a presented token against the stored one
func (e *Enrollment) ValidateDashboardOTP(otp string, now time.Time) error {
	if e.DashboardOTP == nil || e.DashboardOTPExpireTS == nil {
		return shared.ErrUnauthorized
	}
	if now.After(*e.DashboardOTPExpireTS) {
		return shared.ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(*e.DashboardOTP), []byte(otp)) != 1 {
		return shared.ErrUnauthorized
	}
	return nil
}

// RecordCompletionRate stores the participant's survey completion rate
func (e *Enrollment) RecordCompletionRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return shared.NewDomainError("INVALID_RATE", "Completion rate must be between 0 and 1")
	}
	e.PRCompleted = rate
	e.UpdatedAt = time.Now()
	return nil
}

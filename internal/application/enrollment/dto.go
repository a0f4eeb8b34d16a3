package enrollment

import (
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
)

// SignupInput contains the participant-facing signup input
type SignupInput struct {
	StudyCode string
	StudyPID  string
	Timezone  string
	StartDate time.Time
}

// SignupResult is returned to the participant after signup
type SignupResult struct {
	Enrollment       EnrollmentInfo
	TelegramLinkCode string
	PingCount        int
}

// EnrollmentInfo is the enrollment representation returned to clients
type EnrollmentInfo struct {
	ID                       uuid.UUID
	StudyID                  uuid.UUID
	StudyPID                 string
	TelegramLinked           bool
	TelegramLinkCodeExpireTS time.Time
	SignupTS                 time.Time
	StartDate                time.Time
	Timezone                 string
	Enrolled                 bool
	PRCompleted              float64
	CreatedAt                time.Time
}

// UpdateEnrollmentInput contains the researcher-facing update input
type UpdateEnrollmentInput struct {
	UserID       uuid.UUID
	StudyID      uuid.UUID
	EnrollmentID uuid.UUID
	StudyPID     string
	PRCompleted  float64
}

// LinkTelegramInput contains the bot-facing link input
type LinkTelegramInput struct {
	LinkCode   string
	TelegramID string
}

// BotUnenrollInput contains the bot-facing unenroll input
type BotUnenrollInput struct {
	TelegramID string
	StudyCode  string
}

// DashboardResult is the participant dashboard view: the enrollment and
// all pings scheduled for it.
type DashboardResult struct {
	Enrollment EnrollmentInfo
	Pings      []ping.Ping
}

// DashboardOTPResult carries a freshly issued dashboard token
type DashboardOTPResult struct {
	EnrollmentID uuid.UUID
	OTP          string
	ExpiresAt    time.Time
}

package ping

import (
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
)

// CreateTemplateInput contains the input for template creation
type CreateTemplateInput struct {
	UserID          uuid.UUID
	StudyID         uuid.UUID
	Name            string
	Message         string
	URL             string
	URLText         string
	Schedule        []ping.Window
	ReminderLatency time.Duration
	ExpireLatency   time.Duration
}

// UpdateTemplateInput contains the input for template update
type UpdateTemplateInput struct {
	UserID          uuid.UUID
	StudyID         uuid.UUID
	TemplateID      uuid.UUID
	Name            string
	Message         string
	URL             string
	URLText         string
	Schedule        []ping.Window
	ReminderLatency time.Duration
	ExpireLatency   time.Duration
}

// TemplateInfo is the template representation returned to clients
type TemplateInfo struct {
	ID              uuid.UUID
	StudyID         uuid.UUID
	Name            string
	Message         string
	URL             *string
	URLText         *string
	Schedule        []ping.Window
	ReminderLatency time.Duration
	ExpireLatency   time.Duration
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateTemplateResult carries the new template and how many pings were
// generated for already-enrolled participants.
type CreateTemplateResult struct {
	Template  TemplateInfo
	PingCount int
}

// PingInfo is the ping representation returned to researchers
type PingInfo struct {
	ID             uuid.UUID
	StudyID        uuid.UUID
	TemplateID     uuid.UUID
	EnrollmentID   uuid.UUID
	ScheduledTS    time.Time
	ExpireTS       *time.Time
	ReminderTS     *time.Time
	DayNum         int
	SentTS         *time.Time
	ReminderSentTS *time.Time
	FirstClickedTS *time.Time
	LastClickedTS  *time.Time
	CreatedAt      time.Time
}

package ping

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// Window is one delivery window in a template schedule. Day numbers are
// offsets from the enrollment start date (day 0 is the start date itself);
// times are "HH:MM" wall-clock values in the participant's timezone.
type Window struct {
	StartDayNum int    `json:"start_day_num"`
	StartTime   string `json:"start_time"`
	EndDayNum   int    `json:"end_day_num"`
	EndTime     string `json:"end_time"`
}

// Bounds resolves the window to concrete instants for an enrollment that
// starts on startDate in loc.
func (w Window) Bounds(startDate time.Time, loc *time.Location) (time.Time, time.Time, error) {
	sh, sm, err := parseClock(w.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh, em, err := parseClock(w.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day()+w.StartDayNum, sh, sm, 0, 0, loc)
	end := time.Date(startDate.Year(), startDate.Month(), startDate.Day()+w.EndDayNum, eh, em, 0, 0, loc)
	return start, end, nil
}

func (w Window) validate() error {
	if w.StartDayNum < 0 || w.EndDayNum < 0 {
		return shared.NewDomainError("INVALID_SCHEDULE", "Day numbers cannot be negative")
	}
	if w.StartDayNum > w.EndDayNum {
		return shared.NewDomainError("INVALID_SCHEDULE", "Window start day must not be after end day")
	}
	sh, sm, err := parseClock(w.StartTime)
	if err != nil {
		return err
	}
	eh, em, err := parseClock(w.EndTime)
	if err != nil {
		return err
	}
	if w.StartDayNum == w.EndDayNum && (sh*60+sm) >= (eh*60+em) {
		return shared.NewDomainError("INVALID_SCHEDULE", "Window start time must be before end time")
	}
	return nil
}

func parseClock(s string) (int, int, error) {
	// strict "HH:MM"; Sscanf-style parsing would admit trailing garbage
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, 0, shared.NewDomainError("INVALID_SCHEDULE", "Times must be HH:MM")
	}
	return t.Hour(), t.Minute(), nil
}

// Template is a researcher-defined prompt with a delivery schedule.
// One ping is generated per window when a participant signs up.
type Template struct {
	shared.BaseEntity
	StudyID         uuid.UUID
	Name            string
	Message         string
	URL             *string
	URLText         *string
	ReminderLatency time.Duration // 0 disables reminders
	ExpireLatency   time.Duration // 0 disables expiry
	Schedule        []Window
}

// NewTemplate creates a ping template after validating its schedule
func NewTemplate(studyID uuid.UUID, name, message string, schedule []Window, reminderLatency, expireLatency time.Duration) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Template name is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Template message is required")
	}
	if len(schedule) == 0 {
		return nil, shared.NewDomainError("INVALID_SCHEDULE", "Schedule must contain at least one window")
	}
	if reminderLatency < 0 || expireLatency < 0 {
		return nil, shared.NewDomainError("INVALID_SCHEDULE", "Latencies cannot be negative")
	}
	for _, w := range schedule {
		if err := w.validate(); err != nil {
			return nil, err
		}
	}
	return &Template{
		BaseEntity:      shared.NewBaseEntity(),
		StudyID:         studyID,
		Name:            name,
		Message:         message,
		Schedule:        schedule,
		ReminderLatency: reminderLatency,
		ExpireLatency:   expireLatency,
	}, nil
}

// SetURL attaches a survey URL and optional link label
func (t *Template) SetURL(url, urlText string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		t.URL = nil
		t.URLText = nil
		t.UpdatedAt = time.Now()
		return nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return shared.NewDomainError("INVALID_URL", "URL must start with http:// or https://")
	}
	t.URL = &url
	if label := strings.TrimSpace(urlText); label != "" {
		t.URLText = &label
	} else {
		t.URLText = nil
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Update replaces the template's mutable fields, re-validating the schedule
func (t *Template) Update(name, message string, schedule []Window, reminderLatency, expireLatency time.Duration) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Template name is required")
	}
	if strings.TrimSpace(message) == "" {
		return shared.NewDomainError("INVALID_MESSAGE", "Template message is required")
	}
	if len(schedule) == 0 {
		return shared.NewDomainError("INVALID_SCHEDULE", "Schedule must contain at least one window")
	}
	if reminderLatency < 0 || expireLatency < 0 {
		return shared.NewDomainError("INVALID_SCHEDULE", "Latencies cannot be negative")
	}
	for _, w := range schedule {
		if err := w.validate(); err != nil {
			return err
		}
	}
	t.Name = name
	t.Message = message
	t.Schedule = schedule
	t.ReminderLatency = reminderLatency
	t.ExpireLatency = expireLatency
	t.UpdatedAt = time.Now()
	return nil
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
)

// PingTemplateModel is the persistence model for the Template domain entity.
// The schedule is stored as a JSONB array of windows; latencies are stored
// in seconds.
type PingTemplateModel struct {
	BaseModel
	StudyID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Name            string    `gorm:"type:varchar(255);not null"`
	Message         string    `gorm:"type:text;not null"`
	URL             *string   `gorm:"type:text"`
	URLText         *string   `gorm:"type:varchar(255)"`
	ReminderLatency int64     `gorm:"not null;default:0"`
	ExpireLatency   int64     `gorm:"not null;default:0"`
	Schedule        []byte    `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (PingTemplateModel) TableName() string {
	return "ping_templates"
}

// ToDomain converts the persistence model to a domain Template entity.
func (m *PingTemplateModel) ToDomain() (*ping.Template, error) {
	var schedule []ping.Window
	if err := json.Unmarshal(m.Schedule, &schedule); err != nil {
		return nil, fmt.Errorf("failed to decode template schedule: %w", err)
	}
	return &ping.Template{
		BaseEntity:      m.BaseModel.ToDomain(),
		StudyID:         m.StudyID,
		Name:            m.Name,
		Message:         m.Message,
		URL:             m.URL,
		URLText:         m.URLText,
		ReminderLatency: time.Duration(m.ReminderLatency) * time.Second,
		ExpireLatency:   time.Duration(m.ExpireLatency) * time.Second,
		Schedule:        schedule,
	}, nil
}

// FromDomain populates the persistence model from a domain Template entity.
func (m *PingTemplateModel) FromDomain(t *ping.Template) error {
	schedule, err := json.Marshal(t.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode template schedule: %w", err)
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	m.StudyID = t.StudyID
	m.Name = t.Name
	m.Message = t.Message
	m.URL = t.URL
	m.URLText = t.URLText
	m.ReminderLatency = int64(t.ReminderLatency / time.Second)
	m.ExpireLatency = int64(t.ExpireLatency / time.Second)
	m.Schedule = schedule
	return nil
}

// PingModel is the persistence model for the Ping domain entity.
type PingModel struct {
	BaseModel
	StudyID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	TemplateID     uuid.UUID  `gorm:"type:uuid;not null;index;column:ping_template_id"`
	EnrollmentID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ScheduledTS    time.Time  `gorm:"not null;index"`
	ExpireTS       *time.Time `gorm:""`
	ReminderTS     *time.Time `gorm:"index"`
	DayNum         int        `gorm:"not null"`
	Message        *string    `gorm:"type:text"`
	URL            *string    `gorm:"type:text"`
	ForwardingCode string     `gorm:"type:varchar(64);not null"`
	SentTS         *time.Time `gorm:"index"`
	ReminderSentTS *time.Time `gorm:""`
	FirstClickedTS *time.Time `gorm:""`
	LastClickedTS  *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (PingModel) TableName() string {
	return "pings"
}

// ToDomain converts the persistence model to a domain Ping entity.
func (m *PingModel) ToDomain() *ping.Ping {
	return &ping.Ping{
		BaseEntity:     m.BaseModel.ToDomain(),
		StudyID:        m.StudyID,
		TemplateID:     m.TemplateID,
		EnrollmentID:   m.EnrollmentID,
		ScheduledTS:    m.ScheduledTS,
		ExpireTS:       m.ExpireTS,
		ReminderTS:     m.ReminderTS,
		DayNum:         m.DayNum,
		Message:        m.Message,
		URL:            m.URL,
		ForwardingCode: m.ForwardingCode,
		SentTS:         m.SentTS,
		ReminderSentTS: m.ReminderSentTS,
		FirstClickedTS: m.FirstClickedTS,
		LastClickedTS:  m.LastClickedTS,
	}
}

// FromDomain populates the persistence model from a domain Ping entity.
func (m *PingModel) FromDomain(p *ping.Ping) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.StudyID = p.StudyID
	m.TemplateID = p.TemplateID
	m.EnrollmentID = p.EnrollmentID
	m.ScheduledTS = p.ScheduledTS
	m.ExpireTS = p.ExpireTS
	m.ReminderTS = p.ReminderTS
	m.DayNum = p.DayNum
	m.Message = p.Message
	m.URL = p.URL
	m.ForwardingCode = p.ForwardingCode
	m.SentTS = p.SentTS
	m.ReminderSentTS = p.ReminderSentTS
	m.FirstClickedTS = p.FirstClickedTS
	m.LastClickedTS = p.LastClickedTS
}

// PingModelFromDomain creates a new persistence model from a domain Ping.
func PingModelFromDomain(p *ping.Ping) *PingModel {
	m := &PingModel{}
	m.FromDomain(p)
	return m
}

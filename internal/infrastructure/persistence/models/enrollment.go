package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/enrollment"
)

// EnrollmentModel is the persistence model for the Enrollment domain entity.
type EnrollmentModel struct {
	BaseModel
	StudyID                  uuid.UUID  `gorm:"type:uuid;not null;index"`
	TelegramID               *string    `gorm:"type:varchar(100);index"`
	TelegramLinkCode         string     `gorm:"type:varchar(16);not null;index"`
	TelegramLinkCodeExpireTS time.Time  `gorm:"not null"`
	TelegramLinked           bool       `gorm:"not null;default:false"`
	SignupTS                 time.Time  `gorm:"not null"`
	StartDate                time.Time  `gorm:"type:date;not null"`
	Timezone                 string     `gorm:"type:varchar(64);not null"`
	Enrolled                 bool       `gorm:"not null;default:true"`
	StudyPID                 string     `gorm:"type:varchar(255);not null"`
	PRCompleted              float64    `gorm:"not null;default:0"`
	DashboardOTP             *string    `gorm:"type:varchar(64)"`
	DashboardOTPExpireTS     *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (EnrollmentModel) TableName() string {
	return "enrollments"
}

// ToDomain converts the persistence model to a domain Enrollment entity.
func (m *EnrollmentModel) ToDomain() *enrollment.Enrollment {
	return &enrollment.Enrollment{
		BaseEntity:               m.BaseModel.ToDomain(),
		StudyID:                  m.StudyID,
		TelegramID:               m.TelegramID,
		TelegramLinkCode:         m.TelegramLinkCode,
		TelegramLinkCodeExpireTS: m.TelegramLinkCodeExpireTS,
		TelegramLinked:           m.TelegramLinked,
		SignupTS:                 m.SignupTS,
		StartDate:                m.StartDate,
		Timezone:                 m.Timezone,
		Enrolled:                 m.Enrolled,
		StudyPID:                 m.StudyPID,
		PRCompleted:              m.PRCompleted,
		DashboardOTP:             m.DashboardOTP,
		DashboardOTPExpireTS:     m.DashboardOTPExpireTS,
	}
}

// FromDomain populates the persistence model from a domain Enrollment entity.
func (m *EnrollmentModel) FromDomain(e *enrollment.Enrollment) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.StudyID = e.StudyID
	m.TelegramID = e.TelegramID
	m.TelegramLinkCode = e.TelegramLinkCode
	m.TelegramLinkCodeExpireTS = e.TelegramLinkCodeExpireTS
	m.TelegramLinked = e.TelegramLinked
	m.SignupTS = e.SignupTS
	m.StartDate = e.StartDate
	m.Timezone = e.Timezone
	m.Enrolled = e.Enrolled
	m.StudyPID = e.StudyPID
	m.PRCompleted = e.PRCompleted
	m.DashboardOTP = e.DashboardOTP
	m.DashboardOTPExpireTS = e.DashboardOTPExpireTS
}

// EnrollmentModelFromDomain creates a new persistence model from a domain Enrollment.
func EnrollmentModelFromDomain(e *enrollment.Enrollment) *EnrollmentModel {
	m := &EnrollmentModel{}
	m.FromDomain(e)
	return m
}

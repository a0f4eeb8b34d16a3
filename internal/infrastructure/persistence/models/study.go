package models

import (
	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/study"
)

// StudyModel is the persistence model for the Study domain entity.
type StudyModel struct {
	BaseModel
	PublicName     string `gorm:"type:varchar(255);not null;index"`
	InternalName   string `gorm:"type:varchar(255);not null;index"`
	Code           string `gorm:"type:varchar(32);not null;uniqueIndex:idx_studies_code,where:deleted_at IS NULL"`
	ContactMessage string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StudyModel) TableName() string {
	return "studies"
}

// ToDomain converts the persistence model to a domain Study entity.
func (m *StudyModel) ToDomain() *study.Study {
	return &study.Study{
		BaseEntity:     m.BaseModel.ToDomain(),
		PublicName:     m.PublicName,
		InternalName:   m.InternalName,
		Code:           m.Code,
		ContactMessage: m.ContactMessage,
	}
}

// FromDomain populates the persistence model from a domain Study entity.
func (m *StudyModel) FromDomain(s *study.Study) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.PublicName = s.PublicName
	m.InternalName = s.InternalName
	m.Code = s.Code
	m.ContactMessage = s.ContactMessage
}

// StudyModelFromDomain creates a new persistence model from a domain Study entity.
func StudyModelFromDomain(s *study.Study) *StudyModel {
	m := &StudyModel{}
	m.FromDomain(s)
	return m
}

// UserStudyModel is the persistence model for study memberships.
type UserStudyModel struct {
	BaseModel
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_studies,where:deleted_at IS NULL"`
	StudyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_studies,where:deleted_at IS NULL;index"`
	Role    string    `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (UserStudyModel) TableName() string {
	return "user_studies"
}

// ToDomain converts the persistence model to a domain UserStudy.
func (m *UserStudyModel) ToDomain() *study.UserStudy {
	return &study.UserStudy{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
		StudyID:    m.StudyID,
		Role:       study.Role(m.Role),
	}
}

// FromDomain populates the persistence model from a domain UserStudy.
func (m *UserStudyModel) FromDomain(us *study.UserStudy) {
	m.FromDomainBaseEntity(us.BaseEntity)
	m.UserID = us.UserID
	m.StudyID = us.StudyID
	m.Role = string(us.Role)
}

// UserStudyModelFromDomain creates a new persistence model from a domain UserStudy.
func UserStudyModelFromDomain(us *study.UserStudy) *UserStudyModel {
	m := &UserStudyModel{}
	m.FromDomain(us)
	return m
}

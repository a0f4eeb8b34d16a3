package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
	"github.com/pingboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStudyRepository implements study.StudyRepository using GORM
type GormStudyRepository struct {
	db *gorm.DB
}

// NewGormStudyRepository creates a new GormStudyRepository
func NewGormStudyRepository(db *gorm.DB) *GormStudyRepository {
	return &GormStudyRepository{db: db}
}

// FindByID finds a study by ID
func (r *GormStudyRepository) FindByID(ctx context.Context, id uuid.UUID) (*study.Study, error) {
	var model models.StudyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a study by its participant signup code
func (r *GormStudyRepository) FindByCode(ctx context.Context, code string) (*study.Study, error) {
	var model models.StudyModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForUser finds studies the user is a member of
func (r *GormStudyRepository) FindAllForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]study.Study, error) {
	var rows []models.StudyModel
	query := r.applyFilter(r.memberQuery(ctx, userID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	studies := make([]study.Study, len(rows))
	for i := range rows {
		studies[i] = *rows[i].ToDomain()
	}
	return studies, nil
}

// CountForUser counts studies the user is a member of
func (r *GormStudyRepository) CountForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.memberQuery(ctx, userID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByCode checks whether a signup code is taken
func (r *GormStudyRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StudyModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a study
func (r *GormStudyRepository) Save(ctx context.Context, s *study.Study) error {
	model := models.StudyModelFromDomain(s)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete soft-deletes a study and cascades to its templates, enrollments,
// pings and memberships in one transaction.
func (r *GormStudyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.StudyModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if err := tx.Delete(&models.PingModel{}, "study_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.PingTemplateModel{}, "study_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.EnrollmentModel{}, "study_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.UserStudyModel{}, "study_id = ?", id).Error
	})
}

// memberQuery scopes studies to those the user holds a membership on
func (r *GormStudyRepository) memberQuery(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.StudyModel{}).
		Joins("JOIN user_studies ON user_studies.study_id = studies.id").
		Where("user_studies.user_id = ? AND user_studies.deleted_at IS NULL", userID)
}

func (r *GormStudyRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(studies.public_name) LIKE ? OR LOWER(studies.internal_name) LIKE ?", pattern, pattern)
	}
	return query
}

func (r *GormStudyRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applySearch(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, StudySortFields, "created_at")
	return query.Order("studies." + orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// Ensure GormStudyRepository implements StudyRepository
var _ study.StudyRepository = (*GormStudyRepository)(nil)

// GormUserStudyRepository implements study.UserStudyRepository using GORM
type GormUserStudyRepository struct {
	db *gorm.DB
}

// NewGormUserStudyRepository creates a new GormUserStudyRepository
func NewGormUserStudyRepository(db *gorm.DB) *GormUserStudyRepository {
	return &GormUserStudyRepository{db: db}
}

// Find finds the membership linking a user to a study
func (r *GormUserStudyRepository) Find(ctx context.Context, userID, studyID uuid.UUID) (*study.UserStudy, error) {
	var model models.UserStudyModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND study_id = ?", userID, studyID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForStudy lists all memberships of a study
func (r *GormUserStudyRepository) FindAllForStudy(ctx context.Context, studyID uuid.UUID) ([]study.UserStudy, error) {
	var rows []models.UserStudyModel
	if err := r.db.WithContext(ctx).
		Where("study_id = ?", studyID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	memberships := make([]study.UserStudy, len(rows))
	for i := range rows {
		memberships[i] = *rows[i].ToDomain()
	}
	return memberships, nil
}

// CountOwners counts owner memberships of a study
func (r *GormUserStudyRepository) CountOwners(ctx context.Context, studyID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserStudyModel{}).
		Where("study_id = ? AND role = ?", studyID, string(study.RoleOwner)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a membership
func (r *GormUserStudyRepository) Save(ctx context.Context, us *study.UserStudy) error {
	model := models.UserStudyModelFromDomain(us)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete soft-deletes a membership
func (r *GormUserStudyRepository) Delete(ctx context.Context, userID, studyID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND study_id = ?", userID, studyID).
		Delete(&models.UserStudyModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormUserStudyRepository implements UserStudyRepository
var _ study.UserStudyRepository = (*GormUserStudyRepository)(nil)

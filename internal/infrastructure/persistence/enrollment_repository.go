package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormEnrollmentRepository implements enrollment.EnrollmentRepository using GORM
type GormEnrollmentRepository struct {
	db *gorm.DB
}

// NewGormEnrollmentRepository creates a new GormEnrollmentRepository
func NewGormEnrollmentRepository(db *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

// FindByID finds an enrollment by ID
func (r *GormEnrollmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*enrollment.Enrollment, error) {
	var model models.EnrollmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLinkCode finds an enrollment by its Telegram link code
func (r *GormEnrollmentRepository) FindByLinkCode(ctx context.Context, code string) (*enrollment.Enrollment, error) {
	var model models.EnrollmentModel
	if err := r.db.WithContext(ctx).
		Where("telegram_link_code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTelegramIDAndStudy finds the enrollment pairing a Telegram account
// with one study.
func (r *GormEnrollmentRepository) FindByTelegramIDAndStudy(ctx context.Context, telegramID string, studyID uuid.UUID) (*enrollment.Enrollment, error) {
	var model models.EnrollmentModel
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ? AND study_id = ?", telegramID, studyID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllByTelegramID lists every enrollment linked to a Telegram account
func (r *GormEnrollmentRepository) FindAllByTelegramID(ctx context.Context, telegramID string) ([]enrollment.Enrollment, error) {
	var rows []models.EnrollmentModel
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("signup_ts ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainEnrollments(rows), nil
}

// FindAllForStudy lists enrollments of a study
func (r *GormEnrollmentRepository) FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]enrollment.Enrollment, error) {
	var rows []models.EnrollmentModel
	query := r.applyFilter(r.studyQuery(ctx, studyID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainEnrollments(rows), nil
}

// CountForStudy counts enrollments of a study
func (r *GormEnrollmentRepository) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.studyQuery(ctx, studyID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an enrollment
func (r *GormEnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment) error {
	model := models.EnrollmentModelFromDomain(e)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete soft-deletes an enrollment and cascades to its pings
func (r *GormEnrollmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.EnrollmentModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Delete(&models.PingModel{}, "enrollment_id = ?", id).Error
	})
}

func (r *GormEnrollmentRepository) studyQuery(ctx context.Context, studyID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.EnrollmentModel{}).
		Where("study_id = ?", studyID)
}

func (r *GormEnrollmentRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("study_pid LIKE ?", "%"+filter.Search+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "enrolled":
			query = query.Where("enrolled = ?", value)
		case "telegram_linked":
			query = query.Where("telegram_linked = ?", value)
		}
	}
	return query
}

func (r *GormEnrollmentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applySearch(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, EnrollmentSortFields, "signup_ts")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

func toDomainEnrollments(rows []models.EnrollmentModel) []enrollment.Enrollment {
	enrollments := make([]enrollment.Enrollment, len(rows))
	for i := range rows {
		enrollments[i] = *rows[i].ToDomain()
	}
	return enrollments
}

// Ensure GormEnrollmentRepository implements EnrollmentRepository
var _ enrollment.EnrollmentRepository = (*GormEnrollmentRepository)(nil)

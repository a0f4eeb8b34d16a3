package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPingTemplateRepository implements ping.TemplateRepository using GORM
type GormPingTemplateRepository struct {
	db *gorm.DB
}

// NewGormPingTemplateRepository creates a new GormPingTemplateRepository
func NewGormPingTemplateRepository(db *gorm.DB) *GormPingTemplateRepository {
	return &GormPingTemplateRepository{db: db}
}

// FindByID finds a template by ID
func (r *GormPingTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*ping.Template, error) {
	var model models.PingTemplateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAllForStudy lists templates of a study
func (r *GormPingTemplateRepository) FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]ping.Template, error) {
	var rows []models.PingTemplateModel
	query := r.applyFilter(r.studyQuery(ctx, studyID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	templates := make([]ping.Template, 0, len(rows))
	for i := range rows {
		t, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

// CountForStudy counts templates of a study
func (r *GormPingTemplateRepository) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.studyQuery(ctx, studyID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a template
func (r *GormPingTemplateRepository) Save(ctx context.Context, t *ping.Template) error {
	model := &models.PingTemplateModel{}
	if err := model.FromDomain(t); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete soft-deletes a template and cascades to its pings
func (r *GormPingTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.PingTemplateModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Delete(&models.PingModel{}, "ping_template_id = ?", id).Error
	})
}

func (r *GormPingTemplateRepository) studyQuery(ctx context.Context, studyID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.PingTemplateModel{}).
		Where("study_id = ?", studyID)
}

func (r *GormPingTemplateRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	return query
}

func (r *GormPingTemplateRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applySearch(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, PingTemplateSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

// Ensure GormPingTemplateRepository implements TemplateRepository
var _ ping.TemplateRepository = (*GormPingTemplateRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPingRepository implements ping.PingRepository using GORM
type GormPingRepository struct {
	db *gorm.DB
}

// NewGormPingRepository creates a new GormPingRepository
func NewGormPingRepository(db *gorm.DB) *GormPingRepository {
	return &GormPingRepository{db: db}
}

// FindByID finds a ping by ID
func (r *GormPingRepository) FindByID(ctx context.Context, id uuid.UUID) (*ping.Ping, error) {
	var model models.PingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDelivery loads a ping together with its template, enrollment and study
func (r *GormPingRepository) FindDelivery(ctx context.Context, id uuid.UUID) (*ping.Delivery, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	deliveries, err := r.loadDeliveries(r.db.WithContext(ctx), []models.PingModel{*models.PingModelFromDomain(p)})
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, shared.ErrNotFound
	}
	return &deliveries[0], nil
}

// FindAllForStudy lists pings of a study
func (r *GormPingRepository) FindAllForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) ([]ping.Ping, error) {
	var rows []models.PingModel
	query := r.applyFilter(r.studyQuery(ctx, studyID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPings(rows), nil
}

// CountForStudy counts pings of a study
func (r *GormPingRepository) CountForStudy(ctx context.Context, studyID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilters(r.studyQuery(ctx, studyID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindAllForEnrollmentBetween lists an enrollment's pings scheduled in [from, to)
func (r *GormPingRepository) FindAllForEnrollmentBetween(ctx context.Context, enrollmentID uuid.UUID, from, to time.Time) ([]ping.Ping, error) {
	var rows []models.PingModel
	if err := r.db.WithContext(ctx).
		Where("enrollment_id = ? AND scheduled_ts >= ? AND scheduled_ts < ?", enrollmentID, from, to).
		Order("scheduled_ts ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPings(rows), nil
}

// Save creates or updates a ping
func (r *GormPingRepository) Save(ctx context.Context, p *ping.Ping) error {
	return r.db.WithContext(ctx).Save(models.PingModelFromDomain(p)).Error
}

// SaveBatch creates or updates multiple pings
func (r *GormPingRepository) SaveBatch(ctx context.Context, pings []*ping.Ping) error {
	if len(pings) == 0 {
		return nil
	}
	rows := make([]*models.PingModel, len(pings))
	for i, p := range pings {
		rows[i] = models.PingModelFromDomain(p)
	}
	return r.db.WithContext(ctx).Save(rows).Error
}

// Delete soft-deletes a ping
func (r *GormPingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClaimDue claims unsent pings whose scheduled time has arrived within the
// late tolerance. Rows are locked FOR UPDATE SKIP LOCKED so concurrent
// sweepers never claim the same ping; the sent stamp is written before the
// transaction commits, which releases the locks.
func (r *GormPingRepository) ClaimDue(ctx context.Context, now time.Time, tolerance time.Duration, fn ping.ClaimFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.PingModel
		if err := r.claimableQuery(tx).
			Where("pings.sent_ts IS NULL").
			Where("pings.scheduled_ts <= ? AND pings.scheduled_ts >= ?", now, now.Add(-tolerance)).
			Where("pings.expire_ts IS NULL OR pings.expire_ts > ?", now).
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: "pings"},
				Options:  "SKIP LOCKED",
			}).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		deliveries, err := r.loadDeliveries(tx, rows)
		if err != nil {
			return err
		}

		sentIDs := fn(ctx, deliveries)
		if len(sentIDs) == 0 {
			return nil
		}
		return tx.Model(&models.PingModel{}).
			Where("id IN ?", sentIDs).
			Updates(map[string]interface{}{"sent_ts": now, "updated_at": now}).Error
	})
}

// ClaimReminders claims sent pings whose reminder time has arrived and that
// have not been clicked, with the same locking discipline as ClaimDue.
func (r *GormPingRepository) ClaimReminders(ctx context.Context, now time.Time, fn ping.ClaimFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.PingModel
		if err := r.claimableQuery(tx).
			Where("pings.sent_ts IS NOT NULL").
			Where("pings.reminder_sent_ts IS NULL").
			Where("pings.reminder_ts IS NOT NULL AND pings.reminder_ts <= ?", now).
			Where("pings.expire_ts IS NULL OR pings.expire_ts > ?", now).
			Where("pings.first_clicked_ts IS NULL").
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: "pings"},
				Options:  "SKIP LOCKED",
			}).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		deliveries, err := r.loadDeliveries(tx, rows)
		if err != nil {
			return err
		}

		sentIDs := fn(ctx, deliveries)
		if len(sentIDs) == 0 {
			return nil
		}
		return tx.Model(&models.PingModel{}).
			Where("id IN ?", sentIDs).
			Updates(map[string]interface{}{"reminder_sent_ts": now, "updated_at": now}).Error
	})
}

// claimableQuery scopes pings to those whose study, template and enrollment
// are all live and whose participant can actually be reached.
func (r *GormPingRepository) claimableQuery(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.PingModel{}).
		Joins("JOIN enrollments ON enrollments.id = pings.enrollment_id AND enrollments.deleted_at IS NULL").
		Joins("JOIN ping_templates ON ping_templates.id = pings.ping_template_id AND ping_templates.deleted_at IS NULL").
		Joins("JOIN studies ON studies.id = pings.study_id AND studies.deleted_at IS NULL").
		Where("enrollments.enrolled = ? AND enrollments.telegram_linked = ?", true, true).
		Select("pings.*")
}

// loadDeliveries hydrates claimed ping rows with their template, enrollment
// and study.
func (r *GormPingRepository) loadDeliveries(tx *gorm.DB, rows []models.PingModel) ([]ping.Delivery, error) {
	templateIDs := make([]uuid.UUID, 0, len(rows))
	enrollmentIDs := make([]uuid.UUID, 0, len(rows))
	studyIDs := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		templateIDs = append(templateIDs, rows[i].TemplateID)
		enrollmentIDs = append(enrollmentIDs, rows[i].EnrollmentID)
		studyIDs = append(studyIDs, rows[i].StudyID)
	}

	var templateRows []models.PingTemplateModel
	if err := tx.Where("id IN ?", templateIDs).Find(&templateRows).Error; err != nil {
		return nil, err
	}
	templates := make(map[uuid.UUID]*ping.Template, len(templateRows))
	for i := range templateRows {
		t, err := templateRows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		templates[t.ID] = t
	}

	var enrollmentRows []models.EnrollmentModel
	if err := tx.Where("id IN ?", enrollmentIDs).Find(&enrollmentRows).Error; err != nil {
		return nil, err
	}
	enrollments := make(map[uuid.UUID]*models.EnrollmentModel, len(enrollmentRows))
	for i := range enrollmentRows {
		enrollments[enrollmentRows[i].ID] = &enrollmentRows[i]
	}

	var studyRows []models.StudyModel
	if err := tx.Where("id IN ?", studyIDs).Find(&studyRows).Error; err != nil {
		return nil, err
	}
	studies := make(map[uuid.UUID]*models.StudyModel, len(studyRows))
	for i := range studyRows {
		studies[studyRows[i].ID] = &studyRows[i]
	}

	deliveries := make([]ping.Delivery, 0, len(rows))
	for i := range rows {
		tmpl := templates[rows[i].TemplateID]
		enr := enrollments[rows[i].EnrollmentID]
		st := studies[rows[i].StudyID]
		if tmpl == nil || enr == nil || st == nil {
			// a joined row was deleted between claim and hydrate
			continue
		}
		deliveries = append(deliveries, ping.Delivery{
			Ping:       *rows[i].ToDomain(),
			Template:   *tmpl,
			Enrollment: *enr.ToDomain(),
			Study:      *st.ToDomain(),
		})
	}
	return deliveries, nil
}

func (r *GormPingRepository) studyQuery(ctx context.Context, studyID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.PingModel{}).
		Where("study_id = ?", studyID)
}

func (r *GormPingRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "enrollment_id":
			query = query.Where("enrollment_id = ?", value)
		case "ping_template_id":
			query = query.Where("ping_template_id = ?", value)
		case "sent":
			if value == true {
				query = query.Where("sent_ts IS NOT NULL")
			} else {
				query = query.Where("sent_ts IS NULL")
			}
		}
	}
	return query
}

func (r *GormPingRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilters(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, PingSortFields, "scheduled_ts")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

func toDomainPings(rows []models.PingModel) []ping.Ping {
	pings := make([]ping.Ping, len(rows))
	for i := range rows {
		pings[i] = *rows[i].ToDomain()
	}
	return pings
}

// Ensure GormPingRepository implements PingRepository
var _ ping.PingRepository = (*GormPingRepository)(nil)

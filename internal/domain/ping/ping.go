package ping

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pingboard/backend/internal/domain/shared"
)

// forwardingCodeBytes is the entropy of the per-ping forwarding code
const forwardingCodeBytes = 16

// Ping is one concrete scheduled delivery derived from a template window
// for a single enrollment.
type Ping struct {
	shared.BaseEntity
	StudyID        uuid.UUID
	TemplateID     uuid.UUID
	EnrollmentID   uuid.UUID
	ScheduledTS    time.Time
	ExpireTS       *time.Time
	ReminderTS     *time.Time
	DayNum         int
	Message        *string
	URL            *string
	ForwardingCode string
	SentTS         *time.Time
	ReminderSentTS *time.Time
	FirstClickedTS *time.Time
	LastClickedTS  *time.Time
}

// NewPing creates a pending ping scheduled at scheduledTS. Expire and
// reminder stamps are derived from the template latencies; a zero latency
// leaves the corresponding stamp unset.
func NewPing(tmpl *Template, enrollmentID uuid.UUID, scheduledTS time.Time, dayNum int) (*Ping, error) {
	code, err := generateForwardingCode()
	if err != nil {
		return nil, shared.NewDomainError("CODE_GENERATION_ERROR", "Failed to generate forwarding code")
	}

	p := &Ping{
		BaseEntity:     shared.NewBaseEntity(),
		StudyID:        tmpl.StudyID,
		TemplateID:     tmpl.ID,
		EnrollmentID:   enrollmentID,
		ScheduledTS:    scheduledTS,
		DayNum:         dayNum,
		ForwardingCode: code,
	}
	if tmpl.ExpireLatency > 0 {
		expire := scheduledTS.Add(tmpl.ExpireLatency)
		p.ExpireTS = &expire
	}
	if tmpl.ReminderLatency > 0 {
		reminder := scheduledTS.Add(tmpl.ReminderLatency)
		p.ReminderTS = &reminder
	}
	return p, nil
}

// Expired reports whether the ping can no longer be delivered
func (p *Ping) Expired(now time.Time) bool {
	return p.ExpireTS != nil && now.After(*p.ExpireTS)
}

// MarkSent stamps the delivery time
func (p *Ping) MarkSent(now time.Time) {
	p.SentTS = &now
	p.UpdatedAt = now
}

// MarkReminderSent stamps the reminder delivery time
func (p *Ping) MarkReminderSent(now time.Time) {
	p.ReminderSentTS = &now
	p.UpdatedAt = now
}

// RecordClick stamps click-through times. The first click is kept; every
// click moves the last-clicked stamp.
func (p *Ping) RecordClick(now time.Time) {
	if p.FirstClickedTS == nil {
		p.FirstClickedTS = &now
	}
	p.LastClickedTS = &now
	p.UpdatedAt = now
}

func generateForwardingCode() (string, error) {
	raw := make([]byte, forwardingCodeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

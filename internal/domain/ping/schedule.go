package ping

import (
	"math/rand/v2"
	"time"

	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/shared"
)

// Scheduler draws scheduled times for pings. The random source is
// injectable so tests can pin the draw.
type Scheduler struct {
	rnd *rand.Rand
}

// NewScheduler creates a scheduler with its own random source
func NewScheduler() *Scheduler {
	return &Scheduler{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSchedulerWithSource creates a scheduler with a caller-provided source
func NewSchedulerWithSource(rnd *rand.Rand) *Scheduler {
	return &Scheduler{rnd: rnd}
}

// BuildPings computes one ping per template window for the enrollment.
// Each scheduled time is drawn uniformly (whole seconds, inclusive of the
// window start) from the interval the window resolves to in the
// participant's timezone.
func (s *Scheduler) BuildPings(tmpl *Template, enr *enrollment.Enrollment) ([]*Ping, error) {
	loc, err := enr.Location()
	if err != nil {
		return nil, err
	}

	pings := make([]*Ping, 0, len(tmpl.Schedule))
	for _, w := range tmpl.Schedule {
		start, end, err := w.Bounds(enr.StartDate, loc)
		if err != nil {
			return nil, err
		}
		if !end.After(start) {
			return nil, shared.ErrInvalidSchedule
		}
		seconds := int64(end.Sub(start) / time.Second)
		scheduled := start.Add(time.Duration(s.rnd.Int64N(seconds+1)) * time.Second)

		p, err := NewPing(tmpl, enr.ID, scheduled, w.StartDayNum)
		if err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, nil
}

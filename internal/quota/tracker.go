// Package quota tracks per-identity daily and monthly analysis usage and
// decides admission against plan limits.
//
// Counters live in memory for the process lifetime. Day and month keys use the
// local calendar of the tracker's clock.
package quota

import (
	"sync"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// Limits are the ceilings of one plan.
type Limits struct {
	Daily   int
	Monthly int
}

// DefaultLimits are the built-in plan ceilings.
var DefaultLimits = map[models.Plan]Limits{
	models.PlanFree:    {Daily: 3, Monthly: 10},
	models.PlanBuilder: {Daily: 100, Monthly: 1000},
}

// Status is the outcome of a quota check.
type Status struct {
	Allowed        bool `json:"can_proceed"`
	DailyUsed      int  `json:"daily_usage"`
	DailyLimit     int  `json:"daily_limit"`
	MonthlyUsed    int  `json:"monthly_usage"`
	MonthlyLimit   int  `json:"monthly_limit"`
	RemainingToday int  `json:"remaining_today"`
	RemainingMonth int  `json:"remaining_month"`
}

type usage struct {
	daily   map[string]int // YYYY-MM-DD
	monthly map[string]int // YYYY-MM
}

// Tracker holds usage counters for every identity.
type Tracker struct {
	mu     sync.Mutex
	usage  map[string]*usage
	limits map[models.Plan]Limits
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, for tests that cross day or month boundaries.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLimits overrides the ceilings of the given plans.
func WithLimits(limits map[models.Plan]Limits) Option {
	return func(t *Tracker) {
		for plan, l := range limits {
			t.limits[plan] = l
		}
	}
}

// NewTracker creates a tracker with DefaultLimits.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		usage:  make(map[string]*usage),
		limits: make(map[models.Plan]Limits, len(DefaultLimits)),
		now:    time.Now,
	}
	for plan, l := range DefaultLimits {
		t.limits[plan] = l
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LimitsFor returns the ceilings of plan. Unknown plans get the constrained tier.
func (t *Tracker) LimitsFor(plan models.Plan) Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limitsLocked(plan)
}

func (t *Tracker) limitsLocked(plan models.Plan) Limits {
	if l, ok := t.limits[plan]; ok {
		return l
	}
	return t.limits[models.PlanFree]
}

// Check reports current usage and whether another analysis is admitted.
// Admission needs both counters strictly below their limits. Check never mutates counters.
func (t *Tracker) Check(identity string, plan models.Plan) Status {
	day, month := keys(t.now())

	t.mu.Lock()
	defer t.mu.Unlock()

	var dailyUsed, monthlyUsed int
	if u, ok := t.usage[identity]; ok {
		dailyUsed = u.daily[day]
		monthlyUsed = u.monthly[month]
	}
	l := t.limitsLocked(plan)
	return Status{
		Allowed:        dailyUsed < l.Daily && monthlyUsed < l.Monthly,
		DailyUsed:      dailyUsed,
		DailyLimit:     l.Daily,
		MonthlyUsed:    monthlyUsed,
		MonthlyLimit:   l.Monthly,
		RemainingToday: max(0, l.Daily-dailyUsed),
		RemainingMonth: max(0, l.Monthly-monthlyUsed),
	}
}

// Consume increments the identity's counters for the current day and month.
// It does not check limits; callers run Check first. The two calls are not
// atomic together, so concurrent submissions for one identity may over-admit.
func (t *Tracker) Consume(identity string) {
	day, month := keys(t.now())

	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.usage[identity]
	if !ok {
		u = &usage{daily: make(map[string]int), monthly: make(map[string]int)}
		t.usage[identity] = u
	}
	u.daily[day]++
	u.monthly[month]++
}

func keys(now time.Time) (day, month string) {
	return now.Format("2006-01-02"), now.Format("2006-01")
}

package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestCheck_FreshIdentity(t *testing.T) {
	tr := NewTracker()
	st := tr.Check("alice", models.PlanFree)

	assert.True(t, st.Allowed)
	assert.Equal(t, 0, st.DailyUsed)
	assert.Equal(t, 3, st.DailyLimit)
	assert.Equal(t, 10, st.MonthlyLimit)
	assert.Equal(t, 3, st.RemainingToday)
}

func TestCheck_DoesNotConsume(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Check("alice", models.PlanFree)
	}
	assert.Equal(t, 0, tr.Check("alice", models.PlanFree).DailyUsed)
}

func TestDailyLimitReached(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)}
	tr := NewTracker(WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		require.True(t, tr.Check("alice", models.PlanFree).Allowed, "consume %d", i)
		tr.Consume("alice")
	}

	st := tr.Check("alice", models.PlanFree)
	assert.False(t, st.Allowed)
	assert.Equal(t, 3, st.DailyUsed)
	assert.Equal(t, 0, st.RemainingToday)
	assert.Equal(t, 7, st.RemainingMonth)
}

func TestDayRolloverResetsDailyKeepsMonthly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 23, 59, 0, 0, time.Local)}
	tr := NewTracker(WithClock(clock.Now))
	for i := 0; i < 3; i++ {
		tr.Consume("alice")
	}
	require.False(t, tr.Check("alice", models.PlanFree).Allowed)

	clock.Set(time.Date(2026, 3, 11, 0, 1, 0, 0, time.Local))
	st := tr.Check("alice", models.PlanFree)
	assert.True(t, st.Allowed)
	assert.Equal(t, 0, st.DailyUsed)
	assert.Equal(t, 3, st.MonthlyUsed)
}

func TestMonthlyLimitBlocksAcrossDays(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)}
	tr := NewTracker(WithClock(clock.Now))
	for day := 1; day <= 4; day++ {
		clock.Set(time.Date(2026, 3, day, 12, 0, 0, 0, time.Local))
		for i := 0; i < 3 && tr.Check("alice", models.PlanFree).Allowed; i++ {
			tr.Consume("alice")
		}
	}
	st := tr.Check("alice", models.PlanFree)
	assert.False(t, st.Allowed)
	assert.Equal(t, 10, st.MonthlyUsed)
	assert.Equal(t, 1, st.DailyUsed)

	clock.Set(time.Date(2026, 4, 1, 12, 0, 0, 0, time.Local))
	st = tr.Check("alice", models.PlanFree)
	assert.True(t, st.Allowed)
	assert.Equal(t, 0, st.MonthlyUsed)
}

func TestConsumeNeverChecksLimits(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		tr.Consume("alice")
	}
	st := tr.Check("alice", models.PlanFree)
	assert.Equal(t, 5, st.DailyUsed)
	assert.Equal(t, 0, st.RemainingToday)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 3; i++ {
		tr.Consume("alice")
	}
	assert.False(t, tr.Check("alice", models.PlanFree).Allowed)
	assert.True(t, tr.Check("bob", models.PlanFree).Allowed)
}

func TestPlanLimits(t *testing.T) {
	tr := NewTracker(WithLimits(map[models.Plan]Limits{models.PlanFree: {Daily: 1, Monthly: 1}}))
	assert.Equal(t, Limits{Daily: 1, Monthly: 1}, tr.LimitsFor(models.PlanFree))
	assert.Equal(t, Limits{Daily: 100, Monthly: 1000}, tr.LimitsFor(models.PlanBuilder))
	assert.Equal(t, tr.LimitsFor(models.PlanFree), tr.LimitsFor("enterprise"))

	tr.Consume("bob")
	assert.False(t, tr.Check("bob", models.PlanFree).Allowed)
	assert.True(t, tr.Check("bob", models.PlanBuilder).Allowed)
}

func TestConcurrentConsume(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Consume("alice")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Check("alice", models.PlanBuilder).DailyUsed)
}

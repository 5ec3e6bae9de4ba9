package growth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/memory"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(days int) { c.t = c.t.AddDate(0, 0, days) }

type feed struct {
	mu     sync.Mutex
	events []*activity.Event
}

func (f *feed) Record(_ context.Context, e *activity.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *feed) ListForUser(context.Context, string, int64) ([]*activity.Event, error) {
	return f.events, nil
}

func (f *feed) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

type notifier struct{ unlocked []string }

func (n *notifier) AchievementUnlocked(_ context.Context, _ string, a *models.Achievement) error {
	n.unlocked = append(n.unlocked, a.ID)
	return nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	clock    *clock
	feed     *feed
	notifier *notifier
}

func newFixture() *fixture {
	f := &fixture{
		store:    memory.New(),
		clock:    &clock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)},
		feed:     &feed{},
		notifier: &notifier{},
	}
	f.svc = NewService(f.store, WithClock(f.clock.now), WithActivity(f.feed), WithNotifier(f.notifier))
	return f
}

func (f *fixture) habit(t *testing.T, input HabitInput) *models.Habit {
	t.Helper()
	if input.Name == "" {
		input.Name = "Run"
	}
	if input.Category == "" {
		input.Category = models.CategoryExercise
	}
	h, err := f.svc.CreateHabit(context.Background(), "u1", input)
	require.NoError(t, err)
	return h
}

func TestCreateHabitDefaults(t *testing.T) {
	f := newFixture()
	h := f.habit(t, HabitInput{})
	assert.Equal(t, DefaultPoints, h.Points)
	assert.Equal(t, models.FrequencyDaily, h.Frequency)
	assert.Equal(t, models.TrackingBoolean, h.TrackingType)
	assert.Equal(t, 1, h.TargetCount)
	assert.True(t, h.IsActive)

	_, err := f.svc.CreateHabit(context.Background(), "u1", HabitInput{Name: "  ", Category: models.CategorySleep})
	assert.Error(t, err)
	_, err = f.svc.CreateHabit(context.Background(), "u1", HabitInput{Name: "Read", Category: "READING"})
	assert.Error(t, err)
}

func TestToggleTwiceCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})

	first, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, 10, first.PointsAwarded)
	assert.Equal(t, 10, first.XPAwarded)
	assert.Equal(t, 10, first.DailyScore.TotalPoints)

	second, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, second.Streak)
	assert.Equal(t, 0, second.PointsAwarded)
	assert.Equal(t, 10, second.DailyScore.TotalPoints)
	assert.Equal(t, 1, second.DailyScore.CompletedHabits)

	// 10 for the habit plus the first-habit reward.
	assert.Equal(t, 20, second.Level.TotalXP)
}

// racingStore fails the first entry insert the way a unique index violation
// from a concurrent toggle does.
type racingStore struct {
	*memory.Store
	inserts int
}

func (r *racingStore) AddEntry(ctx context.Context, entry *models.HabitEntry) error {
	r.inserts++
	if r.inserts == 1 {
		return storage.ErrConflict
	}
	return r.Store.AddEntry(ctx, entry)
}

func TestToggleRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})
	racing := &racingStore{Store: f.store}
	svc := NewService(racing, WithClock(f.clock.now), WithActivity(f.feed), WithNotifier(f.notifier))

	res, err := svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, racing.inserts)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 10, res.PointsAwarded)
	assert.Equal(t, 10, res.DailyScore.TotalPoints)
	assert.Equal(t, 1, res.DailyScore.CompletedHabits)
	assert.Equal(t, 20, res.Level.TotalXP)

	streaks := f.store.Streaks(h.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, 1, streaks[0].Length)

	again, err := svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, 10, again.DailyScore.TotalPoints)
	assert.Equal(t, 2, racing.inserts)
}

func TestStreakContinuesAndResets(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})

	for want := 1; want <= 3; want++ {
		res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
		require.NoError(t, err)
		assert.Equal(t, want, res.Streak)
		f.clock.advance(1)
	}

	f.clock.advance(2)
	res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	stored, err := f.store.FindHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.LongestStreak)

	streaks := f.store.Streaks(h.ID)
	require.Len(t, streaks, 2)
	assert.False(t, streaks[0].IsActive)
	assert.Equal(t, 3, streaks[0].Length)
	assert.True(t, streaks[1].IsActive)
}

func TestWeeklyHabitToleratesGaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{Frequency: models.FrequencyWeekly})

	_, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	f.clock.advance(6)
	res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
}

func TestUncompleteRemovesPointsKeepsStreakAndXP(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})

	_, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)

	res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, false, 0)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, -10, res.PointsAwarded)
	assert.Equal(t, 0, res.DailyScore.TotalPoints)
	assert.Equal(t, 0, res.DailyScore.CompletedHabits)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 20, res.Level.TotalXP)

	_, err = f.store.FindEntry(ctx, h.ID, "2024-03-10")
	assert.Error(t, err)

	again, err := f.svc.ToggleHabit(ctx, "u1", h.ID, false, 0)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, 0, again.DailyScore.TotalPoints)

	// Completing again restores the points but not the XP.
	back, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.True(t, back.Changed)
	assert.Equal(t, 10, back.PointsAwarded)
	assert.Equal(t, 0, back.XPAwarded)
	assert.Equal(t, 1, back.Streak)
	assert.Equal(t, 10, back.DailyScore.TotalPoints)
	assert.Equal(t, 20, back.Level.TotalXP)
}

func TestScoreNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{Points: 30})

	_, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)

	// Raise the points after completing; un-completing removes the new value.
	pts := 50
	_, err = f.svc.UpdateHabit(ctx, "u1", h.ID, HabitPatch{Points: &pts})
	require.NoError(t, err)

	res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DailyScore.TotalPoints)
	assert.Equal(t, 0, res.DailyScore.CategoryScore(models.CategoryExercise))
}

func TestToggleOwnershipAndArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})

	_, err := f.svc.ToggleHabit(ctx, "u2", h.ID, true, 0)
	assert.ErrorIs(t, err, ErrHabitNotFound)

	inactive := false
	_, err = f.svc.UpdateHabit(ctx, "u1", h.ID, HabitPatch{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	assert.ErrorIs(t, err, ErrHabitInactive)
}

func TestAchievementsUnlockOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})

	var unlocked []string
	for day := 0; day < 7; day++ {
		res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
		require.NoError(t, err)
		for _, a := range res.Unlocked {
			unlocked = append(unlocked, a.ID)
		}
		f.clock.advance(1)
	}

	assert.Equal(t, []string{AchievementFirstHabit, AchievementStreak7}, unlocked)
	assert.Equal(t, unlocked, f.notifier.unlocked)

	owned, err := f.svc.UserAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	level, err := f.svc.GetLevel(ctx, "u1")
	require.NoError(t, err)
	// 7 completions, first-habit and streak-7 rewards.
	assert.Equal(t, 70+10+50, level.TotalXP)
	assert.Equal(t, 2, level.CurrentLevel)
	assert.Contains(t, f.feed.kinds(), activity.KindAchievementUnlocked)
	assert.Contains(t, f.feed.kinds(), activity.KindLevelUp)
}

func TestChallengeAutoProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := f.habit(t, HabitInput{})
	running := &models.Challenge{ID: "c1", UserID: "u1", Title: "Move", Category: models.CategoryExercise, StartDate: "2024-03-01", EndDate: "2024-03-31", TargetValue: 2}
	other := &models.Challenge{ID: "c2", UserID: "u1", Title: "Eat", Category: models.CategoryNutrition, StartDate: "2024-03-01", EndDate: "2024-03-31", TargetValue: 2}
	require.NoError(t, f.store.AddChallenge(ctx, running))
	require.NoError(t, f.store.AddChallenge(ctx, other))

	res, err := f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	assert.Empty(t, res.CompletedChallenges)

	// Toggling the same day again does not progress the challenge.
	_, err = f.svc.ToggleHabit(ctx, "u1", h.ID, false, 0)
	require.NoError(t, err)
	_, err = f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)

	f.clock.advance(1)
	res, err = f.svc.ToggleHabit(ctx, "u1", h.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, res.CompletedChallenges, 1)
	assert.Equal(t, "c1", res.CompletedChallenges[0].ID)

	var ids []string
	for _, a := range res.Unlocked {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, AchievementFirstChallenge)

	c1, err := f.store.FindChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c1.IsCompleted)
	assert.Equal(t, 2, c1.CurrentValue)
	require.NotNil(t, c1.CompletedAt)

	c2, err := f.store.FindChallenge(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 0, c2.CurrentValue)
}

func TestLevelForNeverSkipsThreshold(t *testing.T) {
	for xp := 0; xp <= 13000; xp += 7 {
		level := LevelFor(xp)
		assert.LessOrEqual(t, level.MinXP, xp)
		if next, ok := nextLevel(level.Number); ok {
			assert.Greater(t, next.MinXP, xp)
		}
	}
	assert.Equal(t, 1, LevelFor(99).Number)
	assert.Equal(t, 2, LevelFor(100).Number)
	assert.Equal(t, 10, LevelFor(1_000_000).Number)
}

func TestStatusForProgress(t *testing.T) {
	status := StatusFor(175)
	assert.Equal(t, 2, status.CurrentLevel)
	assert.Equal(t, 75, status.XPToNextLevel)
	assert.InDelta(t, 0.5, status.Progress, 1e-9)
	require.NotNil(t, status.NextLevel)
	assert.Equal(t, 3, status.NextLevel.Number)

	top := StatusFor(20000)
	assert.Nil(t, top.NextLevel)
	assert.Equal(t, 1.0, top.Progress)
}

func TestRecalculateAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.SaveLevelData(ctx, &models.UserLevelData{UserID: "u1", TotalXP: 600, CurrentLevel: 1, LevelName: "Beginner"}))
	require.NoError(t, f.store.SaveLevelData(ctx, &models.UserLevelData{UserID: "u2", TotalXP: 0, CurrentLevel: 1, LevelName: "Beginner"}))

	changed, err := f.svc.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	data, err := f.store.FindLevelData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, data.CurrentLevel)
	assert.Equal(t, "Disciplined", data.LevelName)
}

func TestWeeklyProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	run := f.habit(t, HabitInput{Points: 20})
	water := f.habit(t, HabitInput{Name: "Water", Category: models.CategoryHydration})

	_, err := f.svc.ToggleHabit(ctx, "u1", run.ID, true, 0)
	require.NoError(t, err)
	f.clock.advance(2)
	_, err = f.svc.ToggleHabit(ctx, "u1", run.ID, true, 0)
	require.NoError(t, err)
	_, err = f.svc.ToggleHabit(ctx, "u1", water.ID, true, 0)
	require.NoError(t, err)

	week, err := f.svc.WeeklyProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-06", week.From)
	assert.Equal(t, "2024-03-12", week.To)
	require.Len(t, week.Days, 7)
	assert.Equal(t, 50, week.TotalPoints)
	assert.Equal(t, 3, week.CompletedHabits)
	assert.Equal(t, 2, week.ActiveDays)
	require.NotNil(t, week.BestDay)
	assert.Equal(t, "2024-03-12", *week.BestDay)
	assert.InDelta(t, 50.0/7, week.AveragePoints, 1e-9)

	byCategory := map[models.HabitCategory]int{}
	for _, c := range week.Categories {
		byCategory[c.Category] = c.Points
	}
	assert.Equal(t, 40, byCategory[models.CategoryExercise])
	assert.Equal(t, 10, byCategory[models.CategoryHydration])
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	run := f.habit(t, HabitInput{})
	f.habit(t, HabitInput{Name: "Sleep early", Category: models.CategorySleep})

	_, err := f.svc.ToggleHabit(ctx, "u1", run.ID, true, 0)
	require.NoError(t, err)

	dash, err := f.svc.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", dash.Day)
	require.Len(t, dash.Habits, 2)
	assert.Equal(t, 1, dash.CompletedCount)
	assert.InDelta(t, 0.5, dash.CompletionRate, 1e-9)
	assert.Equal(t, 10, dash.DailyScore.TotalPoints)
	assert.NotNil(t, dash.ActiveChallenges)

	for _, hs := range dash.Habits {
		if hs.Habit.ID == run.ID {
			assert.True(t, hs.Completed)
			assert.Equal(t, 1, hs.Streak)
		}
	}

	// A missed day breaks the displayed streak.
	f.clock.advance(2)
	dash, err = f.svc.Dashboard(ctx, "u1")
	require.NoError(t, err)
	for _, hs := range dash.Habits {
		assert.Zero(t, hs.Streak)
		assert.False(t, hs.Completed)
	}
}

package growth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
)

// toggleAttempts bounds the retries of a toggle that lost a race on one of
// the unique (habit, day) or (user, day) indexes.
const toggleAttempts = 2

// ToggleResult describes the state of a habit after a toggle.
type ToggleResult struct {
	Habit     *models.Habit      `json:"habit"`
	Entry     *models.HabitEntry `json:"entry,omitempty"`
	Completed bool               `json:"completed"`
	// Changed is false when the toggle matched the stored state.
	Changed             bool                  `json:"changed"`
	Streak              int                   `json:"streak"`
	DailyScore          *models.DailyScore    `json:"dailyScore"`
	PointsAwarded       int                   `json:"pointsAwarded"`
	XPAwarded           int                   `json:"xpAwarded"`
	Level               *LevelStatus          `json:"level"`
	LeveledUp           bool                  `json:"leveledUp"`
	Unlocked            []*models.Achievement `json:"unlocked"`
	CompletedChallenges []*models.Challenge   `json:"completedChallenges"`

	events []*activity.Event
}

// ToggleHabit marks the user's habit completed or not completed for today.
//
// Completing creates today's entry, or completes an existing one, and adds the
// habit points to today's score. The first completion of a day also extends
// the streak, awards XP, advances open challenges of the habit category and
// evaluates achievements. Completing an already completed habit changes
// nothing.
//
// Un-completing deletes today's entry and removes its points from today's
// score. The streak is left as is.
//
// All writes happen in one transaction. Activity events and notifications are
// emitted after it commits.
func (s *Service) ToggleHabit(ctx context.Context, userID, habitID string, completed bool, value int) (*ToggleResult, error) {
	var (
		res *ToggleResult
		err error
	)
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		res, err = s.toggleOnce(ctx, userID, habitID, completed, value)
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
		s.log.Debug("toggle lost a race, retrying", "habit", habitID, "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, res.events...)
	s.notify(ctx, userID, res.Unlocked)
	return res, nil
}

func (s *Service) toggleOnce(ctx context.Context, userID, habitID string, completed bool, value int) (*ToggleResult, error) {
	day := s.Today()
	var res *ToggleResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		res = &ToggleResult{Completed: completed, Unlocked: []*models.Achievement{}, CompletedChallenges: []*models.Challenge{}}

		habit, err := s.GetHabit(ctx, userID, habitID)
		if err != nil {
			return err
		}
		if completed && !habit.IsActive {
			return ErrHabitInactive
		}
		res.Habit = habit

		entry, err := s.store.FindEntry(ctx, habitID, day)
		if errors.Is(err, storage.ErrNotFound) {
			entry = nil
		} else if err != nil {
			return err
		}

		if completed {
			err = s.complete(ctx, res, habit, entry, day, value)
		} else {
			err = s.uncomplete(ctx, res, habit, entry, day)
		}
		if err != nil {
			return err
		}
		if res.Level == nil {
			res.Level, err = s.GetLevel(ctx, userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) complete(ctx context.Context, res *ToggleResult, habit *models.Habit, entry *models.HabitEntry, day string, value int) error {
	if entry != nil && entry.IsCompleted {
		if value > 0 && value != entry.Value {
			entry.Value = value
			if err := s.store.UpdateEntry(ctx, entry); err != nil {
				return err
			}
		}
		res.Entry = entry
		return s.fillCurrent(ctx, res, habit, day)
	}

	now := s.now()
	if entry == nil {
		entry = &models.HabitEntry{
			ID:          uuid.NewString(),
			HabitID:     habit.ID,
			UserID:      habit.UserID,
			Day:         day,
			IsCompleted: true,
			Value:       value,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.AddEntry(ctx, entry); err != nil {
			return err
		}
	} else {
		entry.IsCompleted = true
		entry.Value = value
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			return err
		}
	}
	res.Entry = entry
	res.Changed = true

	score, err := s.addPoints(ctx, habit.UserID, day, habit.Category, habit.Points, 1)
	if err != nil {
		return err
	}
	res.DailyScore = score
	res.PointsAwarded = habit.Points

	streak, counted, err := s.extendStreak(ctx, habit, day)
	if err != nil {
		return err
	}
	res.Streak = streak.Length
	if counted {
		// Re-completed after an un-complete: the day already counted once.
		return nil
	}

	res.events = append(res.events, &activity.Event{
		UserID:  habit.UserID,
		Kind:    activity.KindHabitCompleted,
		RefID:   habit.ID,
		Points:  habit.Points,
		Message: fmt.Sprintf("Completed %q (streak %d)", habit.Name, streak.Length),
	})

	level, leveledUp, err := s.AddXP(ctx, habit.UserID, habit.Points)
	if err != nil {
		return err
	}
	res.XPAwarded = habit.Points
	res.LeveledUp = leveledUp
	if leveledUp {
		res.events = append(res.events, levelUpEvent(habit.UserID, level))
	}

	challenges, err := s.progressChallenges(ctx, habit, day)
	if err != nil {
		return err
	}
	res.CompletedChallenges = challenges
	for _, c := range challenges {
		res.events = append(res.events, &activity.Event{
			UserID:  habit.UserID,
			Kind:    activity.KindChallengeCompleted,
			RefID:   c.ID,
			Message: fmt.Sprintf("Completed challenge %q", c.Title),
		})
	}

	completions, err := s.store.CountCompletedEntries(ctx, habit.UserID)
	if err != nil {
		return err
	}
	unlocked, rewardLevel, err := s.unlock(ctx, habit.UserID, snapshot{
		completions: completions,
		streak:      streak.Length,
		xp:          level.TotalXP,
		level:       level.CurrentLevel,
		challenges:  len(challenges),
	})
	if err != nil {
		return err
	}
	if len(unlocked) > 0 {
		res.Unlocked = unlocked
		res.events = append(res.events, achievementEvents(habit.UserID, unlocked)...)
	}
	if rewardLevel != nil {
		res.LeveledUp = true
		res.events = append(res.events, levelUpEvent(habit.UserID, rewardLevel))
	}
	return nil
}

func (s *Service) uncomplete(ctx context.Context, res *ToggleResult, habit *models.Habit, entry *models.HabitEntry, day string) error {
	if entry == nil {
		return s.fillCurrent(ctx, res, habit, day)
	}
	if err := s.store.DeleteEntry(ctx, entry.ID); err != nil {
		return err
	}
	res.Changed = true
	if !entry.IsCompleted {
		return s.fillCurrent(ctx, res, habit, day)
	}

	score, err := s.addPoints(ctx, habit.UserID, day, habit.Category, -habit.Points, -1)
	if err != nil {
		return err
	}
	res.DailyScore = score
	res.PointsAwarded = -habit.Points
	res.events = append(res.events, &activity.Event{
		UserID:  habit.UserID,
		Kind:    activity.KindHabitUncompleted,
		RefID:   habit.ID,
		Points:  -habit.Points,
		Message: fmt.Sprintf("Unchecked %q", habit.Name),
	})

	streak, err := s.liveStreak(ctx, habit, day)
	if err != nil {
		return err
	}
	res.Streak = streak
	return nil
}

// fillCurrent loads the unchanged streak and score into res.
func (s *Service) fillCurrent(ctx context.Context, res *ToggleResult, habit *models.Habit, day string) error {
	streak, err := s.liveStreak(ctx, habit, day)
	if err != nil {
		return err
	}
	res.Streak = streak
	res.DailyScore, err = s.scoreFor(ctx, habit.UserID, day)
	return err
}

// extendStreak counts day on the habit's active streak. It returns the
// streak and whether day had already been counted.
//
// The streak grows when its last day is within the habit period before day.
// Otherwise it is closed and a new streak of length 1 starts.
func (s *Service) extendStreak(ctx context.Context, habit *models.Habit, day string) (*models.HabitStreak, bool, error) {
	streak, err := s.store.FindActiveStreak(ctx, habit.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	if streak != nil {
		gap, err := utils.DaysBetween(streak.LastDay, day)
		switch {
		case err == nil && gap <= 0:
			return streak, true, nil
		case err == nil && gap <= habit.Frequency.Period():
			streak.Length++
			streak.LastDay = day
			if err := s.store.UpdateStreak(ctx, streak); err != nil {
				return nil, false, err
			}
			return streak, false, s.recordLongest(ctx, habit, streak)
		}
		streak.IsActive = false
		if err := s.store.UpdateStreak(ctx, streak); err != nil {
			return nil, false, err
		}
	}

	now := s.now()
	streak = &models.HabitStreak{
		ID:        uuid.NewString(),
		HabitID:   habit.ID,
		UserID:    habit.UserID,
		Length:    1,
		StartDay:  day,
		LastDay:   day,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.AddStreak(ctx, streak); err != nil {
		return nil, false, err
	}
	return streak, false, s.recordLongest(ctx, habit, streak)
}

func (s *Service) recordLongest(ctx context.Context, habit *models.Habit, streak *models.HabitStreak) error {
	if streak.Length <= habit.LongestStreak {
		return nil
	}
	habit.LongestStreak = streak.Length
	return s.store.UpdateHabit(ctx, habit, "longest_streak")
}

// liveStreak returns the length of the habit's active streak, or 0 when the
// streak can no longer be extended on day.
func (s *Service) liveStreak(ctx context.Context, habit *models.Habit, day string) (int, error) {
	streak, err := s.store.FindActiveStreak(ctx, habit.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return streakLength(streak, habit.Frequency, day), nil
}

func streakLength(streak *models.HabitStreak, freq models.Frequency, day string) int {
	if streak == nil {
		return 0
	}
	gap, err := utils.DaysBetween(streak.LastDay, day)
	if err != nil || gap > freq.Period() {
		return 0
	}
	return streak.Length
}

// addPoints adds points and completions to the user's score of day, creating
// the row on first use.
func (s *Service) addPoints(ctx context.Context, userID, day string, category models.HabitCategory, points, completions int) (*models.DailyScore, error) {
	score, err := s.store.FindDailyScore(ctx, userID, day)
	if errors.Is(err, storage.ErrNotFound) {
		now := s.now()
		score = &models.DailyScore{ID: uuid.NewString(), UserID: userID, Day: day, CreatedAt: now, UpdatedAt: now}
		if points <= 0 && completions <= 0 {
			return score, nil
		}
		score.AddPoints(category, points)
		score.CompletedHabits = nonNegative(completions)
		return score, s.store.AddDailyScore(ctx, score)
	}
	if err != nil {
		return nil, err
	}
	score.AddPoints(category, points)
	score.CompletedHabits = nonNegative(score.CompletedHabits + completions)
	return score, s.store.UpdateDailyScore(ctx, score)
}

// scoreFor returns the stored score of day or an empty one.
func (s *Service) scoreFor(ctx context.Context, userID, day string) (*models.DailyScore, error) {
	score, err := s.store.FindDailyScore(ctx, userID, day)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.DailyScore{UserID: userID, Day: day}, nil
	}
	return score, err
}

// progressChallenges advances by one every open challenge of the habit's
// category and returns those that became completed.
func (s *Service) progressChallenges(ctx context.Context, habit *models.Habit, day string) ([]*models.Challenge, error) {
	open, err := s.store.ListChallenges(ctx, habit.UserID, day)
	if err != nil {
		return nil, err
	}
	completed := []*models.Challenge{}
	for _, c := range open {
		if c.Category != habit.Category {
			continue
		}
		if c.SetProgress(c.CurrentValue+1, s.now()) {
			completed = append(completed, c)
		}
		if err := s.store.UpdateChallenge(ctx, c); err != nil {
			return nil, err
		}
	}
	return completed, nil
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

package growth

import (
	"context"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
)

// CategoryScore is the sum of points earned in one habit category.
type CategoryScore struct {
	Category models.HabitCategory `json:"category"`
	Points   int                  `json:"points"`
}

// DayProgress is the aggregate of a single day.
type DayProgress struct {
	Day             string          `json:"day"`
	TotalPoints     int             `json:"totalPoints"`
	CompletedHabits int             `json:"completedHabits"`
	Categories      []CategoryScore `json:"categories"`
}

// WeeklyProgress aggregates the seven days ending today.
type WeeklyProgress struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Days            []DayProgress   `json:"days"`
	TotalPoints     int             `json:"totalPoints"`
	CompletedHabits int             `json:"completedHabits"`
	ActiveDays      int             `json:"activeDays"`
	AveragePoints   float64         `json:"averagePoints"`
	BestDay         *string         `json:"bestDay,omitempty"`
	Categories      []CategoryScore `json:"categories"`
}

func categoriesOf(score *models.DailyScore) []CategoryScore {
	out := make([]CategoryScore, len(models.HabitCategories))
	for i, c := range models.HabitCategories {
		out[i] = CategoryScore{Category: c}
		if score != nil {
			out[i].Points = score.CategoryScore(c)
		}
	}
	return out
}

// WeeklyProgress returns one aggregate per day for the seven days ending
// today, oldest first, with totals and per-category sums. Days without a
// score row count as zero.
func (s *Service) WeeklyProgress(ctx context.Context, userID string) (*WeeklyProgress, error) {
	to := s.Today()
	from := utils.ShiftDay(to, -6)

	scores, err := s.store.ListDailyScores(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]*models.DailyScore, len(scores))
	for _, score := range scores {
		byDay[score.Day] = score
	}

	week := &WeeklyProgress{From: from, To: to, Days: make([]DayProgress, 0, 7), Categories: categoriesOf(nil)}
	best := 0
	for i := 0; i < 7; i++ {
		day := utils.ShiftDay(from, i)
		score := byDay[day]
		progress := DayProgress{Day: day, Categories: categoriesOf(score)}
		if score != nil {
			progress.TotalPoints = score.TotalPoints
			progress.CompletedHabits = score.CompletedHabits
		}
		week.Days = append(week.Days, progress)

		week.TotalPoints += progress.TotalPoints
		week.CompletedHabits += progress.CompletedHabits
		for j := range week.Categories {
			week.Categories[j].Points += progress.Categories[j].Points
		}
		if progress.CompletedHabits > 0 {
			week.ActiveDays++
		}
		if progress.TotalPoints > best {
			best = progress.TotalPoints
			week.BestDay = &day
		}
	}
	week.AveragePoints = float64(week.TotalPoints) / 7
	return week, nil
}

// HabitStatus is a habit with its state for today.
type HabitStatus struct {
	Habit     *models.Habit `json:"habit"`
	Completed bool          `json:"completed"`
	Value     int           `json:"value"`
	Streak    int           `json:"streak"`
}

// Dashboard is the home screen read model.
type Dashboard struct {
	Day              string              `json:"day"`
	Habits           []*HabitStatus      `json:"habits"`
	CompletedCount   int                 `json:"completedCount"`
	CompletionRate   float64             `json:"completionRate"`
	DailyScore       *models.DailyScore  `json:"dailyScore"`
	Level            *LevelStatus        `json:"level"`
	ActiveChallenges []*models.Challenge `json:"activeChallenges"`
}

// Dashboard returns today's active habits with completion state and live
// streaks, today's score, the level status and open challenges.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	day := s.Today()

	habits, err := s.store.ListHabits(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntriesForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	streaks, err := s.store.ListActiveStreaks(ctx, userID)
	if err != nil {
		return nil, err
	}

	entryByHabit := make(map[string]*models.HabitEntry, len(entries))
	for _, e := range entries {
		entryByHabit[e.HabitID] = e
	}
	streakByHabit := make(map[string]*models.HabitStreak, len(streaks))
	for _, st := range streaks {
		streakByHabit[st.HabitID] = st
	}

	dash := &Dashboard{Day: day, Habits: make([]*HabitStatus, 0, len(habits))}
	for _, habit := range habits {
		status := &HabitStatus{Habit: habit, Streak: streakLength(streakByHabit[habit.ID], habit.Frequency, day)}
		if e, ok := entryByHabit[habit.ID]; ok {
			status.Completed = e.IsCompleted
			status.Value = e.Value
		}
		if status.Completed {
			dash.CompletedCount++
		}
		dash.Habits = append(dash.Habits, status)
	}
	if len(habits) > 0 {
		dash.CompletionRate = float64(dash.CompletedCount) / float64(len(habits))
	}

	if dash.DailyScore, err = s.scoreFor(ctx, userID, day); err != nil {
		return nil, err
	}
	if dash.Level, err = s.GetLevel(ctx, userID); err != nil {
		return nil, err
	}
	if dash.ActiveChallenges, err = s.store.ListChallenges(ctx, userID, day); err != nil {
		return nil, err
	}
	if dash.ActiveChallenges == nil {
		dash.ActiveChallenges = []*models.Challenge{}
	}
	return dash, nil
}

// DailyScore returns the user's score of day, or today when day is empty.
func (s *Service) DailyScore(ctx context.Context, userID, day string) (*models.DailyScore, error) {
	if day == "" {
		day = s.Today()
	}
	return s.scoreFor(ctx, userID, day)
}

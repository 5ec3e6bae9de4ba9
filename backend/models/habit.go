package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DayLayout is the layout of the day keys used by entries, streaks and scores.
const DayLayout = "2006-01-02"

// HabitCategory groups habits; every category has its own sub-score on DailyScore.
type HabitCategory string

const (
	CategoryNutrition    HabitCategory = "NUTRITION"
	CategoryExercise     HabitCategory = "EXERCISE"
	CategorySleep        HabitCategory = "SLEEP"
	CategoryMindset      HabitCategory = "MINDSET"
	CategoryHydration    HabitCategory = "HYDRATION"
	CategoryProductivity HabitCategory = "PRODUCTIVITY"
	CategoryOther        HabitCategory = "OTHER"
)

// HabitCategories lists every category in display order.
var HabitCategories = []HabitCategory{
	CategoryNutrition, CategoryExercise, CategorySleep, CategoryMindset,
	CategoryHydration, CategoryProductivity, CategoryOther,
}

// Valid reports whether c is a known category.
func (c HabitCategory) Valid() bool {
	for _, cat := range HabitCategories {
		if cat == c {
			return true
		}
	}
	return false
}

type TrackingType string

const (
	TrackingBoolean  TrackingType = "BOOLEAN"
	TrackingCount    TrackingType = "COUNT"
	TrackingDuration TrackingType = "DURATION"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Period returns the longest gap, in days, between two completions that still
// keeps a streak alive.
func (f Frequency) Period() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 31
	}
	return 1
}

// Habit is a recurring behaviour a user tracks.
type Habit struct {
	bun.BaseModel `bun:"table:habits,alias:h"`

	ID            string        `bun:"id,pk" json:"id"`
	UserID        string        `bun:"user_id,notnull" json:"userId"`
	Name          string        `bun:"name,notnull" json:"name"`
	Description   string        `bun:"description,notnull" json:"description"`
	Category      HabitCategory `bun:"category,notnull" json:"category"`
	TrackingType  TrackingType  `bun:"tracking_type,notnull" json:"trackingType"`
	Frequency     Frequency     `bun:"frequency,notnull" json:"frequency"`
	TargetCount   int           `bun:"target_count,notnull,default:1" json:"targetCount"`
	Unit          string        `bun:"unit,notnull" json:"unit"`
	Points        int           `bun:"points,notnull" json:"points"`
	IsActive      bool          `bun:"is_active,notnull,default:true" json:"isActive"`
	LongestStreak int           `bun:"longest_streak,notnull,default:0" json:"longestStreak"`
	CreatedAt     time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// HabitStreak is a run of consecutive completions. A habit has at most one
// active streak; older streaks are kept inactive for history.
type HabitStreak struct {
	bun.BaseModel `bun:"table:habit_streaks,alias:hs"`

	ID        string    `bun:"id,pk" json:"id"`
	HabitID   string    `bun:"habit_id,notnull" json:"habitId"`
	UserID    string    `bun:"user_id,notnull" json:"userId"`
	Length    int       `bun:"length,notnull" json:"length"`
	StartDay  string    `bun:"start_day,notnull" json:"startDay"`
	LastDay   string    `bun:"last_day,notnull" json:"lastDay"`
	IsActive  bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// HabitEntry records the completion state of a habit on a single day.
type HabitEntry struct {
	bun.BaseModel `bun:"table:habit_entries,alias:he"`

	ID          string    `bun:"id,pk" json:"id"`
	HabitID     string    `bun:"habit_id,notnull" json:"habitId"`
	UserID      string    `bun:"user_id,notnull" json:"userId"`
	Day         string    `bun:"day,notnull" json:"day"`
	IsCompleted bool      `bun:"is_completed,notnull" json:"isCompleted"`
	Value       int       `bun:"value,notnull,default:0" json:"value"`
	Note        string    `bun:"note,notnull" json:"note"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// DailyScore is the per user, per day aggregate of earned habit points.
type DailyScore struct {
	bun.BaseModel `bun:"table:daily_scores,alias:ds"`

	ID                string    `bun:"id,pk" json:"id"`
	UserID            string    `bun:"user_id,notnull" json:"userId"`
	Day               string    `bun:"day,notnull" json:"day"`
	TotalPoints       int       `bun:"total_points,notnull,default:0" json:"totalPoints"`
	CompletedHabits   int       `bun:"completed_habits,notnull,default:0" json:"completedHabits"`
	NutritionScore    int       `bun:"nutrition_score,notnull,default:0" json:"nutritionScore"`
	ExerciseScore     int       `bun:"exercise_score,notnull,default:0" json:"exerciseScore"`
	SleepScore        int       `bun:"sleep_score,notnull,default:0" json:"sleepScore"`
	MindsetScore      int       `bun:"mindset_score,notnull,default:0" json:"mindsetScore"`
	HydrationScore    int       `bun:"hydration_score,notnull,default:0" json:"hydrationScore"`
	ProductivityScore int       `bun:"productivity_score,notnull,default:0" json:"productivityScore"`
	OtherScore        int       `bun:"other_score,notnull,default:0" json:"otherScore"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (s *DailyScore) categoryField(c HabitCategory) *int {
	switch c {
	case CategoryNutrition:
		return &s.NutritionScore
	case CategoryExercise:
		return &s.ExerciseScore
	case CategorySleep:
		return &s.SleepScore
	case CategoryMindset:
		return &s.MindsetScore
	case CategoryHydration:
		return &s.HydrationScore
	case CategoryProductivity:
		return &s.ProductivityScore
	}
	return &s.OtherScore
}

// AddPoints adds points (which may be negative) to the total and to the
// sub-score of the given category. Neither value drops below zero.
func (s *DailyScore) AddPoints(c HabitCategory, points int) {
	s.TotalPoints = floorZero(s.TotalPoints + points)
	field := s.categoryField(c)
	*field = floorZero(*field + points)
}

// CategoryScore returns the sub-score for c.
func (s *DailyScore) CategoryScore(c HabitCategory) int {
	return *s.categoryField(c)
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

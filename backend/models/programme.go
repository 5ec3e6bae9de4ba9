package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Programme is a coach-authored plan made of weekly plans, each holding daily tasks.
type Programme struct {
	bun.BaseModel `bun:"table:programmes,alias:p"`
	ContentMeta

	Title         string        `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description   string        `bun:"description,notnull" json:"description"`
	Difficulty    string        `bun:"difficulty,notnull" json:"difficulty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	DurationWeeks int           `bun:"duration_weeks,notnull" json:"durationWeeks" validate:"gte=1"`
	WeeklyPlans   []*WeeklyPlan `bun:"rel:has-many,join:id=programme_id" json:"weeklyPlans" validate:"dive"`
}

type WeeklyPlan struct {
	bun.BaseModel `bun:"table:weekly_plans,alias:wp"`

	ID          string       `bun:"id,pk" json:"id"`
	ProgrammeID string       `bun:"programme_id,notnull" json:"programmeId"`
	WeekNumber  int          `bun:"week_number,notnull" json:"weekNumber" validate:"gte=1"`
	Title       string       `bun:"title,notnull" json:"title" validate:"required"`
	Focus       string       `bun:"focus,notnull" json:"focus"`
	DailyTasks  []*DailyTask `bun:"rel:has-many,join:id=weekly_plan_id" json:"dailyTasks" validate:"dive"`
	CreatedAt   time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

type DailyTask struct {
	bun.BaseModel `bun:"table:daily_tasks,alias:dt"`

	ID           string        `bun:"id,pk" json:"id"`
	WeeklyPlanID string        `bun:"weekly_plan_id,notnull" json:"weeklyPlanId"`
	DayOfWeek    int           `bun:"day_of_week,notnull" json:"dayOfWeek" validate:"gte=1,lte=7"`
	Title        string        `bun:"title,notnull" json:"title" validate:"required"`
	Description  string        `bun:"description,notnull" json:"description"`
	Category     HabitCategory `bun:"category,notnull" json:"category"`
	ExerciseID   string        `bun:"exercise_id,notnull" json:"exerciseId"`
	RecipeID     string        `bun:"recipe_id,notnull" json:"recipeId"`
	Position     int           `bun:"position,notnull,default:0" json:"position"`
}

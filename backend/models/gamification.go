package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Challenge is a time-boxed numeric goal, optionally tied to a habit category.
// Once completed it stays completed.
type Challenge struct {
	bun.BaseModel `bun:"table:challenges,alias:c"`

	ID           string        `bun:"id,pk" json:"id"`
	UserID       string        `bun:"user_id,notnull" json:"userId"`
	Title        string        `bun:"title,notnull" json:"title"`
	Description  string        `bun:"description,notnull" json:"description"`
	Category     HabitCategory `bun:"category,notnull" json:"category"`
	StartDate    string        `bun:"start_date,notnull" json:"startDate"`
	EndDate      string        `bun:"end_date,notnull" json:"endDate"`
	TargetValue  int           `bun:"target_value,notnull" json:"targetValue"`
	CurrentValue int           `bun:"current_value,notnull,default:0" json:"currentValue"`
	Unit         string        `bun:"unit,notnull" json:"unit"`
	IsCompleted  bool          `bun:"is_completed,notnull,default:false" json:"isCompleted"`
	CompletedAt  *time.Time    `bun:"completed_at,nullzero" json:"completedAt,omitempty"`
	CreatedAt    time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// SetProgress stores value as the current progress, clamped at zero, and
// completes the challenge when the target is reached. It reports whether this
// call completed the challenge.
func (c *Challenge) SetProgress(value int, now time.Time) bool {
	c.CurrentValue = floorZero(value)
	if c.IsCompleted || c.CurrentValue < c.TargetValue {
		return false
	}
	c.IsCompleted = true
	c.CompletedAt = &now
	return true
}

// ActiveOn reports whether the challenge is open and day lies within its window.
func (c *Challenge) ActiveOn(day string) bool {
	return !c.IsCompleted && c.StartDate <= day && day <= c.EndDate
}

// LevelConfig is one row of the level threshold table.
type LevelConfig struct {
	bun.BaseModel `bun:"table:level_configs,alias:lc"`

	Level int    `bun:"level,pk" json:"level"`
	Name  string `bun:"name,notnull" json:"name"`
	MinXP int    `bun:"min_xp,notnull" json:"minXp"`
}

// UserLevelData stores a user's accumulated XP together with the level
// derived from it.
type UserLevelData struct {
	bun.BaseModel `bun:"table:user_level_data,alias:ul"`

	UserID       string    `bun:"user_id,pk" json:"userId"`
	TotalXP      int       `bun:"total_xp,notnull,default:0" json:"totalXp"`
	CurrentLevel int       `bun:"current_level,notnull,default:1" json:"currentLevel"`
	LevelName    string    `bun:"level_name,notnull" json:"levelName"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Achievement is an entry of the achievement catalogue. The id is a stable slug.
type Achievement struct {
	bun.BaseModel `bun:"table:achievements,alias:a"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,notnull" json:"description"`
	Icon        string    `bun:"icon,notnull" json:"icon"`
	XPReward    int       `bun:"xp_reward,notnull,default:0" json:"xpReward"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// UserAchievement records that a user unlocked an achievement.
type UserAchievement struct {
	bun.BaseModel `bun:"table:user_achievements,alias:ua"`

	ID            string       `bun:"id,pk" json:"id"`
	UserID        string       `bun:"user_id,notnull" json:"userId"`
	AchievementID string       `bun:"achievement_id,notnull" json:"achievementId"`
	UnlockedAt    time.Time    `bun:"unlocked_at,notnull,default:current_timestamp" json:"unlockedAt"`
	Achievement   *Achievement `bun:"rel:belongs-to,join:achievement_id=id" json:"achievement,omitempty"`
}

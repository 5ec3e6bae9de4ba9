package growth

import (
	"context"
	"errors"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
)

// Level is one step of the level ladder.
type Level struct {
	Number int    `json:"level"`
	Name   string `json:"name"`
	MinXP  int    `json:"minXp"`
}

// DefaultLevels is the level ladder, ordered by ascending threshold.
var DefaultLevels = []Level{
	{1, "Beginner", 0},
	{2, "Apprentice", 100},
	{3, "Consistent", 250},
	{4, "Disciplined", 500},
	{5, "Athlete", 1000},
	{6, "Warrior", 2000},
	{7, "Champion", 3500},
	{8, "Elite", 5500},
	{9, "Legend", 8000},
	{10, "Gainz Master", 12000},
}

// LevelFor returns the highest level of DefaultLevels whose threshold xp meets.
func LevelFor(xp int) Level {
	return levelIn(DefaultLevels, xp)
}

// levelIn scans levels in order and stops at the first threshold xp does not
// meet, so a level is never granted before its threshold.
func levelIn(levels []Level, xp int) Level {
	current := levels[0]
	for _, level := range levels[1:] {
		if xp < level.MinXP {
			break
		}
		current = level
	}
	return current
}

// nextLevel returns the level after number, if any.
func nextLevel(number int) (Level, bool) {
	for _, level := range DefaultLevels {
		if level.Number == number+1 {
			return level, true
		}
	}
	return Level{}, false
}

// LevelConfigs returns DefaultLevels as seedable rows.
func LevelConfigs() []*models.LevelConfig {
	rows := make([]*models.LevelConfig, len(DefaultLevels))
	for i, level := range DefaultLevels {
		rows[i] = &models.LevelConfig{Level: level.Number, Name: level.Name, MinXP: level.MinXP}
	}
	return rows
}

// LevelStatus is a user's level with progress towards the next one.
type LevelStatus struct {
	TotalXP       int     `json:"totalXp"`
	CurrentLevel  int     `json:"currentLevel"`
	LevelName     string  `json:"levelName"`
	NextLevel     *Level  `json:"nextLevel,omitempty"`
	XPToNextLevel int     `json:"xpToNextLevel"`
	Progress      float64 `json:"progress"`
}

// StatusFor computes the LevelStatus of xp.
func StatusFor(xp int) *LevelStatus {
	level := LevelFor(xp)
	status := &LevelStatus{
		TotalXP:      xp,
		CurrentLevel: level.Number,
		LevelName:    level.Name,
		Progress:     1,
	}
	if next, ok := nextLevel(level.Number); ok {
		status.NextLevel = &next
		status.XPToNextLevel = next.MinXP - xp
		status.Progress = float64(xp-level.MinXP) / float64(next.MinXP-level.MinXP)
	}
	return status
}

func (s *Service) loadLevel(ctx context.Context, userID string) (*models.UserLevelData, error) {
	data, err := s.store.FindLevelData(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		first := DefaultLevels[0]
		return &models.UserLevelData{UserID: userID, CurrentLevel: first.Number, LevelName: first.Name}, nil
	}
	return data, err
}

// GetLevel returns the user's level status. Users without XP are at level 1.
func (s *Service) GetLevel(ctx context.Context, userID string) (*LevelStatus, error) {
	data, err := s.loadLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	return StatusFor(data.TotalXP), nil
}

// AddXP adds amount to the user's XP, recomputes the level and persists both.
// It reports whether the user reached a higher level.
func (s *Service) AddXP(ctx context.Context, userID string, amount int) (*LevelStatus, bool, error) {
	data, err := s.loadLevel(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	before := data.CurrentLevel
	data.TotalXP += amount
	if data.TotalXP < 0 {
		data.TotalXP = 0
	}
	applyLevel(data)
	if err := s.store.SaveLevelData(ctx, data); err != nil {
		return nil, false, err
	}
	return StatusFor(data.TotalXP), data.CurrentLevel > before, nil
}

// RecalculateLevel recomputes the denormalised level of the user from the
// stored XP and persists it.
func (s *Service) RecalculateLevel(ctx context.Context, userID string) (*LevelStatus, error) {
	data, err := s.loadLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyLevel(data)
	if err := s.store.SaveLevelData(ctx, data); err != nil {
		return nil, err
	}
	return StatusFor(data.TotalXP), nil
}

// RecalculateAll recomputes every stored level and returns how many rows changed.
func (s *Service) RecalculateAll(ctx context.Context) (int, error) {
	rows, err := s.store.ListLevelData(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, data := range rows {
		before, name := data.CurrentLevel, data.LevelName
		applyLevel(data)
		if data.CurrentLevel == before && data.LevelName == name {
			continue
		}
		if err := s.store.SaveLevelData(ctx, data); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func applyLevel(data *models.UserLevelData) {
	level := LevelFor(data.TotalXP)
	data.CurrentLevel = level.Number
	data.LevelName = level.Name
}

package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

func (s *BunStorage) FindDailyScore(ctx context.Context, userID, day string) (*models.DailyScore, error) {
	score := new(models.DailyScore)
	err := s.conn(ctx).NewSelect().Model(score).
		Where("ds.user_id = ?", userID).
		Where("ds.day = ?", day).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return score, nil
}

func (s *BunStorage) AddDailyScore(ctx context.Context, score *models.DailyScore) error {
	_, err := s.conn(ctx).NewInsert().Model(score).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) UpdateDailyScore(ctx context.Context, score *models.DailyScore) error {
	score.UpdatedAt = time.Now()
	return affected(s.conn(ctx).NewUpdate().Model(score).
		ExcludeColumn("created_at", "user_id", "day").
		WherePK().
		Exec(ctx))
}

func (s *BunStorage) ListDailyScores(ctx context.Context, userID, from, to string) ([]*models.DailyScore, error) {
	var scores []*models.DailyScore
	err := s.conn(ctx).NewSelect().Model(&scores).
		Where("ds.user_id = ?", userID).
		Where("ds.day BETWEEN ? AND ?", from, to).
		Order("ds.day ASC").
		Scan(ctx)
	return scores, wrapErr(err)
}

func (s *BunStorage) FindLevelData(ctx context.Context, userID string) (*models.UserLevelData, error) {
	data := new(models.UserLevelData)
	if err := s.conn(ctx).NewSelect().Model(data).Where("ul.user_id = ?", userID).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return data, nil
}

func (s *BunStorage) SaveLevelData(ctx context.Context, data *models.UserLevelData) error {
	data.UpdatedAt = time.Now()
	_, err := s.conn(ctx).NewInsert().Model(data).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_xp = EXCLUDED.total_xp").
		Set("current_level = EXCLUDED.current_level").
		Set("level_name = EXCLUDED.level_name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) ListLevelData(ctx context.Context) ([]*models.UserLevelData, error) {
	var rows []*models.UserLevelData
	err := s.conn(ctx).NewSelect().Model(&rows).Order("ul.total_xp DESC").Scan(ctx)
	return rows, wrapErr(err)
}

func (s *BunStorage) ListLevelConfigs(ctx context.Context) ([]*models.LevelConfig, error) {
	var levels []*models.LevelConfig
	err := s.conn(ctx).NewSelect().Model(&levels).Order("lc.level ASC").Scan(ctx)
	return levels, wrapErr(err)
}

func (s *BunStorage) ListAchievements(ctx context.Context) ([]*models.Achievement, error) {
	var achievements []*models.Achievement
	err := s.conn(ctx).NewSelect().Model(&achievements).Order("a.xp_reward ASC", "a.id ASC").Scan(ctx)
	return achievements, wrapErr(err)
}

func (s *BunStorage) ListUserAchievements(ctx context.Context, userID string) ([]*models.UserAchievement, error) {
	var unlocked []*models.UserAchievement
	err := s.conn(ctx).NewSelect().Model(&unlocked).
		Relation("Achievement").
		Where("ua.user_id = ?", userID).
		Order("ua.unlocked_at ASC").
		Scan(ctx)
	return unlocked, wrapErr(err)
}

func (s *BunStorage) HasUserAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	exists, err := s.conn(ctx).NewSelect().Model((*models.UserAchievement)(nil)).
		Where("ua.user_id = ?", userID).
		Where("ua.achievement_id = ?", achievementID).
		Exists(ctx)
	return exists, wrapErr(err)
}

func (s *BunStorage) AddUserAchievement(ctx context.Context, ua *models.UserAchievement) error {
	_, err := s.conn(ctx).NewInsert().Model(ua).Exec(ctx)
	return wrapErr(err)
}

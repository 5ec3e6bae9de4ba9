package storage

import (
	"context"
	"errors"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

// UserExport is everything stored about a single user.
type UserExport struct {
	User         *models.User              `json:"user"`
	Level        *models.UserLevelData     `json:"level,omitempty"`
	Habits       []*models.Habit           `json:"habits"`
	Entries      []*models.HabitEntry      `json:"entries"`
	Streaks      []*models.HabitStreak     `json:"streaks"`
	Scores       []*models.DailyScore      `json:"scores"`
	Challenges   []*models.Challenge       `json:"challenges"`
	Achievements []*models.UserAchievement `json:"achievements"`
	Submissions  []*models.FormSubmission  `json:"submissions"`
}

func (s *BunStorage) Stats(ctx context.Context, day string) (*Stats, error) {
	db := s.conn(ctx)
	stats := new(Stats)

	counts := []struct {
		dst   *int
		model interface{}
		where string
		arg   interface{}
	}{
		{&stats.Users, (*models.User)(nil), "", nil},
		{&stats.Coaches, (*models.User)(nil), "role = ?", models.RoleCoach},
		{&stats.Admins, (*models.User)(nil), "role = ?", models.RoleAdmin},
		{&stats.Habits, (*models.Habit)(nil), "", nil},
		{&stats.CompletedToday, (*models.HabitEntry)(nil), "day = ? AND is_completed", day},
		{&stats.Challenges, (*models.Challenge)(nil), "", nil},
		{&stats.Forums, (*models.Forum)(nil), "", nil},
		{&stats.Topics, (*models.ForumTopic)(nil), "", nil},
	}
	for _, c := range counts {
		q := db.NewSelect().Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.arg)
		}
		n, err := q.Count(ctx)
		if err != nil {
			return nil, wrapErr(err)
		}
		*c.dst = n
	}
	return stats, nil
}

func (s *BunStorage) Export(ctx context.Context, userID string) (*UserExport, error) {
	user, err := s.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &UserExport{User: user}
	if out.Level, err = s.FindLevelData(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	db := s.conn(ctx)
	selects := []struct {
		dst   interface{}
		where string
		order string
	}{
		{&out.Habits, "h.user_id = ?", "h.created_at"},
		{&out.Entries, "he.user_id = ?", "he.day"},
		{&out.Streaks, "hs.user_id = ?", "hs.start_day"},
		{&out.Scores, "ds.user_id = ?", "ds.day"},
		{&out.Challenges, "c.user_id = ?", "c.start_date"},
		{&out.Submissions, "fs.user_id = ?", "fs.created_at"},
	}
	for _, sel := range selects {
		if err := db.NewSelect().Model(sel.dst).Where(sel.where, userID).Order(sel.order).Scan(ctx); err != nil {
			return nil, wrapErr(err)
		}
	}
	if out.Achievements, err = s.ListUserAchievements(ctx, userID); err != nil {
		return nil, err
	}
	return out, nil
}

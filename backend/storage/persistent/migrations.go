package storage

import (
	"context"
	"fmt"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/uptrace/bun"
)

type table struct {
	model       interface{}
	foreignKeys []string
}

// tables is ordered so that referenced tables are created first.
var tables = []table{
	{model: (*models.User)(nil)},
	{(*models.RefreshToken)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{(*models.Confirmation)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{(*models.Habit)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{(*models.HabitStreak)(nil), []string{`("habit_id") REFERENCES "habits" ("id") ON DELETE CASCADE`}},
	{(*models.HabitEntry)(nil), []string{`("habit_id") REFERENCES "habits" ("id") ON DELETE CASCADE`}},
	{(*models.DailyScore)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{(*models.Challenge)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{model: (*models.LevelConfig)(nil)},
	{(*models.UserLevelData)(nil), []string{`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`}},
	{model: (*models.Achievement)(nil)},
	{(*models.UserAchievement)(nil), []string{
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
		`("achievement_id") REFERENCES "achievements" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.Forum)(nil)},
	// No cascade: a forum with topics cannot be deleted.
	{(*models.ForumTopic)(nil), []string{`("forum_id") REFERENCES "forums" ("id")`}},
	{(*models.ForumReply)(nil), []string{`("topic_id") REFERENCES "forum_topics" ("id") ON DELETE CASCADE`}},
	{model: (*models.MediaContent)(nil)},
	{model: (*models.Recipe)(nil)},
	{model: (*models.Exercise)(nil)},
	{model: (*models.BlogPost)(nil)},
	{model: (*models.Service)(nil)},
	{model: (*models.Programme)(nil)},
	{(*models.WeeklyPlan)(nil), []string{`("programme_id") REFERENCES "programmes" ("id") ON DELETE CASCADE`}},
	{(*models.DailyTask)(nil), []string{`("weekly_plan_id") REFERENCES "weekly_plans" ("id") ON DELETE CASCADE`}},
	{model: (*models.Form)(nil)},
	{(*models.InputField)(nil), []string{`("form_id") REFERENCES "forms" ("id") ON DELETE CASCADE`}},
	{(*models.FormSubmission)(nil), []string{`("form_id") REFERENCES "forms" ("id") ON DELETE CASCADE`}},
}

type index struct {
	model   interface{}
	name    string
	unique  bool
	columns []string
	where   string
}

var indexes = []index{
	{model: (*models.HabitEntry)(nil), name: "habit_entries_habit_day_key", unique: true, columns: []string{"habit_id", "day"}},
	{model: (*models.HabitEntry)(nil), name: "habit_entries_user_day_idx", columns: []string{"user_id", "day"}},
	{model: (*models.DailyScore)(nil), name: "daily_scores_user_day_key", unique: true, columns: []string{"user_id", "day"}},
	{model: (*models.HabitStreak)(nil), name: "habit_streaks_active_key", unique: true, columns: []string{"habit_id"}, where: "is_active"},
	{model: (*models.Habit)(nil), name: "habits_user_idx", columns: []string{"user_id"}},
	{model: (*models.Challenge)(nil), name: "challenges_user_idx", columns: []string{"user_id", "end_date"}},
	{model: (*models.UserAchievement)(nil), name: "user_achievements_user_achievement_key", unique: true, columns: []string{"user_id", "achievement_id"}},
	{model: (*models.ForumTopic)(nil), name: "forum_topics_forum_idx", columns: []string{"forum_id"}},
	{model: (*models.ForumReply)(nil), name: "forum_replies_topic_idx", columns: []string{"topic_id"}},
	{model: (*models.FormSubmission)(nil), name: "form_submissions_form_idx", columns: []string{"form_id"}},
}

// Migrate creates every table and index that does not exist yet, in one transaction.
func (s *BunStorage) Migrate(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, t := range tables {
			q := tx.NewCreateTable().Model(t.model).IfNotExists()
			for _, fk := range t.foreignKeys {
				q = q.ForeignKey(fk)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("error creating table for %T: %w", t.model, err)
			}
		}
		for _, idx := range indexes {
			q := tx.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
			if idx.unique {
				q = q.Unique()
			}
			if idx.where != "" {
				q = q.Where(idx.where)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("error creating index %s: %w", idx.name, err)
			}
		}
		return nil
	})
}

// Seed inserts the given level thresholds and achievements, leaving rows that
// already exist untouched.
func (s *BunStorage) Seed(ctx context.Context, levels []*models.LevelConfig, achievements []*models.Achievement) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if len(levels) > 0 {
			if _, err := s.conn(ctx).NewInsert().Model(&levels).On("CONFLICT (level) DO NOTHING").Exec(ctx); err != nil {
				return wrapErr(err)
			}
		}
		if len(achievements) > 0 {
			if _, err := s.conn(ctx).NewInsert().Model(&achievements).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return wrapErr(err)
			}
		}
		return nil
	})
}

package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

func (s *BunStorage) AddHabit(ctx context.Context, habit *models.Habit) error {
	_, err := s.conn(ctx).NewInsert().Model(habit).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindHabit(ctx context.Context, id string) (*models.Habit, error) {
	habit := new(models.Habit)
	if err := s.conn(ctx).NewSelect().Model(habit).Where("h.id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return habit, nil
}

func (s *BunStorage) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*models.Habit, error) {
	var habits []*models.Habit
	q := s.conn(ctx).NewSelect().Model(&habits).Where("h.user_id = ?", userID).Order("h.created_at ASC")
	if activeOnly {
		q = q.Where("h.is_active")
	}
	err := q.Scan(ctx)
	return habits, wrapErr(err)
}

func (s *BunStorage) UpdateHabit(ctx context.Context, habit *models.Habit, columns ...string) error {
	habit.UpdatedAt = time.Now()
	q := s.conn(ctx).NewUpdate().Model(habit).WherePK()
	if cols := withUpdatedAt(columns); cols != nil {
		q = q.Column(cols...)
	} else {
		q = q.ExcludeColumn("created_at", "user_id")
	}
	return affected(q.Exec(ctx))
}

// DeleteHabit removes the habit; its entries and streaks go with it.
func (s *BunStorage) DeleteHabit(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Habit)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) FindEntry(ctx context.Context, habitID, day string) (*models.HabitEntry, error) {
	entry := new(models.HabitEntry)
	err := s.conn(ctx).NewSelect().Model(entry).
		Where("he.habit_id = ?", habitID).
		Where("he.day = ?", day).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return entry, nil
}

// AddEntry inserts entry. A second entry for the same habit and day fails
// with ErrConflict through the unique (habit_id, day) index.
func (s *BunStorage) AddEntry(ctx context.Context, entry *models.HabitEntry) error {
	_, err := s.conn(ctx).NewInsert().Model(entry).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) UpdateEntry(ctx context.Context, entry *models.HabitEntry) error {
	entry.UpdatedAt = time.Now()
	return affected(s.conn(ctx).NewUpdate().Model(entry).
		Column("is_completed", "value", "note", "updated_at").
		WherePK().
		Exec(ctx))
}

func (s *BunStorage) DeleteEntry(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.HabitEntry)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) ListEntries(ctx context.Context, habitID string, limit int) ([]*models.HabitEntry, error) {
	var entries []*models.HabitEntry
	q := s.conn(ctx).NewSelect().Model(&entries).Where("he.habit_id = ?", habitID).Order("he.day DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return entries, wrapErr(err)
}

func (s *BunStorage) ListEntriesForDay(ctx context.Context, userID, day string) ([]*models.HabitEntry, error) {
	var entries []*models.HabitEntry
	err := s.conn(ctx).NewSelect().Model(&entries).
		Where("he.user_id = ?", userID).
		Where("he.day = ?", day).
		Scan(ctx)
	return entries, wrapErr(err)
}

func (s *BunStorage) CountCompletedEntries(ctx context.Context, userID string) (int, error) {
	n, err := s.conn(ctx).NewSelect().Model((*models.HabitEntry)(nil)).
		Where("he.user_id = ?", userID).
		Where("he.is_completed").
		Count(ctx)
	return n, wrapErr(err)
}

func (s *BunStorage) FindActiveStreak(ctx context.Context, habitID string) (*models.HabitStreak, error) {
	streak := new(models.HabitStreak)
	err := s.conn(ctx).NewSelect().Model(streak).
		Where("hs.habit_id = ?", habitID).
		Where("hs.is_active").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return streak, nil
}

func (s *BunStorage) ListActiveStreaks(ctx context.Context, userID string) ([]*models.HabitStreak, error) {
	var streaks []*models.HabitStreak
	err := s.conn(ctx).NewSelect().Model(&streaks).
		Where("hs.user_id = ?", userID).
		Where("hs.is_active").
		Scan(ctx)
	return streaks, wrapErr(err)
}

// AddStreak inserts streak. The partial unique index on active streaks makes a
// second active streak for the same habit fail with ErrConflict.
func (s *BunStorage) AddStreak(ctx context.Context, streak *models.HabitStreak) error {
	_, err := s.conn(ctx).NewInsert().Model(streak).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) UpdateStreak(ctx context.Context, streak *models.HabitStreak) error {
	streak.UpdatedAt = time.Now()
	return affected(s.conn(ctx).NewUpdate().Model(streak).
		Column("length", "last_day", "is_active", "updated_at").
		WherePK().
		Exec(ctx))
}

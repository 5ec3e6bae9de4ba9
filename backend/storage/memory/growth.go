package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
)

func (s *Store) AddHabit(_ context.Context, habit *models.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.habits[habit.ID]; ok {
		return storage.ErrConflict
	}
	s.d.habits[habit.ID] = *habit
	return nil
}

func (s *Store) FindHabit(_ context.Context, id string) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.d.habits[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &h, nil
}

func (s *Store) ListHabits(_ context.Context, userID string, activeOnly bool) ([]*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	habits := []*models.Habit{}
	for _, h := range s.d.habits {
		if h.UserID == userID && (!activeOnly || h.IsActive) {
			habits = append(habits, &h)
		}
	}
	sort.Slice(habits, func(i, j int) bool { return habits[i].CreatedAt.Before(habits[j].CreatedAt) })
	return habits, nil
}

func (s *Store) UpdateHabit(_ context.Context, habit *models.Habit, _ ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.habits[habit.ID]
	if !ok {
		return storage.ErrNotFound
	}
	habit.CreatedAt, habit.UserID = old.CreatedAt, old.UserID
	habit.UpdatedAt = time.Now()
	s.d.habits[habit.ID] = *habit
	return nil
}

func (s *Store) DeleteHabit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.habits[id]; !ok {
		return storage.ErrNotFound
	}
	s.deleteHabitLocked(id)
	return nil
}

func (s *Store) deleteHabitLocked(id string) {
	delete(s.d.habits, id)
	for k, v := range s.d.entries {
		if v.HabitID == id {
			delete(s.d.entries, k)
		}
	}
	for k, v := range s.d.streaks {
		if v.HabitID == id {
			delete(s.d.streaks, k)
		}
	}
}

func (s *Store) FindEntry(_ context.Context, habitID, day string) (*models.HabitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.d.entries {
		if e.HabitID == habitID && e.Day == day {
			return &e, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) AddEntry(_ context.Context, entry *models.HabitEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.d.entries {
		if e.ID == entry.ID || (e.HabitID == entry.HabitID && e.Day == entry.Day) {
			return storage.ErrConflict
		}
	}
	s.d.entries[entry.ID] = *entry
	return nil
}

func (s *Store) UpdateEntry(_ context.Context, entry *models.HabitEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.entries[entry.ID]; !ok {
		return storage.ErrNotFound
	}
	entry.UpdatedAt = time.Now()
	s.d.entries[entry.ID] = *entry
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.entries[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.entries, id)
	return nil
}

func (s *Store) ListEntries(_ context.Context, habitID string, limit int) ([]*models.HabitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []*models.HabitEntry{}
	for _, e := range s.d.entries {
		if e.HabitID == habitID {
			entries = append(entries, &e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Day > entries[j].Day })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) ListEntriesForDay(_ context.Context, userID, day string) ([]*models.HabitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []*models.HabitEntry{}
	for _, e := range s.d.entries {
		if e.UserID == userID && e.Day == day {
			entries = append(entries, &e)
		}
	}
	return entries, nil
}

func (s *Store) CountCompletedEntries(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.d.entries {
		if e.UserID == userID && e.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindActiveStreak(_ context.Context, habitID string) (*models.HabitStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.d.streaks {
		if st.HabitID == habitID && st.IsActive {
			return &st, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListActiveStreaks(_ context.Context, userID string) ([]*models.HabitStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	streaks := []*models.HabitStreak{}
	for _, st := range s.d.streaks {
		if st.UserID == userID && st.IsActive {
			streaks = append(streaks, &st)
		}
	}
	return streaks, nil
}

// Streaks returns every streak of the habit, active or not, oldest first.
func (s *Store) Streaks(habitID string) []models.HabitStreak {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var streaks []models.HabitStreak
	for _, st := range s.d.streaks {
		if st.HabitID == habitID {
			streaks = append(streaks, st)
		}
	}
	sort.Slice(streaks, func(i, j int) bool { return streaks[i].StartDay < streaks[j].StartDay })
	return streaks
}

func (s *Store) AddStreak(_ context.Context, streak *models.HabitStreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.d.streaks {
		if st.ID == streak.ID || (streak.IsActive && st.IsActive && st.HabitID == streak.HabitID) {
			return storage.ErrConflict
		}
	}
	s.d.streaks[streak.ID] = *streak
	return nil
}

func (s *Store) UpdateStreak(_ context.Context, streak *models.HabitStreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.streaks[streak.ID]; !ok {
		return storage.ErrNotFound
	}
	streak.UpdatedAt = time.Now()
	s.d.streaks[streak.ID] = *streak
	return nil
}

func (s *Store) FindDailyScore(_ context.Context, userID, day string) (*models.DailyScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.d.scores {
		if sc.UserID == userID && sc.Day == day {
			return &sc, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) AddDailyScore(_ context.Context, score *models.DailyScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.d.scores {
		if sc.ID == score.ID || (sc.UserID == score.UserID && sc.Day == score.Day) {
			return storage.ErrConflict
		}
	}
	s.d.scores[score.ID] = *score
	return nil
}

func (s *Store) UpdateDailyScore(_ context.Context, score *models.DailyScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.scores[score.ID]; !ok {
		return storage.ErrNotFound
	}
	score.UpdatedAt = time.Now()
	s.d.scores[score.ID] = *score
	return nil
}

func (s *Store) ListDailyScores(_ context.Context, userID, from, to string) ([]*models.DailyScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := []*models.DailyScore{}
	for _, sc := range s.d.scores {
		if sc.UserID == userID && sc.Day >= from && sc.Day <= to {
			scores = append(scores, &sc)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Day < scores[j].Day })
	return scores, nil
}

func (s *Store) FindLevelData(_ context.Context, userID string) (*models.UserLevelData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.d.levelData[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &d, nil
}

func (s *Store) SaveLevelData(_ context.Context, data *models.UserLevelData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data.UpdatedAt = time.Now()
	s.d.levelData[data.UserID] = *data
	return nil
}

func (s *Store) ListLevelData(_ context.Context) ([]*models.UserLevelData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := []*models.UserLevelData{}
	for _, d := range s.d.levelData {
		rows = append(rows, &d)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalXP > rows[j].TotalXP })
	return rows, nil
}

func (s *Store) ListLevelConfigs(_ context.Context) ([]*models.LevelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	levels := []*models.LevelConfig{}
	for _, l := range s.d.levels {
		levels = append(levels, &l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels, nil
}

func (s *Store) ListAchievements(_ context.Context) ([]*models.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Achievement{}
	for _, a := range s.d.achievements {
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XPReward != out[j].XPReward {
			return out[i].XPReward < out[j].XPReward
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListUserAchievements(_ context.Context, userID string) ([]*models.UserAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.UserAchievement{}
	for _, ua := range s.d.unlocked {
		if ua.UserID != userID {
			continue
		}
		if a, ok := s.d.achievements[ua.AchievementID]; ok {
			ua.Achievement = &a
		}
		out = append(out, &ua)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}

func (s *Store) HasUserAchievement(_ context.Context, userID, achievementID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ua := range s.d.unlocked {
		if ua.UserID == userID && ua.AchievementID == achievementID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddUserAchievement(_ context.Context, ua *models.UserAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.d.unlocked {
		if u.ID == ua.ID || (u.UserID == ua.UserID && u.AchievementID == ua.AchievementID) {
			return storage.ErrConflict
		}
	}
	s.d.unlocked[ua.ID] = *ua
	return nil
}

func (s *Store) AddChallenge(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.challenges[c.ID]; ok {
		return storage.ErrConflict
	}
	s.d.challenges[c.ID] = *c
	return nil
}

func (s *Store) FindChallenge(_ context.Context, id string) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.challenges[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListChallenges(_ context.Context, userID, activeOn string) ([]*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Challenge{}
	for _, c := range s.d.challenges {
		if c.UserID != userID || (activeOn != "" && !c.ActiveOn(activeOn)) {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate < out[j].EndDate })
	return out, nil
}

func (s *Store) UpdateChallenge(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.challenges[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	c.CreatedAt, c.UserID = old.CreatedAt, old.UserID
	c.UpdatedAt = time.Now()
	s.d.challenges[c.ID] = *c
	return nil
}

func (s *Store) DeleteChallenge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.challenges[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.challenges, id)
	return nil
}

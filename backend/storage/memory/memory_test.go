package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddUser(ctx, &models.User{ID: "u1", Username: "ana", Email: "ana@example.com"}))

	err := s.AddUser(ctx, &models.User{ID: "u2", Username: "other", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	user, err := s.FindUserByEmail(ctx, "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = s.FindUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AddHabit(ctx, &models.Habit{ID: "h1", UserID: "u1"}))
		return s.WithTx(ctx, func(ctx context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindHabit(ctx, "h1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntryAndStreakUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddHabit(ctx, &models.Habit{ID: "h1", UserID: "u1"}))

	require.NoError(t, s.AddEntry(ctx, &models.HabitEntry{ID: "e1", HabitID: "h1", UserID: "u1", Day: "2024-03-01"}))
	err := s.AddEntry(ctx, &models.HabitEntry{ID: "e2", HabitID: "h1", UserID: "u1", Day: "2024-03-01"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	require.NoError(t, s.AddStreak(ctx, &models.HabitStreak{ID: "s1", HabitID: "h1", IsActive: true}))
	err = s.AddStreak(ctx, &models.HabitStreak{ID: "s2", HabitID: "h1", IsActive: true})
	assert.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, s.AddStreak(ctx, &models.HabitStreak{ID: "s3", HabitID: "h1", IsActive: false}))

	require.NoError(t, s.DeleteHabit(ctx, "h1"))
	_, err = s.FindEntry(ctx, "h1", "2024-03-01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, s.Streaks("h1"))
}

func TestDeleteForumWithTopics(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddForum(ctx, &models.Forum{ID: "f1", Title: "General"}))
	require.NoError(t, s.AddTopic(ctx, &models.ForumTopic{ID: "t1", ForumID: "f1", Title: "Hi"}))
	require.NoError(t, s.AddReply(ctx, &models.ForumReply{ID: "r1", TopicID: "t1", Content: "hello"}))

	forum, err := s.FindForum(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, forum.TopicCount)

	topic, err := s.FindTopic(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, topic.ReplyCount)

	assert.ErrorIs(t, s.DeleteForum(ctx, "f1"), ErrForumHasTopics)

	require.NoError(t, s.DeleteTopic(ctx, "t1"))
	_, err = s.FindReply(ctx, "r1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, s.DeleteForum(ctx, "f1"))
}

func TestProgrammeTree(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &models.Programme{
		ContentMeta: models.ContentMeta{ID: "p1", AuthorID: "coach"},
		Title:       "Strength",
		WeeklyPlans: []*models.WeeklyPlan{{
			WeekNumber: 1,
			Title:      "Base",
			DailyTasks: []*models.DailyTask{{DayOfWeek: 2, Title: "Squat"}, {DayOfWeek: 1, Title: "Walk"}},
		}},
	}
	require.NoError(t, s.AddProgramme(ctx, p))

	got, err := s.FindProgramme(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got.WeeklyPlans, 1)
	plan := got.WeeklyPlans[0]
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "p1", plan.ProgrammeID)
	require.Len(t, plan.DailyTasks, 2)
	assert.Equal(t, "Walk", plan.DailyTasks[0].Title)
	assert.Equal(t, plan.ID, plan.DailyTasks[0].WeeklyPlanID)

	// Mutating the returned tree leaves the stored one untouched.
	plan.Title = "changed"
	again, err := s.FindProgramme(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Base", again.WeeklyPlans[0].Title)
}

func TestSubmitFormValidatorFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddForm(ctx, &models.Form{ID: "fm1", Title: "Intake", Fields: []*models.InputField{{Name: "age", Label: "Age", Type: models.FieldNumber}}}))

	invalid := errors.New("invalid")
	_, err := s.SubmitForm(ctx, "fm1", "u1", map[string]string{}, func(*models.Form, map[string]string) (map[string]string, error) {
		return nil, invalid
	})
	assert.ErrorIs(t, err, invalid)

	sub, err := s.SubmitForm(ctx, "fm1", "u1", map[string]string{"age": "30"}, func(_ *models.Form, a map[string]string) (map[string]string, error) {
		return a, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "30", sub.Answers["age"])

	subs, err := s.ListSubmissions(ctx, "fm1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.Recipe](func(r *models.Recipe) []string { return []string{r.Title, r.Description} })

	oats := &models.Recipe{Title: "Overnight oats"}
	require.NoError(t, repo.Create(ctx, oats))
	assert.NotEmpty(t, oats.ID)
	assert.Equal(t, models.StatusDraft, oats.Status)

	time.Sleep(time.Millisecond)
	soup := &models.Recipe{ContentMeta: models.ContentMeta{Status: models.StatusPublished}, Title: "Lentil soup"}
	require.NoError(t, repo.Create(ctx, soup))

	items, total, err := repo.List(ctx, storage.ListOptions{Status: models.StatusPublished})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Lentil soup", items[0].Title)

	items, total, err = repo.List(ctx, storage.ListOptions{Search: "OATS"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, oats.ID, items[0].ID)

	items, _, err = repo.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, soup.ID, items[0].ID)

	require.NoError(t, repo.Delete(ctx, oats.ID))
	_, err = repo.Get(ctx, oats.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddUser(ctx, &models.User{ID: "u1", Username: "a", Email: "a@x.io", Role: models.RoleUser}))
	require.NoError(t, s.AddUser(ctx, &models.User{ID: "u2", Username: "b", Email: "b@x.io", Role: models.RoleCoach}))
	require.NoError(t, s.AddHabit(ctx, &models.Habit{ID: "h1", UserID: "u1"}))
	require.NoError(t, s.AddEntry(ctx, &models.HabitEntry{ID: "e1", HabitID: "h1", UserID: "u1", Day: "2024-03-01", IsCompleted: true}))

	stats, err := s.Stats(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 1, stats.Coaches)
	assert.Equal(t, 1, stats.Habits)
	assert.Equal(t, 1, stats.CompletedToday)
}

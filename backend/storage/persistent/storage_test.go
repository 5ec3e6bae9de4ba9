package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is only set when TEST_DATABASE_URL points at a PostgreSQL server.
var store *BunStorage

// TestMain loads the environment, connects to the test database and migrates it.
// The database tests are skipped when no test database is configured.
func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		var err error
		store, err = Connect(context.Background(), dsn, 4)
		if err != nil {
			panic("Error initializing storage: " + err.Error())
		}
		if err := store.Migrate(context.Background()); err != nil {
			panic("Error migrating storage: " + err.Error())
		}
	}

	code := m.Run()
	if store != nil {
		store.Close()
	}
	os.Exit(code)
}

func requireStore(t *testing.T) *BunStorage {
	t.Helper()
	if store == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return store
}

func newTestUser(t *testing.T, s *BunStorage) *models.User {
	t.Helper()
	id := uuid.NewString()
	user := &models.User{
		ID:             id,
		Username:       "user_" + id[:8],
		Email:          fmt.Sprintf("%s@example.com", id[:8]),
		PasswordHash:   "hash",
		Role:           models.RoleUser,
		OnboardingStep: models.StepWelcome,
		Goals:          []string{},
	}
	require.NoError(t, s.AddUser(context.Background(), user))
	t.Cleanup(func() { _ = s.DeleteUser(context.Background(), id) })
	return user
}

func TestListOptionsPageSize(t *testing.T) {
	assert.Equal(t, 20, ListOptions{}.PageSize())
	assert.Equal(t, 5, ListOptions{Limit: 5}.PageSize())
	assert.Equal(t, 100, ListOptions{Limit: 1000}.PageSize())
}

func TestWithUpdatedAt(t *testing.T) {
	assert.Nil(t, withUpdatedAt(nil))

	columns := make([]string, 1, 4)
	columns[0] = "name"
	out := withUpdatedAt(columns)
	assert.Equal(t, []string{"name", "updated_at"}, out)
	assert.Len(t, columns, 1)
}

func TestWrapErr(t *testing.T) {
	assert.Nil(t, wrapErr(nil))
	other := errors.New("boom")
	assert.Equal(t, other, wrapErr(other))
}

func TestUserLookups(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)

	found, err := s.FindUserByEmail(ctx, strings.ToUpper(user.Email))
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = s.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	dup := *user
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.AddUser(ctx, &dup), ErrConflict)

	user.Bio = "lifting"
	require.NoError(t, s.UpdateUser(ctx, user, "bio"))
	found, err = s.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lifting", found.Bio)
}

func TestHabitEntryIsUniquePerDay(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)

	habit := &models.Habit{
		ID: uuid.NewString(), UserID: user.ID, Name: "Drink water",
		Category: models.CategoryHydration, TrackingType: models.TrackingBoolean,
		Frequency: models.FrequencyDaily, TargetCount: 1, Points: 10, IsActive: true,
	}
	require.NoError(t, s.AddHabit(ctx, habit))

	day := time.Now().Format(models.DayLayout)
	entry := &models.HabitEntry{ID: uuid.NewString(), HabitID: habit.ID, UserID: user.ID, Day: day, IsCompleted: true}
	require.NoError(t, s.AddEntry(ctx, entry))

	again := &models.HabitEntry{ID: uuid.NewString(), HabitID: habit.ID, UserID: user.ID, Day: day, IsCompleted: true}
	assert.ErrorIs(t, s.AddEntry(ctx, again), ErrConflict)

	n, err := s.CountCompletedEntries(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	streak := &models.HabitStreak{ID: uuid.NewString(), HabitID: habit.ID, UserID: user.ID, Length: 1, StartDay: day, LastDay: day, IsActive: true}
	require.NoError(t, s.AddStreak(ctx, streak))
	second := &models.HabitStreak{ID: uuid.NewString(), HabitID: habit.ID, UserID: user.ID, Length: 1, StartDay: day, LastDay: day, IsActive: true}
	assert.ErrorIs(t, s.AddStreak(ctx, second), ErrConflict)
}

func TestWithTxRollsBack(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)

	day := time.Now().Format(models.DayLayout)
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		score := &models.DailyScore{ID: uuid.NewString(), UserID: user.ID, Day: day, TotalPoints: 10}
		if err := s.AddDailyScore(ctx, score); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindDailyScore(ctx, user.ID, day)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForumWithTopicsCannotBeDeleted(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)

	forum := &models.Forum{ID: uuid.NewString(), Title: "General", CreatedBy: user.ID, IsActive: true}
	require.NoError(t, s.AddForum(ctx, forum))
	topic := &models.ForumTopic{ID: uuid.NewString(), ForumID: forum.ID, UserID: user.ID, Title: "Hi", Content: "Hello"}
	require.NoError(t, s.AddTopic(ctx, topic))

	n, err := s.CountTopics(ctx, forum.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Error(t, s.DeleteForum(ctx, forum.ID))

	require.NoError(t, s.DeleteTopic(ctx, topic.ID))
	require.NoError(t, s.DeleteForum(ctx, forum.ID))
}

func TestProgrammeTree(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)

	programme := &models.Programme{
		ContentMeta:   models.ContentMeta{ID: uuid.NewString(), Status: models.StatusDraft, AuthorID: user.ID},
		Title:         "Four weeks",
		DurationWeeks: 4,
		WeeklyPlans: []*models.WeeklyPlan{
			{WeekNumber: 2, Title: "Build", DailyTasks: []*models.DailyTask{{DayOfWeek: 1, Title: "Squat"}}},
			{WeekNumber: 1, Title: "Start", DailyTasks: []*models.DailyTask{{DayOfWeek: 3, Title: "Walk"}, {DayOfWeek: 1, Title: "Stretch"}}},
		},
	}
	require.NoError(t, s.AddProgramme(ctx, programme))
	t.Cleanup(func() { _ = s.DeleteProgramme(context.Background(), programme.ID) })

	found, err := s.FindProgramme(ctx, programme.ID)
	require.NoError(t, err)
	require.Len(t, found.WeeklyPlans, 2)
	assert.Equal(t, 1, found.WeeklyPlans[0].WeekNumber)
	require.Len(t, found.WeeklyPlans[0].DailyTasks, 2)
	assert.Equal(t, "Stretch", found.WeeklyPlans[0].DailyTasks[0].Title)
}

func TestRecipeRepository(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	user := newTestUser(t, s)
	recipes := NewRepository[models.Recipe](s, "title", "description")

	recipe := &models.Recipe{
		ContentMeta:  models.ContentMeta{AuthorID: user.ID, Status: models.StatusPublished},
		Title:        "Overnight oats " + uuid.NewString()[:6],
		Ingredients:  []string{"oats", "milk"},
		Instructions: []string{"mix", "wait"},
	}
	require.NoError(t, recipes.Create(ctx, recipe))
	t.Cleanup(func() { _ = recipes.Delete(context.Background(), recipe.ID) })

	items, total, err := recipes.List(ctx, ListOptions{Search: recipe.Title, Status: models.StatusPublished})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"oats", "milk"}, items[0].Ingredients)

	recipe.Calories = 350
	require.NoError(t, recipes.Update(ctx, recipe))
	got, err := recipes.Get(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, 350, got.Calories)

	require.NoError(t, recipes.Delete(ctx, recipe.ID))
	_, err = recipes.Get(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

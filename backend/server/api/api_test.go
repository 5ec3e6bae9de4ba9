package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/challenge"
	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/onboarding"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/auth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/context_key"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/memory"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process CacheInterface storing JSON like the Redis cache.
type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{items: map[string][]byte{}} }

func (c *mapCache) Connect(string) error { return nil }

func (c *mapCache) Disconnect() error { return nil }

func (c *mapCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetTTL(ctx, key, value, 0)
}

func (c *mapCache) SetTTL(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = b
	return nil
}

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	b, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string][]byte{}
	return nil
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// bearer mirrors the server's JWT middleware.
func bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := auth.ParseToken(token)
		if err != nil {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey.JwtErrorKey, err)))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextKey.WithUser(r.Context(), claims.ID, claims.Role)))
	})
}

type fixture struct {
	t       *testing.T
	store   *memory.Store
	cache   *mapCache
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Seed(context.Background(), growth.LevelConfigs(), growth.Catalogue))
	auth.InitAuth(store, "api-test-key", nil)

	g := growth.NewService(store)
	c := newMapCache()
	a := New(Config{
		Store:      store,
		Growth:     g,
		Challenges: challenge.NewService(store, g.ChallengeCompleted),
		Onboarding: onboarding.NewService(store),
		Cache:      c,
		Content: Content{
			Recipes: memory.NewRepository[models.Recipe](func(r *models.Recipe) []string { return []string{r.Title} }),
		},
	})
	r := mux.NewRouter()
	r.Use(bearer)
	a.Routes(r)
	return &fixture{t: t, store: store, cache: c, handler: r}
}

// user creates a user with role and returns an access token for it.
func (f *fixture) user(name string, role models.Role) (string, *models.User) {
	f.t.Helper()
	u := &models.User{
		ID:             uuid.NewString(),
		Username:       name,
		Email:          name + "@example.com",
		Role:           role,
		OnboardingStep: models.StepWelcome,
	}
	require.NoError(f.t, f.store.AddUser(context.Background(), u))
	token, _, err := auth.CreateAuthToken(u)
	require.NoError(f.t, err)
	return token, u
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorBody](t, rec).Error
}

func TestAuthGuards(t *testing.T) {
	f := newFixture(t)
	userToken, _ := f.user("member", models.RoleUser)

	rec := f.do(http.MethodGet, "/api/habits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", errorOf(t, rec))

	rec = f.do(http.MethodGet, "/api/habits", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/habits", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/recipes", userToken, map[string]interface{}{"title": "Oats"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHabitToggleEndpoint(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("runner", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/habits", token, map[string]interface{}{"name": "Run", "category": "EXERCISE", "points": 15})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	habit := decodeBody[models.Habit](t, rec)

	rec = f.do(http.MethodPost, "/api/habits/"+habit.ID+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[growth.ToggleResult](t, rec)
	assert.True(t, first.Completed)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, 15, first.DailyScore.TotalPoints)
	assert.Equal(t, 15, first.DailyScore.ExerciseScore)

	rec = f.do(http.MethodPost, "/api/habits/"+habit.ID+"/toggle", token, map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[growth.ToggleResult](t, rec)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, second.Streak)
	assert.Equal(t, 15, second.DailyScore.TotalPoints)

	rec = f.do(http.MethodPost, "/api/habits/"+habit.ID+"/toggle", token, map[string]bool{"completed": false})
	require.Equal(t, http.StatusOK, rec.Code)
	undone := decodeBody[growth.ToggleResult](t, rec)
	assert.False(t, undone.Completed)
	assert.Equal(t, 1, undone.Streak)
}

func TestHabitsAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.user("owner", models.RoleUser)
	other, _ := f.user("other", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/habits", owner, map[string]interface{}{"name": "Sleep early", "category": "SLEEP"})
	require.Equal(t, http.StatusCreated, rec.Code)
	habit := decodeBody[models.Habit](t, rec)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/habits/"+habit.ID, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/habits/"+habit.ID+"/toggle", other, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/habits/"+habit.ID, other, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/habits/"+habit.ID, owner, nil).Code)
}

func TestHabitValidation(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("sloppy", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/habits", token, map[string]interface{}{"name": "Read", "category": "READING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Contains(t, body.Fields, "category")
}

func TestDashboardAndWeekly(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("dash", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/habits", token, map[string]interface{}{"name": "Water", "category": "HYDRATION"})
	require.Equal(t, http.StatusCreated, rec.Code)
	habit := decodeBody[models.Habit](t, rec)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/habits/"+habit.ID+"/toggle", token, nil).Code)

	rec = f.do(http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/progress/weekly", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	weekly := decodeBody[growth.WeeklyProgress](t, rec)
	assert.Len(t, weekly.Days, 7)
}

func TestChallengeProgressEndpoint(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("climber", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/challenges", token, map[string]interface{}{
		"title": "10 runs", "startDate": "2024-01-01", "endDate": "2099-12-31", "targetValue": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[models.Challenge](t, rec)

	rec = f.do(http.MethodPost, "/api/challenges/"+c.ID+"/progress", token, map[string]int{"value": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[progressResponse](t, rec)
	assert.False(t, res.Challenge.IsCompleted)
	assert.False(t, res.JustCompleted)

	rec = f.do(http.MethodPost, "/api/challenges/"+c.ID+"/progress", token, map[string]int{"delta": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[progressResponse](t, rec)
	assert.True(t, res.Challenge.IsCompleted)
	assert.True(t, res.JustCompleted)

	rec = f.do(http.MethodPost, "/api/challenges/"+c.ID+"/progress", token, map[string]int{"value": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[progressResponse](t, rec)
	assert.True(t, res.Challenge.IsCompleted)
	assert.False(t, res.JustCompleted)

	rec = f.do(http.MethodPost, "/api/challenges", token, map[string]interface{}{
		"title": "backwards", "startDate": "2024-02-01", "endDate": "2024-01-01", "targetValue": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteForumWithTopicsIsRejected(t *testing.T) {
	f := newFixture(t)
	admin, _ := f.user("admin", models.RoleAdmin)
	member, _ := f.user("member", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/forums", admin, map[string]string{"title": "Nutrition"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	forum := decodeBody[models.Forum](t, rec)

	rec = f.do(http.MethodPost, "/api/forums/"+forum.ID+"/topics", member, map[string]interface{}{
		"title": "Protein at night?", "content": "Does it matter?", "isPinned": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	topic := decodeBody[models.ForumTopic](t, rec)
	assert.False(t, topic.IsPinned)

	rec = f.do(http.MethodDelete, "/api/forums/"+forum.ID, admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot delete a forum that has topics", errorOf(t, rec))

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/topics/"+topic.ID, member, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/forums/"+forum.ID, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/forums/"+forum.ID, "", nil).Code)
}

func TestForumReplies(t *testing.T) {
	f := newFixture(t)
	coach, _ := f.user("coach", models.RoleCoach)
	author, _ := f.user("author", models.RoleUser)
	stranger, _ := f.user("stranger", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/forums", coach, map[string]string{"title": "Training"})
	require.Equal(t, http.StatusCreated, rec.Code)
	forum := decodeBody[models.Forum](t, rec)

	rec = f.do(http.MethodPost, "/api/forums/"+forum.ID+"/topics", author, map[string]string{"title": "Deadlifts", "content": "Form check"})
	require.Equal(t, http.StatusCreated, rec.Code)
	topic := decodeBody[models.ForumTopic](t, rec)

	rec = f.do(http.MethodPost, "/api/topics/"+topic.ID+"/replies", stranger, map[string]string{"content": "Looks fine"})
	require.Equal(t, http.StatusCreated, rec.Code)
	reply := decodeBody[models.ForumReply](t, rec)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/replies/"+reply.ID, author, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/topics/"+topic.ID, stranger, nil).Code)

	rec = f.do(http.MethodGet, "/api/topics/"+topic.ID+"/replies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.ForumReply](t, rec), 1)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/replies/"+reply.ID, stranger, nil).Code)
}

func TestContentVisibility(t *testing.T) {
	f := newFixture(t)
	coach, _ := f.user("chef", models.RoleCoach)
	otherCoach, _ := f.user("sous", models.RoleCoach)

	recipe := map[string]interface{}{
		"title":        "Overnight oats",
		"ingredients":  []string{"oats", "milk"},
		"instructions": []string{"mix", "wait"},
	}
	rec := f.do(http.MethodPost, "/api/recipes", coach, recipe)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draft := decodeBody[models.Recipe](t, rec)
	assert.Equal(t, models.StatusDraft, draft.Status)

	rec = f.do(http.MethodGet, "/api/recipes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[page[models.Recipe]](t, rec).Total)
	assert.Equal(t, 1, f.cache.len())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/recipes/"+draft.ID, "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/recipes/"+draft.ID, coach, nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPatch, "/api/recipes/"+draft.ID, otherCoach, map[string]string{"status": "PUBLISHED"}).Code)

	rec = f.do(http.MethodPatch, "/api/recipes/"+draft.ID, coach, map[string]string{"status": "PUBLISHED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, f.cache.len())

	rec = f.do(http.MethodGet, "/api/recipes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[page[models.Recipe]](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Overnight oats", list.Items[0].Title)
	assert.Equal(t, []string{"oats", "milk"}, list.Items[0].Ingredients)

	rec = f.do(http.MethodPatch, "/api/recipes/"+draft.ID, coach, map[string]string{"status": "LIVE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormSubmission(t *testing.T) {
	f := newFixture(t)
	coach, _ := f.user("intake", models.RoleCoach)
	member, _ := f.user("client", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/forms", coach, map[string]interface{}{
		"title": "Intake",
		"fields": []map[string]interface{}{
			{"name": "age", "label": "Age", "type": "NUMBER", "required": true},
			{"name": "goal", "label": "Goal", "type": "SELECT", "options": []string{"lose", "gain"}},
			{"name": "start", "label": "Start", "type": "DATE"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	form := decodeBody[models.Form](t, rec)

	rec = f.do(http.MethodPost, "/api/forms/"+form.ID+"/submit", member, map[string]interface{}{
		"answers": map[string]string{"goal": "maintain", "start": "tomorrow", "extra": "x"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "is required", body.Fields["age"])
	assert.Contains(t, body.Fields, "goal")
	assert.Contains(t, body.Fields, "start")
	assert.Contains(t, body.Fields, "extra")

	rec = f.do(http.MethodPost, "/api/forms/"+form.ID+"/submit", member, map[string]interface{}{
		"answers": map[string]string{"age": " 31 ", "goal": "gain"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decodeBody[models.FormSubmission](t, rec)
	assert.Equal(t, map[string]string{"age": "31", "goal": "gain"}, sub.Answers)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/forms/"+form.ID+"/submissions", member, nil).Code)
	rec = f.do(http.MethodGet, "/api/forms/"+form.ID+"/submissions", coach, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.FormSubmission](t, rec), 1)
}

func TestFormRejectsSelectWithoutOptions(t *testing.T) {
	f := newFixture(t)
	coach, _ := f.user("builder", models.RoleCoach)
	rec := f.do(http.MethodPost, "/api/forms", coach, map[string]interface{}{
		"title":  "Broken",
		"fields": []map[string]interface{}{{"name": "pick", "label": "Pick", "type": "SELECT"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	f := newFixture(t)
	admin, adminUser := f.user("root", models.RoleAdmin)
	_, member := f.user("pupil", models.RoleUser)

	rec := f.do(http.MethodPatch, "/api/admin/users/"+adminUser.ID+"/role", admin, map[string]string{"role": "USER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPatch, "/api/admin/users/"+member.ID+"/role", admin, map[string]string{"role": "COACH"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err := f.store.FindUserByID(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoach, stored.Role)

	rec = f.do(http.MethodGet, "/api/admin/stats", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserLevel(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("leveler", models.RoleUser)

	rec := f.do(http.MethodGet, "/api/user/level", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	level := decodeBody[growth.LevelStatus](t, rec)
	assert.Equal(t, 1, level.CurrentLevel)
	assert.Equal(t, 0, level.TotalXP)

	rec = f.do(http.MethodPost, "/api/user/level", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAvatarUploadWithoutMedia(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("selfie", models.RoleUser)
	rec := f.do(http.MethodPost, "/api/user/avatar", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOnboardingOutOfOrder(t *testing.T) {
	f := newFixture(t)
	token, _ := f.user("newbie", models.RoleUser)

	rec := f.do(http.MethodPost, "/api/onboarding/PROFILE", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/onboarding", token, map[string]interface{}{"step": "WELCOME"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

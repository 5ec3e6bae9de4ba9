package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/context_key"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string        `json:"message"`
		Path    []interface{} `json:"path"`
	} `json:"errors"`
}

type fixture struct {
	t       *testing.T
	store   *memory.Store
	recipes *memory.Repository[models.Recipe, *models.Recipe]
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	store := memory.New()
	require.NoError(t, store.Seed(context.Background(), growth.LevelConfigs(), growth.Catalogue))
	recipes := memory.NewRepository[models.Recipe](func(r *models.Recipe) []string { return []string{r.Title} })
	h := Handler(Config{
		Growth:  growth.NewService(store),
		Users:   store,
		Recipes: recipes,
	})
	return &fixture{t: t, store: store, recipes: recipes, handler: h}
}

// query posts a GraphQL document, as userID when it is not empty.
func (f *fixture) query(userID, query string, variables map[string]interface{}) response {
	f.t.Helper()
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	require.NoError(f.t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(contextKey.WithUser(req.Context(), userID, models.RoleUser))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())

	var res response
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func TestRecipesArePublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	published := &models.Recipe{Title: "Protein pancakes", Ingredients: []string{"eggs", "oats"}, Instructions: []string{"blend", "fry"}}
	published.Status = models.StatusPublished
	require.NoError(t, f.recipes.Create(ctx, published))
	require.NoError(t, f.recipes.Create(ctx, &models.Recipe{Title: "Secret draft"}))

	res := f.query("", `{ recipes { id title ingredients } }`, nil)
	require.Empty(t, res.Errors)

	var data struct {
		Recipes []struct {
			ID          string   `json:"id"`
			Title       string   `json:"title"`
			Ingredients []string `json:"ingredients"`
		} `json:"recipes"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.Len(t, data.Recipes, 1)
	assert.Equal(t, published.ID, data.Recipes[0].ID)
	assert.Equal(t, []string{"eggs", "oats"}, data.Recipes[0].Ingredients)

	res = f.query("", `query($id: ID!) { recipe(id: $id) { title } }`, map[string]interface{}{"id": "missing"})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"recipe":null}`, string(res.Data))
}

func TestCoaches(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddUser(context.Background(), &models.User{ID: "c1", Username: "coachy", Email: "c@example.com", Role: models.RoleCoach}))
	require.NoError(t, f.store.AddUser(context.Background(), &models.User{ID: "u1", Username: "member", Email: "m@example.com", Role: models.RoleUser}))

	res := f.query("", `{ coaches { id username } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"coaches":[{"id":"c1","username":"coachy"}]}`, string(res.Data))
}

func TestHabitsRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	res := f.query("", `{ habits { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "authentication required", res.Errors[0].Message)
	assert.Equal(t, []interface{}{"habits"}, res.Errors[0].Path)
	assert.Equal(t, "null", string(res.Data))
}

func TestNonNullRootErrorNullsData(t *testing.T) {
	f := newFixture(t)
	res := f.query("", `{ me { id } recipes { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "authentication required", res.Errors[0].Message)
	assert.Equal(t, []interface{}{"me"}, res.Errors[0].Path)
	assert.Equal(t, "null", string(res.Data))
}

func TestBestDayIsNullOnEmptyWeek(t *testing.T) {
	f := newFixture(t)
	res := f.query("u1", `{ weeklyProgress { totalPoints activeDays bestDay } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"weeklyProgress":{"totalPoints":0,"activeDays":0,"bestDay":null}}`, string(res.Data))
}

type box struct {
	Name *string `json:"name"`
}

func TestNullPropagatesToNullableParent(t *testing.T) {
	named := "full"
	es := &executableSchema{
		schema: gqlparser.MustLoadSchema(&ast.Source{Name: "test.graphql", Input: `
type Box { name: String! }
type Query { box: Box, boxes: [Box!], strict: [Box]! }
`}),
		queries: map[string]resolver{
			"box":    func(context.Context, map[string]interface{}) (interface{}, error) { return &box{}, nil },
			"boxes":  func(context.Context, map[string]interface{}) (interface{}, error) { return []*box{{Name: &named}, {}}, nil },
			"strict": func(context.Context, map[string]interface{}) (interface{}, error) { return []*box{{Name: &named}, {}}, nil },
		},
	}
	srv := handler.NewDefaultServer(es)
	f := &fixture{t: t, handler: srv}

	res := f.query("", `{ box { name } boxes { name } strict { name } }`, nil)
	assert.JSONEq(t, `{"box":null,"boxes":null,"strict":[{"name":"full"},null]}`, string(res.Data))
	require.Len(t, res.Errors, 3)
	assert.Equal(t, []interface{}{"box", "name"}, res.Errors[0].Path)
	assert.Equal(t, []interface{}{"boxes", float64(1), "name"}, res.Errors[1].Path)
	assert.Equal(t, []interface{}{"strict", float64(1), "name"}, res.Errors[2].Path)
}

func TestCreateAndToggleHabit(t *testing.T) {
	f := newFixture(t)

	res := f.query("u1", `mutation($in: HabitInput!) { createHabit(input: $in) { id name category points } }`,
		map[string]interface{}{"in": map[string]interface{}{"name": "Meditate", "category": "MINDSET", "points": 20}})
	require.Empty(t, res.Errors)
	var created struct {
		CreateHabit struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			Points   int    `json:"points"`
		} `json:"createHabit"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &created))
	assert.Equal(t, "MINDSET", created.CreateHabit.Category)
	assert.Equal(t, 20, created.CreateHabit.Points)

	toggle := `mutation($id: ID!) { toggleHabit(id: $id) { completed changed streak dailyScore { totalPoints mindsetScore } } }`
	for i, changed := range []bool{true, false} {
		res = f.query("u1", toggle, map[string]interface{}{"id": created.CreateHabit.ID})
		require.Empty(t, res.Errors, "toggle %d", i)
		var toggled struct {
			ToggleHabit struct {
				Completed  bool `json:"completed"`
				Changed    bool `json:"changed"`
				Streak     int  `json:"streak"`
				DailyScore struct {
					TotalPoints  int `json:"totalPoints"`
					MindsetScore int `json:"mindsetScore"`
				} `json:"dailyScore"`
			} `json:"toggleHabit"`
		}
		require.NoError(t, json.Unmarshal(res.Data, &toggled))
		assert.True(t, toggled.ToggleHabit.Completed)
		assert.Equal(t, changed, toggled.ToggleHabit.Changed)
		assert.Equal(t, 1, toggled.ToggleHabit.Streak)
		assert.Equal(t, 20, toggled.ToggleHabit.DailyScore.TotalPoints)
		assert.Equal(t, 20, toggled.ToggleHabit.DailyScore.MindsetScore)
	}

	res = f.query("u2", `query($id: ID!) { habit(id: $id) { id } }`, map[string]interface{}{"id": created.CreateHabit.ID})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"habit":null}`, string(res.Data))

	res = f.query("u1", `{ habits { name } level { currentLevel totalXp } }`, nil)
	require.Empty(t, res.Errors)
	var after struct {
		Habits []struct {
			Name string `json:"name"`
		} `json:"habits"`
		Level struct {
			CurrentLevel int `json:"currentLevel"`
			TotalXP      int `json:"totalXp"`
		} `json:"level"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &after))
	require.Len(t, after.Habits, 1)
	assert.Equal(t, "Meditate", after.Habits[0].Name)
	assert.GreaterOrEqual(t, after.Level.TotalXP, 20)
	assert.GreaterOrEqual(t, after.Level.CurrentLevel, 1)
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(`{"query":"{ habits { nope } }"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "nope")
}

func TestIntrospection(t *testing.T) {
	f := newFixture(t)
	res := f.query("", `{ __type(name: "Habit") { name kind } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"__type":{"name":"Habit","kind":"OBJECT"}}`, string(res.Data))
}

// Package graph serves the GraphQL endpoint: public recipe and coach queries
// and the authenticated habit resolvers.
package graph

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/context_key"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var sdl string

// CachePrefix prefixes the cached public query results.
const CachePrefix = "public:graphql:"

var errUnauthenticated = errors.New("authentication required")

// Recipes is the read side of the recipe repository.
type Recipes interface {
	Get(ctx context.Context, id string) (*models.Recipe, error)
	List(ctx context.Context, opts storage.ListOptions) ([]*models.Recipe, int, error)
}

// Users looks up accounts.
type Users interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
}

// Config holds the resolver dependencies. Cache may be nil.
type Config struct {
	Growth  *growth.Service
	Users   Users
	Recipes Recipes
	Cache   cache.CacheInterface
}

// Coach is the public profile of a coach.
type Coach struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatarUrl"`
}

type resolvers struct {
	Config
}

// NewExecutableSchema parses the embedded schema and binds it to the resolvers.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	if cfg.Cache == nil {
		cfg.Cache = cache.NopCache{}
	}
	r := &resolvers{Config: cfg}
	return &executableSchema{
		schema: gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl, BuiltIn: false}),
		queries: map[string]resolver{
			"recipes":        r.recipes,
			"recipe":         r.recipe,
			"coaches":        r.coaches,
			"me":             r.me,
			"habits":         r.habits,
			"habit":          r.habit,
			"dailyScore":     r.dailyScore,
			"weeklyProgress": r.weeklyProgress,
			"level":          r.level,
		},
		mutations: map[string]resolver{
			"createHabit": r.createHabit,
			"toggleHabit": r.toggleHabit,
			"deleteHabit": r.deleteHabit,
		},
	}
}

// Handler returns the GraphQL HTTP handler.
func Handler(cfg Config) http.Handler {
	return handler.NewDefaultServer(NewExecutableSchema(cfg))
}

func userID(ctx context.Context) (string, error) {
	id := contextKey.UserID(ctx)
	if id == "" {
		if err := contextKey.JwtError(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", errUnauthenticated, err)
		}
		return "", errUnauthenticated
	}
	return id, nil
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

func argBool(args map[string]interface{}, key string, fallback bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return fallback
}

// cached returns the value stored under key, or loads and stores it.
func cached[V any](ctx context.Context, c cache.CacheInterface, key string, load func() (V, error)) (V, error) {
	var v V
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("cache read failed", "key", key, "err", err)
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		logger.Warn("cache write failed", "key", key, "err", err)
	}
	return v, nil
}

func (r *resolvers) recipes(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	opts := storage.ListOptions{
		Search: argString(args, "search"),
		Limit:  argInt(args, "limit", 20),
		Status: models.StatusPublished,
	}
	key := CachePrefix + "recipes:" + strconv.Itoa(opts.PageSize()) + ":" + opts.Search
	return cached(ctx, r.Cache, key, func() ([]*models.Recipe, error) {
		items, _, err := r.Recipes.List(ctx, opts)
		if items == nil {
			items = []*models.Recipe{}
		}
		return items, err
	})
}

func (r *resolvers) recipe(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id := argString(args, "id")
	recipe, err := cached(ctx, r.Cache, CachePrefix+"recipe:"+id, func() (*models.Recipe, error) {
		recipe, err := r.Recipes.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return recipe, err
	})
	if err != nil || recipe == nil || recipe.Status != models.StatusPublished {
		return nil, err
	}
	return recipe, nil
}

func (r *resolvers) coaches(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return cached(ctx, r.Cache, CachePrefix+"coaches", func() ([]Coach, error) {
		users, err := r.Users.ListUsersByRole(ctx, models.RoleCoach)
		if err != nil {
			return nil, err
		}
		coaches := make([]Coach, 0, len(users))
		for _, u := range users {
			coaches = append(coaches, Coach{
				ID:        u.ID,
				Username:  u.Username,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Bio:       u.Bio,
				AvatarURL: u.AvatarURL,
			})
		}
		return coaches, nil
	})
}

func (r *resolvers) me(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Users.FindUserByID(ctx, id)
}

func (r *resolvers) habits(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Growth.ListHabits(ctx, id, argBool(args, "activeOnly", false))
}

func (r *resolvers) habit(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	habit, err := r.Growth.GetHabit(ctx, id, argString(args, "id"))
	if errors.Is(err, growth.ErrHabitNotFound) {
		return nil, nil
	}
	return habit, err
}

func (r *resolvers) dailyScore(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Growth.DailyScore(ctx, id, argString(args, "day"))
}

func (r *resolvers) weeklyProgress(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Growth.WeeklyProgress(ctx, id)
}

func (r *resolvers) level(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Growth.GetLevel(ctx, id)
}

func (r *resolvers) createHabit(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(args["input"])
	if err != nil {
		return nil, err
	}
	var input growth.HabitInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return r.Growth.CreateHabit(ctx, id, input)
}

func (r *resolvers) toggleHabit(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Growth.ToggleHabit(ctx, id, argString(args, "id"), argBool(args, "completed", true), argInt(args, "value", 0))
}

func (r *resolvers) deleteHabit(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Growth.DeleteHabit(ctx, id, argString(args, "id")); err != nil {
		return nil, err
	}
	return true, nil
}

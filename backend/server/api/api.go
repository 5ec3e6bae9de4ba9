// Package api implements the REST routes under /api.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/challenge"
	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/onboarding"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/auth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/context_key"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Error is an error carrying the HTTP status it is reported with.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) *Error { return &Error{Status: http.StatusBadRequest, Message: msg} }

var (
	errUnauthorized = &Error{Status: http.StatusUnauthorized, Message: "authentication required"}
	errForbidden    = &Error{Status: http.StatusForbidden, Message: "forbidden"}
	errNotFound     = &Error{Status: http.StatusNotFound, Message: "not found"}
)

// Uploader stores an image and returns its public URL.
type Uploader interface {
	UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, error)
}

// ContentRepo is the CRUD surface of one content table.
type ContentRepo[T any, PT interface {
	*T
	models.Content
}] interface {
	Create(ctx context.Context, item PT) error
	Get(ctx context.Context, id string) (PT, error)
	List(ctx context.Context, opts storage.ListOptions) ([]PT, int, error)
	Update(ctx context.Context, item PT) error
	Delete(ctx context.Context, id string) error
}

// Content groups the content repositories.
type Content struct {
	Media     ContentRepo[models.MediaContent, *models.MediaContent]
	Recipes   ContentRepo[models.Recipe, *models.Recipe]
	Exercises ContentRepo[models.Exercise, *models.Exercise]
	Blog      ContentRepo[models.BlogPost, *models.BlogPost]
	Services  ContentRepo[models.Service, *models.Service]
}

// Config holds the dependencies of the API. Activity, Cache and Media may be
// left nil.
type Config struct {
	Store      storage.StorageInterface
	Growth     *growth.Service
	Challenges *challenge.Service
	Onboarding *onboarding.Service
	Activity   activity.Recorder
	Cache      cache.CacheInterface
	Media      Uploader
	Content    Content
	Location   *time.Location
}

type API struct {
	Config
}

func New(cfg Config) *API {
	if cfg.Activity == nil {
		cfg.Activity = activity.NopRecorder{}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NopCache{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &API{Config: cfg}
}

// Routes registers every /api route on r. authMiddleware wraps the
// /api/auth routes only.
func (a *API) Routes(r *mux.Router, authMiddleware ...mux.MiddlewareFunc) {
	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.Use(authMiddleware...)
	a.authRoutes(authRouter)

	a.userRoutes(r)
	a.habitRoutes(r)
	a.challengeRoutes(r)
	a.onboardingRoutes(r)
	a.forumRoutes(r)
	a.contentRoutes(r)
	a.programmeRoutes(r)
	a.formRoutes(r)
	a.adminRoutes(r)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "err", err)
	}
}

// writeError classifies err and writes it. Unclassified errors are logged and
// reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr  *Error
		verr    *utils.ValidationError
		stepErr *onboarding.StepError
	)
	switch {
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.Status, errorBody{Error: apiErr.Message})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Fields: verr.Fields})
	case errors.As(err, &stepErr),
		errors.Is(err, onboarding.ErrAlreadyCompleted),
		errors.Is(err, growth.ErrHabitInactive),
		errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, auth.ErrAuthFailed), errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, growth.ErrHabitNotFound),
		errors.Is(err, challenge.ErrNotFound),
		errors.Is(err, onboarding.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "user", contextKey.UserID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("invalid JSON body")
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func listOptions(r *http.Request) storage.ListOptions {
	q := r.URL.Query()
	return storage.ListOptions{
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
		Search:   q.Get("search"),
		Status:   models.ContentStatus(q.Get("status")),
		AuthorID: q.Get("author"),
	}
}

type page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// public adapts h, writing any error it returns.
func public(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

// authed rejects requests without a verified access token with 401.
func authed(h handlerFunc) http.HandlerFunc {
	return public(func(w http.ResponseWriter, r *http.Request) error {
		if contextKey.UserID(r.Context()) == "" {
			if err := contextKey.JwtError(r.Context()); err != nil {
				return &Error{Status: http.StatusUnauthorized, Message: err.Error()}
			}
			return errUnauthorized
		}
		return h(w, r)
	})
}

// roles rejects authenticated users whose role is not listed with 403.
func roles(h handlerFunc, allowed ...models.Role) http.HandlerFunc {
	return authed(func(w http.ResponseWriter, r *http.Request) error {
		if !hasRole(r.Context(), allowed...) {
			return errForbidden
		}
		return h(w, r)
	})
}

func hasRole(ctx context.Context, allowed ...models.Role) bool {
	role := contextKey.Role(ctx)
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func userID(r *http.Request) string {
	return contextKey.UserID(r.Context())
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/gorilla/mux"
)

// PublicCachePrefix prefixes every cached public response.
const PublicCachePrefix = "public:"

func (a *API) contentRoutes(r *mux.Router) {
	r.HandleFunc("/api/media/upload", roles(a.uploadMedia, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPost)

	registerContent(r, "/api/media", a.Content.Media, a.Cache)
	registerContent(r, "/api/recipes", a.Content.Recipes, a.Cache)
	registerContent(r, "/api/exercises", a.Content.Exercises, a.Cache)
	registerContent(r, "/api/blog", a.Content.Blog, a.Cache)
	registerContent(r, "/api/services", a.Content.Services, a.Cache)
}

type contentHandlers[T any, PT interface {
	*T
	models.Content
}] struct {
	path  string
	repo  ContentRepo[T, PT]
	cache cache.CacheInterface
}

// registerContent mounts list, get, create, update and delete for one content
// table. Reads are public and see only published items unless the caller is a
// coach or an admin. Writes need one of those roles; coaches may only change
// their own items.
func registerContent[T any, PT interface {
	*T
	models.Content
}](r *mux.Router, path string, repo ContentRepo[T, PT], c cache.CacheInterface) {
	if repo == nil {
		return
	}
	h := &contentHandlers[T, PT]{path: path, repo: repo, cache: c}
	r.HandleFunc(path, public(h.list)).Methods(http.MethodGet)
	r.HandleFunc(path, roles(h.create, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc(path+"/{id}", public(h.get)).Methods(http.MethodGet)
	r.HandleFunc(path+"/{id}", roles(h.update, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc(path+"/{id}", roles(h.delete, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodDelete)
}

func isAuthor(ctx context.Context) bool {
	return hasRole(ctx, models.RoleCoach, models.RoleAdmin)
}

func (h *contentHandlers[T, PT]) cacheKey(r *http.Request) string {
	return PublicCachePrefix + r.URL.Path + "?" + r.URL.RawQuery
}

// cached serves key from the cache when present, otherwise stores the result of load.
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

func (h *contentHandlers[T, PT]) invalidate(ctx context.Context) {
	if _, err := h.cache.DeletePrefix(ctx, PublicCachePrefix+h.path); err != nil {
		logger.Warn("cache invalidation failed", "prefix", h.path, "err", err)
	}
}

func (h *contentHandlers[T, PT]) list(w http.ResponseWriter, r *http.Request) error {
	opts := listOptions(r)
	if opts.Status != "" && !opts.Status.Valid() {
		return utils.Invalid("status", "must be one of DRAFT PUBLISHED ARCHIVED")
	}
	if !isAuthor(r.Context()) {
		opts.Status = models.StatusPublished
		res, err := cached(r.Context(), h.cache, h.cacheKey(r), func() (page[PT], error) {
			items, total, err := h.repo.List(r.Context(), opts)
			if items == nil {
				items = []PT{}
			}
			return page[PT]{Items: items, Total: total}, err
		})
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, res)
		return nil
	}
	items, total, err := h.repo.List(r.Context(), opts)
	if err != nil {
		return err
	}
	if items == nil {
		items = []PT{}
	}
	writeJSON(w, http.StatusOK, page[PT]{Items: items, Total: total})
	return nil
}

func (h *contentHandlers[T, PT]) get(w http.ResponseWriter, r *http.Request) error {
	item, err := h.repo.Get(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if item.Meta().Status != models.StatusPublished && !isAuthor(r.Context()) {
		return errNotFound
	}
	writeJSON(w, http.StatusOK, item)
	return nil
}

func validateContent(item models.Content) error {
	if s := item.Meta().Status; s != "" && !s.Valid() {
		return utils.Invalid("status", "must be one of DRAFT PUBLISHED ARCHIVED")
	}
	return utils.ValidateStruct(item)
}

func (h *contentHandlers[T, PT]) create(w http.ResponseWriter, r *http.Request) error {
	item := PT(new(T))
	if err := decode(r, item); err != nil {
		return err
	}
	if err := validateContent(item); err != nil {
		return err
	}
	meta := item.Meta()
	meta.ID = ""
	meta.AuthorID = userID(r)
	if err := h.repo.Create(r.Context(), item); err != nil {
		return err
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, item)
	return nil
}

// owned loads the item and checks the caller may change it.
func (h *contentHandlers[T, PT]) owned(r *http.Request) (PT, error) {
	item, err := h.repo.Get(r.Context(), pathID(r))
	if err != nil {
		return nil, err
	}
	if item.Meta().AuthorID != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return nil, errForbidden
	}
	return item, nil
}

// update decodes the body over the stored item, so omitted fields keep their values.
func (h *contentHandlers[T, PT]) update(w http.ResponseWriter, r *http.Request) error {
	item, err := h.owned(r)
	if err != nil {
		return err
	}
	prev := *item.Meta()
	if err := decode(r, item); err != nil {
		return err
	}
	meta := item.Meta()
	meta.ID, meta.AuthorID, meta.CreatedAt = prev.ID, prev.AuthorID, prev.CreatedAt
	if meta.Status == "" {
		meta.Status = prev.Status
	}
	if err := validateContent(item); err != nil {
		return err
	}
	if err := h.repo.Update(r.Context(), item); err != nil {
		return err
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, item)
	return nil
}

func (h *contentHandlers[T, PT]) delete(w http.ResponseWriter, r *http.Request) error {
	item, err := h.owned(r)
	if err != nil {
		return err
	}
	if err := h.repo.Delete(r.Context(), item.Meta().ID); err != nil {
		return err
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// uploadMedia stores the uploaded file and creates a MediaContent pointing at it.
func (a *API) uploadMedia(w http.ResponseWriter, r *http.Request) error {
	if a.Content.Media == nil {
		return errNotFound
	}
	url, err := a.upload(w, r, "media", "")
	if err != nil {
		return err
	}
	media := &models.MediaContent{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		Type:        models.MediaType(strings.ToUpper(r.FormValue("type"))),
		URL:         url,
		Category:    models.HabitCategory(strings.ToUpper(r.FormValue("category"))),
	}
	media.Status = models.ContentStatus(strings.ToUpper(r.FormValue("status")))
	media.AuthorID = userID(r)
	if media.Type == "" {
		media.Type = models.MediaImage
	}
	if media.Category == "" {
		media.Category = models.CategoryOther
	}
	if err := validateContent(media); err != nil {
		return err
	}
	if err := a.Content.Media.Create(r.Context(), media); err != nil {
		return err
	}
	if _, err := a.Cache.DeletePrefix(r.Context(), PublicCachePrefix+"/api/media"); err != nil {
		logger.Warn("cache invalidation failed", "prefix", "/api/media", "err", err)
	}
	writeJSON(w, http.StatusCreated, media)
	return nil
}

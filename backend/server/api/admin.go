package api

import (
	"net/http"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/gorilla/mux"
)

func (a *API) adminRoutes(r *mux.Router) {
	admin := func(h handlerFunc) http.HandlerFunc { return roles(h, models.RoleAdmin) }
	r.HandleFunc("/api/admin/users", admin(a.adminListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/users/{id}/role", admin(a.adminSetRole)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/admin/users/{id}", admin(a.adminDeleteUser)).Methods(http.MethodDelete)
	r.HandleFunc("/api/admin/stats", admin(a.adminStats)).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/levels/recalculate", admin(a.adminRecalculateLevels)).Methods(http.MethodPost)
}

func (a *API) adminListUsers(w http.ResponseWriter, r *http.Request) error {
	users, total, err := a.Store.ListUsers(r.Context(), listOptions(r))
	if err != nil {
		return err
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, page[*models.User]{Items: users, Total: total})
	return nil
}

func (a *API) adminSetRole(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Role models.Role `json:"role"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return utils.Invalid("role", "must be one of USER COACH ADMIN")
	}
	id := pathID(r)
	if id == userID(r) && in.Role != models.RoleAdmin {
		return badRequest("admins cannot demote themselves")
	}
	user, err := a.Store.FindUserByID(r.Context(), id)
	if err != nil {
		return err
	}
	user.Role = in.Role
	if err := a.Store.UpdateUser(r.Context(), user, "role", "updated_at"); err != nil {
		return err
	}
	logger.Info("role changed", "admin", userID(r), "user", id, "role", in.Role)
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (a *API) adminDeleteUser(w http.ResponseWriter, r *http.Request) error {
	id := pathID(r)
	if id == userID(r) {
		return badRequest("admins cannot delete themselves here")
	}
	if err := a.Store.DeleteUser(r.Context(), id); err != nil {
		return err
	}
	logger.Info("user deleted", "admin", userID(r), "user", id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) adminStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := a.Store.Stats(r.Context(), a.Growth.Today())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

func (a *API) adminRecalculateLevels(w http.ResponseWriter, r *http.Request) error {
	changed, err := a.Growth.RecalculateAll(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
	return nil
}

package api

import (
	"net/http"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/metrics"
	"github.com/gorilla/mux"
)

func (a *API) habitRoutes(r *mux.Router) {
	r.HandleFunc("/api/habits", authed(a.listHabits)).Methods(http.MethodGet)
	r.HandleFunc("/api/habits", authed(a.createHabit)).Methods(http.MethodPost)
	r.HandleFunc("/api/habits/{id}", authed(a.getHabit)).Methods(http.MethodGet)
	r.HandleFunc("/api/habits/{id}", authed(a.updateHabit)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/habits/{id}", authed(a.deleteHabit)).Methods(http.MethodDelete)
	r.HandleFunc("/api/habits/{id}/toggle", authed(a.toggleHabit)).Methods(http.MethodPost)
	r.HandleFunc("/api/habits/{id}/entries", authed(a.habitEntries)).Methods(http.MethodGet)

	r.HandleFunc("/api/progress/weekly", authed(a.weeklyProgress)).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard", authed(a.dashboard)).Methods(http.MethodGet)

	r.HandleFunc("/api/achievements", public(a.achievements)).Methods(http.MethodGet)
	r.HandleFunc("/api/achievements/me", authed(a.myAchievements)).Methods(http.MethodGet)
	r.HandleFunc("/api/activity", authed(a.activityFeed)).Methods(http.MethodGet)
}

func (a *API) listHabits(w http.ResponseWriter, r *http.Request) error {
	habits, err := a.Growth.ListHabits(r.Context(), userID(r), r.URL.Query().Get("active") == "true")
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, habits)
	return nil
}

func (a *API) createHabit(w http.ResponseWriter, r *http.Request) error {
	var in growth.HabitInput
	if err := decode(r, &in); err != nil {
		return err
	}
	habit, err := a.Growth.CreateHabit(r.Context(), userID(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, habit)
	return nil
}

func (a *API) getHabit(w http.ResponseWriter, r *http.Request) error {
	habit, err := a.Growth.GetHabit(r.Context(), userID(r), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, habit)
	return nil
}

func (a *API) updateHabit(w http.ResponseWriter, r *http.Request) error {
	var patch growth.HabitPatch
	if err := decode(r, &patch); err != nil {
		return err
	}
	habit, err := a.Growth.UpdateHabit(r.Context(), userID(r), pathID(r), patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, habit)
	return nil
}

func (a *API) deleteHabit(w http.ResponseWriter, r *http.Request) error {
	if err := a.Growth.DeleteHabit(r.Context(), userID(r), pathID(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type toggleRequest struct {
	// Completed defaults to true.
	Completed *bool `json:"completed"`
	Value     int   `json:"value"`
}

func (a *API) toggleHabit(w http.ResponseWriter, r *http.Request) error {
	var in toggleRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	completed := in.Completed == nil || *in.Completed
	res, err := a.Growth.ToggleHabit(r.Context(), userID(r), pathID(r), completed, in.Value)
	if err != nil {
		return err
	}
	if res.Changed {
		metrics.RecordToggle(completed)
	}
	metrics.RecordAchievements(len(res.Unlocked))
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (a *API) habitEntries(w http.ResponseWriter, r *http.Request) error {
	entries, err := a.Growth.Entries(r.Context(), userID(r), pathID(r), queryInt(r, "limit", 30))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (a *API) weeklyProgress(w http.ResponseWriter, r *http.Request) error {
	progress, err := a.Growth.WeeklyProgress(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, progress)
	return nil
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) error {
	d, err := a.Growth.Dashboard(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, d)
	return nil
}

func (a *API) achievements(w http.ResponseWriter, r *http.Request) error {
	list, err := a.Growth.ListAchievements(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *API) myAchievements(w http.ResponseWriter, r *http.Request) error {
	list, err := a.Growth.UserAchievements(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *API) activityFeed(w http.ResponseWriter, r *http.Request) error {
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := a.Activity.ListForUser(r.Context(), userID(r), int64(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, events)
	return nil
}

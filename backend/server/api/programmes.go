package api

import (
	"net/http"
	"strings"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (a *API) programmeRoutes(r *mux.Router) {
	r.HandleFunc("/api/programmes", public(a.listProgrammes)).Methods(http.MethodGet)
	r.HandleFunc("/api/programmes", roles(a.createProgramme, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/api/programmes/{id}", public(a.getProgramme)).Methods(http.MethodGet)
	r.HandleFunc("/api/programmes/{id}", roles(a.updateProgramme, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/programmes/{id}", roles(a.deleteProgramme, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodDelete)
}

func (a *API) listProgrammes(w http.ResponseWriter, r *http.Request) error {
	opts := listOptions(r)
	if !isAuthor(r.Context()) {
		opts.Status = models.StatusPublished
	}
	items, total, err := a.Store.ListProgrammes(r.Context(), opts)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*models.Programme{}
	}
	writeJSON(w, http.StatusOK, page[*models.Programme]{Items: items, Total: total})
	return nil
}

func (a *API) getProgramme(w http.ResponseWriter, r *http.Request) error {
	p, err := a.Store.FindProgramme(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if p.Status != models.StatusPublished && !isAuthor(r.Context()) {
		return errNotFound
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// checkProgramme validates the programme tree: weeks must be unique and
// within the programme duration.
func checkProgramme(p *models.Programme) error {
	p.Title = strings.TrimSpace(p.Title)
	if err := validateContent(p); err != nil {
		return err
	}
	seen := map[int]bool{}
	for _, plan := range p.WeeklyPlans {
		if plan == nil {
			return utils.Invalid("weeklyPlans", "must not contain null plans")
		}
		if plan.WeekNumber > p.DurationWeeks {
			return utils.Invalid("weeklyPlans", "week numbers must not exceed durationWeeks")
		}
		if seen[plan.WeekNumber] {
			return utils.Invalid("weeklyPlans", "week numbers must be unique")
		}
		seen[plan.WeekNumber] = true
	}
	return nil
}

// createProgramme stores the programme with its weekly plans and daily tasks
// in one transaction.
func (a *API) createProgramme(w http.ResponseWriter, r *http.Request) error {
	p := new(models.Programme)
	if err := decode(r, p); err != nil {
		return err
	}
	if err := checkProgramme(p); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	p.AuthorID = userID(r)
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	now := nowUTC()
	p.CreatedAt, p.UpdatedAt = now, now
	for _, plan := range p.WeeklyPlans {
		plan.CreatedAt = now
	}
	if err := a.Store.AddProgramme(r.Context(), p); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}

// updateProgramme replaces the programme and, when weeklyPlans is sent, its
// whole plan tree.
func (a *API) updateProgramme(w http.ResponseWriter, r *http.Request) error {
	p, err := a.Store.FindProgramme(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if p.AuthorID != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return errForbidden
	}
	prev := p.ContentMeta
	if err := decode(r, p); err != nil {
		return err
	}
	p.ID, p.AuthorID, p.CreatedAt = prev.ID, prev.AuthorID, prev.CreatedAt
	if p.Status == "" {
		p.Status = prev.Status
	}
	if err := checkProgramme(p); err != nil {
		return err
	}
	now := nowUTC()
	for _, plan := range p.WeeklyPlans {
		if plan.CreatedAt.IsZero() {
			plan.CreatedAt = now
		}
	}
	if err := a.Store.UpdateProgramme(r.Context(), p); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (a *API) deleteProgramme(w http.ResponseWriter, r *http.Request) error {
	p, err := a.Store.FindProgramme(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if p.AuthorID != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return errForbidden
	}
	if err := a.Store.DeleteProgramme(r.Context(), p.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

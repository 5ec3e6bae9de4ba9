package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func nowUTC() time.Time { return time.Now().UTC() }

func (a *API) formRoutes(r *mux.Router) {
	r.HandleFunc("/api/forms", public(a.listForms)).Methods(http.MethodGet)
	r.HandleFunc("/api/forms", roles(a.createForm, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/api/forms/{id}", public(a.getForm)).Methods(http.MethodGet)
	r.HandleFunc("/api/forms/{id}", roles(a.updateForm, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/forms/{id}", roles(a.deleteForm, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodDelete)
	r.HandleFunc("/api/forms/{id}/submit", authed(a.submitForm)).Methods(http.MethodPost)
	r.HandleFunc("/api/forms/{id}/submissions", roles(a.listSubmissions, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodGet)
}

func (a *API) listForms(w http.ResponseWriter, r *http.Request) error {
	forms, err := a.Store.ListForms(r.Context(), !isAuthor(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, forms)
	return nil
}

func (a *API) getForm(w http.ResponseWriter, r *http.Request) error {
	form, err := a.Store.FindForm(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if !form.IsActive && !isAuthor(r.Context()) {
		return errNotFound
	}
	writeJSON(w, http.StatusOK, form)
	return nil
}

// checkForm validates the form and its fields. Field names must be unique and
// select fields need options.
func checkForm(form *models.Form) error {
	form.Title = strings.TrimSpace(form.Title)
	if err := utils.ValidateStruct(form); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, field := range form.Fields {
		if field == nil {
			return utils.Invalid("fields", "must not contain null fields")
		}
		if seen[field.Name] {
			return utils.Invalid("fields", "field names must be unique")
		}
		seen[field.Name] = true
		if field.Type == models.FieldSelect && len(field.Options) == 0 {
			return utils.Invalid("fields", "select field "+field.Name+" needs options")
		}
		if field.Position == 0 {
			field.Position = i + 1
		}
	}
	return nil
}

type formInput struct {
	models.Form
	IsActive *bool `json:"isActive"`
}

func (a *API) createForm(w http.ResponseWriter, r *http.Request) error {
	var in formInput
	if err := decode(r, &in); err != nil {
		return err
	}
	form := &in.Form
	form.IsActive = in.IsActive == nil || *in.IsActive
	if err := checkForm(form); err != nil {
		return err
	}
	now := nowUTC()
	form.ID = uuid.NewString()
	form.CreatedBy = userID(r)
	form.CreatedAt, form.UpdatedAt = now, now
	if err := a.Store.AddForm(r.Context(), form); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, form)
	return nil
}

func (a *API) ownedForm(r *http.Request) (*models.Form, error) {
	form, err := a.Store.FindForm(r.Context(), pathID(r))
	if err != nil {
		return nil, err
	}
	if form.CreatedBy != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return nil, errForbidden
	}
	return form, nil
}

func (a *API) updateForm(w http.ResponseWriter, r *http.Request) error {
	form, err := a.ownedForm(r)
	if err != nil {
		return err
	}
	in := formInput{Form: *form}
	if err := decode(r, &in); err != nil {
		return err
	}
	updated := &in.Form
	updated.ID, updated.CreatedBy, updated.CreatedAt = form.ID, form.CreatedBy, form.CreatedAt
	if in.IsActive != nil {
		updated.IsActive = *in.IsActive
	}
	if err := checkForm(updated); err != nil {
		return err
	}
	if err := a.Store.UpdateForm(r.Context(), updated); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (a *API) deleteForm(w http.ResponseWriter, r *http.Request) error {
	form, err := a.ownedForm(r)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteForm(r.Context(), form.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// ValidateAnswers checks answers against the fields of form and returns the
// trimmed non-empty answers.
func ValidateAnswers(form *models.Form, answers map[string]string) (map[string]string, error) {
	if !form.IsActive {
		return nil, badRequest("form is not accepting submissions")
	}
	verr := &utils.ValidationError{Fields: map[string]string{}}
	known := make(map[string]bool, len(form.Fields))
	out := make(map[string]string, len(answers))
	for _, field := range form.Fields {
		known[field.Name] = true
		value := strings.TrimSpace(answers[field.Name])
		if value == "" {
			if field.Required {
				verr.Fields[field.Name] = "is required"
			}
			continue
		}
		if reason := checkAnswer(field, value); reason != "" {
			verr.Fields[field.Name] = reason
			continue
		}
		out[field.Name] = value
	}
	for name := range answers {
		if !known[name] {
			verr.Fields[name] = "is not a field of this form"
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return out, nil
}

func checkAnswer(field *models.InputField, value string) string {
	switch field.Type {
	case models.FieldText:
		if len(value) > 500 {
			return "must be at most 500 characters"
		}
	case models.FieldTextarea:
		if len(value) > 5000 {
			return "must be at most 5000 characters"
		}
	case models.FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "must be a number"
		}
	case models.FieldEmail:
		if !utils.ValidateEmail(value) {
			return "must be a valid email"
		}
	case models.FieldDate:
		if _, err := time.Parse(utils.DayLayout, value); err != nil {
			return "must be a date formatted YYYY-MM-DD"
		}
	case models.FieldCheckbox:
		if _, err := strconv.ParseBool(value); err != nil {
			return "must be true or false"
		}
	case models.FieldSelect:
		for _, option := range field.Options {
			if option == value {
				return ""
			}
		}
		return "must be one of " + strings.Join(field.Options, ", ")
	}
	return ""
}

// submitForm validates and stores the answers in one transaction.
func (a *API) submitForm(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Answers map[string]string `json:"answers"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	sub, err := a.Store.SubmitForm(r.Context(), pathID(r), userID(r), in.Answers, ValidateAnswers)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, sub)
	return nil
}

func (a *API) listSubmissions(w http.ResponseWriter, r *http.Request) error {
	form, err := a.ownedForm(r)
	if err != nil {
		return err
	}
	subs, err := a.Store.ListSubmissions(r.Context(), form.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, subs)
	return nil
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Rodvdev/gainz-factory-sub003/backend/challenge"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/gorilla/mux"
)

func (a *API) challengeRoutes(r *mux.Router) {
	r.HandleFunc("/api/challenges", authed(a.listChallenges)).Methods(http.MethodGet)
	r.HandleFunc("/api/challenges", authed(a.createChallenge)).Methods(http.MethodPost)
	r.HandleFunc("/api/challenges/{id}", authed(a.getChallenge)).Methods(http.MethodGet)
	r.HandleFunc("/api/challenges/{id}", authed(a.updateChallenge)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/challenges/{id}", authed(a.deleteChallenge)).Methods(http.MethodDelete)
	r.HandleFunc("/api/challenges/{id}/progress", authed(a.challengeProgress)).Methods(http.MethodPost)
}

func (a *API) onboardingRoutes(r *mux.Router) {
	r.HandleFunc("/api/onboarding", authed(a.onboardingStatus)).Methods(http.MethodGet)
	r.HandleFunc("/api/onboarding", authed(a.onboardingSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/api/onboarding/{step}", authed(a.onboardingSubmit)).Methods(http.MethodPost)
}

func (a *API) listChallenges(w http.ResponseWriter, r *http.Request) error {
	list, err := a.Challenges.List(r.Context(), userID(r), r.URL.Query().Get("active") == "true", a.Location)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *API) createChallenge(w http.ResponseWriter, r *http.Request) error {
	var in challenge.Input
	if err := decode(r, &in); err != nil {
		return err
	}
	c, err := a.Challenges.Create(r.Context(), userID(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (a *API) getChallenge(w http.ResponseWriter, r *http.Request) error {
	c, err := a.Challenges.Get(r.Context(), userID(r), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (a *API) updateChallenge(w http.ResponseWriter, r *http.Request) error {
	var patch challenge.Patch
	if err := decode(r, &patch); err != nil {
		return err
	}
	c, err := a.Challenges.Update(r.Context(), userID(r), pathID(r), patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (a *API) deleteChallenge(w http.ResponseWriter, r *http.Request) error {
	if err := a.Challenges.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type progressResponse struct {
	Challenge *models.Challenge `json:"challenge"`
	// JustCompleted is true when this update completed the challenge.
	JustCompleted bool `json:"justCompleted"`
}

func (a *API) challengeProgress(w http.ResponseWriter, r *http.Request) error {
	var in challenge.Progress
	if err := decode(r, &in); err != nil {
		return err
	}
	c, done, err := a.Challenges.UpdateProgress(r.Context(), userID(r), pathID(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, progressResponse{Challenge: c, JustCompleted: done})
	return nil
}

func (a *API) onboardingStatus(w http.ResponseWriter, r *http.Request) error {
	status, err := a.Onboarding.Status(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, status)
	return nil
}

// onboardingSubmit takes the step from the path, or from {"step", "data"}
// when posted to /api/onboarding.
func (a *API) onboardingSubmit(w http.ResponseWriter, r *http.Request) error {
	step := mux.Vars(r)["step"]
	var payload json.RawMessage
	if step == "" {
		var in struct {
			Step string          `json:"step"`
			Data json.RawMessage `json:"data"`
		}
		if err := decode(r, &in); err != nil {
			return err
		}
		step, payload = in.Step, in.Data
	} else if err := decode(r, &payload); err != nil {
		return err
	}
	res, err := a.Onboarding.Submit(r.Context(), userID(r), models.OnboardingStep(strings.ToUpper(step)), payload)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

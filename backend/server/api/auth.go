package api

import (
	"net/http"

	"github.com/Rodvdev/gainz-factory-sub003/backend/server/auth"
	"github.com/gorilla/mux"
)

const maxUploadBytes = 5 << 20

func (a *API) authRoutes(r *mux.Router) {
	r.HandleFunc("/signup", public(a.signUp)).Methods(http.MethodPost)
	r.HandleFunc("/signin", public(a.signIn)).Methods(http.MethodPost)
	r.HandleFunc("/refresh", public(a.refresh)).Methods(http.MethodPost)
	r.HandleFunc("/signout", public(a.signOut)).Methods(http.MethodPost)
	r.HandleFunc("/confirm", authed(a.confirm)).Methods(http.MethodPost)
	r.HandleFunc("/confirm/resend", authed(a.resendConfirmation)).Methods(http.MethodPost)
}

func (a *API) userRoutes(r *mux.Router) {
	r.HandleFunc("/api/user/me", authed(a.me)).Methods(http.MethodGet)
	r.HandleFunc("/api/user/me", authed(a.updateMe)).Methods(http.MethodPatch)
	r.HandleFunc("/api/user/me", authed(a.deleteMe)).Methods(http.MethodDelete)
	r.HandleFunc("/api/user/avatar", authed(a.uploadAvatar)).Methods(http.MethodPost)
	r.HandleFunc("/api/user/level", authed(a.level)).Methods(http.MethodGet)
	r.HandleFunc("/api/user/level", authed(a.recalculateLevel)).Methods(http.MethodPost)
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decode(r, &in); err != nil {
		return err
	}
	tokens, err := auth.SignUp(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, tokens)
	return nil
}

// signIn accepts the username or email in login, or either of the dedicated fields.
func (a *API) signIn(w http.ResponseWriter, r *http.Request) error {
	var in credentials
	if err := decode(r, &in); err != nil {
		return err
	}
	login := in.Login
	if login == "" {
		login = in.Email
	}
	if login == "" {
		login = in.Username
	}
	tokens, err := auth.SignIn(r.Context(), login, in.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tokens)
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) error {
	var in refreshRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	tokens, err := auth.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tokens)
	return nil
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request) error {
	var in refreshRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := auth.SignOut(r.Context(), in.RefreshToken, in.All); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Code string `json:"code"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := auth.ConfirmEmail(r.Context(), userID(r), in.Code); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"emailConfirmed": true})
	return nil
}

func (a *API) resendConfirmation(w http.ResponseWriter, r *http.Request) error {
	if err := auth.ResendConfirmation(r.Context(), userID(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) me(w http.ResponseWriter, r *http.Request) error {
	user, err := a.Store.FindUserByID(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) error {
	var in auth.ProfileUpdate
	if err := decode(r, &in); err != nil {
		return err
	}
	user, err := auth.UpdateUser(r.Context(), userID(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (a *API) deleteMe(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Password string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := auth.DeleteUser(r.Context(), userID(r), in.Password); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// upload reads the "file" part of a multipart request and stores it under folder.
func (a *API) upload(w http.ResponseWriter, r *http.Request, folder, publicID string) (string, error) {
	if a.Media == nil {
		return "", &Error{Status: http.StatusServiceUnavailable, Message: "media uploads are not configured"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", badRequest("expected a multipart form of at most 5MB")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", badRequest("missing file")
	}
	defer file.Close()
	return a.Media.UploadImage(r.Context(), file, folder, publicID)
}

func (a *API) uploadAvatar(w http.ResponseWriter, r *http.Request) error {
	url, err := a.upload(w, r, "avatars", userID(r))
	if err != nil {
		return err
	}
	user, err := auth.SetAvatar(r.Context(), userID(r), url)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (a *API) level(w http.ResponseWriter, r *http.Request) error {
	status, err := a.Growth.GetLevel(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, status)
	return nil
}

// recalculateLevel recomputes the level from the stored XP.
func (a *API) recalculateLevel(w http.ResponseWriter, r *http.Request) error {
	status, err := a.Growth.RecalculateLevel(r.Context(), userID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, status)
	return nil
}

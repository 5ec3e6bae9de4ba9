package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/form3tech-oss/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func signed(t *testing.T, expires time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.StandardClaims{ExpiresAt: expires.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

type fakeServer struct {
	t         *testing.T
	access    string
	refreshes int
	mux       *http.ServeMux
}

func newFakeServer(t *testing.T) *fakeServer {
	keyring.MockInit()
	f := &fakeServer{t: t, access: signed(t, time.Now().Add(time.Hour)), mux: http.NewServeMux()}
	write := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	f.mux.HandleFunc("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret123" {
			write(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
			return
		}
		write(w, http.StatusOK, tokens{AccessToken: f.access, RefreshToken: "refresh-1", User: &models.User{Username: in["login"]}})
	})
	f.mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["refreshToken"] != "refresh-1" {
			write(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		f.refreshes++
		f.access = signed(t, time.Now().Add(time.Hour))
		write(w, http.StatusOK, tokens{AccessToken: f.access, RefreshToken: "refresh-1"})
	})
	f.mux.HandleFunc("/api/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.mux.HandleFunc("/api/habits", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.access {
			write(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		if r.Method == http.MethodPost {
			write(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid input", "fields": map[string]string{"category": "is required"}})
			return
		}
		write(w, http.StatusOK, []*models.Habit{{ID: "h1", Name: "Run"}})
	})
	f.mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"level": map[string]interface{}{"totalXp": 120, "currentLevel": 2, "levelName": "Apprentice"}},
		})
	})
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	InitClient(srv.URL)
	return f
}

func TestSignInStoresTokens(t *testing.T) {
	newFakeServer(t)

	_, err := SignIn("ana", "wrong")
	assert.EqualError(t, err, "authentication failed")
	assert.False(t, IsSignedIn())

	user, err := SignIn("ana", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.True(t, IsSignedIn())

	_, err = SignIn("ana", "secret123")
	assert.EqualError(t, err, "a user is already signed in")

	require.NoError(t, SignOut())
	assert.False(t, IsSignedIn())
	assert.ErrorIs(t, SignOut(), ErrNotSignedIn)
}

func TestHabitsRefreshesExpiredToken(t *testing.T) {
	f := newFakeServer(t)
	_, err := SignIn("ana", "secret123")
	require.NoError(t, err)

	require.NoError(t, keyring.Set(KeyringService, accessKey, signed(t, time.Now().Add(-time.Minute))))
	habits, err := Habits()
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, "Run", habits[0].Name)
	assert.Equal(t, 1, f.refreshes)
}

func TestRejectedRefreshClearsSession(t *testing.T) {
	newFakeServer(t)
	require.NoError(t, keyring.Set(KeyringService, accessKey, signed(t, time.Now().Add(-time.Minute))))
	require.NoError(t, keyring.Set(KeyringService, refreshKey, "revoked"))

	_, err := Habits()
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, IsSignedIn())
}

func TestValidationErrorsKeepFields(t *testing.T) {
	newFakeServer(t)
	_, err := SignIn("ana", "secret123")
	require.NoError(t, err)

	_, err = AddHabit(growth.HabitInput{Name: "Run"})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["category"])
}

func TestLevelUsesGraphQL(t *testing.T) {
	newFakeServer(t)
	_, err := SignIn("ana", "secret123")
	require.NoError(t, err)

	level, err := Level()
	require.NoError(t, err)
	assert.Equal(t, 2, level.CurrentLevel)
	assert.Equal(t, 120, level.TotalXP)
}

func TestNotSignedIn(t *testing.T) {
	newFakeServer(t)
	_, err := Habits()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSignUpValidatesLocally(t *testing.T) {
	newFakeServer(t)
	_, err := SignUp("a", "a@example.com", "secret123")
	assert.Error(t, err)
	_, err = SignUp("anna", "not-an-email", "secret123")
	assert.EqualError(t, err, "invalid email format")
}

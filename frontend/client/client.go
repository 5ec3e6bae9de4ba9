package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/form3tech-oss/jwt-go"
	"github.com/zalando/go-keyring"
)

// KeyringService is the name of the service in the system keyring where the access and refresh tokens are stored.
const KeyringService = "GainzFactory"

const (
	accessKey  = "access_token"
	refreshKey = "refresh_token"
)

// ErrNotSignedIn is returned by commands that need a signed in user when the keyring holds no token.
var ErrNotSignedIn = errors.New("no user is currently signed in")

// ErrSessionExpired is returned when the refresh token was rejected and the user must sign in again.
var ErrSessionExpired = errors.New("session expired, please sign in again")

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// client is the HTTP client used to make requests to the server.
var client = &http.Client{Timeout: 15 * time.Second}

// tokens mirrors the body returned by sign-in, sign-up and refresh.
type tokens struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         *models.User `json:"user"`
}

// InitClient sets the server the client talks to.
// This function must be called before using any other functions in the package.
func InitClient(serverURL string) {
	ServerURL = serverURL
}

// accessTokenExpired reports whether the access token's exp claim has passed.
// The client does not know the signing key, so the token is only decoded.
func accessTokenExpired(tokenStr string) bool {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
		return true
	}
	return claims.ExpiresAt != 0 && time.Now().Unix() >= claims.ExpiresAt-5
}

// storedToken returns the token under key, or "" if the keyring holds none.
func storedToken(key string) (string, error) {
	token, err := keyring.Get(KeyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", errors.New("failed to access keyring: " + err.Error())
	}
	return token, nil
}

// saveTokens stores both tokens, leaving the keyring empty if the second write fails.
func saveTokens(t *tokens) error {
	if err := keyring.Set(KeyringService, accessKey, t.AccessToken); err != nil {
		return err
	}
	if err := keyring.Set(KeyringService, refreshKey, t.RefreshToken); err != nil {
		keyring.Delete(KeyringService, accessKey)
		return err
	}
	return nil
}

// ClearKeyring removes both tokens from the system keyring.
func ClearKeyring() error {
	for _, key := range []string{accessKey, refreshKey} {
		if err := keyring.Delete(KeyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return errors.New("failed to delete token from keyring: " + err.Error())
		}
	}
	return nil
}

// IsSignedIn reports whether the keyring holds a session.
func IsSignedIn() bool {
	token, err := storedToken(refreshKey)
	return err == nil && token != ""
}

// accessToken returns a usable access token, refreshing it when it has expired.
func accessToken() (string, error) {
	token, err := storedToken(accessKey)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotSignedIn
	}
	if accessTokenExpired(token) {
		return RefreshAccessToken()
	}
	return token, nil
}

// send performs a JSON request against the API and decodes the response into out.
// Error responses are turned into errors carrying the server's message.
func send(method, path, token string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ServerURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if len(apiErr.Fields) > 0 {
				return resp.StatusCode, &utils.ValidationError{Fields: apiErr.Fields}
			}
			return resp.StatusCode, errors.New(apiErr.Error)
		}
		return resp.StatusCode, fmt.Errorf("server responded with %s", resp.Status)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// authedSend is send with the stored access token. A 401 triggers one refresh and retry.
func authedSend(method, path string, body, out interface{}) error {
	token, err := accessToken()
	if err != nil {
		return err
	}
	status, err := send(method, path, token, body, out)
	if status != http.StatusUnauthorized {
		return err
	}
	if token, err = RefreshAccessToken(); err != nil {
		return err
	}
	_, err = send(method, path, token, body, out)
	return err
}

// RefreshAccessToken exchanges the stored refresh token for a new pair of tokens.
// Returns the new access token if successful. A rejected refresh token clears
// the keyring and returns ErrSessionExpired.
func RefreshAccessToken() (string, error) {
	refresh, err := storedToken(refreshKey)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", ErrNotSignedIn
	}
	var t tokens
	status, err := send(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh}, &t)
	if status == http.StatusUnauthorized {
		ClearKeyring()
		return "", ErrSessionExpired
	}
	if err != nil {
		return "", err
	}
	if err := saveTokens(&t); err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// SignIn attempts to sign in a user with a username or email and a password.
// Returns the signed in user if successful, else an error.
func SignIn(login, password string) (*models.User, error) {
	if IsSignedIn() {
		return nil, errors.New("a user is already signed in")
	}
	var t tokens
	if _, err := send(http.MethodPost, "/api/auth/signin", "", map[string]string{"login": login, "password": password}, &t); err != nil {
		return nil, err
	}
	if err := saveTokens(&t); err != nil {
		return nil, err
	}
	return t.User, nil
}

// SignUp attempts to sign up a new user with the provided username, email, and password.
// The user is signed in on success.
func SignUp(username, email, password string) (*models.User, error) {
	if IsSignedIn() {
		return nil, errors.New("a user is already signed in")
	}
	if !utils.ValidateUsername(username) {
		return nil, errors.New("username must be 3 to 30 letters, digits, dots or underscores")
	}
	if !utils.ValidateEmail(email) {
		return nil, errors.New("invalid email format")
	}
	if !utils.ValidatePassword(password) {
		return nil, errors.New("password must be at least 8 characters and contain both letters and numbers")
	}
	var t tokens
	body := map[string]string{"username": username, "email": email, "password": password}
	if _, err := send(http.MethodPost, "/api/auth/signup", "", body, &t); err != nil {
		return nil, err
	}
	if err := saveTokens(&t); err != nil {
		return nil, err
	}
	return t.User, nil
}

// SignOut revokes the stored refresh token on the server and clears the keyring.
func SignOut() error {
	refresh, err := storedToken(refreshKey)
	if err != nil {
		return err
	}
	if refresh == "" {
		return ErrNotSignedIn
	}
	status, err := send(http.MethodPost, "/api/auth/signout", "", map[string]string{"refreshToken": refresh}, nil)
	if err != nil && status != http.StatusUnauthorized {
		return err
	}
	return ClearKeyring()
}

// ConfirmEmail confirms the signed in user's email with the code sent to it.
func ConfirmEmail(code string) error {
	return authedSend(http.MethodPost, "/api/auth/confirm", map[string]string{"code": code}, nil)
}

// Me returns the signed in user.
func Me() (*models.User, error) {
	var user models.User
	if err := authedSend(http.MethodGet, "/api/user/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes the username, email or password of the signed in user.
// Empty values are left unchanged; the current password is always required.
func UpdateUser(currentPassword, newUsername, newEmail, newPassword string) error {
	if newUsername == "" && newEmail == "" && newPassword == "" {
		return errors.New("nothing to update")
	}
	update := map[string]string{"currentPassword": currentPassword}
	if newUsername != "" {
		update["username"] = newUsername
	}
	if newEmail != "" {
		update["email"] = newEmail
	}
	if newPassword != "" {
		update["password"] = newPassword
	}
	return authedSend(http.MethodPatch, "/api/user/me", update, nil)
}

// DeleteUser deletes the signed in user and clears the keyring.
func DeleteUser(password string) error {
	if err := authedSend(http.MethodDelete, "/api/user/me", map[string]string{"password": password}, nil); err != nil {
		return err
	}
	return ClearKeyring()
}

// Habits lists the signed in user's habits.
func Habits() ([]*models.Habit, error) {
	var habits []*models.Habit
	if err := authedSend(http.MethodGet, "/api/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// AddHabit creates a daily habit.
func AddHabit(input growth.HabitInput) (*models.Habit, error) {
	var habit models.Habit
	if err := authedSend(http.MethodPost, "/api/habits", input, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// ToggleHabit marks a habit completed or not completed for today.
func ToggleHabit(id string, completed bool) (*growth.ToggleResult, error) {
	var res growth.ToggleResult
	if err := authedSend(http.MethodPost, "/api/habits/"+id+"/toggle", map[string]bool{"completed": completed}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Dashboard returns today's overview.
func Dashboard() (*growth.Dashboard, error) {
	var d growth.Dashboard
	if err := authedSend(http.MethodGet, "/api/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Weekly returns the progress of the last seven days.
func Weekly() (*growth.WeeklyProgress, error) {
	var w growth.WeeklyProgress
	if err := authedSend(http.MethodGet, "/api/progress/weekly", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

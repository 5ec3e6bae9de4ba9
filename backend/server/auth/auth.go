package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	ConfirmationTTL = 24 * time.Hour

	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	// ErrAuthFailed is returned for unknown users and wrong passwords alike.
	ErrAuthFailed   = errors.New("authentication failed")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotInit      = errors.New("auth is not initialized")
)

// Store is the storage the auth module needs.
type Store interface {
	storage.Transactor
	storage.UserStore
	storage.TokenStore
}

// ConfirmationSender delivers email confirmation codes.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, to, code string) error
}

// store is a global variable that holds an interface to the storage system (database).
var store Store

// jwtSigningKey is a global variable that holds the key used for signing and verifying JWT tokens.
var jwtSigningKey []byte

// confirmations sends the confirmation codes of new accounts. It may be nil.
var confirmations ConfirmationSender

// InitAuth is a function for initializing the authentication system.
//
// It accepts three arguments:
// - s: The storage holding users, refresh tokens and confirmation codes.
// - signingKey: The key used to sign JWT tokens.
// - sender: Delivers confirmation codes; nil disables confirmation emails.
func InitAuth(s Store, signingKey string, sender ConfirmationSender) {
	store = s
	jwtSigningKey = []byte(signingKey)
	confirmations = sender
}

// Claims are the JWT claims of both token kinds. Refresh tokens carry the id
// of their RefreshToken row in the standard jti claim.
type Claims struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role,omitempty"`
	Kind string      `json:"kind"`
	jwt.StandardClaims
}

// Tokens is the result of a successful sign-in, sign-up or refresh.
type Tokens struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         *models.User `json:"user"`
}

func sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// CreateAuthToken is a function to create a signed access token for a user.
//
// The token carries the user's id and role and expires after AccessTokenTTL.
// It returns the token and its expiry.
func CreateAuthToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(AccessTokenTTL)
	token, err := sign(&Claims{
		ID:   user.ID,
		Role: user.Role,
		Kind: kindAccess,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: expires.Unix(),
		},
	})
	return token, expires, err
}

// CreateRefreshToken is a function to create a refresh token for a user.
//
// The token id is persisted so that signing out, or rotating the token,
// revokes it.
func CreateRefreshToken(ctx context.Context, userID string) (string, error) {
	now := time.Now()
	row := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := store.AddRefreshToken(ctx, row); err != nil {
		return "", err
	}
	return sign(&Claims{
		ID:   userID,
		Kind: kindRefresh,
		StandardClaims: jwt.StandardClaims{
			Id:        row.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: row.ExpiresAt.Unix(),
		},
	})
}

// CreateTokens creates an access token and a refresh token for the user.
func CreateTokens(ctx context.Context, user *models.User) (*Tokens, error) {
	if store == nil {
		return nil, ErrNotInit
	}
	access, expires, err := CreateAuthToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := CreateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expires, User: user}, nil
}

func parse(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSigningKey, nil
	})
	if err != nil || !token.Valid || claims.Kind != kind || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseToken verifies an access token and returns its claims. Expired,
// malformed and refresh tokens are rejected with ErrInvalidToken.
func ParseToken(tokenString string) (*Claims, error) {
	return parse(tokenString, kindAccess)
}

// SignUp is a function for registering a new user.
//
// It accepts four arguments:
// - ctx: The request context.
// - username: The username of the new user.
// - email: The email of the new user.
// - password: The password of the new user.
//
// It validates the input, stores the user with a bcrypt password hash,
// stores a hashed confirmation code and hands the plain code to the
// confirmation sender. A failing sender does not fail the sign-up.
func SignUp(ctx context.Context, username, email, password string) (*Tokens, error) {
	if store == nil {
		return nil, ErrNotInit
	}
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	verr := &utils.ValidationError{Fields: map[string]string{}}
	if !utils.ValidateUsername(username) {
		verr.Fields["username"] = "must be 3 to 30 letters, digits, dots or underscores"
	}
	if !utils.ValidateEmail(email) {
		verr.Fields["email"] = "must be a valid email"
	}
	if !utils.ValidatePassword(password) {
		verr.Fields["password"] = "must be at least 8 characters and contain both letters and numbers"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	if _, err := store.FindUserByEmail(ctx, email); err == nil {
		return nil, utils.Invalid("email", "is already in use")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if _, err := store.FindUserByUsername(ctx, username); err == nil {
		return nil, utils.Invalid("username", "is taken")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		PasswordHash:   string(hashedPassword),
		Role:           models.RoleUser,
		Goals:          []string{},
		OnboardingStep: models.StepWelcome,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var code string
	err = store.WithTx(ctx, func(ctx context.Context) error {
		if err := store.AddUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return utils.Invalid("username", "or email is already in use")
			}
			return err
		}
		var err error
		code, err = newConfirmation(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	sendCode(ctx, user, code)
	return CreateTokens(ctx, user)
}

// newConfirmation stores the hash of a fresh six digit code for the user and
// returns the code.
func newConfirmation(ctx context.Context, userID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	err = store.SaveConfirmation(ctx, &models.Confirmation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  string(hashed),
		ExpiresAt: time.Now().Add(ConfirmationTTL),
	})
	return code, err
}

func sendCode(ctx context.Context, user *models.User, code string) {
	if confirmations == nil {
		logger.Debug("no confirmation sender configured", "user", user.ID)
		return
	}
	if err := confirmations.SendConfirmation(ctx, user.Email, code); err != nil {
		logger.Warn("failed to send confirmation code", "user", user.ID, "err", err)
	}
}

// ResendConfirmation replaces the user's confirmation code and sends the new one.
func ResendConfirmation(ctx context.Context, userID string) error {
	user, err := store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailConfirmed {
		return utils.Invalid("email", "is already confirmed")
	}
	code, err := newConfirmation(ctx, userID)
	if err != nil {
		return err
	}
	sendCode(ctx, user, code)
	return nil
}

// SignIn is a function for authenticating a user.
//
// It accepts three arguments:
// - ctx: The request context.
// - login: The username or the email of the user.
// - password: The password of the user.
//
// Unknown users and wrong passwords both yield ErrAuthFailed.
func SignIn(ctx context.Context, login, password string) (*Tokens, error) {
	if store == nil {
		return nil, ErrNotInit
	}
	login = strings.TrimSpace(login)
	if len(login) < 2 || password == "" {
		return nil, ErrAuthFailed
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = store.FindUserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = store.FindUserByUsername(ctx, login)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthFailed
	}
	return CreateTokens(ctx, user)
}

// RefreshToken validates a refresh token and rotates it: the presented token
// is revoked and a new pair is issued.
func RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error) {
	if store == nil {
		return nil, ErrNotInit
	}
	claims, err := parse(refreshToken, kindRefresh)
	if err != nil {
		return nil, err
	}
	row, err := store.FindRefreshToken(ctx, claims.Id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if row.UserID != claims.ID || row.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidToken
	}

	user, err := store.FindUserByID(ctx, row.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	// Only the caller that deletes the row may rotate it.
	if err := store.DeleteRefreshToken(ctx, row.ID); errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	} else if err != nil {
		return nil, err
	}
	return CreateTokens(ctx, user)
}

// SignOut revokes a refresh token. With all set, every refresh token of the
// token's user is revoked.
func SignOut(ctx context.Context, refreshToken string, all bool) error {
	if store == nil {
		return ErrNotInit
	}
	claims, err := parse(refreshToken, kindRefresh)
	if err != nil {
		return err
	}
	if all {
		return store.DeleteUserRefreshTokens(ctx, claims.ID)
	}
	if err := store.DeleteRefreshToken(ctx, claims.Id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// ConfirmEmail is a function that confirms a user's email address.
//
// It accepts three arguments:
// - ctx: The request context.
// - userID: The id of the user whose email address is to be confirmed.
// - code: The confirmation code sent to the user.
//
// An expired code is removed; the user can ask for a new one.
func ConfirmEmail(ctx context.Context, userID, code string) error {
	if store == nil {
		return ErrNotInit
	}
	found, err := store.FindConfirmation(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return utils.Invalid("code", "no confirmation is pending")
	}
	if err != nil {
		return err
	}
	if found.ExpiresAt.Before(time.Now()) {
		if err := store.DeleteConfirmation(ctx, userID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return utils.Invalid("code", "has expired")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.CodeHash), []byte(strings.TrimSpace(code))); err != nil {
		return utils.Invalid("code", "is invalid")
	}

	return store.WithTx(ctx, func(ctx context.Context) error {
		user, err := store.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		user.EmailConfirmed = true
		if err := store.UpdateUser(ctx, user, "email_confirmed", "updated_at"); err != nil {
			return err
		}
		return store.DeleteConfirmation(ctx, userID)
	})
}

// ProfileUpdate holds the account fields a user may change. Changing the
// username, email or password requires the current password.
type ProfileUpdate struct {
	CurrentPassword string  `json:"currentPassword"`
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	FirstName       *string `json:"firstName" validate:"omitempty,max=100"`
	LastName        *string `json:"lastName" validate:"omitempty,max=100"`
	Bio             *string `json:"bio" validate:"omitempty,max=1000"`
	Phone           *string `json:"phone" validate:"omitempty,max=30"`
	AvatarURL       *string `json:"avatarUrl" validate:"omitempty,url"`
	WakeUpTime      *string `json:"wakeUpTime" validate:"omitempty,clock"`
	SleepTime       *string `json:"sleepTime" validate:"omitempty,clock"`
}

func (p ProfileUpdate) sensitive() bool {
	return p.Username != nil || p.Email != nil || p.Password != nil
}

// UpdateUser applies update to the user's account and returns the user.
// Changing the email resets the confirmation and sends a new code.
func UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	if store == nil {
		return nil, ErrNotInit
	}
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}
	user, err := store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.sensitive() {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(update.CurrentPassword)); err != nil {
			return nil, ErrAuthFailed
		}
	}

	emailChanged := false
	if update.Username != nil && *update.Username != user.Username {
		name := strings.TrimSpace(*update.Username)
		if !utils.ValidateUsername(name) {
			return nil, utils.Invalid("username", "must be 3 to 30 letters, digits, dots or underscores")
		}
		if _, err := store.FindUserByUsername(ctx, name); err == nil {
			return nil, utils.Invalid("username", "is taken")
		}
		user.Username = name
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if email != user.Email {
			if !utils.ValidateEmail(email) {
				return nil, utils.Invalid("email", "must be a valid email")
			}
			if _, err := store.FindUserByEmail(ctx, email); err == nil {
				return nil, utils.Invalid("email", "is already in use")
			}
			user.Email = email
			user.EmailConfirmed = false
			emailChanged = true
		}
	}
	if update.Password != nil {
		if !utils.ValidatePassword(*update.Password) {
			return nil, utils.Invalid("password", "must be at least 8 characters and contain both letters and numbers")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hashed)
	}
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&user.FirstName, update.FirstName},
		{&user.LastName, update.LastName},
		{&user.Bio, update.Bio},
		{&user.Phone, update.Phone},
		{&user.AvatarURL, update.AvatarURL},
		{&user.WakeUpTime, update.WakeUpTime},
		{&user.SleepTime, update.SleepTime},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}

	var code string
	err = store.WithTx(ctx, func(ctx context.Context) error {
		if err := store.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return utils.Invalid("username", "or email is already in use")
			}
			return err
		}
		if !emailChanged {
			return nil
		}
		var err error
		code, err = newConfirmation(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if emailChanged {
		sendCode(ctx, user, code)
	}
	return user, nil
}

// SetAvatar stores url as the user's avatar.
func SetAvatar(ctx context.Context, userID, url string) (*models.User, error) {
	user, err := store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = url
	if err := store.UpdateUser(ctx, user, "avatar_url", "updated_at"); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser deletes the user's account after checking the password. The
// storage cascades to everything the user owns.
func DeleteUser(ctx context.Context, userID, password string) error {
	if store == nil {
		return ErrNotInit
	}
	user, err := store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrAuthFailed
	}
	return store.DeleteUser(ctx, userID)
}

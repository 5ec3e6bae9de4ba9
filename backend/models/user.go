package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is the authorization role carried by a user and embedded in access tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleCoach Role = "COACH"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

// OnboardingStep is one stage of the onboarding wizard.
type OnboardingStep string

const (
	StepWelcome   OnboardingStep = "WELCOME"
	StepGoals     OnboardingStep = "GOALS"
	StepHabits    OnboardingStep = "HABITS"
	StepSchedule  OnboardingStep = "SCHEDULE"
	StepProfile   OnboardingStep = "PROFILE"
	StepCompleted OnboardingStep = "COMPLETED"
)

// OnboardingSteps lists the wizard steps in the order they must be submitted.
var OnboardingSteps = []OnboardingStep{StepWelcome, StepGoals, StepHabits, StepSchedule, StepProfile, StepCompleted}

// Next returns the step that follows s. COMPLETED is its own successor.
func (s OnboardingStep) Next() OnboardingStep {
	for i, step := range OnboardingSteps {
		if step == s && i+1 < len(OnboardingSteps) {
			return OnboardingSteps[i+1]
		}
	}
	return StepCompleted
}

// Valid reports whether s is a known step.
func (s OnboardingStep) Valid() bool {
	for _, step := range OnboardingSteps {
		if step == s {
			return true
		}
	}
	return false
}

// User represents an account of the application.
//
// The password is only ever stored as a bcrypt hash and never serialized.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                  string         `bun:"id,pk" json:"id"`
	Username            string         `bun:"username,notnull,unique" json:"username"`
	Email               string         `bun:"email,notnull,unique" json:"email"`
	PasswordHash        string         `bun:"password_hash,notnull" json:"-"`
	EmailConfirmed      bool           `bun:"email_confirmed,notnull,default:false" json:"emailConfirmed"`
	Role                Role           `bun:"role,notnull" json:"role"`
	FirstName           string         `bun:"first_name,notnull" json:"firstName"`
	LastName            string         `bun:"last_name,notnull" json:"lastName"`
	Bio                 string         `bun:"bio,notnull" json:"bio"`
	Phone               string         `bun:"phone,notnull" json:"phone"`
	AvatarURL           string         `bun:"avatar_url,notnull" json:"avatarUrl"`
	Goals               []string       `bun:"goals,type:jsonb" json:"goals"`
	WakeUpTime          string         `bun:"wake_up_time,notnull" json:"wakeUpTime"`
	SleepTime           string         `bun:"sleep_time,notnull" json:"sleepTime"`
	OnboardingStep      OnboardingStep `bun:"onboarding_step,notnull" json:"onboardingStep"`
	OnboardingCompleted bool           `bun:"onboarding_completed,notnull,default:false" json:"onboardingCompleted"`
	CreatedAt           time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt           time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// RefreshToken is the persisted half of a refresh JWT. The token's jti claim is
// the row id, so deleting the row revokes the token.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"userId"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expiresAt"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Confirmation holds the bcrypt hash of an email confirmation code.
type Confirmation struct {
	bun.BaseModel `bun:"table:confirmations,alias:cf"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull,unique" json:"userId"`
	CodeHash  string    `bun:"code_hash,notnull" json:"-"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expiresAt"`
}

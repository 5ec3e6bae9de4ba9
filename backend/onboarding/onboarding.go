// Package onboarding drives the sign-up wizard. Steps must be submitted in
// order; each one stores its payload and advances the user to the next step.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
)

var (
	ErrAlreadyCompleted = errors.New("onboarding is already completed")
	ErrUserNotFound     = errors.New("user not found")
)

// StepError reports a step submitted out of order.
type StepError struct {
	Got, Want models.OnboardingStep
}

func (e *StepError) Error() string {
	return fmt.Sprintf("expected step %s, got %s", e.Want, e.Got)
}

type Store interface {
	storage.Transactor
	storage.UserStore
	storage.HabitStore
}

type GoalsPayload struct {
	Goals []string `json:"goals" validate:"required,min=1,max=10,dive,required,max=100"`
}

type HabitsPayload struct {
	Habits []growth.HabitInput `json:"habits" validate:"max=20"`
}

type SchedulePayload struct {
	WakeUpTime string `json:"wakeUpTime" validate:"required,clock"`
	SleepTime  string `json:"sleepTime" validate:"required,clock"`
}

type ProfilePayload struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Bio       string `json:"bio" validate:"max=1000"`
	Phone     string `json:"phone" validate:"max=30"`
}

// Status is the wizard state of a user.
type Status struct {
	Step      models.OnboardingStep   `json:"step"`
	Completed bool                    `json:"completed"`
	Steps     []models.OnboardingStep `json:"steps"`
}

// Result is returned by Submit.
type Result struct {
	Status
	Habits []*models.Habit `json:"habits,omitempty"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func currentStep(u *models.User) models.OnboardingStep {
	if u.OnboardingStep == "" {
		return models.StepWelcome
	}
	return u.OnboardingStep
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Status{Step: currentStep(user), Completed: user.OnboardingCompleted, Steps: models.OnboardingSteps}, nil
}

func decode(payload json.RawMessage, dst interface{}) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return utils.Invalid("payload", "must be a JSON object matching the step")
	}
	return utils.ValidateStruct(dst)
}

// Submit stores payload for step and advances the user. All writes of a step
// happen in one transaction.
func (s *Service) Submit(ctx context.Context, userID string, step models.OnboardingStep, payload json.RawMessage) (*Result, error) {
	step = models.OnboardingStep(strings.ToUpper(string(step)))
	if !step.Valid() {
		return nil, utils.Invalid("step", "is not a known onboarding step")
	}

	res := &Result{}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.OnboardingCompleted {
			return ErrAlreadyCompleted
		}
		if want := currentStep(user); step != want {
			return &StepError{Got: step, Want: want}
		}

		columns := []string{"onboarding_step", "onboarding_completed"}
		switch step {
		case models.StepGoals:
			var p GoalsPayload
			if err := decode(payload, &p); err != nil {
				return err
			}
			user.Goals = p.Goals
			columns = append(columns, "goals")
		case models.StepHabits:
			var p HabitsPayload
			if err := decode(payload, &p); err != nil {
				return err
			}
			if res.Habits, err = s.createHabits(ctx, userID, p.Habits); err != nil {
				return err
			}
		case models.StepSchedule:
			var p SchedulePayload
			if err := decode(payload, &p); err != nil {
				return err
			}
			user.WakeUpTime, user.SleepTime = p.WakeUpTime, p.SleepTime
			columns = append(columns, "wake_up_time", "sleep_time")
		case models.StepProfile:
			var p ProfilePayload
			if err := decode(payload, &p); err != nil {
				return err
			}
			user.FirstName, user.LastName, user.Bio, user.Phone = p.FirstName, p.LastName, p.Bio, p.Phone
			columns = append(columns, "first_name", "last_name", "bio", "phone")
		}

		user.OnboardingStep = step.Next()
		user.OnboardingCompleted = user.OnboardingStep == models.StepCompleted
		if err := s.store.UpdateUser(ctx, user, columns...); err != nil {
			return err
		}
		res.Status = Status{Step: user.OnboardingStep, Completed: user.OnboardingCompleted, Steps: models.OnboardingSteps}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) createHabits(ctx context.Context, userID string, inputs []growth.HabitInput) ([]*models.Habit, error) {
	habits := make([]*models.Habit, 0, len(inputs))
	for i, in := range inputs {
		habit, err := growth.NewHabit(userID, in)
		var verr *utils.ValidationError
		if errors.As(err, &verr) {
			out := &utils.ValidationError{Fields: map[string]string{}}
			for field, reason := range verr.Fields {
				out.Fields[fmt.Sprintf("habits[%d].%s", i, field)] = reason
			}
			return nil, out
		}
		if err != nil {
			return nil, err
		}
		now := s.now()
		habit.CreatedAt, habit.UpdatedAt = now, now
		if err := s.store.AddHabit(ctx, habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, nil
}

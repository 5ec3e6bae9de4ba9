// Package challenge manages user challenges: time-boxed numeric goals whose
// completion is monotonic.
package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("challenge not found")

// Store is the storage the service needs.
type Store interface {
	storage.Transactor
	storage.ChallengeStore
}

// CompletionHook is called after the transaction in which a challenge of
// userID became completed has committed.
type CompletionHook func(ctx context.Context, userID string, c *models.Challenge) error

// Input holds the fields of a new challenge.
type Input struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=1000"`
	Category    models.HabitCategory `json:"category" validate:"omitempty,oneof=NUTRITION EXERCISE SLEEP MINDSET HYDRATION PRODUCTIVITY OTHER"`
	StartDate   string               `json:"startDate" validate:"required,day"`
	EndDate     string               `json:"endDate" validate:"required,day"`
	TargetValue int                  `json:"targetValue" validate:"gt=0"`
	Unit        string               `json:"unit" validate:"max=30"`
}

// Patch holds the editable fields of a challenge; nil fields are kept.
type Patch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	EndDate     *string `json:"endDate" validate:"omitempty,day"`
	TargetValue *int    `json:"targetValue" validate:"omitempty,gt=0"`
	Unit        *string `json:"unit" validate:"omitempty,max=30"`
}

// Progress sets the progress of a challenge. Exactly one of Value and Delta
// must be given.
type Progress struct {
	Value *int `json:"value" validate:"omitempty,gte=0"`
	Delta *int `json:"delta"`
}

type Service struct {
	store       Store
	onCompleted CompletionHook
	now         func() time.Time
}

// NewService returns a challenge service. onCompleted may be nil.
func NewService(store Store, onCompleted CompletionHook) *Service {
	return &Service{store: store, onCompleted: onCompleted, now: time.Now}
}

func checkWindow(start, end string) error {
	days, err := utils.DaysBetween(start, end)
	if err != nil {
		return utils.Invalid("endDate", "must be a date formatted YYYY-MM-DD")
	}
	if days <= 0 {
		return utils.Invalid("endDate", "must be after startDate")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*models.Challenge, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := checkWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	now := s.now()
	c := &models.Challenge{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		TargetValue: in.TargetValue,
		Unit:        in.Unit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Category == "" {
		c.Category = models.CategoryOther
	}
	if err := s.store.AddChallenge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the challenge if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Challenge, error) {
	c, err := s.store.FindChallenge(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && c.UserID != userID) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns the user's challenges; with activeOnly, only the open ones
// running today.
func (s *Service) List(ctx context.Context, userID string, activeOnly bool, loc *time.Location) ([]*models.Challenge, error) {
	day := ""
	if activeOnly {
		day = utils.DayKey(s.now(), loc)
	}
	return s.store.ListChallenges(ctx, userID, day)
}

// Update applies patch. Lowering the target of an open challenge to its
// current value completes it.
func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (*models.Challenge, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}
	var (
		c         *models.Challenge
		completed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.Get(ctx, userID, id); err != nil {
			return err
		}
		if patch.Title != nil {
			c.Title = *patch.Title
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.EndDate != nil {
			if err := checkWindow(c.StartDate, *patch.EndDate); err != nil {
				return err
			}
			c.EndDate = *patch.EndDate
		}
		if patch.Unit != nil {
			c.Unit = *patch.Unit
		}
		if patch.TargetValue != nil {
			c.TargetValue = *patch.TargetValue
			completed = c.SetProgress(c.CurrentValue, s.now())
		}
		return s.store.UpdateChallenge(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	if completed {
		s.completed(ctx, c)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteChallenge(ctx, id)
}

// UpdateProgress sets or shifts the current value. The challenge completes
// once the value reaches the target and stays completed even if the value is
// lowered afterwards. It reports whether this call completed the challenge.
func (s *Service) UpdateProgress(ctx context.Context, userID, id string, p Progress) (*models.Challenge, bool, error) {
	if (p.Value == nil) == (p.Delta == nil) {
		return nil, false, utils.Invalid("value", "exactly one of value and delta is required")
	}
	if err := utils.ValidateStruct(p); err != nil {
		return nil, false, err
	}
	var (
		c         *models.Challenge
		completed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.Get(ctx, userID, id); err != nil {
			return err
		}
		value := c.CurrentValue
		if p.Value != nil {
			value = *p.Value
		} else {
			value += *p.Delta
		}
		completed = c.SetProgress(value, s.now())
		return s.store.UpdateChallenge(ctx, c)
	})
	if err != nil {
		return nil, false, err
	}
	if completed {
		s.completed(ctx, c)
	}
	return c, completed, nil
}

func (s *Service) completed(ctx context.Context, c *models.Challenge) {
	if s.onCompleted == nil {
		return
	}
	if err := s.onCompleted(ctx, c.UserID, c); err != nil {
		logger.Warn("challenge completion hook failed", "challenge", c.ID, "user", c.UserID, "err", err)
	}
}

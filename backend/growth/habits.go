package growth

import (
	"context"
	"errors"
	"strings"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
)

// DefaultPoints is the point value of habits created without one.
const DefaultPoints = 10

// HabitInput holds the fields of a new habit.
type HabitInput struct {
	Name         string               `json:"name" validate:"required,max=100"`
	Description  string               `json:"description" validate:"max=500"`
	Category     models.HabitCategory `json:"category" validate:"required,oneof=NUTRITION EXERCISE SLEEP MINDSET HYDRATION PRODUCTIVITY OTHER"`
	TrackingType models.TrackingType  `json:"trackingType" validate:"omitempty,oneof=BOOLEAN COUNT DURATION"`
	Frequency    models.Frequency     `json:"frequency" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
	TargetCount  int                  `json:"targetCount" validate:"gte=0"`
	Unit         string               `json:"unit" validate:"max=30"`
	Points       int                  `json:"points" validate:"gte=0,lte=1000"`
}

// HabitPatch holds the fields of a habit update; nil fields are left unchanged.
type HabitPatch struct {
	Name         *string               `json:"name" validate:"omitempty,min=1,max=100"`
	Description  *string               `json:"description" validate:"omitempty,max=500"`
	Category     *models.HabitCategory `json:"category" validate:"omitempty,oneof=NUTRITION EXERCISE SLEEP MINDSET HYDRATION PRODUCTIVITY OTHER"`
	TrackingType *models.TrackingType  `json:"trackingType" validate:"omitempty,oneof=BOOLEAN COUNT DURATION"`
	Frequency    *models.Frequency     `json:"frequency" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
	TargetCount  *int                  `json:"targetCount" validate:"omitempty,gte=1"`
	Unit         *string               `json:"unit" validate:"omitempty,max=30"`
	Points       *int                  `json:"points" validate:"omitempty,gte=0,lte=1000"`
	IsActive     *bool                 `json:"isActive"`
}

// NewHabit validates input and builds a habit owned by userID with defaults
// applied. It does not store the habit.
func NewHabit(userID string, input HabitInput) (*models.Habit, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	habit := &models.Habit{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         input.Name,
		Description:  input.Description,
		Category:     input.Category,
		TrackingType: input.TrackingType,
		Frequency:    input.Frequency,
		TargetCount:  input.TargetCount,
		Unit:         input.Unit,
		Points:       input.Points,
		IsActive:     true,
	}
	if habit.TrackingType == "" {
		habit.TrackingType = models.TrackingBoolean
	}
	if habit.Frequency == "" {
		habit.Frequency = models.FrequencyDaily
	}
	if habit.TargetCount == 0 {
		habit.TargetCount = 1
	}
	if habit.Points == 0 {
		habit.Points = DefaultPoints
	}
	return habit, nil
}

// CreateHabit validates input and stores a new habit for the user.
func (s *Service) CreateHabit(ctx context.Context, userID string, input HabitInput) (*models.Habit, error) {
	habit, err := NewHabit(userID, input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	habit.CreatedAt, habit.UpdatedAt = now, now
	if err := s.store.AddHabit(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

// GetHabit returns the habit if it belongs to the user. Habits of other users
// are reported as not found.
func (s *Service) GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	habit, err := s.store.FindHabit(ctx, habitID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, ErrHabitNotFound
	}
	return habit, nil
}

// ListHabits returns the user's habits, optionally only the active ones.
func (s *Service) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*models.Habit, error) {
	return s.store.ListHabits(ctx, userID, activeOnly)
}

// UpdateHabit applies patch to the user's habit.
func (s *Service) UpdateHabit(ctx context.Context, userID, habitID string, patch HabitPatch) (*models.Habit, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}
	habit, err := s.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, utils.Invalid("name", "is required")
		}
		habit.Name = name
	}
	if patch.Description != nil {
		habit.Description = *patch.Description
	}
	if patch.Category != nil {
		habit.Category = *patch.Category
	}
	if patch.TrackingType != nil {
		habit.TrackingType = *patch.TrackingType
	}
	if patch.Frequency != nil {
		habit.Frequency = *patch.Frequency
	}
	if patch.TargetCount != nil {
		habit.TargetCount = *patch.TargetCount
	}
	if patch.Unit != nil {
		habit.Unit = *patch.Unit
	}
	if patch.Points != nil {
		habit.Points = *patch.Points
	}
	if patch.IsActive != nil {
		habit.IsActive = *patch.IsActive
	}
	if err := s.store.UpdateHabit(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

// DeleteHabit removes the user's habit with its entries and streaks. Points
// already added to daily scores stay.
func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	if _, err := s.GetHabit(ctx, userID, habitID); err != nil {
		return err
	}
	return s.store.DeleteHabit(ctx, habitID)
}

// Entries returns up to limit entries of the user's habit, newest first.
func (s *Service) Entries(ctx context.Context, userID, habitID string, limit int) ([]*models.HabitEntry, error) {
	if _, err := s.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 366 {
		limit = 30
	}
	return s.store.ListEntries(ctx, habitID, limit)
}

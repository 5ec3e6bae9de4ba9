package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/memory"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func newService(hook CompletionHook) *Service {
	s := NewService(memory.New(), hook)
	s.now = func() time.Time { return time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC) }
	return s
}

func validInput() Input {
	return Input{Title: "10k steps", Category: models.CategoryExercise, StartDate: "2024-05-01", EndDate: "2024-05-31", TargetValue: 10}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(nil)

	tests := []struct {
		name   string
		modify func(*Input)
		field  string
	}{
		{"end before start", func(in *Input) { in.EndDate = "2024-04-30" }, "endDate"},
		{"end equals start", func(in *Input) { in.EndDate = in.StartDate }, "endDate"},
		{"zero target", func(in *Input) { in.TargetValue = 0 }, "targetValue"},
		{"bad day", func(in *Input) { in.StartDate = "05/01/2024" }, "startDate"},
		{"missing title", func(in *Input) { in.Title = "" }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.modify(&in)
			_, err := s.Create(ctx, "u1", in)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	c, err := s.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	assert.False(t, c.IsCompleted)
	assert.Zero(t, c.CurrentValue)
}

func TestCompletionIsMonotonic(t *testing.T) {
	ctx := context.Background()
	var hooked []string
	s := newService(func(_ context.Context, userID string, c *models.Challenge) error {
		hooked = append(hooked, c.ID)
		return nil
	})
	c, err := s.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	steps := []struct {
		progress      Progress
		wantValue     int
		wantCompleted bool
		wantFlip      bool
	}{
		{Progress{Delta: intp(4)}, 4, false, false},
		{Progress{Value: intp(9)}, 9, false, false},
		{Progress{Delta: intp(1)}, 10, true, true},
		{Progress{Value: intp(3)}, 3, true, false},
		{Progress{Delta: intp(-10)}, 0, true, false},
		{Progress{Value: intp(12)}, 12, true, false},
	}
	for _, step := range steps {
		got, flipped, err := s.UpdateProgress(ctx, "u1", c.ID, step.progress)
		require.NoError(t, err)
		assert.Equal(t, step.wantValue, got.CurrentValue)
		assert.Equal(t, step.wantCompleted, got.IsCompleted)
		assert.Equal(t, step.wantFlip, flipped)
		if got.IsCompleted {
			require.NotNil(t, got.CompletedAt)
		}
	}
	assert.Equal(t, []string{c.ID}, hooked)
}

func TestUpdateProgressRequiresOneOf(t *testing.T) {
	ctx := context.Background()
	s := newService(nil)
	c, err := s.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	_, _, err = s.UpdateProgress(ctx, "u1", c.ID, Progress{})
	assert.Error(t, err)
	_, _, err = s.UpdateProgress(ctx, "u1", c.ID, Progress{Value: intp(1), Delta: intp(1)})
	assert.Error(t, err)
	_, _, err = s.UpdateProgress(ctx, "u2", c.ID, Progress{Value: intp(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoweringTargetCompletes(t *testing.T) {
	ctx := context.Background()
	s := newService(nil)
	c, err := s.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	_, _, err = s.UpdateProgress(ctx, "u1", c.ID, Progress{Value: intp(5)})
	require.NoError(t, err)

	got, err := s.Update(ctx, "u1", c.ID, Patch{TargetValue: intp(5)})
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	_, err = s.Update(ctx, "u1", c.ID, Patch{EndDate: strp("2024-04-01")})
	assert.Error(t, err)
}

func strp(v string) *string { return &v }

func TestListActiveOnly(t *testing.T) {
	ctx := context.Background()
	s := newService(nil)
	_, err := s.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	past := validInput()
	past.StartDate, past.EndDate = "2024-01-01", "2024-01-31"
	_, err = s.Create(ctx, "u1", past)
	require.NoError(t, err)

	all, err := s.List(ctx, "u1", false, time.UTC)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.List(ctx, "u1", true, time.UTC)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2024-05-31", active[0].EndDate)
}

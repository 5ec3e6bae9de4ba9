package onboarding

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/memory"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.AddUser(context.Background(), &models.User{
		ID: "u1", Username: "ana", Email: "ana@example.com", OnboardingStep: models.StepWelcome,
	}))
	return NewService(store), store
}

func TestWizardRunsInOrder(t *testing.T) {
	ctx := context.Background()
	s, store := setup(t)

	steps := []struct {
		step    models.OnboardingStep
		payload string
		next    models.OnboardingStep
	}{
		{models.StepWelcome, ``, models.StepGoals},
		{models.StepGoals, `{"goals":["lose fat","sleep better"]}`, models.StepHabits},
		{models.StepHabits, `{"habits":[{"name":"Walk","category":"EXERCISE"},{"name":"Water","category":"HYDRATION","points":5}]}`, models.StepSchedule},
		{models.StepSchedule, `{"wakeUpTime":"06:30","sleepTime":"22:45"}`, models.StepProfile},
		{models.StepProfile, `{"firstName":"Ana","lastName":"Diaz"}`, models.StepCompleted},
	}
	for _, st := range steps {
		res, err := s.Submit(ctx, "u1", st.step, json.RawMessage(st.payload))
		require.NoError(t, err, st.step)
		assert.Equal(t, st.next, res.Step)
	}

	user, err := store.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.OnboardingCompleted)
	assert.Equal(t, []string{"lose fat", "sleep better"}, user.Goals)
	assert.Equal(t, "06:30", user.WakeUpTime)
	assert.Equal(t, "Ana", user.FirstName)

	habits, err := store.ListHabits(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, habits, 2)

	_, err = s.Submit(ctx, "u1", models.StepProfile, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestOutOfOrderStep(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	_, err := s.Submit(ctx, "u1", models.StepSchedule, json.RawMessage(`{"wakeUpTime":"06:30","sleepTime":"22:45"}`))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, models.StepWelcome, stepErr.Want)

	_, err = s.Submit(ctx, "u1", "LUNCH", nil)
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInvalidHabitRollsBack(t *testing.T) {
	ctx := context.Background()
	s, store := setup(t)
	_, err := s.Submit(ctx, "u1", models.StepWelcome, nil)
	require.NoError(t, err)
	_, err = s.Submit(ctx, "u1", models.StepGoals, json.RawMessage(`{"goals":["x"]}`))
	require.NoError(t, err)

	_, err = s.Submit(ctx, "u1", models.StepHabits, json.RawMessage(`{"habits":[{"name":"Walk","category":"EXERCISE"},{"name":"","category":"SLEEP"}]}`))
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "habits[1].name")

	habits, err := store.ListHabits(ctx, "u1", false)
	require.NoError(t, err)
	assert.Empty(t, habits)

	status, err := s.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StepHabits, status.Step)
	assert.False(t, status.Completed)
}

func TestScheduleValidation(t *testing.T) {
	ctx := context.Background()
	s, store := setup(t)
	user, err := store.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	user.OnboardingStep = models.StepSchedule
	require.NoError(t, store.UpdateUser(ctx, user))

	_, err = s.Submit(ctx, "u1", "schedule", json.RawMessage(`{"wakeUpTime":"6am","sleepTime":"22:00"}`))
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "wakeUpTime")
}

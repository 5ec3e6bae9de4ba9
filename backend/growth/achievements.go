package growth

import (
	"context"
	"fmt"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	"github.com/google/uuid"
)

const (
	AchievementFirstHabit     = "first-habit"
	AchievementStreak7        = "streak-7"
	AchievementStreak30       = "streak-30"
	AchievementXP100          = "xp-100"
	AchievementXP1000         = "xp-1000"
	AchievementLevel5         = "level-5"
	AchievementFirstChallenge = "first-challenge"
)

// Catalogue is the achievement catalogue seeded into the database.
var Catalogue = []*models.Achievement{
	{ID: AchievementFirstHabit, Name: "First step", Description: "Complete a habit for the first time", Icon: "footprints", XPReward: 10},
	{ID: AchievementStreak7, Name: "On a roll", Description: "Keep a habit streak for 7 days", Icon: "flame", XPReward: 50},
	{ID: AchievementStreak30, Name: "Unbreakable", Description: "Keep a habit streak for 30 days", Icon: "shield", XPReward: 200},
	{ID: AchievementXP100, Name: "Getting started", Description: "Earn 100 XP", Icon: "star", XPReward: 0},
	{ID: AchievementXP1000, Name: "Grinder", Description: "Earn 1000 XP", Icon: "trophy", XPReward: 0},
	{ID: AchievementLevel5, Name: "Athlete", Description: "Reach level 5", Icon: "medal", XPReward: 100},
	{ID: AchievementFirstChallenge, Name: "Challenger", Description: "Complete your first challenge", Icon: "target", XPReward: 75},
}

// snapshot carries the counters achievement rules look at. Zero values never
// satisfy a rule, so callers only fill what they know.
type snapshot struct {
	completions int
	streak      int
	xp          int
	level       int
	challenges  int
}

var rules = map[string]func(snapshot) bool{
	AchievementFirstHabit:     func(s snapshot) bool { return s.completions >= 1 },
	AchievementStreak7:        func(s snapshot) bool { return s.streak >= 7 },
	AchievementStreak30:       func(s snapshot) bool { return s.streak >= 30 },
	AchievementXP100:          func(s snapshot) bool { return s.xp >= 100 },
	AchievementXP1000:         func(s snapshot) bool { return s.xp >= 1000 },
	AchievementLevel5:         func(s snapshot) bool { return s.level >= 5 },
	AchievementFirstChallenge: func(s snapshot) bool { return s.challenges >= 1 },
}

// unlock grants every achievement whose rule snap satisfies and that the user
// does not own yet, then credits the XP rewards. Rewards do not trigger a
// second evaluation. The returned status is non-nil when the rewards lifted
// the user to a higher level.
func (s *Service) unlock(ctx context.Context, userID string, snap snapshot) ([]*models.Achievement, *LevelStatus, error) {
	var unlocked []*models.Achievement
	reward := 0
	for _, achievement := range Catalogue {
		if !rules[achievement.ID](snap) {
			continue
		}
		owned, err := s.store.HasUserAchievement(ctx, userID, achievement.ID)
		if err != nil {
			return nil, nil, err
		}
		if owned {
			continue
		}
		ua := &models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: achievement.ID,
			UnlockedAt:    s.now(),
		}
		if err := s.store.AddUserAchievement(ctx, ua); err != nil {
			return nil, nil, err
		}
		unlocked = append(unlocked, achievement)
		reward += achievement.XPReward
	}
	if reward == 0 {
		return unlocked, nil, nil
	}
	status, leveledUp, err := s.AddXP(ctx, userID, reward)
	if err != nil || !leveledUp {
		return unlocked, nil, err
	}
	return unlocked, status, nil
}

func levelUpEvent(userID string, level *LevelStatus) *activity.Event {
	return &activity.Event{
		UserID:  userID,
		Kind:    activity.KindLevelUp,
		Points:  level.CurrentLevel,
		Message: fmt.Sprintf("Reached level %d, %s", level.CurrentLevel, level.LevelName),
	}
}

func achievementEvents(userID string, unlocked []*models.Achievement) []*activity.Event {
	events := make([]*activity.Event, 0, len(unlocked))
	for _, a := range unlocked {
		events = append(events, &activity.Event{
			UserID:  userID,
			Kind:    activity.KindAchievementUnlocked,
			RefID:   a.ID,
			Points:  a.XPReward,
			Message: fmt.Sprintf("Unlocked %q", a.Name),
		})
	}
	return events
}

// ListAchievements returns the catalogue.
func (s *Service) ListAchievements(ctx context.Context) ([]*models.Achievement, error) {
	return s.store.ListAchievements(ctx)
}

// UserAchievements returns the achievements the user unlocked.
func (s *Service) UserAchievements(ctx context.Context, userID string) ([]*models.UserAchievement, error) {
	return s.store.ListUserAchievements(ctx, userID)
}

// ChallengeCompleted is called once a challenge of the user flips to completed.
// It unlocks the challenge achievement and records the event.
func (s *Service) ChallengeCompleted(ctx context.Context, userID string, challenge *models.Challenge) error {
	var (
		unlocked []*models.Achievement
		level    *LevelStatus
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		unlocked, level, err = s.unlock(ctx, userID, snapshot{challenges: 1})
		return err
	})
	if err != nil {
		return err
	}
	events := []*activity.Event{{
		UserID:  userID,
		Kind:    activity.KindChallengeCompleted,
		RefID:   challenge.ID,
		Message: fmt.Sprintf("Completed challenge %q", challenge.Title),
	}}
	events = append(events, achievementEvents(userID, unlocked)...)
	if level != nil {
		events = append(events, levelUpEvent(userID, level))
	}
	s.record(ctx, events...)
	s.notify(ctx, userID, unlocked)
	return nil
}

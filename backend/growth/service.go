// Package growth implements the habit bookkeeping at the heart of the
// application: toggling habits, streaks, daily scores, XP, levels and
// achievements, plus the weekly and dashboard read models built on them.
package growth

import (
	"context"
	"errors"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/storage/activity"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/charmbracelet/log"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrHabitInactive = errors.New("habit is archived")
)

// Store is the part of the storage layer the growth service needs.
type Store interface {
	storage.Transactor
	storage.HabitStore
	storage.ScoreStore
	storage.LevelStore
	storage.AchievementStore
	storage.ChallengeStore
}

// AchievementNotifier is told about every unlocked achievement once the
// unlocking transaction has committed.
type AchievementNotifier interface {
	AchievementUnlocked(ctx context.Context, userID string, achievement *models.Achievement) error
}

// Service implements the growth operations.
type Service struct {
	store    Store
	activity activity.Recorder
	notifier AchievementNotifier
	now      func() time.Time
	loc      *time.Location
	log      *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone in which day keys are computed.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithActivity sets the recorder of activity events.
func WithActivity(r activity.Recorder) Option {
	return func(s *Service) { s.activity = r }
}

// WithNotifier sets the achievement notifier.
func WithNotifier(n AchievementNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a growth service on store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		activity: activity.NopRecorder{},
		now:      time.Now,
		loc:      time.UTC,
		log:      logger.With("component", "growth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current day key in the service time zone.
func (s *Service) Today() string {
	return utils.DayKey(s.now(), s.loc)
}

// record stores activity events outside of any transaction. Failures are
// logged and never fail the calling operation.
func (s *Service) record(ctx context.Context, events ...*activity.Event) {
	for _, event := range events {
		if event.CreatedAt.IsZero() {
			event.CreatedAt = s.now()
		}
		if err := s.activity.Record(ctx, event); err != nil {
			s.log.Warn("failed to record activity", "kind", event.Kind, "user", event.UserID, "err", err)
		}
	}
}

func (s *Service) notify(ctx context.Context, userID string, unlocked []*models.Achievement) {
	if s.notifier == nil {
		return
	}
	for _, a := range unlocked {
		if err := s.notifier.AchievementUnlocked(ctx, userID, a); err != nil {
			s.log.Warn("failed to notify achievement", "achievement", a.ID, "user", userID, "err", err)
		}
	}
}

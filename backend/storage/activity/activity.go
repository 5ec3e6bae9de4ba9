package activity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kinds of recorded events.
const (
	KindHabitCompleted      = "habit_completed"
	KindHabitUncompleted    = "habit_uncompleted"
	KindLevelUp             = "level_up"
	KindAchievementUnlocked = "achievement_unlocked"
	KindChallengeCompleted  = "challenge_completed"
)

// Event is one entry of a user's activity feed.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	Kind      string             `bson:"kind" json:"kind"`
	RefID     string             `bson:"refId,omitempty" json:"refId,omitempty"`
	Points    int                `bson:"points" json:"points"`
	Message   string             `bson:"message" json:"message"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Recorder stores and lists activity events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	ListForUser(ctx context.Context, userID string, limit int64) ([]*Event, error)
}

// NopRecorder discards events. It is used when MongoDB is not configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *Event) error { return nil }

func (NopRecorder) ListForUser(context.Context, string, int64) ([]*Event, error) {
	return []*Event{}, nil
}

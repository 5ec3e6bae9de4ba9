package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

// ErrNotFound is returned when a lookup, update or delete matches no row.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("record already exists")

// ListOptions holds the paging and filter parameters shared by list queries.
type ListOptions struct {
	Limit    int
	Offset   int
	Search   string
	Status   models.ContentStatus
	AuthorID string
}

// PageSize returns the effective limit: 20 when unset, capped at 100.
func (o ListOptions) PageSize() int {
	switch {
	case o.Limit <= 0:
		return 20
	case o.Limit > 100:
		return 100
	}
	return o.Limit
}

// Transactor runs fn inside a database transaction. Store methods called with
// the context handed to fn take part in that transaction; a nested call joins
// the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserStore persists accounts.
type UserStore interface {
	AddUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdateUser writes the given columns of user, or every column when none are named.
	UpdateUser(ctx context.Context, user *models.User, columns ...string) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, opts ListOptions) ([]*models.User, int, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
}

// TokenStore persists refresh tokens and email confirmation codes.
type TokenStore interface {
	AddRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
	// SaveConfirmation stores confirmation, replacing any previous one of the same user.
	SaveConfirmation(ctx context.Context, confirmation *models.Confirmation) error
	FindConfirmation(ctx context.Context, userID string) (*models.Confirmation, error)
	DeleteConfirmation(ctx context.Context, userID string) error
	// PurgeExpiredTokens deletes refresh tokens and confirmations that expired before now.
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// HabitStore persists habits together with their entries and streaks.
type HabitStore interface {
	AddHabit(ctx context.Context, habit *models.Habit) error
	FindHabit(ctx context.Context, id string) (*models.Habit, error)
	ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*models.Habit, error)
	UpdateHabit(ctx context.Context, habit *models.Habit, columns ...string) error
	DeleteHabit(ctx context.Context, id string) error

	FindEntry(ctx context.Context, habitID, day string) (*models.HabitEntry, error)
	AddEntry(ctx context.Context, entry *models.HabitEntry) error
	UpdateEntry(ctx context.Context, entry *models.HabitEntry) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, habitID string, limit int) ([]*models.HabitEntry, error)
	ListEntriesForDay(ctx context.Context, userID, day string) ([]*models.HabitEntry, error)
	CountCompletedEntries(ctx context.Context, userID string) (int, error)

	FindActiveStreak(ctx context.Context, habitID string) (*models.HabitStreak, error)
	ListActiveStreaks(ctx context.Context, userID string) ([]*models.HabitStreak, error)
	AddStreak(ctx context.Context, streak *models.HabitStreak) error
	UpdateStreak(ctx context.Context, streak *models.HabitStreak) error
}

// ScoreStore persists the daily score aggregates.
type ScoreStore interface {
	FindDailyScore(ctx context.Context, userID, day string) (*models.DailyScore, error)
	AddDailyScore(ctx context.Context, score *models.DailyScore) error
	UpdateDailyScore(ctx context.Context, score *models.DailyScore) error
	// ListDailyScores returns the scores of days in [from, to], ordered by day.
	ListDailyScores(ctx context.Context, userID, from, to string) ([]*models.DailyScore, error)
}

// LevelStore persists XP and level data.
type LevelStore interface {
	FindLevelData(ctx context.Context, userID string) (*models.UserLevelData, error)
	// SaveLevelData inserts or replaces the level row of data.UserID.
	SaveLevelData(ctx context.Context, data *models.UserLevelData) error
	ListLevelData(ctx context.Context) ([]*models.UserLevelData, error)
	ListLevelConfigs(ctx context.Context) ([]*models.LevelConfig, error)
}

// AchievementStore persists the achievement catalogue and unlocks.
type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]*models.Achievement, error)
	ListUserAchievements(ctx context.Context, userID string) ([]*models.UserAchievement, error)
	HasUserAchievement(ctx context.Context, userID, achievementID string) (bool, error)
	AddUserAchievement(ctx context.Context, ua *models.UserAchievement) error
}

// ChallengeStore persists user challenges.
type ChallengeStore interface {
	AddChallenge(ctx context.Context, challenge *models.Challenge) error
	FindChallenge(ctx context.Context, id string) (*models.Challenge, error)
	// ListChallenges returns the user's challenges. When activeOn is a day key
	// only open challenges whose window contains that day are returned.
	ListChallenges(ctx context.Context, userID, activeOn string) ([]*models.Challenge, error)
	UpdateChallenge(ctx context.Context, challenge *models.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
}

// ForumStore persists forums, topics and replies.
type ForumStore interface {
	AddForum(ctx context.Context, forum *models.Forum) error
	FindForum(ctx context.Context, id string) (*models.Forum, error)
	ListForums(ctx context.Context) ([]*models.Forum, error)
	UpdateForum(ctx context.Context, forum *models.Forum) error
	DeleteForum(ctx context.Context, id string) error
	CountTopics(ctx context.Context, forumID string) (int, error)

	AddTopic(ctx context.Context, topic *models.ForumTopic) error
	FindTopic(ctx context.Context, id string) (*models.ForumTopic, error)
	ListTopics(ctx context.Context, forumID string) ([]*models.ForumTopic, error)
	DeleteTopic(ctx context.Context, id string) error

	AddReply(ctx context.Context, reply *models.ForumReply) error
	FindReply(ctx context.Context, id string) (*models.ForumReply, error)
	ListReplies(ctx context.Context, topicID string) ([]*models.ForumReply, error)
	DeleteReply(ctx context.Context, id string) error
}

// ProgrammeStore persists programmes with their nested weekly plans and daily tasks.
// Writes of the nested tree are atomic.
type ProgrammeStore interface {
	AddProgramme(ctx context.Context, programme *models.Programme) error
	FindProgramme(ctx context.Context, id string) (*models.Programme, error)
	ListProgrammes(ctx context.Context, opts ListOptions) ([]*models.Programme, int, error)
	// UpdateProgramme replaces the programme columns and its whole plan tree.
	UpdateProgramme(ctx context.Context, programme *models.Programme) error
	DeleteProgramme(ctx context.Context, id string) error
}

// SubmissionValidator checks answers against a form and returns the answers to store.
type SubmissionValidator func(form *models.Form, answers map[string]string) (map[string]string, error)

// FormStore persists forms, their fields and submissions.
type FormStore interface {
	AddForm(ctx context.Context, form *models.Form) error
	FindForm(ctx context.Context, id string) (*models.Form, error)
	ListForms(ctx context.Context, activeOnly bool) ([]*models.Form, error)
	// UpdateForm replaces the form columns and its fields.
	UpdateForm(ctx context.Context, form *models.Form) error
	DeleteForm(ctx context.Context, id string) error
	// SubmitForm loads the form, validates answers and stores the submission
	// in one transaction.
	SubmitForm(ctx context.Context, formID, userID string, answers map[string]string, validate SubmissionValidator) (*models.FormSubmission, error)
	ListSubmissions(ctx context.Context, formID string) ([]*models.FormSubmission, error)
}

// Stats is the back-office summary.
type Stats struct {
	Users          int `json:"users"`
	Coaches        int `json:"coaches"`
	Admins         int `json:"admins"`
	Habits         int `json:"habits"`
	CompletedToday int `json:"completedToday"`
	Challenges     int `json:"challenges"`
	Forums         int `json:"forums"`
	Topics         int `json:"topics"`
}

// StorageInterface defines the set of methods that the relational storage
// backend implements.
type StorageInterface interface {
	Transactor
	UserStore
	TokenStore
	HabitStore
	ScoreStore
	LevelStore
	AchievementStore
	ChallengeStore
	ForumStore
	ProgrammeStore
	FormStore

	// Stats counts the main entities; completions are counted for day.
	Stats(ctx context.Context, day string) (*Stats, error)
	// Export collects everything stored about a user.
	Export(ctx context.Context, userID string) (*UserExport, error)
	// Migrate creates missing tables and indexes.
	Migrate(ctx context.Context) error
	// Seed inserts the level table and achievement catalogue, keeping existing rows.
	Seed(ctx context.Context, levels []*models.LevelConfig, achievements []*models.Achievement) error
	Ping(ctx context.Context) error
	Close() error
}

// NewStorage creates a new StorageInterface with a PostgreSQL backend,
// using the provided DSN to connect to the server.
func NewStorage(ctx context.Context, dsn string, poolSize int) (StorageInterface, error) {
	return Connect(ctx, dsn, poolSize)
}

// Package memory is an in-memory implementation of the storage interfaces. It
// enforces the same unique keys and cascades as the PostgreSQL schema and
// rolls back failed transactions, which makes it suitable for tests and for
// running the API without a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
)

// ErrForumHasTopics mirrors the foreign key violation raised by PostgreSQL
// when deleting a forum that still has topics.
var ErrForumHasTopics = errors.New("forum still has topics")

type data struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	confirmations map[string]models.Confirmation // by user id
	habits        map[string]models.Habit
	entries       map[string]models.HabitEntry
	streaks       map[string]models.HabitStreak
	scores        map[string]models.DailyScore
	levelData     map[string]models.UserLevelData
	levels        map[int]models.LevelConfig
	achievements  map[string]models.Achievement
	unlocked      map[string]models.UserAchievement
	challenges    map[string]models.Challenge
	forums        map[string]models.Forum
	topics        map[string]models.ForumTopic
	replies       map[string]models.ForumReply
	programmes    map[string]models.Programme
	forms         map[string]models.Form
	submissions   map[string]models.FormSubmission
}

func newData() *data {
	return &data{
		users:         map[string]models.User{},
		refreshTokens: map[string]models.RefreshToken{},
		confirmations: map[string]models.Confirmation{},
		habits:        map[string]models.Habit{},
		entries:       map[string]models.HabitEntry{},
		streaks:       map[string]models.HabitStreak{},
		scores:        map[string]models.DailyScore{},
		levelData:     map[string]models.UserLevelData{},
		levels:        map[int]models.LevelConfig{},
		achievements:  map[string]models.Achievement{},
		unlocked:      map[string]models.UserAchievement{},
		challenges:    map[string]models.Challenge{},
		forums:        map[string]models.Forum{},
		topics:        map[string]models.ForumTopic{},
		replies:       map[string]models.ForumReply{},
		programmes:    map[string]models.Programme{},
		forms:         map[string]models.Form{},
		submissions:   map[string]models.FormSubmission{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	return &data{
		users:         copyMap(d.users),
		refreshTokens: copyMap(d.refreshTokens),
		confirmations: copyMap(d.confirmations),
		habits:        copyMap(d.habits),
		entries:       copyMap(d.entries),
		streaks:       copyMap(d.streaks),
		scores:        copyMap(d.scores),
		levelData:     copyMap(d.levelData),
		levels:        copyMap(d.levels),
		achievements:  copyMap(d.achievements),
		unlocked:      copyMap(d.unlocked),
		challenges:    copyMap(d.challenges),
		forums:        copyMap(d.forums),
		topics:        copyMap(d.topics),
		replies:       copyMap(d.replies),
		programmes:    copyMap(d.programmes),
		forms:         copyMap(d.forms),
		submissions:   copyMap(d.submissions),
	}
}

// Store is the in-memory StorageInterface.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data
}

var _ storage.StorageInterface = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{d: newData()}
}

type txKey struct{}

// WithTx serialises transactions and restores the previous state when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Seed(_ context.Context, levels []*models.LevelConfig, achievements []*models.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range levels {
		if _, ok := s.d.levels[l.Level]; !ok {
			s.d.levels[l.Level] = *l
		}
	}
	for _, a := range achievements {
		if _, ok := s.d.achievements[a.ID]; !ok {
			s.d.achievements[a.ID] = *a
		}
	}
	return nil
}

func page[T any](items []T, opts storage.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if n := opts.PageSize(); len(items) > n {
		items = items[:n]
	}
	return items
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *Store) AddUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.d.users {
		if u.ID == user.ID || strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return storage.ErrConflict
		}
	}
	s.d.users[user.ID] = *user
	return nil
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.d.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) FindUserByID(_ context.Context, id string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id })
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) UpdateUser(_ context.Context, user *models.User, _ ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.users[user.ID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, u := range s.d.users {
		if u.ID != user.ID && (strings.EqualFold(u.Email, user.Email) || u.Username == user.Username) {
			return storage.ErrConflict
		}
	}
	user.CreatedAt = old.CreatedAt
	user.UpdatedAt = time.Now()
	s.d.users[user.ID] = *user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.users, id)
	delete(s.d.confirmations, id)
	delete(s.d.levelData, id)
	for k, v := range s.d.refreshTokens {
		if v.UserID == id {
			delete(s.d.refreshTokens, k)
		}
	}
	for k, v := range s.d.habits {
		if v.UserID == id {
			s.deleteHabitLocked(k)
		}
	}
	for k, v := range s.d.scores {
		if v.UserID == id {
			delete(s.d.scores, k)
		}
	}
	for k, v := range s.d.challenges {
		if v.UserID == id {
			delete(s.d.challenges, k)
		}
	}
	for k, v := range s.d.unlocked {
		if v.UserID == id {
			delete(s.d.unlocked, k)
		}
	}
	return nil
}

func (s *Store) ListUsers(_ context.Context, opts storage.ListOptions) ([]*models.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*models.User
	for _, u := range s.d.users {
		if opts.Search != "" && !contains(u.Username, opts.Search) && !contains(u.Email, opts.Search) {
			continue
		}
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return page(users, opts), len(users), nil
}

func (s *Store) ListUsersByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []*models.User{}
	for _, u := range s.d.users {
		if u.Role == role {
			users = append(users, &u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) AddRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.refreshTokens[token.ID]; ok {
		return storage.ErrConflict
	}
	s.d.refreshTokens[token.ID] = *token
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, id string) (*models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.d.refreshTokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.refreshTokens[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.refreshTokens, id)
	return nil
}

func (s *Store) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.d.refreshTokens {
		if v.UserID == userID {
			delete(s.d.refreshTokens, k)
		}
	}
	return nil
}

func (s *Store) SaveConfirmation(_ context.Context, c *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.d.confirmations[c.UserID]; ok {
		c.ID = old.ID
	}
	s.d.confirmations[c.UserID] = *c
	return nil
}

func (s *Store) FindConfirmation(_ context.Context, userID string) (*models.Confirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.confirmations[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) DeleteConfirmation(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.confirmations[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.confirmations, userID)
	return nil
}

func (s *Store) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.d.refreshTokens {
		if v.ExpiresAt.Before(now) {
			delete(s.d.refreshTokens, k)
			n++
		}
	}
	for k, v := range s.d.confirmations {
		if v.ExpiresAt.Before(now) {
			delete(s.d.confirmations, k)
			n++
		}
	}
	return n, nil
}

package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	storage "github.com/Rodvdev/gainz-factory-sub003/backend/storage/persistent"
	"github.com/google/uuid"
)

func (s *Store) AddForum(_ context.Context, forum *models.Forum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.forums[forum.ID]; ok {
		return storage.ErrConflict
	}
	s.d.forums[forum.ID] = *forum
	return nil
}

func (s *Store) topicCount(forumID string) int {
	n := 0
	for _, t := range s.d.topics {
		if t.ForumID == forumID {
			n++
		}
	}
	return n
}

func (s *Store) replyCount(topicID string) int {
	n := 0
	for _, r := range s.d.replies {
		if r.TopicID == topicID {
			n++
		}
	}
	return n
}

func (s *Store) FindForum(_ context.Context, id string) (*models.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.d.forums[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	f.TopicCount = s.topicCount(id)
	return &f, nil
}

func (s *Store) ListForums(_ context.Context) ([]*models.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forums := []*models.Forum{}
	for _, f := range s.d.forums {
		f.TopicCount = s.topicCount(f.ID)
		forums = append(forums, &f)
	}
	sort.Slice(forums, func(i, j int) bool { return forums[i].CreatedAt.Before(forums[j].CreatedAt) })
	return forums, nil
}

func (s *Store) UpdateForum(_ context.Context, forum *models.Forum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.forums[forum.ID]
	if !ok {
		return storage.ErrNotFound
	}
	old.Title, old.Description, old.IsActive = forum.Title, forum.Description, forum.IsActive
	old.UpdatedAt = time.Now()
	forum.UpdatedAt = old.UpdatedAt
	s.d.forums[forum.ID] = old
	return nil
}

func (s *Store) DeleteForum(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.forums[id]; !ok {
		return storage.ErrNotFound
	}
	if s.topicCount(id) > 0 {
		return ErrForumHasTopics
	}
	delete(s.d.forums, id)
	return nil
}

func (s *Store) CountTopics(_ context.Context, forumID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topicCount(forumID), nil
}

func (s *Store) AddTopic(_ context.Context, topic *models.ForumTopic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.forums[topic.ForumID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.d.topics[topic.ID]; ok {
		return storage.ErrConflict
	}
	s.d.topics[topic.ID] = *topic
	return nil
}

func (s *Store) FindTopic(_ context.Context, id string) (*models.ForumTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.d.topics[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t.ReplyCount = s.replyCount(id)
	return &t, nil
}

func (s *Store) ListTopics(_ context.Context, forumID string) ([]*models.ForumTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := []*models.ForumTopic{}
	for _, t := range s.d.topics {
		if t.ForumID != forumID {
			continue
		}
		t.ReplyCount = s.replyCount(t.ID)
		topics = append(topics, &t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].IsPinned != topics[j].IsPinned {
			return topics[i].IsPinned
		}
		return topics[i].CreatedAt.After(topics[j].CreatedAt)
	})
	return topics, nil
}

func (s *Store) DeleteTopic(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.topics[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.topics, id)
	for k, r := range s.d.replies {
		if r.TopicID == id {
			delete(s.d.replies, k)
		}
	}
	return nil
}

func (s *Store) AddReply(_ context.Context, reply *models.ForumReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic, ok := s.d.topics[reply.TopicID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.d.replies[reply.ID]; ok {
		return storage.ErrConflict
	}
	s.d.replies[reply.ID] = *reply
	topic.UpdatedAt = time.Now()
	s.d.topics[topic.ID] = topic
	return nil
}

func (s *Store) FindReply(_ context.Context, id string) (*models.ForumReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.d.replies[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListReplies(_ context.Context, topicID string) ([]*models.ForumReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	replies := []*models.ForumReply{}
	for _, r := range s.d.replies {
		if r.TopicID == topicID {
			replies = append(replies, &r)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	return replies, nil
}

func (s *Store) DeleteReply(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.replies[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.replies, id)
	return nil
}

// copyProgramme copies the plan tree so callers never share slices with the store.
func copyProgramme(p models.Programme) models.Programme {
	plans := make([]*models.WeeklyPlan, 0, len(p.WeeklyPlans))
	for _, plan := range p.WeeklyPlans {
		cp := *plan
		cp.DailyTasks = make([]*models.DailyTask, 0, len(plan.DailyTasks))
		for _, task := range plan.DailyTasks {
			t := *task
			cp.DailyTasks = append(cp.DailyTasks, &t)
		}
		plans = append(plans, &cp)
	}
	p.WeeklyPlans = plans
	return p
}

func assignPlans(p *models.Programme) {
	for _, plan := range p.WeeklyPlans {
		plan.ID = uuid.NewString()
		plan.ProgrammeID = p.ID
		for i, task := range plan.DailyTasks {
			task.ID = uuid.NewString()
			task.WeeklyPlanID = plan.ID
			if task.Position == 0 {
				task.Position = i + 1
			}
		}
	}
}

func (s *Store) AddProgramme(_ context.Context, p *models.Programme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.programmes[p.ID]; ok {
		return storage.ErrConflict
	}
	assignPlans(p)
	s.d.programmes[p.ID] = copyProgramme(*p)
	return nil
}

func (s *Store) FindProgramme(_ context.Context, id string) (*models.Programme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.programmes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p = copyProgramme(p)
	sort.Slice(p.WeeklyPlans, func(i, j int) bool { return p.WeeklyPlans[i].WeekNumber < p.WeeklyPlans[j].WeekNumber })
	for _, plan := range p.WeeklyPlans {
		tasks := plan.DailyTasks
		sort.Slice(tasks, func(i, j int) bool {
			if tasks[i].DayOfWeek != tasks[j].DayOfWeek {
				return tasks[i].DayOfWeek < tasks[j].DayOfWeek
			}
			return tasks[i].Position < tasks[j].Position
		})
	}
	return &p, nil
}

func (s *Store) ListProgrammes(_ context.Context, opts storage.ListOptions) ([]*models.Programme, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Programme
	for _, p := range s.d.programmes {
		if (opts.Status != "" && p.Status != opts.Status) ||
			(opts.AuthorID != "" && p.AuthorID != opts.AuthorID) ||
			(opts.Search != "" && !contains(p.Title, opts.Search)) {
			continue
		}
		p.WeeklyPlans = nil
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), len(out), nil
}

func (s *Store) UpdateProgramme(_ context.Context, p *models.Programme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.programmes[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	p.CreatedAt, p.AuthorID = old.CreatedAt, old.AuthorID
	p.UpdatedAt = time.Now()
	assignPlans(p)
	s.d.programmes[p.ID] = copyProgramme(*p)
	return nil
}

func (s *Store) DeleteProgramme(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.programmes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.programmes, id)
	return nil
}

func copyForm(f models.Form) models.Form {
	fields := make([]*models.InputField, 0, len(f.Fields))
	for _, field := range f.Fields {
		cp := *field
		fields = append(fields, &cp)
	}
	f.Fields = fields
	return f
}

func assignFields(f *models.Form) {
	for i, field := range f.Fields {
		field.ID = uuid.NewString()
		field.FormID = f.ID
		if field.Position == 0 {
			field.Position = i + 1
		}
	}
}

func (s *Store) AddForm(_ context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.forms[form.ID]; ok {
		return storage.ErrConflict
	}
	assignFields(form)
	s.d.forms[form.ID] = copyForm(*form)
	return nil
}

func (s *Store) FindForm(_ context.Context, id string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.d.forms[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	f = copyForm(f)
	sort.Slice(f.Fields, func(i, j int) bool { return f.Fields[i].Position < f.Fields[j].Position })
	return &f, nil
}

func (s *Store) ListForms(_ context.Context, activeOnly bool) ([]*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forms := []*models.Form{}
	for _, f := range s.d.forms {
		if activeOnly && !f.IsActive {
			continue
		}
		f.Fields = nil
		forms = append(forms, &f)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].CreatedAt.After(forms[j].CreatedAt) })
	return forms, nil
}

func (s *Store) UpdateForm(_ context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.d.forms[form.ID]
	if !ok {
		return storage.ErrNotFound
	}
	form.CreatedAt, form.CreatedBy = old.CreatedAt, old.CreatedBy
	form.UpdatedAt = time.Now()
	assignFields(form)
	s.d.forms[form.ID] = copyForm(*form)
	return nil
}

func (s *Store) DeleteForm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.forms[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.d.forms, id)
	for k, sub := range s.d.submissions {
		if sub.FormID == id {
			delete(s.d.submissions, k)
		}
	}
	return nil
}

func (s *Store) SubmitForm(ctx context.Context, formID, userID string, answers map[string]string, validate storage.SubmissionValidator) (*models.FormSubmission, error) {
	var submission *models.FormSubmission
	err := s.WithTx(ctx, func(ctx context.Context) error {
		form, err := s.FindForm(ctx, formID)
		if err != nil {
			return err
		}
		clean, err := validate(form, answers)
		if err != nil {
			return err
		}
		submission = &models.FormSubmission{
			ID:        uuid.NewString(),
			FormID:    form.ID,
			UserID:    userID,
			Answers:   clean,
			CreatedAt: time.Now(),
		}
		s.mu.Lock()
		s.d.submissions[submission.ID] = *submission
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *Store) ListSubmissions(_ context.Context, formID string) ([]*models.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := []*models.FormSubmission{}
	for _, sub := range s.d.submissions {
		if sub.FormID == formID {
			subs = append(subs, &sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (s *Store) Stats(_ context.Context, day string) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &storage.Stats{
		Users:      len(s.d.users),
		Habits:     len(s.d.habits),
		Challenges: len(s.d.challenges),
		Forums:     len(s.d.forums),
		Topics:     len(s.d.topics),
	}
	for _, u := range s.d.users {
		switch u.Role {
		case models.RoleCoach:
			stats.Coaches++
		case models.RoleAdmin:
			stats.Admins++
		}
	}
	for _, e := range s.d.entries {
		if e.Day == day && e.IsCompleted {
			stats.CompletedToday++
		}
	}
	return stats, nil
}

func (s *Store) Export(ctx context.Context, userID string) (*storage.UserExport, error) {
	user, err := s.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &storage.UserExport{User: user}
	if out.Level, err = s.FindLevelData(ctx, userID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if out.Habits, err = s.ListHabits(ctx, userID, false); err != nil {
		return nil, err
	}
	if out.Scores, err = s.ListDailyScores(ctx, userID, "", "9999-12-31"); err != nil {
		return nil, err
	}
	if out.Challenges, err = s.ListChallenges(ctx, userID, ""); err != nil {
		return nil, err
	}
	if out.Achievements, err = s.ListUserAchievements(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out.Entries, out.Streaks, out.Submissions = []*models.HabitEntry{}, []*models.HabitStreak{}, []*models.FormSubmission{}
	for _, e := range s.d.entries {
		if e.UserID == userID {
			out.Entries = append(out.Entries, &e)
		}
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Day < out.Entries[j].Day })
	for _, st := range s.d.streaks {
		if st.UserID == userID {
			out.Streaks = append(out.Streaks, &st)
		}
	}
	sort.Slice(out.Streaks, func(i, j int) bool { return out.Streaks[i].StartDay < out.Streaks[j].StartDay })
	for _, sub := range s.d.submissions {
		if sub.UserID == userID {
			out.Submissions = append(out.Submissions, &sub)
		}
	}
	return out, nil
}

// Repository is the in-memory counterpart of storage.Repository.
type Repository[T any, PT interface {
	*T
	models.Content
}] struct {
	mu     sync.RWMutex
	items  map[string]T
	search func(PT) []string
}

// NewRepository returns an empty repository. search lists the values matched
// by the Search list option.
func NewRepository[T any, PT interface {
	*T
	models.Content
}](search func(PT) []string) *Repository[T, PT] {
	return &Repository[T, PT]{items: map[string]T{}, search: search}
}

func (r *Repository[T, PT]) Create(_ context.Context, item PT) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := item.Meta()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Status == "" {
		meta.Status = models.StatusDraft
	}
	if _, ok := r.items[meta.ID]; ok {
		return storage.ErrConflict
	}
	now := time.Now()
	meta.CreatedAt, meta.UpdatedAt = now, now
	r.items[meta.ID] = *item
	return nil
}

func (r *Repository[T, PT]) Get(_ context.Context, id string) (PT, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return PT(&item), nil
}

func (r *Repository[T, PT]) List(_ context.Context, opts storage.ListOptions) ([]PT, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []PT
	for _, item := range r.items {
		p := PT(&item)
		meta := p.Meta()
		if (opts.Status != "" && meta.Status != opts.Status) || (opts.AuthorID != "" && meta.AuthorID != opts.AuthorID) {
			continue
		}
		if opts.Search != "" && !r.matches(p, opts.Search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta().CreatedAt.After(out[j].Meta().CreatedAt) })
	return page(out, opts), len(out), nil
}

func (r *Repository[T, PT]) matches(item PT, needle string) bool {
	if r.search == nil {
		return false
	}
	for _, v := range r.search(item) {
		if contains(v, needle) {
			return true
		}
	}
	return false
}

func (r *Repository[T, PT]) Update(_ context.Context, item PT) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := item.Meta()
	old, ok := r.items[meta.ID]
	if !ok {
		return storage.ErrNotFound
	}
	prev := PT(&old).Meta()
	meta.CreatedAt, meta.AuthorID = prev.CreatedAt, prev.AuthorID
	meta.UpdatedAt = time.Now()
	r.items[meta.ID] = *item
	return nil
}

func (r *Repository[T, PT]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

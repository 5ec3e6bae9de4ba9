package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/uptrace/bun"
)

const topicCountExpr = "(SELECT count(*) FROM forum_topics AS t WHERE t.forum_id = f.id) AS topic_count"

const replyCountExpr = "(SELECT count(*) FROM forum_replies AS r WHERE r.topic_id = ft.id) AS reply_count"

func (s *BunStorage) AddForum(ctx context.Context, forum *models.Forum) error {
	_, err := s.conn(ctx).NewInsert().Model(forum).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindForum(ctx context.Context, id string) (*models.Forum, error) {
	forum := new(models.Forum)
	err := s.conn(ctx).NewSelect().Model(forum).
		ColumnExpr("f.*").
		ColumnExpr(topicCountExpr).
		Where("f.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return forum, nil
}

func (s *BunStorage) ListForums(ctx context.Context) ([]*models.Forum, error) {
	var forums []*models.Forum
	err := s.conn(ctx).NewSelect().Model(&forums).
		ColumnExpr("f.*").
		ColumnExpr(topicCountExpr).
		Order("f.created_at ASC").
		Scan(ctx)
	return forums, wrapErr(err)
}

func (s *BunStorage) UpdateForum(ctx context.Context, forum *models.Forum) error {
	forum.UpdatedAt = time.Now()
	return affected(s.conn(ctx).NewUpdate().Model(forum).
		Column("title", "description", "is_active", "updated_at").
		WherePK().
		Exec(ctx))
}

// DeleteForum removes an empty forum. Callers check CountTopics first; the
// foreign key without cascade rejects deleting a forum that still has topics.
func (s *BunStorage) DeleteForum(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Forum)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) CountTopics(ctx context.Context, forumID string) (int, error) {
	n, err := s.conn(ctx).NewSelect().Model((*models.ForumTopic)(nil)).Where("ft.forum_id = ?", forumID).Count(ctx)
	return n, wrapErr(err)
}

func (s *BunStorage) AddTopic(ctx context.Context, topic *models.ForumTopic) error {
	_, err := s.conn(ctx).NewInsert().Model(topic).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindTopic(ctx context.Context, id string) (*models.ForumTopic, error) {
	topic := new(models.ForumTopic)
	err := s.conn(ctx).NewSelect().Model(topic).
		ColumnExpr("ft.*").
		ColumnExpr(replyCountExpr).
		Where("ft.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return topic, nil
}

// ListTopics returns pinned topics first, then the most recent.
func (s *BunStorage) ListTopics(ctx context.Context, forumID string) ([]*models.ForumTopic, error) {
	var topics []*models.ForumTopic
	err := s.conn(ctx).NewSelect().Model(&topics).
		ColumnExpr("ft.*").
		ColumnExpr(replyCountExpr).
		Where("ft.forum_id = ?", forumID).
		OrderExpr("ft.is_pinned DESC, ft.created_at DESC").
		Scan(ctx)
	return topics, wrapErr(err)
}

// DeleteTopic removes the topic and, through the cascading foreign key, its replies.
func (s *BunStorage) DeleteTopic(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.ForumTopic)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) AddReply(ctx context.Context, reply *models.ForumReply) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).NewInsert().Model(reply).Exec(ctx); err != nil {
			return wrapErr(err)
		}
		// Bump the topic so recently answered topics sort first.
		_, err := s.conn(ctx).NewUpdate().Model((*models.ForumTopic)(nil)).
			Set("updated_at = ?", bun.Safe("current_timestamp")).
			Where("id = ?", reply.TopicID).
			Exec(ctx)
		return wrapErr(err)
	})
}

func (s *BunStorage) FindReply(ctx context.Context, id string) (*models.ForumReply, error) {
	reply := new(models.ForumReply)
	if err := s.conn(ctx).NewSelect().Model(reply).Where("fr.id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return reply, nil
}

func (s *BunStorage) ListReplies(ctx context.Context, topicID string) ([]*models.ForumReply, error) {
	var replies []*models.ForumReply
	err := s.conn(ctx).NewSelect().Model(&replies).Where("fr.topic_id = ?", topicID).Order("fr.created_at ASC").Scan(ctx)
	return replies, wrapErr(err)
}

func (s *BunStorage) DeleteReply(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.ForumReply)(nil)).Where("id = ?", id).Exec(ctx))
}

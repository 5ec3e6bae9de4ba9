package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Forum struct {
	bun.BaseModel `bun:"table:forums,alias:f"`

	ID          string    `bun:"id,pk" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description,notnull" json:"description"`
	CreatedBy   string    `bun:"created_by,notnull" json:"createdBy"`
	IsActive    bool      `bun:"is_active,notnull,default:true" json:"isActive"`
	TopicCount  int       `bun:"topic_count,scanonly" json:"topicCount"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

type ForumTopic struct {
	bun.BaseModel `bun:"table:forum_topics,alias:ft"`

	ID         string    `bun:"id,pk" json:"id"`
	ForumID    string    `bun:"forum_id,notnull" json:"forumId"`
	UserID     string    `bun:"user_id,notnull" json:"userId"`
	Title      string    `bun:"title,notnull" json:"title"`
	Content    string    `bun:"content,notnull" json:"content"`
	IsPinned   bool      `bun:"is_pinned,notnull,default:false" json:"isPinned"`
	IsLocked   bool      `bun:"is_locked,notnull,default:false" json:"isLocked"`
	ReplyCount int       `bun:"reply_count,scanonly" json:"replyCount"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

type ForumReply struct {
	bun.BaseModel `bun:"table:forum_replies,alias:fr"`

	ID        string    `bun:"id,pk" json:"id"`
	TopicID   string    `bun:"topic_id,notnull" json:"topicId"`
	UserID    string    `bun:"user_id,notnull" json:"userId"`
	Content   string    `bun:"content,notnull" json:"content"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ContentStatus is the publication state of authored content.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "DRAFT"
	StatusPublished ContentStatus = "PUBLISHED"
	StatusArchived  ContentStatus = "ARCHIVED"
)

func (s ContentStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived
}

// ContentMeta holds the columns shared by every authored content table. It is
// embedded in the content models and flattened by both bun and encoding/json.
type ContentMeta struct {
	ID        string        `bun:"id,pk" json:"id"`
	Status    ContentStatus `bun:"status,notnull" json:"status"`
	AuthorID  string        `bun:"author_id,notnull" json:"authorId"`
	CreatedAt time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Meta gives generic code access to the shared columns.
func (m *ContentMeta) Meta() *ContentMeta { return m }

// Content is implemented by every model embedding ContentMeta.
type Content interface {
	Meta() *ContentMeta
}

type MediaType string

const (
	MediaVideo    MediaType = "VIDEO"
	MediaAudio    MediaType = "AUDIO"
	MediaImage    MediaType = "IMAGE"
	MediaDocument MediaType = "DOCUMENT"
)

type MediaContent struct {
	bun.BaseModel `bun:"table:media_contents,alias:mc"`
	ContentMeta

	Title        string        `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description  string        `bun:"description,notnull" json:"description"`
	Type         MediaType     `bun:"type,notnull" json:"type" validate:"required,oneof=VIDEO AUDIO IMAGE DOCUMENT"`
	URL          string        `bun:"url,notnull" json:"url" validate:"required,url"`
	ThumbnailURL string        `bun:"thumbnail_url,notnull" json:"thumbnailUrl" validate:"omitempty,url"`
	Category     HabitCategory `bun:"category,notnull" json:"category"`
	DurationSecs int           `bun:"duration_secs,notnull,default:0" json:"durationSecs" validate:"gte=0"`
}

type Recipe struct {
	bun.BaseModel `bun:"table:recipes,alias:r"`
	ContentMeta

	Title        string   `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description  string   `bun:"description,notnull" json:"description"`
	Ingredients  []string `bun:"ingredients,type:jsonb" json:"ingredients" validate:"required,min=1"`
	Instructions []string `bun:"instructions,type:jsonb" json:"instructions" validate:"required,min=1"`
	PrepMinutes  int      `bun:"prep_minutes,notnull,default:0" json:"prepMinutes" validate:"gte=0"`
	CookMinutes  int      `bun:"cook_minutes,notnull,default:0" json:"cookMinutes" validate:"gte=0"`
	Servings     int      `bun:"servings,notnull,default:1" json:"servings" validate:"gte=0"`
	Calories     int      `bun:"calories,notnull,default:0" json:"calories" validate:"gte=0"`
	Protein      float64  `bun:"protein,notnull,default:0" json:"protein" validate:"gte=0"`
	Carbs        float64  `bun:"carbs,notnull,default:0" json:"carbs" validate:"gte=0"`
	Fat          float64  `bun:"fat,notnull,default:0" json:"fat" validate:"gte=0"`
	ImageURL     string   `bun:"image_url,notnull" json:"imageUrl" validate:"omitempty,url"`
	Tags         []string `bun:"tags,type:jsonb" json:"tags"`
}

type Exercise struct {
	bun.BaseModel `bun:"table:exercises,alias:e"`
	ContentMeta

	Name         string   `bun:"name,notnull" json:"name" validate:"required,max=200"`
	Description  string   `bun:"description,notnull" json:"description"`
	MuscleGroup  string   `bun:"muscle_group,notnull" json:"muscleGroup"`
	Equipment    string   `bun:"equipment,notnull" json:"equipment"`
	Difficulty   string   `bun:"difficulty,notnull" json:"difficulty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	VideoURL     string   `bun:"video_url,notnull" json:"videoUrl" validate:"omitempty,url"`
	ImageURL     string   `bun:"image_url,notnull" json:"imageUrl" validate:"omitempty,url"`
	Instructions []string `bun:"instructions,type:jsonb" json:"instructions"`
}

type BlogPost struct {
	bun.BaseModel `bun:"table:blog_posts,alias:bp"`
	ContentMeta

	Title       string     `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Slug        string     `bun:"slug,notnull,unique" json:"slug" validate:"required,max=200"`
	Excerpt     string     `bun:"excerpt,notnull" json:"excerpt"`
	Body        string     `bun:"body,notnull" json:"body" validate:"required"`
	CoverURL    string     `bun:"cover_url,notnull" json:"coverUrl" validate:"omitempty,url"`
	Tags        []string   `bun:"tags,type:jsonb" json:"tags"`
	PublishedAt *time.Time `bun:"published_at,nullzero" json:"publishedAt,omitempty"`
}

// Service is a paid coaching service offered on the platform.
type Service struct {
	bun.BaseModel `bun:"table:services,alias:sv"`
	ContentMeta

	Name            string `bun:"name,notnull" json:"name" validate:"required,max=200"`
	Description     string `bun:"description,notnull" json:"description"`
	PriceCents      int    `bun:"price_cents,notnull" json:"priceCents" validate:"gte=0"`
	Currency        string `bun:"currency,notnull" json:"currency" validate:"required,len=3"`
	DurationMinutes int    `bun:"duration_minutes,notnull,default:0" json:"durationMinutes" validate:"gte=0"`
}

package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository provides CRUD for a content model embedding models.ContentMeta.
// PT is the pointer type of T and is inferred from it:
//
//	recipes := storage.NewRepository[models.Recipe](db, "title", "description")
type Repository[T any, PT interface {
	*T
	models.Content
}] struct {
	store         *BunStorage
	searchColumns []string
}

// NewRepository creates a repository whose Search filter matches any of searchColumns.
func NewRepository[T any, PT interface {
	*T
	models.Content
}](store *BunStorage, searchColumns ...string) *Repository[T, PT] {
	return &Repository[T, PT]{store: store, searchColumns: searchColumns}
}

// Create assigns an id and timestamps when missing and inserts item.
func (r *Repository[T, PT]) Create(ctx context.Context, item PT) error {
	meta := item.Meta()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Status == "" {
		meta.Status = models.StatusDraft
	}
	now := time.Now()
	meta.CreatedAt, meta.UpdatedAt = now, now
	_, err := r.store.conn(ctx).NewInsert().Model(item).Exec(ctx)
	return wrapErr(err)
}

func (r *Repository[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	item := PT(new(T))
	if err := r.store.conn(ctx).NewSelect().Model(item).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return item, nil
}

// List returns one page of items, newest first, and the total number of matches.
func (r *Repository[T, PT]) List(ctx context.Context, opts ListOptions) ([]PT, int, error) {
	var items []PT
	q := r.store.conn(ctx).NewSelect().Model(&items).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(opts.PageSize()).
		Offset(opts.Offset)
	if opts.Status != "" {
		q = q.Where("?TableAlias.status = ?", opts.Status)
	}
	if opts.AuthorID != "" {
		q = q.Where("?TableAlias.author_id = ?", opts.AuthorID)
	}
	if opts.Search != "" && len(r.searchColumns) > 0 {
		pattern := "%" + opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, column := range r.searchColumns {
				q = q.WhereOr("?TableAlias.? ILIKE ?", bun.Ident(column), pattern)
			}
			return q
		})
	}
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return items, count, nil
}

// Update writes every column of item except the id, author and creation time.
func (r *Repository[T, PT]) Update(ctx context.Context, item PT) error {
	item.Meta().UpdatedAt = time.Now()
	return affected(r.store.conn(ctx).NewUpdate().Model(item).
		ExcludeColumn("created_at", "author_id").
		WherePK().
		Exec(ctx))
}

func (r *Repository[T, PT]) Delete(ctx context.Context, id string) error {
	return affected(r.store.conn(ctx).NewDelete().Model(PT(new(T))).Where("id = ?", id).Exec(ctx))
}

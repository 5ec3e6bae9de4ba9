package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/uptrace/bun"
)

func (s *BunStorage) AddUser(ctx context.Context, user *models.User) error {
	_, err := s.conn(ctx).NewInsert().Model(user).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) findUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := new(models.User)
	err := s.conn(ctx).NewSelect().Model(user).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return user, nil
}

func (s *BunStorage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "u.id = ?", id)
}

// FindUserByEmail matches emails case-insensitively.
func (s *BunStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "lower(u.email) = lower(?)", email)
}

func (s *BunStorage) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "u.username = ?", username)
}

func (s *BunStorage) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	user.UpdatedAt = time.Now()
	q := s.conn(ctx).NewUpdate().Model(user).WherePK()
	if cols := withUpdatedAt(columns); cols != nil {
		q = q.Column(cols...)
	} else {
		q = q.ExcludeColumn("created_at")
	}
	return affected(q.Exec(ctx))
}

// DeleteUser removes the user. Rows owned by the user are removed by the
// ON DELETE CASCADE foreign keys.
func (s *BunStorage) DeleteUser(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) ListUsers(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	var users []*models.User
	q := s.conn(ctx).NewSelect().Model(&users).
		Order("u.created_at DESC").
		Limit(opts.PageSize()).
		Offset(opts.Offset)
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("u.username ILIKE ?", pattern).WhereOr("u.email ILIKE ?", pattern)
		})
	}
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return users, count, nil
}

func (s *BunStorage) ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	var users []*models.User
	err := s.conn(ctx).NewSelect().Model(&users).Where("u.role = ?", role).Order("u.username ASC").Scan(ctx)
	return users, wrapErr(err)
}

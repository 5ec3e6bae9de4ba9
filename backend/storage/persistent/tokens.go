package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

func (s *BunStorage) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := s.conn(ctx).NewInsert().Model(token).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error) {
	token := new(models.RefreshToken)
	if err := s.conn(ctx).NewSelect().Model(token).Where("rt.id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return token, nil
}

func (s *BunStorage) DeleteRefreshToken(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.RefreshToken)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.conn(ctx).NewDelete().Model((*models.RefreshToken)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) SaveConfirmation(ctx context.Context, confirmation *models.Confirmation) error {
	_, err := s.conn(ctx).NewInsert().Model(confirmation).
		On("CONFLICT (user_id) DO UPDATE").
		Set("code_hash = EXCLUDED.code_hash").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindConfirmation(ctx context.Context, userID string) (*models.Confirmation, error) {
	confirmation := new(models.Confirmation)
	if err := s.conn(ctx).NewSelect().Model(confirmation).Where("cf.user_id = ?", userID).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return confirmation, nil
}

func (s *BunStorage) DeleteConfirmation(ctx context.Context, userID string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Confirmation)(nil)).Where("user_id = ?", userID).Exec(ctx))
}

func (s *BunStorage) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var purged int64
	err := s.WithTx(ctx, func(ctx context.Context) error {
		for _, model := range []interface{}{(*models.RefreshToken)(nil), (*models.Confirmation)(nil)} {
			res, err := s.conn(ctx).NewDelete().Model(model).Where("expires_at < ?", now).Exec(ctx)
			if err != nil {
				return wrapErr(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			purged += n
		}
		return nil
	})
	return purged, err
}

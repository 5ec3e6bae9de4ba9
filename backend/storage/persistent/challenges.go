package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

func (s *BunStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) error {
	_, err := s.conn(ctx).NewInsert().Model(challenge).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	challenge := new(models.Challenge)
	if err := s.conn(ctx).NewSelect().Model(challenge).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err)
	}
	return challenge, nil
}

func (s *BunStorage) ListChallenges(ctx context.Context, userID, activeOn string) ([]*models.Challenge, error) {
	var challenges []*models.Challenge
	q := s.conn(ctx).NewSelect().Model(&challenges).Where("c.user_id = ?", userID).Order("c.end_date ASC")
	if activeOn != "" {
		q = q.Where("NOT c.is_completed").
			Where("c.start_date <= ?", activeOn).
			Where("c.end_date >= ?", activeOn)
	}
	err := q.Scan(ctx)
	return challenges, wrapErr(err)
}

func (s *BunStorage) UpdateChallenge(ctx context.Context, challenge *models.Challenge) error {
	challenge.UpdatedAt = time.Now()
	return affected(s.conn(ctx).NewUpdate().Model(challenge).
		ExcludeColumn("created_at", "user_id").
		WherePK().
		Exec(ctx))
}

func (s *BunStorage) DeleteChallenge(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Challenge)(nil)).Where("id = ?", id).Exec(ctx))
}

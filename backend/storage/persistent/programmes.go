package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AddProgramme inserts the programme, its weekly plans and their daily tasks
// in one transaction, assigning ids and parent keys on the way.
func (s *BunStorage) AddProgramme(ctx context.Context, programme *models.Programme) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).NewInsert().Model(programme).Exec(ctx); err != nil {
			return wrapErr(err)
		}
		return s.insertPlans(ctx, programme)
	})
}

func (s *BunStorage) insertPlans(ctx context.Context, programme *models.Programme) error {
	if len(programme.WeeklyPlans) == 0 {
		return nil
	}

	var tasks []*models.DailyTask
	for _, plan := range programme.WeeklyPlans {
		plan.ID = uuid.NewString()
		plan.ProgrammeID = programme.ID
		for i, task := range plan.DailyTasks {
			task.ID = uuid.NewString()
			task.WeeklyPlanID = plan.ID
			if task.Position == 0 {
				task.Position = i + 1
			}
			tasks = append(tasks, task)
		}
	}

	if _, err := s.conn(ctx).NewInsert().Model(&programme.WeeklyPlans).Exec(ctx); err != nil {
		return wrapErr(err)
	}
	if len(tasks) == 0 {
		return nil
	}
	_, err := s.conn(ctx).NewInsert().Model(&tasks).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindProgramme(ctx context.Context, id string) (*models.Programme, error) {
	programme := new(models.Programme)
	err := s.conn(ctx).NewSelect().Model(programme).
		Relation("WeeklyPlans", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("wp.week_number ASC")
		}).
		Relation("WeeklyPlans.DailyTasks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("dt.day_of_week ASC", "dt.position ASC")
		}).
		Where("p.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return programme, nil
}

func (s *BunStorage) ListProgrammes(ctx context.Context, opts ListOptions) ([]*models.Programme, int, error) {
	var programmes []*models.Programme
	q := s.conn(ctx).NewSelect().Model(&programmes).
		Order("p.created_at DESC").
		Limit(opts.PageSize()).
		Offset(opts.Offset)
	if opts.Status != "" {
		q = q.Where("p.status = ?", opts.Status)
	}
	if opts.AuthorID != "" {
		q = q.Where("p.author_id = ?", opts.AuthorID)
	}
	if opts.Search != "" {
		q = q.Where("p.title ILIKE ?", "%"+opts.Search+"%")
	}
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	return programmes, count, nil
}

func (s *BunStorage) UpdateProgramme(ctx context.Context, programme *models.Programme) error {
	programme.UpdatedAt = time.Now()
	return s.WithTx(ctx, func(ctx context.Context) error {
		err := affected(s.conn(ctx).NewUpdate().Model(programme).
			ExcludeColumn("created_at", "author_id").
			WherePK().
			Exec(ctx))
		if err != nil {
			return err
		}
		// Tasks follow their plans through ON DELETE CASCADE.
		_, err = s.conn(ctx).NewDelete().Model((*models.WeeklyPlan)(nil)).
			Where("programme_id = ?", programme.ID).
			Exec(ctx)
		if err != nil {
			return wrapErr(err)
		}
		return s.insertPlans(ctx, programme)
	})
}

func (s *BunStorage) DeleteProgramme(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Programme)(nil)).Where("id = ?", id).Exec(ctx))
}

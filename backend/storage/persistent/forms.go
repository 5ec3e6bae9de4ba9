package storage

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AddForm inserts the form and its fields in one transaction.
func (s *BunStorage) AddForm(ctx context.Context, form *models.Form) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).NewInsert().Model(form).Exec(ctx); err != nil {
			return wrapErr(err)
		}
		return s.insertFields(ctx, form)
	})
}

func (s *BunStorage) insertFields(ctx context.Context, form *models.Form) error {
	if len(form.Fields) == 0 {
		return nil
	}
	for i, field := range form.Fields {
		field.ID = uuid.NewString()
		field.FormID = form.ID
		if field.Position == 0 {
			field.Position = i + 1
		}
	}
	_, err := s.conn(ctx).NewInsert().Model(&form.Fields).Exec(ctx)
	return wrapErr(err)
}

func (s *BunStorage) FindForm(ctx context.Context, id string) (*models.Form, error) {
	form := new(models.Form)
	err := s.conn(ctx).NewSelect().Model(form).
		Relation("Fields", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("inf.position ASC")
		}).
		Where("fm.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return form, nil
}

func (s *BunStorage) ListForms(ctx context.Context, activeOnly bool) ([]*models.Form, error) {
	var forms []*models.Form
	q := s.conn(ctx).NewSelect().Model(&forms).Order("fm.created_at DESC")
	if activeOnly {
		q = q.Where("fm.is_active")
	}
	err := q.Scan(ctx)
	return forms, wrapErr(err)
}

func (s *BunStorage) UpdateForm(ctx context.Context, form *models.Form) error {
	form.UpdatedAt = time.Now()
	return s.WithTx(ctx, func(ctx context.Context) error {
		err := affected(s.conn(ctx).NewUpdate().Model(form).
			Column("title", "description", "is_active", "updated_at").
			WherePK().
			Exec(ctx))
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).NewDelete().Model((*models.InputField)(nil)).Where("form_id = ?", form.ID).Exec(ctx); err != nil {
			return wrapErr(err)
		}
		return s.insertFields(ctx, form)
	})
}

func (s *BunStorage) DeleteForm(ctx context.Context, id string) error {
	return affected(s.conn(ctx).NewDelete().Model((*models.Form)(nil)).Where("id = ?", id).Exec(ctx))
}

func (s *BunStorage) SubmitForm(ctx context.Context, formID, userID string, answers map[string]string, validate SubmissionValidator) (*models.FormSubmission, error) {
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
		_, err = s.conn(ctx).NewInsert().Model(submission).Exec(ctx)
		return wrapErr(err)
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *BunStorage) ListSubmissions(ctx context.Context, formID string) ([]*models.FormSubmission, error) {
	var submissions []*models.FormSubmission
	err := s.conn(ctx).NewSelect().Model(&submissions).Where("fs.form_id = ?", formID).Order("fs.created_at DESC").Scan(ctx)
	return submissions, wrapErr(err)
}

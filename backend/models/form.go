package models

import (
	"time"

	"github.com/uptrace/bun"
)

type FieldType string

const (
	FieldText     FieldType = "TEXT"
	FieldTextarea FieldType = "TEXTAREA"
	FieldNumber   FieldType = "NUMBER"
	FieldEmail    FieldType = "EMAIL"
	FieldDate     FieldType = "DATE"
	FieldSelect   FieldType = "SELECT"
	FieldCheckbox FieldType = "CHECKBOX"
)

// Form is an admin-defined questionnaire (intake forms, check-ins).
type Form struct {
	bun.BaseModel `bun:"table:forms,alias:fm"`

	ID          string        `bun:"id,pk" json:"id"`
	Title       string        `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description string        `bun:"description,notnull" json:"description"`
	IsActive    bool          `bun:"is_active,notnull,default:true" json:"isActive"`
	CreatedBy   string        `bun:"created_by,notnull" json:"createdBy"`
	Fields      []*InputField `bun:"rel:has-many,join:id=form_id" json:"fields" validate:"dive"`
	CreatedAt   time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

type InputField struct {
	bun.BaseModel `bun:"table:input_fields,alias:inf"`

	ID          string    `bun:"id,pk" json:"id"`
	FormID      string    `bun:"form_id,notnull" json:"formId"`
	Name        string    `bun:"name,notnull" json:"name" validate:"required,max=100"`
	Label       string    `bun:"label,notnull" json:"label" validate:"required"`
	Type        FieldType `bun:"type,notnull" json:"type" validate:"required,oneof=TEXT TEXTAREA NUMBER EMAIL DATE SELECT CHECKBOX"`
	Required    bool      `bun:"required,notnull,default:false" json:"required"`
	Options     []string  `bun:"options,type:jsonb" json:"options"`
	Placeholder string    `bun:"placeholder,notnull" json:"placeholder"`
	Position    int       `bun:"position,notnull,default:0" json:"position"`
}

// FormSubmission stores one user's answers keyed by field name.
type FormSubmission struct {
	bun.BaseModel `bun:"table:form_submissions,alias:fs"`

	ID        string            `bun:"id,pk" json:"id"`
	FormID    string            `bun:"form_id,notnull" json:"formId"`
	UserID    string            `bun:"user_id,notnull" json:"userId"`
	Answers   map[string]string `bun:"answers,type:jsonb" json:"answers"`
	CreatedAt time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

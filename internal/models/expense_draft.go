package models

import (
	"time"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
)

// Draft statuses
const (
	DraftStatusOpen       = "OPEN"
	DraftStatusProcessing = "PROCESSING"
	DraftStatusSubmitted  = "SUBMITTED"
)

// ExpenseDraft is a stored expense form in progress. The form's items and
// attached files are serialized as JSON columns; the rest of the form is
// flattened into the row.
type ExpenseDraft struct {
	ID        int64              `json:"id" db:"id"`
	DraftID   string             `json:"draft_id" db:"draft_id"`
	Status    string             `json:"status" db:"status"`
	Form      expense.FormValues `json:"form"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}

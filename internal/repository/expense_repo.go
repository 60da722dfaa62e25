package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/models"
)

// ExpenseRepository handles expense draft database operations. The form's
// items and attached files live in JSON columns; scalar form fields are
// flattened into the row for querying.
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense draft
func (r *ExpenseRepository) Create(tx *sql.Tx, draft *models.ExpenseDraft) error {
	itemsJSON, filesJSON, err := marshalForm(&draft.Form)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO expense_drafts (
			draft_id, status, expense_type, currency, description, items, attached_files
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		draft.DraftID,
		draft.Status,
		string(draft.Form.Type),
		draft.Form.Currency,
		draft.Form.Description,
		itemsJSON,
		filesJSON,
	}

	var result sql.Result
	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create expense draft", zap.Error(err))
		return fmt.Errorf("failed to create expense draft: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	draft.ID = id
	return nil
}

// Update persists the draft's current form and status
func (r *ExpenseRepository) Update(tx *sql.Tx, draft *models.ExpenseDraft) error {
	itemsJSON, filesJSON, err := marshalForm(&draft.Form)
	if err != nil {
		return err
	}

	query := `
		UPDATE expense_drafts
		SET status = ?, expense_type = ?, currency = ?, description = ?,
			items = ?, attached_files = ?, updated_at = CURRENT_TIMESTAMP
		WHERE draft_id = ?
	`

	args := []interface{}{
		draft.Status,
		string(draft.Form.Type),
		draft.Form.Currency,
		draft.Form.Description,
		itemsJSON,
		filesJSON,
		draft.DraftID,
	}

	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to update expense draft",
			zap.String("draft_id", draft.DraftID),
			zap.Error(err))
		return fmt.Errorf("failed to update expense draft: %w", err)
	}
	return nil
}

// GetByDraftID retrieves a draft by its public identifier. Returns nil when
// no draft exists.
func (r *ExpenseRepository) GetByDraftID(draftID string) (*models.ExpenseDraft, error) {
	query := `
		SELECT id, draft_id, status, expense_type, currency, description,
			items, attached_files, created_at, updated_at
		FROM expense_drafts
		WHERE draft_id = ?
	`

	var draft models.ExpenseDraft
	var expenseType string
	var itemsJSON, filesJSON []byte

	err := r.db.QueryRow(query, draftID).Scan(
		&draft.ID,
		&draft.DraftID,
		&draft.Status,
		&expenseType,
		&draft.Form.Currency,
		&draft.Form.Description,
		&itemsJSON,
		&filesJSON,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense draft", zap.Error(err))
		return nil, fmt.Errorf("failed to get expense draft: %w", err)
	}

	draft.Form.Type = expense.Type(expenseType)
	if err := unmarshalForm(&draft.Form, itemsJSON, filesJSON); err != nil {
		return nil, err
	}
	return &draft, nil
}

// List returns all drafts, newest first
func (r *ExpenseRepository) List() ([]*models.ExpenseDraft, error) {
	query := `
		SELECT id, draft_id, status, expense_type, currency, description,
			items, attached_files, created_at, updated_at
		FROM expense_drafts
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list expense drafts", zap.Error(err))
		return nil, fmt.Errorf("failed to list expense drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.ExpenseDraft
	for rows.Next() {
		var draft models.ExpenseDraft
		var expenseType string
		var itemsJSON, filesJSON []byte

		if err := rows.Scan(
			&draft.ID,
			&draft.DraftID,
			&draft.Status,
			&expenseType,
			&draft.Form.Currency,
			&draft.Form.Description,
			&itemsJSON,
			&filesJSON,
			&draft.CreatedAt,
			&draft.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense draft: %w", err)
		}

		draft.Form.Type = expense.Type(expenseType)
		if err := unmarshalForm(&draft.Form, itemsJSON, filesJSON); err != nil {
			return nil, err
		}
		drafts = append(drafts, &draft)
	}

	return drafts, rows.Err()
}

func marshalForm(form *expense.FormValues) ([]byte, []byte, error) {
	itemsJSON, err := json.Marshal(form.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal items: %w", err)
	}
	filesJSON, err := json.Marshal(form.AttachedFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal attached files: %w", err)
	}
	return itemsJSON, filesJSON, nil
}

func unmarshalForm(form *expense.FormValues, itemsJSON, filesJSON []byte) error {
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &form.Items); err != nil {
			return fmt.Errorf("failed to unmarshal items: %w", err)
		}
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &form.AttachedFiles); err != nil {
			return fmt.Errorf("failed to unmarshal attached files: %w", err)
		}
	}
	return nil
}

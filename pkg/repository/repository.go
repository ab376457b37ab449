package repository

import (
	"context"

	"github.com/n-khatri/paisa/pkg/model"
)

// Repository defines the interface for expense and session persistence
type Repository interface {
	// PutExpense saves an expense and its item-embedding records as a single
	// atomic batch; either every record is written or none is.
	PutExpense(ctx context.Context, expense *model.Expense, items []*model.ItemEmbedding) error

	// GetExpense retrieves an expense by ID
	GetExpense(ctx context.Context, userID string, id model.ExpenseID) (*model.Expense, error)

	// ListExpenses retrieves all expenses of a user, optionally constrained to
	// a purchase-date range
	ListExpenses(ctx context.Context, userID string, dateRange *model.DateRange) ([]*model.Expense, error)

	// SearchSimilarItems performs vector search over item embeddings and
	// returns matches as shaped rows, vectors stripped
	SearchSimilarItems(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.ShapedRow, error)

	// PutSession archives an ended session's metadata
	PutSession(ctx context.Context, session *model.Session) error
}

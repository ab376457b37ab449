package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
)

// Memory is an in-memory Repository for tests and local runs. Data is lost on
// process exit.
type Memory struct {
	mu       sync.RWMutex
	expenses map[model.ExpenseID]*model.Expense
	items    map[model.ExpenseID][]*model.ItemEmbedding
	sessions map[model.SessionID]*model.Session
}

// NewMemory creates a new in-memory repository
func NewMemory() *Memory {
	return &Memory{
		expenses: make(map[model.ExpenseID]*model.Expense),
		items:    make(map[model.ExpenseID][]*model.ItemEmbedding),
		sessions: make(map[model.SessionID]*model.Session),
	}
}

func (r *Memory) PutExpense(ctx context.Context, expense *model.Expense, items []*model.ItemEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.expenses[expense.ID]; exists {
		return goerr.Wrap(model.ErrPersistence, "expense already exists", goerr.V("expense_id", expense.ID))
	}

	expenseCopy := *expense
	r.expenses[expense.ID] = &expenseCopy

	itemsCopy := make([]*model.ItemEmbedding, 0, len(items))
	for _, item := range items {
		itemCopy := *item
		itemsCopy = append(itemsCopy, &itemCopy)
	}
	r.items[expense.ID] = itemsCopy

	return nil
}

func (r *Memory) GetExpense(ctx context.Context, userID string, id model.ExpenseID) (*model.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expense, exists := r.expenses[id]
	if !exists || expense.UserID != userID {
		return nil, goerr.New("expense not found", goerr.V("expense_id", id))
	}

	expenseCopy := *expense
	return &expenseCopy, nil
}

func (r *Memory) ListExpenses(ctx context.Context, userID string, dateRange *model.DateRange) ([]*model.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Expense
	for _, expense := range r.expenses {
		if expense.UserID != userID {
			continue
		}
		if dateRange != nil {
			if expense.Date < dateRange.Start.Format("2006-01-02") ||
				expense.Date > dateRange.End.Format("2006-01-02") {
				continue
			}
		}
		expenseCopy := *expense
		result = append(result, &expenseCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Memory) SearchSimilarItems(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.ShapedRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		row      *model.ShapedRow
		distance float64
	}

	var matches []scored
	for _, items := range r.items {
		for _, item := range items {
			if item.UserID != userID {
				continue
			}
			dist := cosineDistance(embedding, item.Embedding)
			if dist > maxSearchDistance {
				continue
			}
			matches = append(matches, scored{row: itemToRow(item), distance: dist})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	rows := make([]*model.ShapedRow, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, m.row)
	}
	return rows, nil
}

func (r *Memory) PutSession(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionCopy := *session
	r.sessions[session.ID] = &sessionCopy
	return nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/repository"
)

func expenseFixture(id, userID, date string, amount float64) *model.Expense {
	return &model.Expense{
		ID:        model.ExpenseID(id),
		UserID:    userID,
		Vendor:    "Big Bazaar",
		Date:      date,
		Amount:    amount,
		Category:  "food",
		Items:     []model.Item{{Name: "rice", Price: amount, Quantity: 1}},
		CreatedAt: time.Now(),
	}
}

func TestMemoryPutAndGet(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	e := expenseFixture("e1", "user1", "2025-06-10", 400)
	gt.NoError(t, repo.PutExpense(ctx, e, nil))

	got := gt.R1(repo.GetExpense(ctx, "user1", "e1")).NoError(t)
	gt.Value(t, got.Vendor).Equal("Big Bazaar")

	// Another user cannot read it.
	_, err := repo.GetExpense(ctx, "user2", "e1")
	gt.Error(t, err)

	// Duplicate IDs are rejected, the batch is written exactly once.
	gt.Error(t, repo.PutExpense(ctx, e, nil))
}

func TestMemoryListExpensesDateRange(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	gt.NoError(t, repo.PutExpense(ctx, expenseFixture("e1", "user1", "2025-05-20", 600), nil))
	gt.NoError(t, repo.PutExpense(ctx, expenseFixture("e2", "user1", "2025-06-10", 400), nil))
	gt.NoError(t, repo.PutExpense(ctx, expenseFixture("e3", "user2", "2025-06-10", 100), nil))

	all := gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, all).Length(2)

	june := gt.R1(repo.ListExpenses(ctx, "user1", &model.DateRange{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	})).NoError(t)
	gt.Array(t, june).Length(1)
	gt.Value(t, june[0].ID).Equal(model.ExpenseID("e2"))
}

func TestMemorySearchSimilarItems(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	e := expenseFixture("e1", "user1", "2025-06-10", 400)
	items := []*model.ItemEmbedding{
		{
			UserID:       "user1",
			ExpenseID:    "e1",
			Vendor:       "Big Bazaar",
			PurchaseDate: "2025-06-10",
			Name:         "rice",
			Price:        400,
			Quantity:     1,
			Category:     "food",
			Embedding:    firestore.Vector32{1, 0, 0},
		},
		{
			UserID:       "user1",
			ExpenseID:    "e1",
			Vendor:       "Big Bazaar",
			PurchaseDate: "2025-06-10",
			Name:         "fan",
			Price:        1200,
			Quantity:     1,
			Category:     "shopping",
			Embedding:    firestore.Vector32{0, 1, 0},
		},
	}
	gt.NoError(t, repo.PutExpense(ctx, e, items))

	// An orthogonal vector is past the distance cutoff, only the aligned
	// item comes back.
	rows := gt.R1(repo.SearchSimilarItems(ctx, "user1", []float32{1, 0, 0}, 10)).NoError(t)
	gt.Array(t, rows).Length(1)
	gt.Value(t, rows[0].Name).Equal("rice")
	gt.Value(t, rows[0].Total).Equal(400.0)

	// Vectors never leak into shaped rows; other users see nothing.
	none := gt.R1(repo.SearchSimilarItems(ctx, "user2", []float32{1, 0, 0}, 10)).NoError(t)
	gt.Array(t, none).Length(0)
}

func TestMemorySearchDefaultsMissingQuantity(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	e := expenseFixture("e1", "user1", "2025-06-10", 400)
	items := []*model.ItemEmbedding{
		{
			UserID:       "user1",
			ExpenseID:    "e1",
			Vendor:       "Big Bazaar",
			PurchaseDate: "2025-06-10",
			Name:         "rice",
			Price:        400,
			Category:     "food",
			Embedding:    firestore.Vector32{1, 0, 0},
		},
	}
	gt.NoError(t, repo.PutExpense(ctx, e, items))

	// A zero quantity counts as one, the line total equals the unit price.
	rows := gt.R1(repo.SearchSimilarItems(ctx, "user1", []float32{1, 0, 0}, 10)).NoError(t)
	gt.Array(t, rows).Length(1)
	gt.Number(t, rows[0].Quantity).Equal(1)
	gt.Value(t, rows[0].Total).Equal(400.0)
}

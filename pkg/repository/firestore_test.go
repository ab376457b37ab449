package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)

	return repo
}

func TestFirestorePutAndGetExpense(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	expense := &model.Expense{
		ID:        model.NewExpenseID(),
		UserID:    "test-user",
		Vendor:    "Big Bazaar",
		Date:      time.Now().Format("2006-01-02"),
		Amount:    900,
		Category:  "food",
		Items:     []model.Item{{Name: "rice", Price: 400, Quantity: 1}},
		CreatedAt: time.Now(),
	}
	items := []*model.ItemEmbedding{
		{
			UserID:       expense.UserID,
			ExpenseID:    expense.ID,
			Vendor:       expense.Vendor,
			PurchaseDate: expense.Date,
			Name:         "rice",
			Price:        400,
			Quantity:     1,
			Category:     "food",
			Embedding:    make(firestore.Vector32, 768),
			CreatedAt:    expense.CreatedAt,
		},
	}

	gt.NoError(t, repo.PutExpense(ctx, expense, items))

	got := gt.R1(repo.GetExpense(ctx, "test-user", expense.ID)).NoError(t)
	gt.Value(t, got.Vendor).Equal("Big Bazaar")
	gt.Array(t, got.Items).Length(1)

	// A re-commit of the same ID must not produce a second document.
	gt.Error(t, repo.PutExpense(ctx, expense, items))
}

func TestFirestoreListExpensesByDate(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	expense := &model.Expense{
		ID:        model.NewExpenseID(),
		UserID:    "test-user",
		Vendor:    "Uber",
		Date:      time.Now().Format("2006-01-02"),
		Amount:    240,
		Category:  "transport",
		CreatedAt: time.Now(),
	}
	gt.NoError(t, repo.PutExpense(ctx, expense, nil))

	now := time.Now()
	expenses := gt.R1(repo.ListExpenses(ctx, "test-user", &model.DateRange{
		Start: now.AddDate(0, 0, -1),
		End:   now,
	})).NoError(t)
	gt.True(t, len(expenses) >= 1)
}

func TestFirestorePutSession(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	sess := &model.Session{
		ID:           model.NewSessionID(),
		UserID:       "test-user",
		Title:        "test chat",
		StartedAt:    time.Now(),
		LastActiveAt: time.Now(),
		TurnCount:    2,
	}
	gt.NoError(t, repo.PutSession(ctx, sess))
}

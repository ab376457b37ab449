package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	expenseCollection   = "receipts"
	embeddingCollection = "embeddings"
	sessionCollection   = "chats"

	// Cosine distance above this is treated as no match.
	maxSearchDistance = 0.45
)

// Firestore implements Repository using Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

// PutExpense writes the parent expense document and one embedding record per
// item into its subcollection, all inside one transaction.
func (r *Firestore) PutExpense(ctx context.Context, expense *model.Expense, items []*model.ItemEmbedding) error {
	expenseRef := r.client.Collection(expenseCollection).Doc(string(expense.ID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(expenseRef, expense); err != nil {
			return goerr.Wrap(err, "failed to create expense document")
		}
		for _, item := range items {
			itemRef := expenseRef.Collection(embeddingCollection).NewDoc()
			if err := tx.Create(itemRef, item); err != nil {
				return goerr.Wrap(err, "failed to create item embedding document")
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit expense batch", goerr.V("expense_id", expense.ID))
	}

	return nil
}

func (r *Firestore) GetExpense(ctx context.Context, userID string, id model.ExpenseID) (*model.Expense, error) {
	doc, err := r.client.Collection(expenseCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get expense", goerr.V("expense_id", id))
	}

	var expense model.Expense
	if err := doc.DataTo(&expense); err != nil {
		return nil, goerr.Wrap(err, "failed to decode expense document")
	}
	if expense.UserID != userID {
		return nil, goerr.New("expense does not belong to user", goerr.V("expense_id", id))
	}

	return &expense, nil
}

// ListExpenses fetches all expenses of a user, with a purchase-date range
// when given. Some filter combinations need a composite index Firestore may
// not have; those fail with FailedPrecondition and are retried with only the
// owner filter, accepting the larger result set.
func (r *Firestore) ListExpenses(ctx context.Context, userID string, dateRange *model.DateRange) ([]*model.Expense, error) {
	query := r.client.Collection(expenseCollection).Where("userId", "==", userID)
	if dateRange != nil {
		query = query.
			Where("date", ">=", dateRange.Start.Format("2006-01-02")).
			Where("date", "<=", dateRange.End.Format("2006-01-02"))
	}

	expenses, err := r.runExpenseQuery(ctx, query)
	if err == nil {
		return expenses, nil
	}

	if dateRange == nil || status.Code(err) != codes.FailedPrecondition {
		return nil, err
	}

	logging.From(ctx).Warn("filtered expense query failed, retrying with owner filter only",
		"user_id", userID, "error", err)

	ownerOnly := r.client.Collection(expenseCollection).Where("userId", "==", userID)
	return r.runExpenseQuery(ctx, ownerOnly)
}

func (r *Firestore) runExpenseQuery(ctx context.Context, query firestore.Query) ([]*model.Expense, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var expenses []*model.Expense
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate expense documents")
		}

		var expense model.Expense
		if err := doc.DataTo(&expense); err != nil {
			return nil, goerr.Wrap(err, "failed to decode expense document", goerr.V("doc", doc.Ref.ID))
		}
		expenses = append(expenses, &expense)
	}

	return expenses, nil
}

// SearchSimilarItems runs a nearest-neighbor search over the embeddings
// collection group, scoped to the owner.
func (r *Firestore) SearchSimilarItems(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.ShapedRow, error) {
	threshold := maxSearchDistance
	vq := r.client.CollectionGroup(embeddingCollection).
		Where("user_id", "==", userID).
		FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceThreshold: &threshold})

	docs, err := vq.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run vector search", goerr.V("user_id", userID))
	}

	rows := make([]*model.ShapedRow, 0, len(docs))
	for _, doc := range docs {
		var item model.ItemEmbedding
		if err := doc.DataTo(&item); err != nil {
			return nil, goerr.Wrap(err, "failed to decode item embedding document", goerr.V("doc", doc.Ref.ID))
		}
		rows = append(rows, itemToRow(&item))
	}

	return rows, nil
}

// itemToRow maps a stored item record to a shaped row. A missing quantity
// counts as one, matching the query-path shaping.
func itemToRow(item *model.ItemEmbedding) *model.ShapedRow {
	qty := item.Quantity
	if qty == 0 {
		qty = 1
	}
	return &model.ShapedRow{
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  qty,
		Category:  item.Category,
		Vendor:    item.Vendor,
		ExpenseID: item.ExpenseID,
		UserID:    item.UserID,
		Date:      item.PurchaseDate,
		CreatedAt: item.CreatedAt,
		Total:     item.Price * float64(qty),
	}
}

func (r *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	ref := r.client.Collection(sessionCollection).Doc(string(session.ID))
	if _, err := ref.Set(ctx, session); err != nil {
		return goerr.Wrap(err, "failed to save session", goerr.V("session_id", session.ID))
	}
	return nil
}

package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type ExpenseID string

// NewExpenseID generates a new unique ExpenseID
func NewExpenseID() ExpenseID {
	return ExpenseID(uuid.New().String())
}

// Item is a single purchased line item.
type Item struct {
	Name     string  `firestore:"name" json:"name"`
	Price    float64 `firestore:"price" json:"price"`
	Quantity int     `firestore:"quantity" json:"quantity"`
}

// ExpenseDraft is an unpersisted expense extracted from conversation. It is
// owned by the add workflow of one session until committed or discarded.
type ExpenseDraft struct {
	Vendor      string  `json:"vendor"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
	PaymentMode string  `json:"paymentMode,omitempty"`
	Items       []Item  `json:"items"`
	Notes       string  `json:"notes,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Validate checks that the draft can be committed.
func (d *ExpenseDraft) Validate() error {
	if d.Vendor == "" {
		return goerr.New("expense vendor is empty")
	}
	if len(d.Items) == 0 {
		return goerr.New("expense has no items")
	}
	for _, it := range d.Items {
		if it.Name == "" {
			return goerr.New("expense item name is empty")
		}
	}
	return nil
}

// Expense is a committed, immutable expense record.
type Expense struct {
	ID          ExpenseID `firestore:"receiptId" json:"receiptId"`
	UserID      string    `firestore:"userId" json:"userId"`
	Vendor      string    `firestore:"vendor" json:"vendor"`
	Date        string    `firestore:"date" json:"date"`
	Amount      float64   `firestore:"amount" json:"amount"`
	Category    string    `firestore:"category" json:"category"`
	PaymentMode string    `firestore:"paymentMode" json:"paymentMode,omitempty"`
	Items       []Item    `firestore:"items" json:"items"`
	Notes       string    `firestore:"notes" json:"notes,omitempty"`
	Confidence  float64   `firestore:"confidence" json:"confidence,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

// NewExpense promotes a draft to a committed expense record.
func NewExpense(userID string, draft *ExpenseDraft, now time.Time) *Expense {
	date := draft.Date
	if date == "" {
		date = now.Format("2006-01-02")
	}
	return &Expense{
		ID:          NewExpenseID(),
		UserID:      userID,
		Vendor:      draft.Vendor,
		Date:        date,
		Amount:      draft.Amount,
		Category:    draft.Category,
		PaymentMode: draft.PaymentMode,
		Items:       draft.Items,
		Notes:       draft.Notes,
		Confidence:  draft.Confidence,
		CreatedAt:   now,
	}
}

// ItemEmbedding is the per-item vector record written alongside its parent
// expense. One record per line item, always in the same batch as the parent.
type ItemEmbedding struct {
	UserID       string             `firestore:"user_id"`
	ExpenseID    ExpenseID          `firestore:"receipt_id"`
	Vendor       string             `firestore:"vendor"`
	PurchaseDate string             `firestore:"purchase_date"`
	Name         string             `firestore:"name"`
	Price        float64            `firestore:"price"`
	Quantity     int                `firestore:"quantity"`
	Category     string             `firestore:"category_name"`
	Embedding    firestore.Vector32 `firestore:"embedding"`
	CreatedAt    time.Time          `firestore:"created_at"`
}

// PriceBucket maps an item price to one of four fixed tiers used in the
// embedding input text.
func PriceBucket(price float64) string {
	switch {
	case price >= 1000:
		return "₹1000_plus"
	case price >= 500:
		return "₹500_999"
	case price >= 100:
		return "₹100_499"
	default:
		return "₹0_99"
	}
}

// EmbeddingInputs renders one embedding input string per line item, in item
// order: "name | category | price-bucket | vendor".
func (d *ExpenseDraft) EmbeddingInputs() []string {
	inputs := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		inputs = append(inputs, it.Name+" | "+d.Category+" | "+PriceBucket(it.Price)+" | "+d.Vendor)
	}
	return inputs
}

// ItemEmbeddings builds the vector records for a committed expense. vectors
// must hold exactly one vector per item.
func (e *Expense) ItemEmbeddings(vectors [][]float32) ([]*ItemEmbedding, error) {
	if len(vectors) != len(e.Items) {
		return nil, goerr.New("vector count does not match item count",
			goerr.V("items", len(e.Items)), goerr.V("vectors", len(vectors)))
	}

	records := make([]*ItemEmbedding, 0, len(e.Items))
	for i, it := range e.Items {
		records = append(records, &ItemEmbedding{
			UserID:       e.UserID,
			ExpenseID:    e.ID,
			Vendor:       e.Vendor,
			PurchaseDate: e.Date,
			Name:         it.Name,
			Price:        it.Price,
			Quantity:     it.Quantity,
			Category:     e.Category,
			Embedding:    firestore.Vector32(vectors[i]),
			CreatedAt:    e.CreatedAt,
		})
	}
	return records, nil
}

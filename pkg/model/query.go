package model

import "time"

// QueryIntent is the closed set of fetch-query intents. Values match the
// labels the classifier prompt asks the model to emit.
type QueryIntent string

const (
	IntentTotalSpending    QueryIntent = "TOTAL_SPENDING"
	IntentAverageSpending  QueryIntent = "AVERAGE_SPENDING"
	IntentCategorySpending QueryIntent = "CATEGORY_SPENDING"
	IntentPaymentModeSplit QueryIntent = "PAYMENT_MODE_SPLIT"
	IntentMerchantSpending QueryIntent = "MERCHANT_SPENDING"
	IntentThresholdExpense QueryIntent = "THRESHOLD_EXPENSES"
	IntentMostExpensive    QueryIntent = "MOST_EXPENSIVE"
	IntentCheapest         QueryIntent = "CHEAPEST"
	IntentAverageDaily     QueryIntent = "AVERAGE_DAILY"
	IntentUnknown          QueryIntent = "UNKNOWN"
)

// Normalize maps any unrecognized label to IntentUnknown.
func (i QueryIntent) Normalize() QueryIntent {
	switch i {
	case IntentTotalSpending, IntentAverageSpending, IntentCategorySpending,
		IntentPaymentModeSplit, IntentMerchantSpending, IntentThresholdExpense,
		IntentMostExpensive, IntentCheapest, IntentAverageDaily:
		return i
	default:
		return IntentUnknown
	}
}

type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationAvg   Aggregation = "avg"
	AggregationCount Aggregation = "count"
	AggregationMax   Aggregation = "max"
)

type DateKeyword string

const (
	DateThisWeek    DateKeyword = "this_week"
	DateLastWeek    DateKeyword = "last_week"
	DateThisMonth   DateKeyword = "this_month"
	DateLastMonth   DateKeyword = "last_month"
	DateThisQuarter DateKeyword = "this_quarter"
	DateIndianFY    DateKeyword = "indian_fy"
)

// QueryFilters are the optional constraints extracted from an utterance.
type QueryFilters struct {
	DateKeyword DateKeyword `json:"dateKeyword,omitempty"`
	Category    string      `json:"category,omitempty"`
	Merchants   []string    `json:"merchants,omitempty"`
	PaymentMode string      `json:"paymentMode,omitempty"`
	MinAmount   float64     `json:"minAmount,omitempty"`
}

// QueryDescriptor is the structured form of a fetch-intent utterance. It is
// produced and consumed within a single request, never persisted.
type QueryDescriptor struct {
	Intent      QueryIntent  `json:"intent"`
	Filters     QueryFilters `json:"filters"`
	Aggregation Aggregation  `json:"aggregation,omitempty"`
}

// DateRange is a resolved, inclusive start/end pair.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ShapedRow is one line item flattened out of a matching expense, carrying
// both item-level and parent-level fields. Embedding vectors never appear
// here.
type ShapedRow struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`

	Category    string    `json:"category"`
	Vendor      string    `json:"vendor"`
	PaymentMode string    `json:"paymentMode,omitempty"`
	ExpenseID   ExpenseID `json:"receiptId"`
	UserID      string    `json:"userId"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	Amount      float64   `json:"amount"` // parent expense total

	Total float64 `json:"total"` // price * quantity
}

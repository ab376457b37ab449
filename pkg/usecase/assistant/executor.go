package assistant

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

// resolveDateKeyword maps a relative date keyword to an inclusive range
// anchored at now. Weeks start on Sunday; the Indian financial year runs
// April 1 through March 31.
func resolveDateKeyword(keyword model.DateKeyword, now time.Time) *model.DateRange {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch keyword {
	case model.DateThisWeek:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return &model.DateRange{Start: start, End: day}

	case model.DateLastWeek:
		thisStart := day.AddDate(0, 0, -int(day.Weekday()))
		return &model.DateRange{
			Start: thisStart.AddDate(0, 0, -7),
			End:   thisStart.AddDate(0, 0, -1),
		}

	case model.DateThisMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return &model.DateRange{Start: start, End: day}

	case model.DateLastMonth:
		thisStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return &model.DateRange{
			Start: thisStart.AddDate(0, -1, 0),
			End:   thisStart.AddDate(0, 0, -1),
		}

	case model.DateThisQuarter:
		quarterMonth := time.Month(((int(day.Month())-1)/3)*3 + 1)
		start := time.Date(day.Year(), quarterMonth, 1, 0, 0, 0, 0, day.Location())
		return &model.DateRange{Start: start, End: day}

	case model.DateIndianFY:
		year := day.Year()
		if day.Month() < time.April {
			year--
		}
		start := time.Date(year, time.April, 1, 0, 0, 0, 0, day.Location())
		return &model.DateRange{
			Start: start,
			End:   time.Date(year+1, time.March, 31, 0, 0, 0, 0, day.Location()),
		}

	default:
		return nil
	}
}

// queryResult carries the shaped rows plus the descriptor that produced
// them, for the summarizer.
type queryResult struct {
	Descriptor *model.QueryDescriptor
	Rows       []*model.ShapedRow
}

// executeQuery resolves the descriptor against the repository: date-range
// fetch first, then in-process filtering and shaping. Category, merchant,
// payment-mode and amount filters run locally so a missing composite index
// never fails the query.
func (u *UseCase) executeQuery(ctx context.Context, userID string, desc *model.QueryDescriptor) (*queryResult, error) {
	dateRange := resolveDateKeyword(desc.Filters.DateKeyword, u.now())

	expenses, err := u.repo.ListExpenses(ctx, userID, dateRange)
	if err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to list expenses",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}

	rows := applyFilters(shapeDocs(expenses), desc.Filters)

	switch desc.Intent {
	case model.IntentMostExpensive:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Amount > rows[j].Amount })
		if len(rows) > 1 {
			rows = rows[:1]
		}
	case model.IntentCheapest:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Amount < rows[j].Amount })
		if len(rows) > 1 {
			rows = rows[:1]
		}
	}

	logging.From(ctx).Debug("query executed",
		"intent", desc.Intent, "rows", len(rows), "date_keyword", desc.Filters.DateKeyword)

	return &queryResult{Descriptor: desc, Rows: rows}, nil
}

// shapeDocs flattens each expense into one row per line item, carrying the
// parent fields on every row. N expenses with M items in total produce
// exactly M rows; an expense with no items contributes none.
func shapeDocs(expenses []*model.Expense) []*model.ShapedRow {
	var rows []*model.ShapedRow
	for _, e := range expenses {
		for _, it := range e.Items {
			qty := it.Quantity
			if qty == 0 {
				qty = 1
			}
			rows = append(rows, &model.ShapedRow{
				Name:        it.Name,
				Price:       it.Price,
				Quantity:    qty,
				Category:    e.Category,
				Vendor:      e.Vendor,
				PaymentMode: e.PaymentMode,
				ExpenseID:   e.ID,
				UserID:      e.UserID,
				Date:        e.Date,
				CreatedAt:   e.CreatedAt,
				Amount:      e.Amount,
				Total:       it.Price * float64(qty),
			})
		}
	}
	return rows
}

// applyFilters runs the non-date filters over shaped rows. Category matches
// exactly, merchants match case-insensitively as a membership set, and the
// amount threshold applies to the item price.
func applyFilters(rows []*model.ShapedRow, f model.QueryFilters) []*model.ShapedRow {
	merchants := map[string]bool{}
	for _, m := range f.Merchants {
		merchants[strings.ToLower(m)] = true
	}

	out := rows[:0]
	for _, r := range rows {
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if len(merchants) > 0 && !merchants[strings.ToLower(r.Vendor)] {
			continue
		}
		if f.PaymentMode != "" && !strings.EqualFold(r.PaymentMode, f.PaymentMode) {
			continue
		}
		if f.MinAmount > 0 && r.Price < f.MinAmount {
			continue
		}
		out = append(out, r)
	}
	return out
}

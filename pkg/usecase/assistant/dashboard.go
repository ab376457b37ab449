package assistant

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
)

// DashboardRange is the window selector of the dashboard endpoint.
type DashboardRange string

const (
	Range7Days  DashboardRange = "7d"
	Range30Days DashboardRange = "30d"
	Range90Days DashboardRange = "90d"
	RangeYear   DashboardRange = "1y"
	RangeAll    DashboardRange = "all"
)

// CategoryTotal is one slice of the category breakdown.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// Dashboard is the aggregate view of a user's spending over a window.
type Dashboard struct {
	Range        DashboardRange   `json:"range"`
	TotalSpent   float64          `json:"totalSpent"`
	ExpenseCount int              `json:"expenseCount"`
	ItemCount    int              `json:"itemCount"`
	AverageSpend float64          `json:"averageSpend"`
	ByCategory   []CategoryTotal  `json:"byCategory"`
	Recent       []*model.Expense `json:"recent"`
}

// Kept small, the dashboard is a glance not a ledger export.
const dashboardRecentLimit = 10

// BuildDashboard aggregates a user's expenses over the requested window.
// An unrecognized range falls back to 30 days.
func (u *UseCase) BuildDashboard(ctx context.Context, userID string, window DashboardRange) (*Dashboard, error) {
	expenses, err := u.repo.ListExpenses(ctx, userID, dashboardDateRange(window, u.now()))
	if err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to list expenses for dashboard",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}

	d := &Dashboard{Range: window}
	byCategory := map[string]*CategoryTotal{}

	for _, e := range expenses {
		d.TotalSpent += e.Amount
		d.ExpenseCount++
		d.ItemCount += len(e.Items)

		cat := e.Category
		if cat == "" {
			cat = "other"
		}
		ct, ok := byCategory[cat]
		if !ok {
			ct = &CategoryTotal{Category: cat}
			byCategory[cat] = ct
		}
		ct.Total += e.Amount
		ct.Count++
	}

	if d.ExpenseCount > 0 {
		d.AverageSpend = d.TotalSpent / float64(d.ExpenseCount)
	}

	for _, ct := range byCategory {
		d.ByCategory = append(d.ByCategory, *ct)
	}
	sort.Slice(d.ByCategory, func(i, j int) bool {
		return d.ByCategory[i].Total > d.ByCategory[j].Total
	})

	sort.Slice(expenses, func(i, j int) bool {
		if expenses[i].Date != expenses[j].Date {
			return expenses[i].Date > expenses[j].Date
		}
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
	if len(expenses) > dashboardRecentLimit {
		expenses = expenses[:dashboardRecentLimit]
	}
	d.Recent = expenses

	return d, nil
}

func dashboardDateRange(window DashboardRange, now time.Time) *model.DateRange {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch window {
	case Range7Days:
		return &model.DateRange{Start: day.AddDate(0, 0, -7), End: day}
	case Range90Days:
		return &model.DateRange{Start: day.AddDate(0, 0, -90), End: day}
	case RangeYear:
		return &model.DateRange{Start: day.AddDate(-1, 0, 0), End: day}
	case RangeAll:
		return nil
	default:
		return &model.DateRange{Start: day.AddDate(0, 0, -30), End: day}
	}
}

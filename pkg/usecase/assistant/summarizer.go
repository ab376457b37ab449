package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
)

const emptyResultMessage = "No expenses found for your query."

// summarize renders a query result into a reply. The high-traffic intents
// use fixed templates so the numbers are always arithmetic, not model
// output; everything else goes through the model with a small sample of
// rows.
func (u *UseCase) summarize(ctx context.Context, utterance string, result *queryResult) (string, error) {
	if len(result.Rows) == 0 {
		return emptyResultMessage, nil
	}

	if wantsAverage(utterance, result.Descriptor) {
		total := sumPrices(result.Rows)
		avg := total / float64(len(result.Rows))
		return fmt.Sprintf("Your average spending is ₹%s per item. Total: ₹%s across %d items.",
			formatINRDecimal(avg), formatINR(total), len(result.Rows)), nil
	}

	switch result.Descriptor.Intent {
	case model.IntentTotalSpending, model.IntentCategorySpending,
		model.IntentMerchantSpending, model.IntentThresholdExpense:
		total := sumPrices(result.Rows)
		return fmt.Sprintf("You spent ₹%s total across %d items.",
			formatINR(total), len(result.Rows)), nil

	case model.IntentMostExpensive:
		top := result.Rows[0]
		return fmt.Sprintf("Your most expensive item was %s for ₹%s.",
			top.Name, formatINR(top.Price)), nil

	case model.IntentCheapest:
		low := result.Rows[0]
		return fmt.Sprintf("Your cheapest item was %s for ₹%s.",
			low.Name, formatINR(low.Price)), nil

	case model.IntentAverageDaily:
		total := sumPrices(result.Rows)
		days := countDays(result.Rows)
		avg := total / float64(days)
		return fmt.Sprintf("You spent about ₹%s per day. Total: ₹%s across %d days.",
			formatINRDecimal(avg), formatINR(total), days), nil

	default:
		return u.summarizeWithModel(ctx, utterance, result)
	}
}

// wantsAverage selects the average template: the average intent, an avg
// aggregation on any intent, or the word itself in the utterance. The
// daily-average intent keeps its own per-day template.
func wantsAverage(utterance string, desc *model.QueryDescriptor) bool {
	if desc.Intent == model.IntentAverageDaily {
		return false
	}
	if desc.Intent == model.IntentAverageSpending || desc.Aggregation == model.AggregationAvg {
		return true
	}
	return strings.Contains(strings.ToLower(utterance), "average")
}

// summarizeWithModel handles the intents with no fixed template. The model
// sees aggregate numbers plus at most three sample rows, never the full
// result set.
func (u *UseCase) summarizeWithModel(ctx context.Context, utterance string, result *queryResult) (string, error) {
	sample := result.Rows
	if len(sample) > 3 {
		sample = sample[:3]
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode result sample")
	}

	var b strings.Builder
	b.WriteString("You are a personal expense assistant. Answer the user's question in one or two plain sentences using the data below. Amounts are in Indian rupees (₹). Do not invent numbers.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", utterance)
	fmt.Fprintf(&b, "Matching items: %d\n", len(result.Rows))
	fmt.Fprintf(&b, "Total amount: ₹%s\n", formatINR(sumPrices(result.Rows)))
	fmt.Fprintf(&b, "Sample rows: %s\n", sampleJSON)

	reply, err := u.generate(ctx, b.String())
	if err != nil {
		return "", goerr.Wrap(err, "result summarization call failed")
	}
	return strings.TrimSpace(reply), nil
}

func sumPrices(rows []*model.ShapedRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.Price
	}
	return total
}

// countDays counts distinct purchase dates across the rows, never less
// than one.
func countDays(rows []*model.ShapedRow) int {
	days := map[string]bool{}
	for _, r := range rows {
		days[r.Date] = true
	}
	if len(days) == 0 {
		return 1
	}
	return len(days)
}

// formatINR renders an amount with Indian digit grouping: the last three
// digits form one group, every two digits after that another
// (1234567 -> 12,34,567). Whole amounts drop the fraction.
func formatINR(amount float64) string {
	if amount == float64(int64(amount)) {
		return groupINR(strconv.FormatInt(int64(amount), 10))
	}
	return formatINRDecimal(amount)
}

// formatINRDecimal always keeps two decimal places.
func formatINRDecimal(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	return groupINR(whole) + "." + frac
}

func groupINR(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	if len(digits) <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}

	head := digits[:len(digits)-3]
	groups := []string{digits[len(digits)-3:]}
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)

	out := strings.Join(groups, ",")
	if neg {
		return "-" + out
	}
	return out
}

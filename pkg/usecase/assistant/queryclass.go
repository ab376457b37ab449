package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

//go:embed prompt/query.md
var queryPromptRaw string

var queryPromptTmpl = template.Must(template.New("query").Parse(queryPromptRaw))

// classifyQuery turns a fetch-intent utterance into a structured descriptor.
// A malformed model response is fatal except for the single average rescue;
// the executor treats UNKNOWN as an unfiltered query.
func (u *UseCase) classifyQuery(ctx context.Context, utterance string) (*model.QueryDescriptor, error) {
	var buf bytes.Buffer
	if err := queryPromptTmpl.Execute(&buf, map[string]any{
		"Query": utterance,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute query prompt template")
	}

	raw, err := u.generate(ctx, buf.String())
	if err != nil {
		return nil, goerr.Wrap(model.ErrQueryParse, "query classification call failed", goerr.V("cause", err.Error()))
	}

	var desc model.QueryDescriptor
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &desc); err != nil {
		if rescued, ok := averageRescue(utterance); ok {
			logging.From(ctx).Warn("query classifier returned malformed JSON, rescued as average",
				"raw", raw)
			return rescued, nil
		}
		return nil, goerr.Wrap(model.ErrQueryParse, "query classifier returned malformed JSON",
			goerr.V("raw", raw))
	}

	desc.Intent = desc.Intent.Normalize()
	applyAverageOverride(&desc, utterance)

	return &desc, nil
}

// applyAverageOverride forces the average intent when the utterance plainly
// asks for one. The classifier confuses averages with totals often enough
// that the keyword wins.
func applyAverageOverride(desc *model.QueryDescriptor, utterance string) {
	lower := strings.ToLower(utterance)
	if !strings.Contains(lower, "average") && !strings.Contains(lower, "avg") {
		return
	}
	switch desc.Intent {
	case model.IntentAverageSpending, model.IntentAverageDaily:
		return
	}
	if strings.Contains(lower, "per day") || strings.Contains(lower, "daily") {
		desc.Intent = model.IntentAverageDaily
	} else {
		desc.Intent = model.IntentAverageSpending
	}
	desc.Aggregation = model.AggregationAvg
}

// averageRescue is the only parse-failure fallback: an utterance that
// plainly asks for an average still gets an answer, everything else is a
// classification failure.
func averageRescue(utterance string) (*model.QueryDescriptor, bool) {
	lower := strings.ToLower(utterance)
	if !strings.Contains(lower, "average") && !strings.Contains(lower, "avg") {
		return nil, false
	}

	intent := model.IntentAverageSpending
	if strings.Contains(lower, "per day") || strings.Contains(lower, "daily") {
		intent = model.IntentAverageDaily
	}
	return &model.QueryDescriptor{Intent: intent, Aggregation: model.AggregationAvg}, true
}

package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
)

// Intent is the three-way branch decision for a turn.
type Intent string

const (
	IntentAdd   Intent = "add"
	IntentFetch Intent = "fetch"
	IntentConvo Intent = "convo"
)

//go:embed prompt/intent.md
var intentPromptRaw string

var intentPromptTmpl = template.Must(template.New("intent").Parse(intentPromptRaw))

// classifyIntent maps an utterance plus recent history to one of the three
// branches. Anything the model answers outside the label set becomes convo,
// the least destructive misclassification.
func (u *UseCase) classifyIntent(ctx context.Context, utterance, recentHistory string) (Intent, error) {
	var buf bytes.Buffer
	if err := intentPromptTmpl.Execute(&buf, map[string]any{
		"Context": recentHistory,
		"Latest":  utterance,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute intent prompt template")
	}

	raw, err := u.generate(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(model.ErrClassification, "intent classification call failed", goerr.V("cause", err.Error()))
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "add":
		return IntentAdd, nil
	case "fetch":
		return IntentFetch, nil
	default:
		return IntentConvo, nil
	}
}

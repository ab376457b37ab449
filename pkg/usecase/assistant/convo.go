package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/convo.md
var convoPromptRaw string

var convoPromptTmpl = template.Must(template.New("convo").Parse(convoPromptRaw))

// handleConvo answers small talk. The model's reply is returned verbatim;
// the prompt itself carries the output contract.
func (u *UseCase) handleConvo(ctx context.Context, utterance, recentHistory string) (string, error) {
	var buf bytes.Buffer
	if err := convoPromptTmpl.Execute(&buf, map[string]any{
		"Context": recentHistory,
		"Latest":  utterance,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute convo prompt template")
	}

	reply, err := u.generate(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "conversation call failed")
	}
	return reply, nil
}

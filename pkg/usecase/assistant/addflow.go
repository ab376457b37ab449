package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

//go:embed prompt/draft.md
var draftPromptRaw string

var draftPromptTmpl = template.Must(template.New("draft").Parse(draftPromptRaw))

// extractionPayload is the JSON contract of the draft extraction call. Data
// is a clarifying question string while validation fails, and the receipt
// object once it passes.
type extractionPayload struct {
	ValidationPassed bool            `json:"validationPassed"`
	AddToDB          bool            `json:"addToDb"`
	Data             json.RawMessage `json:"data"`
}

type receiptData struct {
	Receipt model.ExpenseDraft `json:"receipt"`
}

// handleAdd advances the session's add workflow by one turn.
func (u *UseCase) handleAdd(ctx context.Context, sessionID model.SessionID, userID, utterance, recentHistory string) (string, error) {
	flow, err := u.sessions.AddFlow(sessionID)
	if err != nil {
		return "", err
	}

	switch flow.State {
	case model.AddFlowConfirming:
		if isAffirmation(utterance) {
			return u.commitDraft(ctx, sessionID, userID, flow.Draft)
		}
		if isNegation(utterance) {
			if err := u.sessions.SetAddFlow(sessionID, model.AddFlow{State: model.AddFlowAbandoned}); err != nil {
				return "", err
			}
			return "Okay, I won't save this receipt.", nil
		}
		// Anything else is treated as a correction; re-extract with context.
		return u.extractDraft(ctx, sessionID, userID, utterance, recentHistory)

	case model.AddFlowCommitted:
		if isAffirmation(utterance) {
			return fmt.Sprintf("This receipt is already saved (id %s).", flow.CommittedID), nil
		}
		return u.extractDraft(ctx, sessionID, userID, utterance, recentHistory)

	default:
		return u.extractDraft(ctx, sessionID, userID, utterance, recentHistory)
	}
}

// extractDraft runs the extraction model and routes on its validation flags.
func (u *UseCase) extractDraft(ctx context.Context, sessionID model.SessionID, userID, utterance, recentHistory string) (string, error) {
	var buf bytes.Buffer
	if err := draftPromptTmpl.Execute(&buf, map[string]any{
		"Today":      u.now().Format("2006-01-02"),
		"Categories": u.taxonomy.PromptSection(),
		"Context":    recentHistory,
		"Latest":     utterance,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute draft prompt template")
	}

	raw, err := u.generate(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "draft extraction call failed")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &payload); err != nil {
		return "", goerr.Wrap(err, "draft extraction returned malformed JSON", goerr.V("raw", raw))
	}

	if !payload.ValidationPassed {
		var question string
		if err := json.Unmarshal(payload.Data, &question); err != nil || question == "" {
			question = "Could you tell me the vendor, the items, and the total amount?"
		}
		if err := u.sessions.SetAddFlow(sessionID, model.AddFlow{State: model.AddFlowDrafting}); err != nil {
			return "", err
		}
		return question, nil
	}

	var data receiptData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return "", goerr.Wrap(err, "draft extraction returned malformed receipt", goerr.V("raw", raw))
	}
	draft := data.Receipt

	if !payload.AddToDB {
		if err := u.sessions.SetAddFlow(sessionID, model.AddFlow{
			State: model.AddFlowConfirming,
			Draft: &draft,
		}); err != nil {
			return "", err
		}
		return renderConfirmation(&draft), nil
	}

	return u.commitDraft(ctx, sessionID, userID, &draft)
}

// commitDraft persists the draft and its per-item embeddings as one batch.
// Embedding failure aborts before any write; persistence failure leaves no
// partial item set behind.
func (u *UseCase) commitDraft(ctx context.Context, sessionID model.SessionID, userID string, draft *model.ExpenseDraft) (string, error) {
	if draft == nil {
		return "", goerr.New("no draft to commit", goerr.V("session_id", sessionID))
	}
	if err := draft.Validate(); err != nil {
		return "", goerr.Wrap(err, "draft is not committable")
	}

	vectors, err := u.gemini.Embedding(ctx, draft.EmbeddingInputs(), adapter.TaskRetrievalDocument)
	if err != nil {
		return "", goerr.Wrap(model.ErrEmbedding, "failed to embed line items",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	expense := model.NewExpense(userID, draft, u.now())
	items, err := expense.ItemEmbeddings(vectors)
	if err != nil {
		return "", goerr.Wrap(model.ErrEmbedding, "embedding result does not cover all items",
			goerr.V("cause", err.Error()))
	}

	if err := u.repo.PutExpense(ctx, expense, items); err != nil {
		return "", goerr.Wrap(model.ErrPersistence, "failed to save expense",
			goerr.V("expense_id", expense.ID), goerr.V("cause", err.Error()))
	}

	if err := u.sessions.SetAddFlow(sessionID, model.AddFlow{
		State:       model.AddFlowCommitted,
		CommittedID: expense.ID,
	}); err != nil {
		return "", err
	}

	logging.From(ctx).Info("expense committed",
		"expense_id", expense.ID, "user_id", userID, "items", len(items))

	return fmt.Sprintf("Receipt saved successfully! Saved %s with %d items (id %s).",
		expense.Vendor, len(items), expense.ID), nil
}

// SaveExpense commits a pre-structured draft directly, outside any
// conversation. Used by the expense endpoint of the request boundary.
func (u *UseCase) SaveExpense(ctx context.Context, userID string, draft *model.ExpenseDraft) (model.ExpenseID, int, error) {
	if err := draft.Validate(); err != nil {
		return "", 0, goerr.Wrap(err, "expense is not committable")
	}

	vectors, err := u.gemini.Embedding(ctx, draft.EmbeddingInputs(), adapter.TaskRetrievalDocument)
	if err != nil {
		return "", 0, goerr.Wrap(model.ErrEmbedding, "failed to embed line items", goerr.V("cause", err.Error()))
	}

	expense := model.NewExpense(userID, draft, u.now())
	items, err := expense.ItemEmbeddings(vectors)
	if err != nil {
		return "", 0, goerr.Wrap(model.ErrEmbedding, "embedding result does not cover all items", goerr.V("cause", err.Error()))
	}

	if err := u.repo.PutExpense(ctx, expense, items); err != nil {
		return "", 0, goerr.Wrap(model.ErrPersistence, "failed to save expense", goerr.V("cause", err.Error()))
	}

	return expense.ID, len(items), nil
}

// renderConfirmation builds the deterministic confirmation message.
func renderConfirmation(draft *model.ExpenseDraft) string {
	itemSummary := "No items listed"
	if len(draft.Items) > 0 {
		parts := make([]string, 0, len(draft.Items))
		for _, it := range draft.Items {
			qty := it.Quantity
			if qty == 0 {
				qty = 1
			}
			parts = append(parts, fmt.Sprintf("%d %s for ₹%s", qty, it.Name, formatINR(it.Price)))
		}
		itemSummary = strings.Join(parts, ", ")
	}

	return fmt.Sprintf("You're about to save this receipt:\n- Vendor: %s\n- Items: %s\n- Total: ₹%s\n- Date: %s\n\nShall I add this to the database? Reply with \"yes\" or \"no\".",
		draft.Vendor, itemSummary, formatINR(draft.Amount), draft.Date)
}

var affirmations = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "sure": true, "confirm": true, "ok": true, "okay": true,
}

var negations = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true, "don't": true, "dont": true,
}

func normalizeReply(utterance string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(utterance)), ".,!? ")
}

func isAffirmation(utterance string) bool {
	return affirmations[normalizeReply(utterance)]
}

func isNegation(utterance string) bool {
	return negations[normalizeReply(utterance)]
}

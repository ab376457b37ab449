package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/usecase/assistant"
)

const groceryExtraction = `{
  "validationPassed": true,
  "addToDb": false,
  "data": {
    "receipt": {
      "vendor": "Big Bazaar",
      "date": "2025-06-14",
      "amount": 900,
      "category": "food",
      "items": [
        {"name": "rice", "price": 400, "quantity": 1},
        {"name": "dal", "price": 250, "quantity": 2}
      ],
      "confidence": 0.9
    }
  }
}`

func TestAddFlowAsksWhenIncomplete(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: `{"validationPassed": false, "addToDb": false, "data": "What was the total amount?"}`,
	}
	uc, repo := newTestAssistant(mock)

	out := gt.R1(uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID:    "user1",
		Utterance: "I bought groceries",
	})).NoError(t)

	gt.Value(t, out.Response).Equal("What was the total amount?")

	expenses := gt.R1(repo.ListExpenses(context.Background(), "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(0)
}

func TestAddFlowConfirmAndCommit(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: groceryExtraction,
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "bought rice and dal at Big Bazaar for 900",
	})).NoError(t)

	gt.True(t, strings.Contains(out.Response, "You're about to save this receipt:"))
	gt.True(t, strings.Contains(out.Response, "Vendor: Big Bazaar"))
	gt.True(t, strings.Contains(out.Response, "Total: ₹900"))

	// Nothing is written until the user confirms.
	expenses := gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(0)

	confirmed := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: out.SessionID,
		UserID:    "user1",
		Utterance: "yes",
	})).NoError(t)

	gt.True(t, strings.Contains(confirmed.Response, "Receipt saved successfully!"))
	gt.True(t, strings.Contains(confirmed.Response, "2 items"))

	expenses = gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(1)
	gt.Value(t, expenses[0].Vendor).Equal("Big Bazaar")
	gt.Value(t, expenses[0].Category).Equal("food")

	// One embedding call with one input per line item.
	gt.Array(t, mock.embedCalls).Length(1)
	gt.Array(t, mock.embedCalls[0]).Length(2)
	gt.True(t, strings.Contains(mock.embedCalls[0][0], "rice | food | ₹100_499 | Big Bazaar"))
}

func TestAddFlowSecondYesDoesNotDuplicate(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: groceryExtraction,
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "bought rice and dal at Big Bazaar for 900",
	})).NoError(t)

	gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: out.SessionID,
		UserID:    "user1",
		Utterance: "yes",
	})).NoError(t)

	again := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: out.SessionID,
		UserID:    "user1",
		Utterance: "yes",
	})).NoError(t)

	gt.True(t, strings.Contains(again.Response, "already saved"))

	expenses := gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(1)
}

func TestAddFlowNegationAbandons(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: groceryExtraction,
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "bought rice and dal at Big Bazaar for 900",
	})).NoError(t)

	declined := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: out.SessionID,
		UserID:    "user1",
		Utterance: "no",
	})).NoError(t)

	gt.Value(t, declined.Response).Equal("Okay, I won't save this receipt.")

	expenses := gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(0)
}

func TestAddFlowEmbeddingFailureWritesNothing(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: groceryExtraction,
		embedErr:     errors.New("embedding service unavailable"),
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "bought rice and dal at Big Bazaar for 900",
	})).NoError(t)

	_, err := uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: out.SessionID,
		UserID:    "user1",
		Utterance: "yes",
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEmbedding))

	expenses := gt.R1(repo.ListExpenses(ctx, "user1", nil)).NoError(t)
	gt.Array(t, expenses).Length(0)
}

func TestAddFlowHandlesFencedJSON(t *testing.T) {
	mock := &mockGemini{
		intentReply:  "add",
		extractReply: "```json\n" + groceryExtraction + "\n```",
	}
	uc, _ := newTestAssistant(mock)

	out := gt.R1(uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID:    "user1",
		Utterance: "bought rice and dal at Big Bazaar for 900",
	})).NoError(t)

	gt.True(t, strings.Contains(out.Response, "You're about to save this receipt:"))
}

func TestSaveExpenseDirect(t *testing.T) {
	mock := &mockGemini{}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	id, items, err := uc.SaveExpense(ctx, "user1", &model.ExpenseDraft{
		Vendor:   "Cafe Coffee Day",
		Amount:   350,
		Category: "food",
		Items:    []model.Item{{Name: "latte", Price: 350, Quantity: 1}},
	})
	gt.NoError(t, err)
	gt.True(t, id != "")
	gt.Number(t, items).Equal(1)

	saved := gt.R1(repo.GetExpense(ctx, "user1", id)).NoError(t)
	gt.Value(t, saved.Vendor).Equal("Cafe Coffee Day")
}

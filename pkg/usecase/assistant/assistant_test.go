package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/repository"
	"github.com/n-khatri/paisa/pkg/usecase/assistant"
	"github.com/n-khatri/paisa/pkg/usecase/session"
	"google.golang.org/genai"
)

// mockGemini scripts one reply per prompt kind, recognized by a marker in
// the prompt text.
type mockGemini struct {
	intentReply  string
	extractReply string
	queryReply   string
	convoReply   string

	embedErr   error
	embedCalls [][]string
	prompts    []string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	prompt := contents[0].Parts[0].Text
	m.prompts = append(m.prompts, prompt)

	var reply string
	switch {
	case strings.Contains(prompt, "intent classifier"):
		reply = m.intentReply
	case strings.Contains(prompt, "expense extraction assistant"):
		reply = m.extractReply
	case strings.Contains(prompt, "personal-finance query"):
		reply = m.queryReply
	default:
		reply = m.convoReply
	}
	if reply == "" {
		return nil, errors.New("no scripted reply for prompt")
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: reply}},
				},
			},
		},
	}, nil
}

func (m *mockGemini) Embedding(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	m.embedCalls = append(m.embedCalls, texts)
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	vectors := make([][]float32, 0, len(texts))
	for range texts {
		vectors = append(vectors, []float32{1, 0, 0})
	}
	return vectors, nil
}

func timeNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestAssistant(mock *mockGemini) (*assistant.UseCase, *repository.Memory) {
	repo := repository.NewMemory()
	sessions := session.New(repo)
	return assistant.New(sessions, repo, mock, assistant.WithClock(timeNow)), repo
}

func TestHandleTurnConvo(t *testing.T) {
	mock := &mockGemini{
		intentReply: "convo",
		convoReply:  "Hello! How can I help you today?",
	}
	uc, _ := newTestAssistant(mock)

	out, err := uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID:    "user1",
		Utterance: "hi there",
	})
	gt.NoError(t, err)
	gt.Value(t, out.Intent).Equal(assistant.IntentConvo)
	gt.Value(t, out.Response).Equal("Hello! How can I help you today?")
	gt.True(t, out.SessionID != "")
}

func TestHandleTurnKeepsSession(t *testing.T) {
	mock := &mockGemini{
		intentReply: "convo",
		convoReply:  "sure",
	}
	uc, _ := newTestAssistant(mock)
	ctx := context.Background()

	first := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "hello",
	})).NoError(t)

	second := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: first.SessionID,
		UserID:    "user1",
		Utterance: "one more thing",
	})).NoError(t)

	gt.Value(t, second.SessionID).Equal(first.SessionID)
	gt.Number(t, uc.Sessions().Len()).Equal(1)

	// The second turn's classifier prompt must carry the first exchange.
	var intentPrompts []string
	for _, p := range mock.prompts {
		if strings.Contains(p, "intent classifier") {
			intentPrompts = append(intentPrompts, p)
		}
	}
	gt.Array(t, intentPrompts).Length(2)
	gt.True(t, strings.Contains(intentPrompts[1], "User: hello"))
	gt.True(t, strings.Contains(intentPrompts[1], "Bot: sure"))
}

func TestHandleTurnValidation(t *testing.T) {
	uc, _ := newTestAssistant(&mockGemini{})

	_, err := uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID: "user1",
	})
	gt.Error(t, err)

	_, err = uc.HandleTurn(context.Background(), assistant.TurnInput{
		Utterance: "hello",
	})
	gt.Error(t, err)
}

func TestHandleTurnFetchFallsBackToStructuredPath(t *testing.T) {
	mock := &mockGemini{
		intentReply: "fetch",
		queryReply:  `{"intent": "TOTAL_SPENDING", "filters": {}, "aggregation": "sum"}`,
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	expense := model.NewExpense("user1", &model.ExpenseDraft{
		Vendor: "Big Bazaar",
		Amount: 900,
		Items: []model.Item{
			{Name: "rice", Price: 400, Quantity: 1},
			{Name: "dal", Price: 500, Quantity: 1},
		},
	}, timeNow())
	gt.NoError(t, repo.PutExpense(ctx, expense, nil))

	// No embeddings are stored, so the semantic path finds nothing and the
	// structured path answers.
	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "how much did I spend",
	})).NoError(t)

	gt.Value(t, out.Intent).Equal(assistant.IntentFetch)
	gt.Value(t, out.Response).Equal("You spent ₹900 total across 2 items.")
}

func TestHandleTurnFetchParseFailure(t *testing.T) {
	mock := &mockGemini{
		intentReply: "fetch",
		queryReply:  "sorry, I cannot help with that",
	}
	uc, _ := newTestAssistant(mock)

	// A malformed classifier reply with no average keyword in the utterance
	// has no rescue and fails the turn.
	_, err := uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID:    "user1",
		Utterance: "how much did I spend on groceries",
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrQueryParse))
}

func TestHandleTurnFetchAverageSurvivesParseFailure(t *testing.T) {
	mock := &mockGemini{
		intentReply: "fetch",
		queryReply:  "I think the average is around three hundred",
	}
	uc, repo := newTestAssistant(mock)
	ctx := context.Background()

	expense := model.NewExpense("user1", &model.ExpenseDraft{
		Vendor: "Big Bazaar",
		Amount: 900,
		Items: []model.Item{
			{Name: "rice", Price: 100, Quantity: 1},
			{Name: "dal", Price: 300, Quantity: 1},
			{Name: "oil", Price: 500, Quantity: 1},
		},
	}, timeNow())
	gt.NoError(t, repo.PutExpense(ctx, expense, nil))

	// The average keyword in the utterance rescues the malformed reply and
	// the structured path still answers with the average template.
	out := gt.R1(uc.HandleTurn(ctx, assistant.TurnInput{
		UserID:    "user1",
		Utterance: "what is my average spending",
	})).NoError(t)

	gt.Value(t, out.Intent).Equal(assistant.IntentFetch)
	gt.Value(t, out.Response).Equal("Your average spending is ₹300.00 per item. Total: ₹900 across 3 items.")
}

func TestHandleTurnFetchEmptyData(t *testing.T) {
	mock := &mockGemini{
		intentReply: "fetch",
		queryReply:  `{"intent": "TOTAL_SPENDING", "filters": {}}`,
	}
	uc, _ := newTestAssistant(mock)

	out := gt.R1(uc.HandleTurn(context.Background(), assistant.TurnInput{
		UserID:    "user1",
		Utterance: "how much did I spend",
	})).NoError(t)

	gt.Value(t, out.Response).Equal("No expenses found for your query.")
}

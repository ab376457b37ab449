package assistant

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/repository"
	"github.com/n-khatri/paisa/pkg/usecase/session"
	"github.com/n-khatri/paisa/pkg/utils/logging"
	"google.golang.org/genai"
)

// Turns of context handed to the classifiers.
const defaultHistoryDepth = 8

// UseCase is the turn orchestration pipeline: intent detection, the add
// workflow, query retrieval and small talk, threaded through the session
// store.
type UseCase struct {
	sessions *session.Store
	repo     repository.Repository
	gemini   adapter.Gemini
	taxonomy *Taxonomy

	historyDepth int
	now          func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithTaxonomy overrides the default category taxonomy
func WithTaxonomy(t *Taxonomy) Option {
	return func(uc *UseCase) {
		uc.taxonomy = t
	}
}

// WithHistoryDepth sets how many turns of context the classifiers see
func WithHistoryDepth(n int) Option {
	return func(uc *UseCase) {
		uc.historyDepth = n
	}
}

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new assistant UseCase instance
func New(sessions *session.Store, repo repository.Repository, gemini adapter.Gemini, opts ...Option) *UseCase {
	uc := &UseCase{
		sessions:     sessions,
		repo:         repo,
		gemini:       gemini,
		historyDepth: defaultHistoryDepth,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.taxonomy == nil {
		t, err := LoadTaxonomy("")
		if err != nil {
			// The embedded default taxonomy must parse.
			panic(err)
		}
		uc.taxonomy = t
	}

	return uc
}

// Sessions exposes the session store for the request boundary.
func (u *UseCase) Sessions() *session.Store {
	return u.sessions
}

// TurnInput is one user turn.
type TurnInput struct {
	SessionID model.SessionID // empty for a new conversation
	UserID    string
	Utterance string
}

// TurnOutput is the pipeline's reply for one turn.
type TurnOutput struct {
	SessionID model.SessionID
	Response  string
	Intent    Intent
}

// HandleTurn runs one utterance through the pipeline: load or create the
// session, append the user turn, classify intent, run the matching branch,
// and append the bot turn.
func (u *UseCase) HandleTurn(ctx context.Context, input TurnInput) (*TurnOutput, error) {
	if input.Utterance == "" {
		return nil, goerr.New("utterance is empty")
	}
	if input.UserID == "" {
		return nil, goerr.New("user id is empty")
	}

	sess := u.sessions.GetOrCreate(ctx, input.SessionID, input.UserID, input.Utterance)

	unlock, err := u.sessions.Serialize(sess.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Context for the classifiers is rendered before the current utterance
	// is appended; the prompts carry the utterance separately.
	recentHistory, err := u.sessions.RecentHistory(sess.ID, u.historyDepth)
	if err != nil {
		return nil, err
	}

	if _, err := u.sessions.Append(ctx, sess.ID, model.SpeakerUser, input.Utterance); err != nil {
		return nil, err
	}

	intent, err := u.classifyIntent(ctx, input.Utterance, recentHistory)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("intent detected", "session_id", sess.ID, "intent", intent)

	var response string
	switch intent {
	case IntentAdd:
		response, err = u.handleAdd(ctx, sess.ID, input.UserID, input.Utterance, recentHistory)
	case IntentFetch:
		response, err = u.handleFetch(ctx, input.UserID, input.Utterance)
	default:
		response, err = u.handleConvo(ctx, input.Utterance, recentHistory)
	}
	if err != nil {
		return nil, err
	}

	if _, err := u.sessions.Append(ctx, sess.ID, model.SpeakerBot, response); err != nil {
		return nil, err
	}

	return &TurnOutput{
		SessionID: sess.ID,
		Response:  response,
		Intent:    intent,
	}, nil
}

// generate runs a single-prompt completion and returns the response text.
func (u *UseCase) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := u.gemini.GenerateContent(ctx, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

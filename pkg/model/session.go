package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Turn is a single utterance or reply in a session. Immutable once appended.
type Turn struct {
	Speaker   Speaker   `firestore:"speaker" json:"speaker"`
	Text      string    `firestore:"text" json:"text"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

type AddFlowState string

const (
	AddFlowIdle       AddFlowState = "idle"
	AddFlowDrafting   AddFlowState = "drafting"
	AddFlowConfirming AddFlowState = "awaiting_confirmation"
	AddFlowCommitted  AddFlowState = "committed"
	AddFlowAbandoned  AddFlowState = "abandoned"
)

// AddFlow tracks the in-progress expense draft of a session. It lives only in
// the session cache and is discarded when the session ends.
type AddFlow struct {
	State       AddFlowState
	Draft       *ExpenseDraft
	CommittedID ExpenseID
}

// Session is one multi-turn conversation. History is append-only and ordered
// by arrival.
type Session struct {
	ID           SessionID `firestore:"sessionId"`
	UserID       string    `firestore:"userId"`
	Title        string    `firestore:"title"`
	StartedAt    time.Time `firestore:"startedAt"`
	LastActiveAt time.Time `firestore:"lastActive"`
	History      []Turn    `firestore:"-"`
	TurnCount    int       `firestore:"turnCount"`

	AddFlow AddFlow `firestore:"-"`
}

// NoHistory is the classifier context used before any turn exists.
const NoHistory = "new chat, no history"

// RecentHistory renders the last n turns as "User: ..." / "Bot: ..." lines.
func (s *Session) RecentHistory(n int) string {
	if len(s.History) == 0 {
		return NoHistory
	}

	turns := s.History
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "Bot"
		if t.Speaker == SpeakerUser {
			label = "User"
		}
		lines = append(lines, label+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// SessionTitle derives a session title from the first utterance.
func SessionTitle(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return "New chat"
	}
	const maxTitle = 48
	if len(seed) > maxTitle {
		return seed[:maxTitle]
	}
	return seed
}

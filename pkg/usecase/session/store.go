package session

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/repository"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

// Store is the cache of live conversation sessions. At most one cached
// instance exists per session ID; turns of the same session are serialized
// via Serialize while different sessions proceed concurrently.
type Store struct {
	mu      sync.Mutex
	entries map[model.SessionID]*entry

	repo    repository.Repository
	storage adapter.Storage
	now     func() time.Time
}

type entry struct {
	turnMu sync.Mutex
	sess   *model.Session
}

type Option func(*Store)

// WithArchiveStorage sets the object store that receives the full turn log
// when a session ends. Without it only the metadata document is archived.
func WithArchiveStorage(storage adapter.Storage) Option {
	return func(s *Store) {
		s.storage = storage
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new session store backed by the given repository
func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		entries: make(map[model.SessionID]*entry),
		repo:    repo,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the cached session for id, or allocates a new one when
// id is empty or unknown. lastActiveAt is refreshed either way.
func (s *Store) GetOrCreate(ctx context.Context, id model.SessionID, userID, seedUtterance string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if e, ok := s.entries[id]; ok {
			e.sess.LastActiveAt = s.now()
			return s.snapshot(e.sess)
		}
		logging.From(ctx).Info("unknown session id, creating new session", "session_id", id)
	}

	now := s.now()
	sess := &model.Session{
		ID:           model.NewSessionID(),
		UserID:       userID,
		Title:        model.SessionTitle(seedUtterance),
		StartedAt:    now,
		LastActiveAt: now,
		AddFlow:      model.AddFlow{State: model.AddFlowIdle},
	}
	s.entries[sess.ID] = &entry{sess: sess}
	return s.snapshot(sess)
}

// Serialize takes the per-session turn lock, blocking until any in-flight
// turn for the same session completes. The returned func releases it.
func (s *Store) Serialize(id model.SessionID) (func(), error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "cannot serialize turn", goerr.V("session_id", id))
	}

	e.turnMu.Lock()
	return e.turnMu.Unlock, nil
}

// Append adds a turn to the session history. History is append-only; turns
// are never mutated or removed.
func (s *Store) Append(ctx context.Context, id model.SessionID, speaker model.Speaker, text string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "cannot append turn", goerr.V("session_id", id))
	}

	now := s.now()
	e.sess.History = append(e.sess.History, model.Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: now,
	})
	e.sess.TurnCount = len(e.sess.History)
	e.sess.LastActiveAt = now

	return s.snapshot(e.sess), nil
}

// RecentHistory renders the last n turns of the session as classifier
// context.
func (s *Store) RecentHistory(id model.SessionID, n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", goerr.Wrap(model.ErrSessionNotFound, "cannot render history", goerr.V("session_id", id))
	}
	return e.sess.RecentHistory(n), nil
}

// AddFlow returns a copy of the session's add-workflow state.
func (s *Store) AddFlow(id model.SessionID) (model.AddFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return model.AddFlow{}, goerr.Wrap(model.ErrSessionNotFound, "cannot read add flow", goerr.V("session_id", id))
	}
	return e.sess.AddFlow, nil
}

// SetAddFlow replaces the session's add-workflow state.
func (s *Store) SetAddFlow(id model.SessionID, flow model.AddFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return goerr.Wrap(model.ErrSessionNotFound, "cannot update add flow", goerr.V("session_id", id))
	}
	e.sess.AddFlow = flow
	return nil
}

// End archives the session durably and then evicts it from the cache. On any
// write failure the cache entry is retained so End can be retried.
func (s *Store) End(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return goerr.Wrap(model.ErrSessionNotFound, "cannot end session", goerr.V("session_id", id))
	}

	e.turnMu.Lock()
	defer e.turnMu.Unlock()

	s.mu.Lock()
	sess := s.snapshot(e.sess)
	s.mu.Unlock()

	if err := s.archive(ctx, sess); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	logging.From(ctx).Info("session archived", "session_id", id, "turns", sess.TurnCount)
	return nil
}

// Shutdown flushes every live session. The first failure is returned but the
// remaining sessions are still attempted.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]model.SessionID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.End(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) archive(ctx context.Context, sess *model.Session) error {
	if s.storage != nil {
		if err := s.writeTurnLog(ctx, sess); err != nil {
			return goerr.Wrap(model.ErrPersistence, "failed to archive session turn log",
				goerr.V("session_id", sess.ID), goerr.V("cause", err.Error()))
		}
	}

	if err := s.repo.PutSession(ctx, sess); err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to archive session metadata",
			goerr.V("session_id", sess.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

// TurnLog reads an archived session's turn log back from storage. Only
// sessions that already ended have one.
func (s *Store) TurnLog(ctx context.Context, id model.SessionID) ([]model.Turn, error) {
	if s.storage == nil {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "session archive is not enabled")
	}

	reader, err := s.storage.Get(ctx, archiveKey(id))
	if err != nil {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "archived session not found",
			goerr.V("session_id", id), goerr.V("cause", err.Error()))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read turn log", goerr.V("session_id", id))
	}

	var turns []model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, goerr.Wrap(err, "failed to decode turn log", goerr.V("session_id", id))
	}
	return turns, nil
}

func archiveKey(id model.SessionID) string {
	return "sessions/" + string(id) + ".json"
}

func (s *Store) writeTurnLog(ctx context.Context, sess *model.Session) error {
	writer, err := s.storage.Put(ctx, archiveKey(sess.ID))
	if err != nil {
		return goerr.Wrap(err, "failed to create archive writer")
	}

	data, err := json.Marshal(sess.History)
	if err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to marshal turn log")
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to write turn log")
	}

	return writer.Close()
}

// snapshot copies the session so callers never share the cached instance.
func (s *Store) snapshot(sess *model.Session) *model.Session {
	copied := *sess
	copied.History = make([]model.Turn, len(sess.History))
	copy(copied.History, sess.History)
	return &copied
}

package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy of the pipeline. Failures crossing the boundary are always
// wrapped around one of these sentinels so callers can match with errors.Is.
var (
	// ErrSessionNotFound is returned when appending to a session that is no
	// longer cached. It is never healed by silently creating a new session.
	ErrSessionNotFound = goerr.New("session not found")

	// ErrPersistence covers backing-store write failures. Session cache state
	// is preserved on this error so the caller can retry.
	ErrPersistence = goerr.New("persistence failure")

	// ErrEmbedding is fatal to the current commit attempt; no partial commit
	// is persisted.
	ErrEmbedding = goerr.New("embedding failure")

	// ErrClassification is an intent classification transport failure.
	ErrClassification = goerr.New("intent classification failure")

	// ErrQueryParse is a query classification failure with no heuristic
	// fallback available.
	ErrQueryParse = goerr.New("query classification failure")

	// ErrTranscription is a speech recognition failure, including the
	// no-speech-detected case.
	ErrTranscription = goerr.New("transcription failure")
)

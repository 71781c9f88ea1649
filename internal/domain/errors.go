package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a live session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a submission names an unknown participant.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrDisplayNameRequired is returned when joining with a blank name.
	ErrDisplayNameRequired = errors.New("display name required")
	// ErrAlreadyAnswered is returned for a second submission to the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrDeckNotFound indicates the deck could not be loaded.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrQuestionNotFound indicates a submitted question ID is not the current one.
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrInvalidDeck      = errors.New("invalid deck")
	// ErrReadOnlyDecks is returned when the configured deck source cannot store decks.
	ErrReadOnlyDecks = errors.New("deck store is read-only")

	// ErrHostAttached is returned when a second connection claims an already held host role.
	ErrHostAttached = errors.New("host already attached to session")
	// ErrHostKeyMismatch is returned when the presented host key does not match the session.
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrSessionExists   = errors.New("session already exists")

	ErrSessionNotComplete = errors.New("session not complete")
	ErrFinalsNotReady     = errors.New("final artifacts not generated")

	// ErrUnknownMessage is returned when decoding an envelope with an unrecognised tag.
	ErrUnknownMessage = errors.New("unknown message type")

	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrRasterizerUnavailable = errors.New("pdf rasterizer unavailable")
	ErrInvalidURL            = errors.New("invalid url")
	ErrNoTranscript          = errors.New("no transcript available")
	ErrInsufficientContent   = errors.New("insufficient content")
	ErrEmptyResponse         = errors.New("empty model response")
	// ErrGenerationDisabled is returned when no generative model is configured.
	ErrGenerationDisabled = errors.New("generation not configured")
)

// IngestionError reports a file that could not be turned into slides.
type IngestionError struct {
	Format string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("ingest slides: %v", e.Err)
	}
	return fmt.Sprintf("ingest slides (%s): %v", e.Format, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ExtractionError reports a URL whose content could not be extracted.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationError reports a failed or malformed generative call.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

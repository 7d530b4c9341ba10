// Package apperr defines the typed errors shared across the ingestion and
// query paths.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies an error class.
type Code string

const (
	CodeExtraction       Code = "EXTRACTION"
	CodeEmbeddingService Code = "EMBEDDING_SERVICE"
	CodeEmbeddingInput   Code = "EMBEDDING_INPUT"
	CodeLLMService       Code = "LLM_SERVICE"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeIngestion        Code = "INGESTION"
)

// Ingestion stages reported by IngestionError, so callers can tell which
// step failed and whether a retry is worth it.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageUpsert  = "upsert"
	StagePersist = "persist"
)

// Error is a structured error with a code, a retryable flag, and an
// optional wrapped cause.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Stage     string // set only on CodeIngestion
	Err       error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (stage %s): %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewExtraction wraps a collaborator extraction failure. Never retryable
// from the core's point of view.
func NewExtraction(source string, err error) *Error {
	return &Error{
		Code:    CodeExtraction,
		Message: fmt.Sprintf("failed to extract %q", source),
		Err:     err,
	}
}

// NewEmbeddingService reports an embedding backend failure after the
// gateway's own retries are exhausted.
func NewEmbeddingService(msg string, retryable bool, err error) *Error {
	return &Error{Code: CodeEmbeddingService, Message: msg, Retryable: retryable, Err: err}
}

// NewEmbeddingInput reports a single text exceeding the service input limit.
func NewEmbeddingInput(index, length, limit int) *Error {
	return &Error{
		Code:    CodeEmbeddingInput,
		Message: fmt.Sprintf("text %d is %d chars, exceeds input limit %d", index, length, limit),
	}
}

// NewLLMService reports a completion backend failure.
func NewLLMService(msg string, retryable bool, err error) *Error {
	return &Error{Code: CodeLLMService, Message: msg, Retryable: retryable, Err: err}
}

// NewStoreUnavailable reports a vector store backend failure.
func NewStoreUnavailable(msg string, err error) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: msg, Retryable: true, Err: err}
}

// NewIngestion wraps the first underlying failure of an ingestion run,
// recording the stage it happened in. Retryability follows the cause.
func NewIngestion(stage string, err error) *Error {
	return &Error{
		Code:      CodeIngestion,
		Message:   "ingestion failed",
		Stage:     stage,
		Retryable: IsRetryable(err),
		Err:       err,
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.Err
		e = nil
	}
	return false
}

// IsRetryable reports whether the nearest structured error in the chain is
// marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// StageOf returns the ingestion stage recorded in err, or "".
func StageOf(err error) string {
	var e *Error
	for errors.As(err, &e) {
		if e.Stage != "" {
			return e.Stage
		}
		err = e.Err
		e = nil
	}
	return ""
}

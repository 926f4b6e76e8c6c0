// Package apperrors defines the failure taxonomy of the leaflet pipelines.
//
// Soft failures (no results, interception timeout, answering failure) degrade
// to empty or negative results. Hard failures (automation, document parsing)
// propagate to the caller after resource cleanup.
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure category
type Code string

const (
	CodeNoResults           Code = "NO_RESULTS"
	CodeAutomation          Code = "AUTOMATION_ERROR"
	CodeInterceptionTimeout Code = "INTERCEPTION_TIMEOUT"
	CodeDocumentParse       Code = "DOCUMENT_PARSE_ERROR"
	CodeAnswering           Code = "ANSWERING_FAILURE"
)

var (
	// ErrNoResults is returned when a search tier yields zero matching rows
	ErrNoResults = errors.New("no results")

	// ErrInterceptionTimeout is returned when no PDF was observed within the capture window
	ErrInterceptionTimeout = errors.New("no pdf captured before timeout")
)

// AutomationError is a browser automation failure unrelated to a clean no-results signal
type AutomationError struct {
	Stage string // navigate, fill, submit, wait, rows, session
	Err   error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("automation failed during %s: %v", e.Stage, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// NewAutomationError wraps err for the given stage
func NewAutomationError(stage string, err error) error {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &AutomationError{Stage: stage, Err: err}
}

// DocumentParseError is returned when PDF bytes cannot be read
type DocumentParseError struct {
	Err error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("unreadable document: %v", e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// AnsweringFailure wraps a language model or retrieval error absorbed by the answerer
type AnsweringFailure struct {
	Stage string // retrieve, prompt, generate
	Err   error
}

func (e *AnsweringFailure) Error() string {
	return fmt.Sprintf("answering failed during %s: %v", e.Stage, e.Err)
}

func (e *AnsweringFailure) Unwrap() error { return e.Err }

// CodeOf maps an error to its taxonomy code, empty when unknown
func CodeOf(err error) Code {
	var automation *AutomationError
	var parse *DocumentParseError
	var answering *AnsweringFailure

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoResults):
		return CodeNoResults
	case errors.Is(err, ErrInterceptionTimeout):
		return CodeInterceptionTimeout
	case errors.As(err, &automation):
		return CodeAutomation
	case errors.As(err, &parse):
		return CodeDocumentParse
	case errors.As(err, &answering):
		return CodeAnswering
	}
	return ""
}

// IsSoft reports whether err should degrade to a negative result instead of failing
func IsSoft(err error) bool {
	switch CodeOf(err) {
	case CodeNoResults, CodeInterceptionTimeout, CodeAnswering:
		return true
	}
	return false
}

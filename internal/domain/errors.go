package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPromptOrImagesRequired = errors.New("either images or prompt is required")
	ErrTooManyImages          = errors.New("too many images")
	ErrImageTooLarge          = errors.New("image is too large")
	ErrInvalidImage           = errors.New("not a valid image")
	ErrInvalidOption          = errors.New("invalid generation option")
	ErrMissingSubscription    = errors.New("missing subscription key or task uuid")
	ErrEmptyJobList           = errors.New("status response has no jobs")
	ErrNonJSONResponse        = errors.New("non-JSON response")
	ErrArtifactNotFound       = errors.New("no file matches the requested format")
	ErrNoFiles                = errors.New("download list is empty")
	ErrMissingDownloadStatus  = errors.New("download reply has no error status")
	ErrPollTimeout            = errors.New("polling exceeded maximum duration")
)

// ErrorKind classifies failures for user-facing reporting.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindTransport        ErrorKind = "transport"
	KindGenerationFailed ErrorKind = "generation_failed"
	KindResolution       ErrorKind = "resolution"
	KindTimeout          ErrorKind = "timeout"
)

// Error is the single error shape produced below the orchestrator. Detail
// holds the raw upstream body and is meant for logs only.
type Error struct {
	Kind   ErrorKind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, treating unclassified errors as transport failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransport
}

// DetailOf returns the raw diagnostic detail attached to err, if any.
func DetailOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Detail
	}
	return ""
}

func Validation(err error, detail string) *Error {
	return &Error{Kind: KindValidation, Op: "validate", Detail: detail, Err: err}
}

func Transport(op string, status int, detail string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Detail: detail, Err: err}
}

func Resolution(detail string, err error) *Error {
	return &Error{Kind: KindResolution, Op: "download", Detail: detail, Err: err}
}

// UserError is the user-facing form of a failure: a fixed localized message per kind.
type UserError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind categorises user-facing failures.
type ErrorKind string

const (
	KindUnsupportedSite       ErrorKind = "unsupported_site"
	KindNoReviewsFound        ErrorKind = "no_reviews_found"
	KindPredictionUnavailable ErrorKind = "prediction_unavailable"
	KindAuthRequired          ErrorKind = "auth_required"
	KindSubmissionFailed      ErrorKind = "submission_failed"
	KindScanInProgress        ErrorKind = "scan_in_progress"
	KindPageUnavailable       ErrorKind = "page_unavailable"
)

// Sentinels for errors.Is; any ScanError of the same kind matches.
var (
	ErrUnsupportedSite       = &ScanError{Kind: KindUnsupportedSite}
	ErrNoReviewsFound        = &ScanError{Kind: KindNoReviewsFound}
	ErrPredictionUnavailable = &ScanError{Kind: KindPredictionUnavailable}
	ErrAuthRequired          = &ScanError{Kind: KindAuthRequired}
	ErrSubmissionFailed      = &ScanError{Kind: KindSubmissionFailed}
	ErrScanInProgress        = &ScanError{Kind: KindScanInProgress}
	ErrPageUnavailable       = &ScanError{Kind: KindPageUnavailable}
)

// ScanError carries a kind, a short message and the underlying cause.
type ScanError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError builds a ScanError.
func NewError(kind ErrorKind, message string, cause error) *ScanError {
	return &ScanError{Kind: kind, Message: message, Cause: cause}
}

func (e *ScanError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is matches any ScanError with the same kind.
func (e *ScanError) Is(target error) bool {
	var t *ScanError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of a wrapped ScanError, or "" if none.
func KindOf(err error) ErrorKind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Notice is a user-visible alert produced at a failure boundary.
type Notice struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	ReviewID string    `json:"review_id,omitempty"`
	At       time.Time `json:"at"`
}

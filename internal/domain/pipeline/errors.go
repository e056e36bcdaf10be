// internal/domain/pipeline/errors.go

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindValidation          Kind = "validation"
	KindProviderUnreachable Kind = "provider-unreachable"
	KindMalformed           Kind = "malformed"
	KindInternal            Kind = "internal"
)

// ResumePoint names where a caller should restart after a failure
type ResumePoint string

const (
	ResumeNone           ResumePoint = ""
	ResumeRetrieval      ResumePoint = "retrieval"
	ResumeClassification ResumePoint = "classification"
)

// Common errors
var (
	ErrRunCancelled = errors.New("run cancelled")
	ErrNotFound     = errors.New("not found")
)

// Error is a tagged failure surfaced to callers
type Error struct {
	Kind       Kind
	Stage      Stage
	Resume     ResumePoint
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		fmt.Fprintf(&b, " at stage %s", e.Stage)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Violations, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unreachable wraps a transport or non-success provider failure
func Unreachable(msg string, err error) *Error {
	return &Error{Kind: KindProviderUnreachable, Message: msg, Err: err}
}

// Malformed creates a schema or parse failure with the violated fields
func Malformed(msg string, violations ...string) *Error {
	return &Error{Kind: KindMalformed, Message: msg, Violations: violations}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// AsError is errors.As specialised for *Error
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf maps any error onto the taxonomy
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderUnreachable
	}
	return KindInternal
}

// AtStage returns a copy of err tagged with stage and resume point.
// Untagged errors become internal errors.
func AtStage(err error, stage Stage, resume ResumePoint) *Error {
	var perr *Error
	if !errors.As(err, &perr) {
		kind := KindOf(err)
		perr = &Error{Kind: kind, Message: "unexpected failure", Err: err}
		if kind == KindProviderUnreachable {
			perr.Message = "provider timed out"
		}
	}

	tagged := *perr
	if tagged.Stage == "" {
		tagged.Stage = stage
	}
	if tagged.Resume == ResumeNone {
		tagged.Resume = resume
	}
	return &tagged
}

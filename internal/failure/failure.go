// Package failure defines the error taxonomy shared by the engine and its adapters.
package failure

import (
	"errors"
	"strings"
)

// Kind is the machine-readable class of a failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindUnsupported       Kind = "unsupported"
	KindNotFound          Kind = "not_found"
	KindRemoteRejected    Kind = "remote_rejected"
	KindRemoteUnavailable Kind = "remote_unavailable"
	KindParse             Kind = "parse"
	KindCanceled          Kind = "canceled"
	KindInternal          Kind = "internal"
)

// Sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrUnsupported       = &Error{Kind: KindUnsupported}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrRemoteRejected    = &Error{Kind: KindRemoteRejected}
	ErrRemoteUnavailable = &Error{Kind: KindRemoteUnavailable}
	ErrParse             = &Error{Kind: KindParse}
)

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Op     string
	Ref    string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Ref != "" {
		b.WriteString(" ")
		b.WriteString(quote(e.Ref))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Ref == "" && t.Detail == "" && t.Err == nil
}

func quote(s string) string {
	return "'" + s + "'"
}

// Validation reports a malformed request.
func Validation(op, detail string) error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail}
}

// Unsupported reports an illegal field/mode combination.
func Unsupported(op, detail string) error {
	return &Error{Kind: KindUnsupported, Op: op, Detail: detail}
}

// NotFound reports a reference that does not resolve.
func NotFound(op, ref string) error {
	return &Error{Kind: KindNotFound, Op: op, Ref: ref}
}

// RemoteRejected reports a non-retryable remote refusal.
func RemoteRejected(op, detail string, err error) error {
	return &Error{Kind: KindRemoteRejected, Op: op, Detail: detail, Err: err}
}

// RemoteUnavailable reports a transient remote failure.
func RemoteUnavailable(op string, err error) error {
	return &Error{Kind: KindRemoteUnavailable, Op: op, Err: err}
}

// Parse reports an intent that could not be parsed.
func Parse(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in the chain, or empty.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err never reached the remote service.
func IsValidation(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindUnsupported
}

// Retryable reports whether the caller may retry the whole command.
func Retryable(err error) bool {
	return KindOf(err) == KindRemoteUnavailable
}

// WithRef returns a copy of a classified error carrying ref.
func WithRef(err error, ref string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Ref = ref
	return &cp
}

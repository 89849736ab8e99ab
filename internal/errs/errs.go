// Package errs defines the error kind taxonomy shared by Core A and Core B.
//
// Every error returned across a package boundary wraps one of the sentinel
// Kind values below so callers can classify failures with errors.Is without
// parsing message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the broad class of an error.
type Kind string

const (
	KindEncoding    Kind = "EncodingError"
	KindSignature   Kind = "SignatureError"
	KindIntegrity   Kind = "IntegrityError"
	KindNotFound    Kind = "NotFound"
	KindState       Kind = "StateError"
	KindBusy        Kind = "Busy"
	KindTimeout     Kind = "Timeout"
	KindTransient   Kind = "Transient"
	KindValidation  Kind = "ValidationError"
	KindUser        Kind = "UserError"
)

// sentinel values usable with errors.Is; e.g. errors.Is(err, errs.ErrBusy).
var (
	ErrEncoding   = &kindError{kind: KindEncoding}
	ErrSignature  = &kindError{kind: KindSignature}
	ErrIntegrity  = &kindError{kind: KindIntegrity}
	ErrNotFound   = &kindError{kind: KindNotFound}
	ErrState      = &kindError{kind: KindState}
	ErrBusy       = &kindError{kind: KindBusy}
	ErrTimeout    = &kindError{kind: KindTimeout}
	ErrTransient  = &kindError{kind: KindTransient}
	ErrValidation = &kindError{kind: KindValidation}
	ErrUser       = &kindError{kind: KindUser}
)

type kindError struct {
	kind Kind
}

func (e *kindError) Error() string { return string(e.kind) }

// E wraps err with kind and a formatted message, preserving errors.Is/As on
// both the sentinel kind and the wrapped cause.
type E struct {
	kind Kind
	msg  string
	err  error
}

func (e *E) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *E) Unwrap() error { return e.err }

func (e *E) Is(target error) bool {
	if ke, ok := target.(*kindError); ok {
		return ke.kind == e.kind
	}
	return false
}

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *E
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}

func New(kind Kind, msg string) error {
	return &E{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &E{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &E{kind: kind, msg: msg, err: err}
}

func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &E{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// NotImplemented builds a UserError for a filter or feature that is
// reserved but deliberately unsupported: reject, never silently ignore.
func NotImplemented(feature string) error {
	return Newf(KindUser, "%s filter is not implemented", feature)
}

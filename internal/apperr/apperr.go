// Package apperr defines the error kinds surfaced to API callers.
package apperr

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindPermission
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a human-readable detail that is safe to show to the caller.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func Validation(detail string) error { return &Error{Kind: KindValidation, Detail: detail} }

func Auth(detail string) error { return &Error{Kind: KindAuth, Detail: detail} }

func Permission(detail string) error { return &Error{Kind: KindPermission, Detail: detail} }

func NotFound(detail string) error { return &Error{Kind: KindNotFound, Detail: detail} }

// KindOf returns KindInternal for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the caller-facing message, or "" for internal errors.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// Package apperror holds the domain error taxonomy. Services return these
// values; the HTTP layer maps each Kind to a status code exactly once.
package apperror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidCredentials
	KindAlreadyExists
	KindInsufficientFunds
	KindInvalidTransaction
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAlreadyExists:
		return "already_exists"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInvalidTransaction:
		return "invalid_transaction"
	}
	return "unknown"
}

// Error is a domain failure with a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("%s with id %v not found", resource, id)}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Detail: "Invalid email or password"}
}

func AlreadyExists(resource, field string, value any) *Error {
	return &Error{Kind: KindAlreadyExists, Detail: fmt.Sprintf("%s with %s %v already exists", resource, field, value)}
}

// InsufficientFunds and InvalidTransaction are reserved for money movement.
func InsufficientFunds(available, required any) *Error {
	return &Error{Kind: KindInsufficientFunds, Detail: fmt.Sprintf("Insufficient funds. Available: %v, required: %v", available, required)}
}

func InvalidTransaction(reason string) *Error {
	return &Error{Kind: KindInvalidTransaction, Detail: "Invalid transaction " + reason}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// Package apierror defines the normalized error shape returned by the
// backend client. Nothing above the infrastructure layer sees raw
// transport or HTTP errors; everything is folded into an *Error with a
// Kind the caller can branch on.
package apierror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindOutOfStock      Kind = "out_of_stock"
	KindPaymentDeclined Kind = "payment_declined"
	KindNetworkOrServer Kind = "network_or_server"
)

type Error struct {
	Kind    Kind
	Message string
	// Fields carries server-side validation errors keyed by field name.
	// Empty for every other kind.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf extracts the kind from err, or KindNetworkOrServer when err is
// not an *Error. A nil err has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetworkOrServer
}

// IsKind reports whether err normalizes to the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the field errors attached to err, if any.
func FieldsOf(err error) map[string]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

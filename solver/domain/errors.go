package domain

import (
	"errors"
	"fmt"
)

// Kind é a categoria legível por máquina de uma falha terminal.
type Kind string

const (
	KindTooManyRequests   Kind = "too_many_requests"
	KindTimeout           Kind = "timeout"
	KindBackend           Kind = "backend_error"
	KindNoPayloadFound    Kind = "no_payload_found"
	KindIncompletePayload Kind = "incomplete_payload"
	KindMalformedPayload  Kind = "malformed_payload"
	KindSchemaViolation   Kind = "schema_violation"
)

// Error carrega o Kind, o campo (só em violações de schema) e a causa.
type Error struct {
	Kind   Kind
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara pelo Kind, então errors.Is(err, ErrTimeout) funciona para qualquer timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrTooManyRequests   = &Error{Kind: KindTooManyRequests}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrBackend           = &Error{Kind: KindBackend}
	ErrNoPayloadFound    = &Error{Kind: KindNoPayloadFound}
	ErrIncompletePayload = &Error{Kind: KindIncompletePayload}
	ErrMalformedPayload  = &Error{Kind: KindMalformedPayload}
	ErrSchemaViolation   = &Error{Kind: KindSchemaViolation}
)

func New(kind Kind, reason string) *Error { return &Error{Kind: kind, Reason: reason} }

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func SchemaViolation(field, reason string) *Error {
	return &Error{Kind: KindSchemaViolation, Field: field, Reason: reason}
}

// KindOf devolve o Kind do primeiro *Error na cadeia, ou "" se não houver.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable diz se repetir o mesmo pedido pode dar certo.
// Falhas de extração reproduzem com a mesma entrada, então não são.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTooManyRequests, KindTimeout, KindBackend:
		return true
	}
	return false
}

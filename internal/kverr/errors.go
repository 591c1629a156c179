// Package kverr defines the structured error type shared by every layer of
// the server, from the data engine up through command dispatch. It lives
// below the root package so that internal collaborators (the engine,
// dispatch table, connection state) can construct wire-ready errors without
// the root package importing them back, which would cycle.
package kverr

import "fmt"

// Kind classifies an Error for programmatic handling (errors.As) and picks
// the wire-protocol prefix token rendered to the client.
type Kind int

const (
	KindProtocol Kind = iota
	KindUnknownCommand
	KindArity
	KindFormat
	KindWrongType
	KindStreamID
	KindState
)

// prefix is the uppercase wire-protocol token prepended to the error text.
func (k Kind) prefix() string {
	if k == KindWrongType {
		return "WRONGTYPE"
	}
	return "ERR"
}

// Error is a structured error carrying the failing operation, its kind, a
// human-readable message, and an optional wrapped cause.
type Error struct {
	Op    string
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return e.Msg
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, kverr.New("", KindWrongType, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// WireMessage renders the error exactly as it should appear on the wire:
// "<PREFIX> <message>".
func (e *Error) WireMessage() string {
	return e.Kind.prefix() + " " + e.Msg
}

// New constructs an Error with no wrapped cause.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap constructs an Error wrapping an existing cause.
func Wrap(op string, kind Kind, msg string, inner error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Inner: inner}
}

// Protocol builds a protocol-framing error.
func Protocol(op, msg string) *Error {
	return New(op, KindProtocol, msg)
}

// UnknownCommand builds the "unknown command" error for an unrecognized
// command token.
func UnknownCommand(op, name string) *Error {
	return New(op, KindUnknownCommand, fmt.Sprintf("unknown command '%s'", name))
}

// Arity builds the "wrong number of arguments" error.
func Arity(op, cmd string) *Error {
	return New(op, KindArity, fmt.Sprintf("wrong number of arguments for '%s'", cmd))
}

// Format builds an argument-format error (bad integer, bad option, etc).
func Format(op, msg string) *Error {
	return New(op, KindFormat, msg)
}

// WrongType builds the fixed WRONGTYPE error text.
func WrongType(op string) *Error {
	return New(op, KindWrongType, "Operation against a key holding the wrong kind of value")
}

// StreamIDErr builds a stream-ID domain error (ordering violation or malformed
// ID literal).
func StreamIDErr(op, msg string) *Error {
	return New(op, KindStreamID, msg)
}

// State builds a transaction/pub-sub state-violation error.
func State(op, msg string) *Error {
	return New(op, KindState, msg)
}

package kvsrv

import (
	"errors"

	"github.com/behrlich/kvsrv/internal/kverr"
)

// Error is the structured error type returned by the server's public
// surface. It is a re-export of internal/kverr.Error: the engine, dispatch
// table, and connection layer all construct kverr.Error values directly (a
// package below the root can't import back up to kvsrv without cycling),
// so this alias lets callers outside the module still type-assert against
// "the server's Error type" without reaching into an internal package.
type Error = kverr.Error

// Kind re-exports kverr.Kind and its constants for the same reason.
type Kind = kverr.Kind

const (
	KindProtocol       = kverr.KindProtocol
	KindUnknownCommand = kverr.KindUnknownCommand
	KindArity          = kverr.KindArity
	KindFormat         = kverr.KindFormat
	KindWrongType      = kverr.KindWrongType
	KindStreamID       = kverr.KindStreamID
	KindState          = kverr.KindState
)

// IsKind reports whether err is (or wraps) a *kverr.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ke *Error
	if !errors.As(err, &ke) {
		return false
	}
	return ke.Kind == kind
}

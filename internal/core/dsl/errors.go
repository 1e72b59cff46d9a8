// Package dsl contains pure functions for lexing and parsing application
// group definition text. This is part of the Functional Core - all functions
// are pure with no I/O.
package dsl

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("group definition is empty")

	// Lexing errors
	ErrUnexpectedChar  = errors.New("unexpected character")
	ErrUnclosedLiteral = errors.New("unclosed string literal")

	// Grammar errors
	ErrExpectedMember    = errors.New("expected a member reference")
	ErrExpectedKindLabel = errors.New("expected a kind label after ':'")
	ErrTrailingInput     = errors.New("unexpected trailing input")

	// Validation errors
	ErrIllegalName = errors.New("illegal group name")
	ErrUnknownKind = errors.New("unknown definition kind")
)

// LexError reports an unrecognized character in the source text.
type LexError struct {
	Offset int
	Char   rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("offset %d: unexpected character %q", e.Offset, e.Char)
}

func (e *LexError) Unwrap() error {
	return ErrUnexpectedChar
}

// ParseError wraps grammar and name violations with the offending text and
// its source offset. It is never recovered internally; callers always see it.
type ParseError struct {
	Offset    int    // byte offset into the source text
	Offending string // the text that triggered the failure
	Message   string
	Err       error // sentinel category
}

func (e *ParseError) Error() string {
	if e.Offending != "" {
		return fmt.Sprintf("offset %d: %s: %q", e.Offset, e.Message, e.Offending)
	}
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(offset int, offending, message string, err error) *ParseError {
	return &ParseError{
		Offset:    offset,
		Offending: offending,
		Message:   message,
		Err:       err,
	}
}

// UnknownKindError reports a member whose kind label does not resolve to a
// known definition kind. Reported by the post-pass over the whole tree, so
// the member index refers to declaration order.
type UnknownKindError struct {
	Offending   string
	MemberIndex int
	Offset      int
	ValidKinds  []Kind
}

func (e *UnknownKindError) Error() string {
	kinds := make([]string, 0, len(e.ValidKinds))
	for _, k := range e.ValidKinds {
		kinds = append(kinds, string(k))
	}
	return fmt.Sprintf("offset %d: member %d has unknown definition kind %q, valid kinds are %s",
		e.Offset, e.MemberIndex, e.Offending, strings.Join(kinds, ", "))
}

func (e *UnknownKindError) Unwrap() error {
	return ErrUnknownKind
}

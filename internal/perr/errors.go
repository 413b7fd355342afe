// Package perr defines the plugin-boundary error kind model shared by every
// component of the engine: config, io, format, logic, schema.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the policy decisions described in the
// engine's error handling design: config errors are permanent, io and logic
// errors are transient at the pipeline boundary, format errors are
// per-record, schema errors reject a plugin's declared shape.
type Kind string

const (
	KindConfig Kind = "config"
	KindIO     Kind = "io"
	KindFormat Kind = "format"
	KindLogic  Kind = "logic"
	KindSchema Kind = "schema"
)

// Error is the error type every plugin boundary and pipeline stage returns.
// Component identifies which named plugin, topic, source or sink raised it
// so log lines can carry that context without a separate field list.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Component != "" {
			return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Component, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Component != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Component, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap attaches kind/component context to an existing error.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

func Config(component, message string) *Error { return New(KindConfig, component, message) }
func IO(component, message string) *Error      { return New(KindIO, component, message) }
func Format(component, message string) *Error  { return New(KindFormat, component, message) }
func Logic(component, message string) *Error   { return New(KindLogic, component, message) }
func Schema(component, message string) *Error  { return New(KindSchema, component, message) }

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting
// to KindLogic for arbitrary errors crossing a plugin boundary unexpectedly.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindLogic
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

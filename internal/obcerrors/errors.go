// Package obcerrors provides the typed error kinds the packaging core
// surfaces to callers. This enables callers to use errors.Is()/errors.As()
// for specific error handling instead of inspecting message text.
package obcerrors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per spec.md §7 category. Wrap these with
// fmt.Errorf("...: %w", Kind) or the Wrap helpers below to attach context
// without losing errors.Is() matchability.
var (
	// ConfigInvalid: any configuration that cannot produce a well-defined
	// pipeline (unknown scheme name, missing required field, unpadded mode
	// with insufficient plaintext, AEAD in CipherStream, mismatched curves,
	// KDF parameters out of policy).
	ConfigInvalid = errors.New("configuration invalid")

	// FormatInvalid: magic tag mismatch, truncated length field, declared
	// length exceeds remaining stream.
	FormatInvalid = errors.New("package format invalid")

	// ItemKeyMissing: item has neither embedded keys nor a resolvable pre-key.
	ItemKeyMissing = errors.New("item key missing")

	// CiphertextAuthentication: computed MAC differs from stored tag in
	// constant-time compare; manifest or any item.
	CiphertextAuthentication = errors.New("ciphertext authentication failed")

	// IncompleteBlock: end of stream encountered mid-operation in a
	// non-streamable mode.
	IncompleteBlock = errors.New("incomplete cipher block")

	// PaddingCorrupt: final-block padding does not parse under the
	// configured padding scheme.
	PaddingCorrupt = errors.New("padding corrupt")

	// LengthMismatch: declared item external/internal length disagrees
	// with bytes observed.
	LengthMismatch = errors.New("length mismatch")

	// IoError: passthrough of underlying-stream failures.
	IoError = errors.New("io error")
)

// Scope narrows a CiphertextAuthentication failure to "manifest" or
// "payload item" granularity only, per spec.md §7's requirement that
// user-visible messages not reveal byte position, item, or field.
type Scope string

const (
	ScopeManifest Scope = "manifest"
	ScopeItem     Scope = "payload item"
)

// AuthError wraps CiphertextAuthentication with only a coarse scope, never
// a byte offset, item index, or field name.
type AuthError struct {
	Scope Scope
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed", e.Scope)
}

func (e *AuthError) Unwrap() error {
	return CiphertextAuthentication
}

// NewAuthError builds a scoped authentication failure.
func NewAuthError(scope Scope) error {
	return &AuthError{Scope: scope}
}

// ConfigError wraps ConfigInvalid with the offending field/setting name.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s invalid", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return ConfigInvalid
}

// NewConfigError builds a ConfigInvalid error naming the offending field.
func NewConfigError(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// FormatError wraps FormatInvalid with which structural element failed.
type FormatError struct {
	Element string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format %s: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("format %s invalid", e.Element)
}

func (e *FormatError) Unwrap() error {
	return FormatInvalid
}

// NewFormatError builds a FormatInvalid error naming the offending element.
func NewFormatError(element string, err error) error {
	return &FormatError{Element: element, Err: err}
}

// Wrap attaches a message to an error without discarding errors.Is() chains.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is is a convenience re-export of errors.Is for callers that otherwise
// only import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience re-export of errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

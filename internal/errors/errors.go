// Package errors defines the error taxonomy for rotation phases.
//
// Every failure surfaced by a phase handler falls into one of four classes:
// ConfigurationError (the secret or the environment is not set up for
// rotation), NotFoundError (a secret, version, or referenced secret does not
// exist), ValidationError (a pending credential failed its liveness check),
// and ProviderError (the upstream API reported a failure). Phase handlers
// never retry and never leave partial writes behind; classification decides
// whether the caller should fix configuration or simply re-invoke the phase.
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates the secret, its record, or the process
// environment is not configured for rotation. Always fatal for the phase.
type ConfigurationError struct {
	SecretID string
	Message  string
}

func (e ConfigurationError) Error() string {
	if e.SecretID != "" {
		return fmt.Sprintf("configuration error for secret %s: %s", e.SecretID, e.Message)
	}
	return "configuration error: " + e.Message
}

// NotFoundError indicates a secret, a secret version, or a referenced secret
// does not exist in the store.
type NotFoundError struct {
	SecretID string
	Version  string
	Err      error
}

func (e NotFoundError) Error() string {
	msg := "not found: secret " + e.SecretID
	if e.Version != "" {
		msg += " version " + e.Version
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e NotFoundError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a pending credential failed its liveness check
// during testSecret. It blocks finishSecret for that version.
type ValidationError struct {
	SecretID string
	Message  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for secret %s: %s", e.SecretID, e.Message)
}

// ProviderError wraps a failure reported by the credential provider API.
// Propagated unrecovered; the phase performs no retries.
type ProviderError struct {
	Operation string
	Err       error
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider error during %s: %v", e.Operation, e.Err)
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

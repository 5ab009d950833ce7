// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package errors declares the typed error taxonomy used across the
// compiler and executor (spec §7). Handlers still use BadRequestError /
// NotFoundError / InternalServerError to translate failures into HTTP
// responses.
package errors

import "fmt"

// BadRequestError is returned by the HTTP layer for malformed requests.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

// NotFoundError is returned by the HTTP layer when a run/resource is unknown.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// InternalServerError wraps unexpected failures surfaced over HTTP.
type InternalServerError struct {
	Msg string
}

func (e *InternalServerError) Error() string { return e.Msg }

// ConfigError is fatal at startup: malformed schema JSON, a missing
// required built-in, or a misconfigured discovery path (§4.1, §7).
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Key, e.Message)
}

// LexError is fatal for the current script: a line could not be matched
// against any token pattern (§4.2, §7).
type LexError struct {
	Line    int
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d: lex error: %s", e.Line, e.Message)
}

// ParseError is fatal for the current script (§4.3, §7).
type ParseError struct {
	Line     int
	Message  string
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	if e.Expected == "" && e.Got == "" {
		return fmt.Sprintf("line %d: parse error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: parse error: %s (expected %s, got %s)", e.Line, e.Message, e.Expected, e.Got)
}

// DeviceError classifies a connection loss or a CLI error string detected
// in device output. Fatal unless the device's keep_running flag is set.
type DeviceError struct {
	Device  string
	Line    int
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("line %d: device %q error: %s", e.Line, e.Device, e.Message)
}

// TimeoutError is recorded as a failed assertion for expect/sleep/exec_code.
type TimeoutError struct {
	Line    int
	Op      string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("line %d: %s timed out after %s", e.Line, e.Op, e.Timeout)
}

// VariableError is a warning-level failure: an undefined variable was
// referenced in a strict context. Substitution still yields an empty string.
type VariableError struct {
	Line int
	Name string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("line %d: undefined variable %q", e.Line, e.Name)
}

// GuestCodeError wraps a sandbox violation, non-zero Bash exit, or Python
// exception raised by exec_code guest code (§4.9, §7).
type GuestCodeError struct {
	Lang    string
	Message string
}

func (e *GuestCodeError) Error() string {
	return fmt.Sprintf("%s guest code error: %s", e.Lang, e.Message)
}

// CycleError is fatal for the run: an include cycle was detected (§4.5, §7).
type CycleError struct {
	File  string
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("include cycle detected: %s (chain: %v)", e.File, e.Chain)
}

// ReportingError wraps a ResultSink failure. Logged, never fatal.
type ReportingError struct {
	QAID    string
	Message string
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("qaid %s: reporting error: %s", e.QAID, e.Message)
}

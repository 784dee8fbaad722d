// Package apierr carries the status and machine code a caller sees for a failed request.
package apierr

import (
	"errors"
	"fmt"
)

// Codes returned in the error envelope.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeUnknownAction      = "unknown_action"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeMissingInput       = "missing_input"
	CodeInvalidArgument    = "invalid_argument"
	CodeInvalidVersionType = "invalid_version_type"
	CodeIssueNotFound      = "issue_not_found"
	CodeVersionNotFound    = "version_not_found"
	CodeNotFound           = "not_found"
	CodeNoFixPolicy        = "no_fix_policy"
	CodeNothingToFix       = "nothing_to_fix"
	CodeSpanMismatch       = "span_mismatch"
	CodeVersionLocked      = "version_locked"
	CodeModelUnavailable   = "model_unavailable"
	CodeStorageWrite       = "storage_write_failed"
	CodeStorageRead        = "storage_read_failed"
	CodeUnavailable        = "unavailable"
	CodeTimeout            = "timeout"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// As returns the first *Error in err's chain that carries a status.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil && ae.Status != 0 {
		return ae, true
	}
	return nil, false
}

// Package core provides shared types and utilities for the management bridge.
//
// This package contains:
//   - Native error codes and the diagnostic context a native response carries
//   - Classified error types delivered to callers (HTTP, result construction, contract)
//   - Logging utilities
//   - Date parsing helpers
//
// Classified errors can be used for type assertions to handle specific cases:
//
//	res, err := client.Submit(ctx, dispatch.Request{Op: dispatch.OpGetUser, Args: args})
//	if err != nil {
//	    var httpErr *core.HTTPError
//	    if errors.As(err, &httpErr) {
//	        fmt.Println(httpErr.Context.HTTPStatus, httpErr.Context.Path)
//	    }
//	    if core.IsNotFound(err) {
//	        // Handle missing user
//	    }
//	}
package core

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies an error delivered to a caller, independent of the
// native error code that caused it.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindHTTPError wraps any native failure of an HTTP-backed management call.
	KindHTTPError
	// KindUnableToBuildResult is reported when a successful native response
	// could not be turned into a result envelope.
	KindUnableToBuildResult
	// KindInvalidArgument is a contract violation detected before submission.
	KindInvalidArgument
	// KindDecodeFailure is a required option whose value has the wrong type.
	KindDecodeFailure
	// KindInternalSDKError is anything the bridge did not expect.
	KindInternalSDKError
)

var kindNames = map[ErrorKind]string{
	KindUnknown:             "unknown",
	KindHTTPError:           "http_error",
	KindUnableToBuildResult: "unable_to_build_result",
	KindInvalidArgument:     "invalid_argument",
	KindDecodeFailure:       "decode_failure",
	KindInternalSDKError:    "internal_sdk_error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPContext describes the HTTP exchange behind a management call.
//
// It is attached to every native error of an HTTP-backed operation. When the
// native client reports a failure without one, callers receive the zero value.
type HTTPContext struct {
	ClientContextID    string   `json:"client_context_id,omitempty"`
	Method             string   `json:"method,omitempty"`
	Path               string   `json:"path,omitempty"`
	HTTPStatus         int      `json:"http_status,omitempty"`
	HTTPBody           string   `json:"http_body,omitempty"`
	LastDispatchedTo   string   `json:"last_dispatched_to,omitempty"`
	LastDispatchedFrom string   `json:"last_dispatched_from,omitempty"`
	RetryAttempts      int      `json:"retry_attempts,omitempty"`
	RetryReasons       []string `json:"retry_reasons,omitempty"`
}

// IsZero reports whether no HTTP diagnostics were captured.
func (c HTTPContext) IsZero() bool {
	return c.ClientContextID == "" && c.Method == "" && c.Path == "" && c.HTTPStatus == 0 &&
		c.HTTPBody == "" && c.LastDispatchedTo == "" && c.LastDispatchedFrom == "" &&
		c.RetryAttempts == 0 && len(c.RetryReasons) == 0
}

// ErrorContext is the status block of every native response.
//
// Err is nil when the native call succeeded. HTTP is nil when the native
// client had no HTTP exchange to report (for example a connection that was
// never established).
type ErrorContext struct {
	Err  error
	HTTP *HTTPContext
}

// Failed reports whether the native call failed.
func (c ErrorContext) Failed() bool {
	return c.Err != nil
}

// HTTPOrEmpty returns the HTTP diagnostics, or an empty context when none were captured.
func (c ErrorContext) HTTPOrEmpty() HTTPContext {
	if c.HTTP == nil {
		return HTTPContext{}
	}
	return *c.HTTP
}

// MgmtError is the base type for all classified errors.
//
// All specific error types (HTTPError, InvalidArgumentError, DecodeError) embed this type.
// File and Line record where the error was raised inside the bridge.
type MgmtError struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	Cause   error     `json:"-"`
}

func (e *MgmtError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (kind: %s)", e.Message, e.Cause, e.Kind)
	}
	return fmt.Sprintf("%s (kind: %s)", e.Message, e.Kind)
}

func (e *MgmtError) Unwrap() error {
	return e.Cause
}

// ErrorKind returns the classification of the error.
func (e *MgmtError) ErrorKind() ErrorKind {
	return e.Kind
}

// Location returns "file:line" of the raising call, or "" if unknown.
func (e *MgmtError) Location() string {
	if e.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}

// HTTPError is returned in blocking mode for every native failure.
//
// The native failure is wrapped as an HTTP error even when it did not come
// from an HTTP exchange; in that case Context is empty.
type HTTPError struct {
	MgmtError
	Context HTTPContext `json:"context"`
	// ErrorMessages holds the validation messages of a failed upsert, in server order.
	ErrorMessages []string `json:"error_messages,omitempty"`
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	b.WriteString(e.MgmtError.Error())
	if e.Context.HTTPStatus != 0 {
		fmt.Fprintf(&b, " [%s %s -> %d]", e.Context.Method, e.Context.Path, e.Context.HTTPStatus)
	}
	if len(e.ErrorMessages) > 0 {
		fmt.Fprintf(&b, " errors: %s", strings.Join(e.ErrorMessages, "; "))
	}
	return b.String()
}

// NewHTTPError creates an HTTPError from a native error context.
func NewHTTPError(message, file string, line int, ctx ErrorContext, errorMessages []string) *HTTPError {
	return &HTTPError{
		MgmtError: MgmtError{
			Message: message,
			Kind:    KindHTTPError,
			File:    file,
			Line:    line,
			Cause:   ctx.Err,
		},
		Context:       ctx.HTTPOrEmpty(),
		ErrorMessages: errorMessages,
	}
}

// NewUnableToBuildResultError reports a successful native call whose result could not be built.
func NewUnableToBuildResultError(message, file string, line int, cause error) *MgmtError {
	return &MgmtError{
		Message: message,
		Kind:    KindUnableToBuildResult,
		File:    file,
		Line:    line,
		Cause:   cause,
	}
}

// NewInternalSDKError wraps an error the bridge has no classification for.
func NewInternalSDKError(message string, cause error) *MgmtError {
	return &MgmtError{
		Message: message,
		Kind:    KindInternalSDKError,
		Cause:   cause,
	}
}

// NativeError is the light error object handed to async failure callbacks.
//
// It carries the native diagnostic context as-is; the classification travels
// alongside it in an ErrorInfo.
type NativeError struct {
	Context ErrorContext
}

func (e *NativeError) Error() string {
	msg := "native operation failed"
	if e.Context.Err != nil {
		msg = e.Context.Err.Error()
	}
	if e.Context.HTTP != nil && e.Context.HTTP.HTTPStatus != 0 {
		return fmt.Sprintf("%s (status: %d)", msg, e.Context.HTTP.HTTPStatus)
	}
	return msg
}

func (e *NativeError) Unwrap() error {
	return e.Context.Err
}

// ErrorInfo is the context bundle passed next to the error object of an async failure.
type ErrorInfo struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	// ErrorMessages is only set for upsert operations that failed natively.
	ErrorMessages []string `json:"error_msgs,omitempty"`
}

// InvalidArgumentError is raised synchronously for contract violations such as
// an unrecognized operation tag.
type InvalidArgumentError struct {
	MgmtError
	Op string `json:"op,omitempty"`
}

// NewInvalidArgumentError creates a new InvalidArgumentError.
func NewInvalidArgumentError(message, op, file string, line int) *InvalidArgumentError {
	return &InvalidArgumentError{
		MgmtError: MgmtError{
			Message: message,
			Kind:    KindInvalidArgument,
			File:    file,
			Line:    line,
		},
		Op: op,
	}
}

// DecodeError is raised synchronously when a required option cannot be decoded.
type DecodeError struct {
	MgmtError
	Key  string `json:"key"`
	Want string `json:"want"`
}

// NewDecodeError creates a new DecodeError for the given option key.
func NewDecodeError(key, want string, cause error) *DecodeError {
	msg := fmt.Sprintf("option %q must be a %s", key, want)
	if cause == nil {
		msg = fmt.Sprintf("missing required option %q", key)
	}
	return &DecodeError{
		MgmtError: MgmtError{
			Message: msg,
			Kind:    KindDecodeFailure,
			Cause:   cause,
		},
		Key:  key,
		Want: want,
	}
}

type kinded interface {
	ErrorKind() ErrorKind
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindUnknown
}

// IsNotFound returns true if the error chain contains a native not-found code.
func IsNotFound(err error) bool {
	return errors.IsAny(err, ErrUserNotFound, ErrGroupNotFound, ErrDesignDocumentNotFound, ErrViewNotFound)
}

// IsContractError returns true for errors raised before any submission.
func IsContractError(err error) bool {
	switch KindOf(err) {
	case KindInvalidArgument, KindDecodeFailure:
		return true
	}
	return false
}

// Caller returns the file (trimmed to package/file) and line of the function
// skip frames above the caller of Caller.
func Caller(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)), line
}

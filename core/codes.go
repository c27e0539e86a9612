package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Native error categories. They mirror the error domains of the native client.
const (
	CategoryCommon     = "couchbase.common"
	CategoryManagement = "couchbase.management"
	CategoryView       = "couchbase.view"
	CategoryNetwork    = "couchbase.network"
)

// ErrorCode is a native error code within a category.
//
// Codes are comparable values, so errors.Is works on wrapped chains.
type ErrorCode struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Name     string `json:"name"`
}

func (c ErrorCode) Error() string {
	return fmt.Sprintf("%s (%s:%d)", c.Name, c.Category, c.Value)
}

// Native error codes reported by management operations.
var (
	ErrRequestCanceled       = ErrorCode{CategoryCommon, 2, "request_canceled"}
	ErrInvalidArgument       = ErrorCode{CategoryCommon, 3, "invalid_argument"}
	ErrServiceNotAvailable   = ErrorCode{CategoryCommon, 4, "service_not_available"}
	ErrInternalServerFailure = ErrorCode{CategoryCommon, 5, "internal_server_failure"}
	ErrAuthenticationFailure = ErrorCode{CategoryCommon, 6, "authentication_failure"}
	ErrTemporaryFailure      = ErrorCode{CategoryCommon, 7, "temporary_failure"}
	ErrParsingFailure        = ErrorCode{CategoryCommon, 8, "parsing_failure"}
	ErrBucketNotFound        = ErrorCode{CategoryCommon, 10, "bucket_not_found"}
	ErrUnsupportedOperation  = ErrorCode{CategoryCommon, 12, "unsupported_operation"}
	ErrAmbiguousTimeout      = ErrorCode{CategoryCommon, 13, "ambiguous_timeout"}
	ErrUnambiguousTimeout    = ErrorCode{CategoryCommon, 14, "unambiguous_timeout"}
	ErrFeatureNotAvailable   = ErrorCode{CategoryCommon, 15, "feature_not_available"}

	ErrViewNotFound           = ErrorCode{CategoryView, 501, "view_not_found"}
	ErrDesignDocumentNotFound = ErrorCode{CategoryView, 502, "design_document_not_found"}

	ErrUserNotFound  = ErrorCode{CategoryManagement, 603, "user_not_found"}
	ErrGroupNotFound = ErrorCode{CategoryManagement, 604, "group_not_found"}
	ErrUserExists    = ErrorCode{CategoryManagement, 606, "user_exists"}

	ErrResolveFailure = ErrorCode{CategoryNetwork, 1001, "resolve_failure"}
)

// CodeOf returns the native error code in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return ErrorCode{}, false
}

// CategoryOf returns the category of the native error code in err's chain, or "".
func CategoryOf(err error) string {
	if code, ok := CodeOf(err); ok {
		return code.Category
	}
	return ""
}

// Coded returns code with cause attached as secondary detail. The result is
// errors.Is-equal to code and CodeOf reports code.
func Coded(code ErrorCode, cause error) error {
	if cause == nil {
		return code
	}
	return errors.WithSecondaryError(code, cause)
}

// Package errors defines the application error codes and the AppError
// type carried from the services to the HTTP layer. The codes are
// grouped in bands: 1xxx generic, 2xxx catalog/file, 3xxx store and
// metadata probes, 4xxx database.
package errors

import (
	"errors"
	"fmt"

	"github.com/arrayops/librarian/internal/i18n"
)

// ErrorCode identifies one failure kind across the service.
type ErrorCode int

const (
	// Generic codes (1000-1999)
	ErrSuccess        ErrorCode = 0
	ErrInternalServer ErrorCode = 1000
	ErrInvalidParams  ErrorCode = 1001
	ErrNotFound       ErrorCode = 1004

	// Catalog and file codes (2000-2999)
	ErrFileNotFound        ErrorCode = 2000
	ErrFileNameInvalid     ErrorCode = 2001
	ErrFileConflict        ErrorCode = 2002
	ErrMD5Invalid          ErrorCode = 2003
	ErrSizeInvalid         ErrorCode = 2004
	ErrPayloadTooLarge     ErrorCode = 2005
	ErrInstanceNotFound    ErrorCode = 2006
	ErrInstanceConflict    ErrorCode = 2007
	ErrNoInstances         ErrorCode = 2008
	ErrObservationNotFound ErrorCode = 2009

	// Store and probe codes (3000-3999)
	ErrStoreNotFound      ErrorCode = 3000
	ErrStoreConflict      ErrorCode = 3001
	ErrStoreProbeFailed   ErrorCode = 3002
	ErrStoreKindInvalid   ErrorCode = 3003
	ErrStoreUnavailable   ErrorCode = 3004
	ErrStoreInfoMalformed ErrorCode = 3005

	// Database codes (4000-4999)
	ErrDatabaseQuery       ErrorCode = 4001
	ErrDatabaseInsert      ErrorCode = 4002
	ErrDatabaseTransaction ErrorCode = 4005
)

// errorCodeToKeyMap maps each code to its i18n message key.
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:        "success",
	ErrInternalServer: "internal_server_error",
	ErrInvalidParams:  "invalid_params",
	ErrNotFound:       "not_found",

	ErrFileNotFound:        "file_not_found",
	ErrFileNameInvalid:     "file_name_invalid",
	ErrFileConflict:        "file_conflict",
	ErrMD5Invalid:          "md5_invalid",
	ErrSizeInvalid:         "size_invalid",
	ErrPayloadTooLarge:     "payload_too_large",
	ErrInstanceNotFound:    "instance_not_found",
	ErrInstanceConflict:    "instance_conflict",
	ErrNoInstances:         "no_instances",
	ErrObservationNotFound: "observation_not_found",

	ErrStoreNotFound:      "store_not_found",
	ErrStoreConflict:      "store_conflict",
	ErrStoreProbeFailed:   "store_probe_failed",
	ErrStoreKindInvalid:   "store_kind_invalid",
	ErrStoreUnavailable:   "store_unavailable",
	ErrStoreInfoMalformed: "store_info_malformed",

	ErrDatabaseQuery:       "database_query",
	ErrDatabaseInsert:      "database_insert",
	ErrDatabaseTransaction: "database_transaction",
}

// GetErrorMessage returns the message for a code in the default
// language.
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang returns the message for a code in the
// requested language.
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}

// AppError is the structured error passed from services to handlers.
type AppError struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	Details       string    `json:"details,omitempty"`
	OriginalError error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails attaches detail text and returns the error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError with the default message for the code.
func New(code ErrorCode, message string) *AppError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates an AppError with detail text.
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	e := New(code, message)
	e.Details = details
	return e
}

// Wrap creates an AppError around an underlying cause.
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.OriginalError = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a lookup failure.
func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound, ErrFileNotFound, ErrInstanceNotFound,
		ErrNoInstances, ErrObservationNotFound, ErrStoreNotFound)
}

// IsConflict reports whether err is a duplicate unique-key creation.
func IsConflict(err error) bool {
	return hasCode(err, ErrFileConflict, ErrInstanceConflict, ErrStoreConflict)
}

// IsValidation reports whether err is malformed caller input, including
// an oversized event payload.
func IsValidation(err error) bool {
	return hasCode(err, ErrInvalidParams, ErrFileNameInvalid, ErrMD5Invalid,
		ErrSizeInvalid, ErrPayloadTooLarge, ErrStoreKindInvalid)
}

// IsMetadata reports whether err came from a store metadata probe.
func IsMetadata(err error) bool {
	return hasCode(err, ErrStoreProbeFailed, ErrStoreUnavailable, ErrStoreInfoMalformed)
}

// IsPayloadTooLarge reports whether err is the event payload size cap.
func IsPayloadTooLarge(err error) bool {
	return hasCode(err, ErrPayloadTooLarge)
}

func hasCode(err error, codes ...ErrorCode) bool {
	appErr, ok := GetAppError(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if appErr.Code == code {
			return true
		}
	}
	return false
}

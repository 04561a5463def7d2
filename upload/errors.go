package upload

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies why an upload was rejected.
type Code string

const (
	CodeFileTooLarge   Code = "LIMIT_FILE_SIZE"
	CodeTooManyFiles   Code = "LIMIT_FILE_COUNT"
	CodeUnexpectedFile Code = "LIMIT_UNEXPECTED_FILE"
	CodeInvalidType    Code = "INVALID_FILE_TYPE"
	CodePartCount      Code = "LIMIT_PART_COUNT"
	CodeFieldKey       Code = "LIMIT_FIELD_KEY"
	CodeFieldValue     Code = "LIMIT_FIELD_VALUE"
	CodeFieldCount     Code = "LIMIT_FIELD_COUNT"
	CodeMissingField   Code = "MISSING_FIELD_NAME"
	CodeFileName       Code = "LIMIT_FILE_NAME"
	CodeInvalidName    Code = "INVALID_FILE_NAME"
	CodeMalformed      Code = "MALFORMED_BODY"
	CodeStorage        Code = "STORAGE_FAULT"
)

// Kind groups codes by who can fix them.
type Kind int

const (
	// KindPolicy covers size, count and type rejections.
	KindPolicy Kind = iota
	// KindTransport covers any other fault raised while reading the multipart stream.
	KindTransport
	// KindStorage covers failures of the backing store.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy_violation"
	case KindTransport:
		return "transport_fault"
	case KindStorage:
		return "storage_fault"
	default:
		return "unknown"
	}
}

const (
	fallbackTransportMessage = "File upload failed"
	storageFailureMessage    = "Failed to store uploaded file"
)

var transportMessages = map[Code]string{
	CodePartCount:    "Too many parts",
	CodeFieldKey:     "Field name too long",
	CodeFieldValue:   "Field value too long",
	CodeFieldCount:   "Too many fields",
	CodeMissingField: "Field name missing",
	CodeFileName:     "File name too long",
	CodeInvalidName:  "Invalid file name",
}

// ErrNamesExhausted is returned by a Store that could not find a free name.
var ErrNamesExhausted = errors.New("upload: no free file name after retries")

// Error is the single failure type produced by the Gatekeeper.
type Error struct {
	Code    Code
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("upload %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind classifies the error code.
func (e *Error) Kind() Kind {
	switch e.Code {
	case CodeFileTooLarge, CodeTooManyFiles, CodeInvalidType:
		return KindPolicy
	case CodeStorage:
		return KindStorage
	default:
		return KindTransport
	}
}

// Status is the HTTP status sent to the client.
func (e *Error) Status() int {
	if e.Kind() == KindStorage {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// PublicMessage is the text placed in the response envelope. It never carries paths or causes
// for storage faults.
func (e *Error) PublicMessage() string {
	switch {
	case e.Kind() == KindStorage:
		return storageFailureMessage
	case e.Message != "":
		return e.Message
	default:
		return fallbackTransportMessage
	}
}

func errFileTooLarge(p Policy, field string) *Error {
	return &Error{
		Code:    CodeFileTooLarge,
		Field:   field,
		Message: fmt.Sprintf("File too large. Maximum size is %sMB", p.maxSizeMB()),
	}
}

func errTooManyFiles(max int, field string) *Error {
	noun := "files"
	if max == 1 {
		noun = "file"
	}
	return &Error{
		Code:    CodeTooManyFiles,
		Field:   field,
		Message: fmt.Sprintf("Too many files. Maximum is %d %s", max, noun),
	}
}

func errUnexpectedField(field string) *Error {
	return &Error{
		Code:    CodeUnexpectedFile,
		Field:   field,
		Message: fmt.Sprintf("Unexpected field: %s", field),
	}
}

func errInvalidType(p Policy, field string) *Error {
	return &Error{
		Code:    CodeInvalidType,
		Field:   field,
		Message: fmt.Sprintf("Only image files are allowed (%s)", p.allowedList()),
	}
}

func errTransport(code Code, field string, cause error) *Error {
	msg := transportMessages[code]
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: code, Field: field, Message: msg, Err: cause}
}

func errFileName(ext, field string) *Error {
	if len(ext) > maxExtensionBytes {
		return errTransport(CodeFileName, field, nil)
	}
	return errTransport(CodeInvalidName, field, nil)
}

func errStorage(field string, cause error) *Error {
	return &Error{Code: CodeStorage, Field: field, Err: cause}
}

// AsError converts any error into an *Error, treating unknown errors as transport faults.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return errTransport(CodeMalformed, "", err)
}

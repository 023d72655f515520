package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeSerialization Code = "SERIALIZATION_ERROR"
	CodeInvalidEvent  Code = "INVALID_EVENT"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeStorage       Code = "STORAGE_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

type Metadata struct {
	Retryable      bool
	FatalDefault   bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeSerialization: {
		Retryable:      false,
		FatalDefault:   true,
		PublicMessage:  "payload could not be serialized",
		DetailsAllowed: true,
	},
	CodeInvalidEvent: {
		Retryable:      false,
		FatalDefault:   true,
		PublicMessage:  "event rejected",
		DetailsAllowed: true,
	},
	CodeValidation: {
		Retryable:      false,
		FatalDefault:   false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeDependency: {
		Retryable:      true,
		FatalDefault:   false,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeStorage: {
		Retryable:      true,
		FatalDefault:   false,
		PublicMessage:  "identity storage failed",
		DetailsAllowed: true,
	},
	CodeInternal: {
		Retryable:      true,
		FatalDefault:   true,
		PublicMessage:  "internal error",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

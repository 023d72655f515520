package errors

import (
	stdErrors "errors"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		publicMsg string
		retryable bool
		fatal     bool
		detailsOK bool
	}{
		{code: CodeSerialization, publicMsg: "payload could not be serialized", fatal: true, detailsOK: true},
		{code: CodeInvalidEvent, publicMsg: "event rejected", fatal: true, detailsOK: true},
		{code: CodeValidation, publicMsg: "validation failed", detailsOK: true},
		{code: CodeDependency, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeStorage, publicMsg: "identity storage failed", retryable: true, detailsOK: true},
		{code: CodeInternal, publicMsg: "internal error", retryable: true, fatal: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.FatalDefault != tt.fatal {
			t.Fatalf("code %s expected fatal default %v got %v", tt.code, tt.fatal, meta.FatalDefault)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.PublicMessage != "internal error" {
		t.Fatalf("expected internal fallback, got %q", meta.PublicMessage)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeSerialization, cause, "encode payload")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	typed := As(err)
	if typed == nil {
		t.Fatal("expected As to find typed error")
	}
	if typed.Code() != CodeSerialization {
		t.Fatalf("expected serialization code, got %s", typed.Code())
	}
	if typed.Message() != "encode payload" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestWrapNilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(CodeInvalidEvent, nil, "empty event name")
	if err.Unwrap() != nil {
		t.Fatal("expected no cause")
	}
	if err.Error() != "INVALID_EVENT: empty event name" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeInvalidEvent, "empty group id").WithDetails(map[string]string{"field": "groupId"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["field"] != "groupId" {
		t.Fatalf("unexpected details %v", err.Details())
	}
}

func TestAsOnForeignError(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

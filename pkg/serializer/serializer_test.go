package serializer

import (
	"math"
	"testing"

	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

type orderPlaced struct {
	OrderID  string  `json:"orderId"`
	Total    float64 `json:"total"`
	Expedite bool    `json:"expedite"`
}

func TestSerializeTypedAndUntypedAreStructurallyEqual(t *testing.T) {
	engine := NewJSON()

	typed, err := engine.Serialize(orderPlaced{OrderID: "ord-1", Total: 42.5, Expedite: true})
	if err != nil {
		t.Fatalf("typed serialize failed: %v", err)
	}
	untyped, err := engine.Serialize(map[string]any{
		"orderId":  "ord-1",
		"total":    42.5,
		"expedite": true,
	})
	if err != nil {
		t.Fatalf("untyped serialize failed: %v", err)
	}

	if !typed.Equal(untyped) {
		t.Fatal("expected typed and untyped payloads to be structurally equal")
	}
	if typed.Kind() != value.KindObject {
		t.Fatalf("expected object, got %s", typed.Kind())
	}
}

func TestSerializeNilIsNull(t *testing.T) {
	engine := NewJSON()
	canonical, err := engine.Serialize(nil)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !canonical.IsNull() {
		t.Fatal("expected null for nil input")
	}
}

func TestSerializeCanonicalValuePassesThrough(t *testing.T) {
	engine := NewJSON()
	original := value.Object(value.Field{Key: "a", Value: value.Number(1)})
	canonical, err := engine.Serialize(original)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !canonical.Equal(original) {
		t.Fatal("expected pass-through for canonical values")
	}
}

func TestSerializeFailureIsCoded(t *testing.T) {
	engine := NewJSON()

	for name, input := range map[string]any{
		"channel": make(chan int),
		"nan":     math.NaN(),
		"func":    func() {},
	} {
		_, err := engine.Serialize(input)
		if err == nil {
			t.Fatalf("%s: expected serialization error", name)
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeSerialization {
			t.Fatalf("%s: expected coded serialization error, got %v", name, err)
		}
	}
}

func TestSerializeNonObjectInputs(t *testing.T) {
	engine := NewJSON()
	canonical, err := engine.Serialize([]string{"a", "b"})
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if canonical.Kind() != value.KindList || canonical.Len() != 2 {
		t.Fatalf("expected two element list, got %s len %d", canonical.Kind(), canonical.Len())
	}
}

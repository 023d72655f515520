package serializer

import (
	"encoding/json"

	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

// Serializer converts caller-supplied payloads into canonical values.
type Serializer interface {
	Serialize(input any) (value.Value, error)
}

// JSON serializes through the encoding/json representation of the input. The
// resulting value preserves object key order as produced by the encoder.
type JSON struct{}

// NewJSON returns the default serialization engine.
func NewJSON() JSON {
	return JSON{}
}

// Serialize converts the input to a canonical value. A nil input is the
// canonical null; a value.Value passes through untouched.
func (JSON) Serialize(input any) (value.Value, error) {
	if input == nil {
		return value.Null(), nil
	}
	if canonical, ok := input.(value.Value); ok {
		return canonical, nil
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return value.Null(), pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "encoding payload")
	}

	decoded, err := value.Decode(encoded)
	if err != nil {
		return value.Null(), pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "decoding payload into canonical form")
	}
	return decoded, nil
}

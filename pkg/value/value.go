package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind enumerates the canonical value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the canonical representation of any payload or trait data.
// A Value is immutable once constructed; the zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	obj  *object
}

type object struct {
	fields []Field
	index  map[string]int
}

// Field is a single ordered object entry.
type Field struct {
	Key   string
	Value Value
}

// Null returns the canonical null value.
func Null() Value {
	return Value{}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a float64.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String wraps a string.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// List builds an ordered list from the given elements.
func List(elems ...Value) Value {
	copied := make([]Value, len(elems))
	copy(copied, elems)
	return Value{kind: KindList, list: copied}
}

// Object builds an ordered key/value map. Keys are unique: a repeated key
// keeps its first position and takes the last value.
func Object(fields ...Field) Value {
	obj := &object{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if at, ok := obj.index[f.Key]; ok {
			obj.fields[at].Value = f.Value
			continue
		}
		obj.index[f.Key] = len(obj.fields)
		obj.fields = append(obj.fields, f)
	}
	return Value{kind: KindObject, obj: obj}
}

// Kind reports the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is the canonical null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// BoolVal returns the wrapped boolean (false for other kinds).
func (v Value) BoolVal() bool {
	return v.b
}

// NumberVal returns the wrapped number (0 for other kinds).
func (v Value) NumberVal() float64 {
	return v.n
}

// StringVal returns the wrapped string ("" for other kinds).
func (v Value) StringVal() string {
	return v.s
}

// Len returns the element count for lists and objects, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindObject:
		return len(v.obj.fields)
	}
	return 0
}

// Index returns the i-th list element. It returns Null when out of range or
// when the value is not a list.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null()
	}
	return v.list[i]
}

// Get looks up an object key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	at, ok := v.obj.index[key]
	if !ok {
		return Null(), false
	}
	return v.obj.fields[at].Value, true
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.obj.fields))
	for i, f := range v.obj.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the ordered object entries.
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	fields := make([]Field, len(v.obj.fields))
	copy(fields, v.obj.fields)
	return fields
}

// Equal reports structural equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		// Key order is a serialization concern, not an identity one: typed
		// and untyped payloads carrying the same data may disagree on order.
		if len(v.obj.fields) != len(other.obj.fields) {
			return false
		}
		for _, f := range v.obj.fields {
			got, ok := other.Get(f.Key)
			if !ok || !f.Value.Equal(got) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value with object keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		encoded, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case KindString:
		encoded, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case KindList:
		buf.WriteByte('[')
		for i, elem := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.obj.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Decode parses JSON into a canonical value, preserving object key order.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeNext(dec)
	if err != nil {
		return Null(), err
	}
	if dec.More() {
		return Null(), fmt.Errorf("trailing data after JSON value")
	}
	return parsed, nil
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("number %q out of range: %w", t.String(), err)
		}
		return Number(n), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				elem, err := decodeNext(dec)
				if err != nil {
					return Null(), err
				}
				elems = append(elems, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Value{kind: KindList, list: elems}, nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), fmt.Errorf("object key is not a string: %v", keyTok)
				}
				elem, err := decodeNext(dec)
				if err != nil {
					return Null(), err
				}
				fields = append(fields, Field{Key: key, Value: elem})
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Object(fields...), nil
		}
	}
	return Null(), fmt.Errorf("unexpected JSON token %v", tok)
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Flex holds a semi-structured field that clients send either as free
// text or as JSON (stages, eligibility criteria, contact info). It is
// exactly one of Text or Structured.
type Flex struct {
	text       string
	structured any
	isText     bool
}

// Text wraps free-form text.
func Text(s string) Flex { return Flex{text: s, isText: true} }

// Structured wraps an already decoded JSON value (map, slice, scalar).
func Structured(v any) Flex { return Flex{structured: v} }

// IsText reports whether the value is free-form text.
func (f Flex) IsText() bool { return f.isText }

// IsZero reports whether nothing was set.
func (f Flex) IsZero() bool { return !f.isText && f.structured == nil }

// String returns the text form, or the JSON encoding for structured values.
func (f Flex) String() string {
	if f.isText {
		return f.text
	}
	return f.Encode("null")
}

// Value returns the underlying text or structured value.
func (f Flex) Value() any {
	if f.isText {
		return f.text
	}
	return f.structured
}

// Encode returns the JSON text stored in the database. Text values are
// encoded as JSON strings so they survive a round trip unchanged.
func (f Flex) Encode(fallback string) string {
	var (
		b   []byte
		err error
	)
	switch {
	case f.isText:
		b, err = json.Marshal(f.text)
	case f.structured == nil:
		return fallback
	default:
		b, err = json.Marshal(f.structured)
	}
	if err != nil {
		return fallback
	}
	return string(b)
}

// ParseFlex decodes stored JSON text. A JSON string whose content is
// itself JSON is unwrapped; text that is not JSON at all becomes Text.
func ParseFlex(raw string) Flex {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Flex{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Text(raw)
	}
	if s, ok := v.(string); ok {
		return fromString(s)
	}
	return Structured(v)
}

func fromString(s string) Flex {
	var inner any
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			return Structured(inner)
		}
	}
	return Text(s)
}

// MarshalJSON renders Text as a JSON string and Structured as-is.
func (f Flex) MarshalJSON() ([]byte, error) {
	if f.isText {
		return json.Marshal(f.text)
	}
	return json.Marshal(f.structured)
}

// UnmarshalJSON accepts any JSON value. Strings holding JSON objects or
// arrays are decoded into their structured form.
func (f *Flex) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Flex{}
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("flex value: %w", err)
	}
	if s, ok := v.(string); ok {
		*f = fromString(s)
		return nil
	}
	*f = Structured(v)
	return nil
}

// MarshalBSONValue stores the value as its JSON text.
func (f Flex) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(f.Encode("null"))
}

// UnmarshalBSONValue reads the JSON text written by MarshalBSONValue.
func (f *Flex) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	s, ok := raw.StringValueOK()
	if !ok {
		*f = Flex{}
		return nil
	}
	*f = ParseFlex(s)
	return nil
}

// NormalizeStages coerces any accepted stages input into a JSON array:
// comma separated text is split, a single value is wrapped, and an
// empty value becomes an empty list.
func NormalizeStages(f Flex) Flex {
	if f.isText {
		parsed := ParseFlex(f.text)
		if !parsed.isText {
			return NormalizeStages(parsed)
		}
		out := []any{}
		for _, part := range strings.Split(f.text, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return Structured(out)
	}
	switch v := f.structured.(type) {
	case nil:
		return Structured([]any{})
	case []any:
		return f
	default:
		return Structured([]any{v})
	}
}

// DefaultStages is used when a competition is created without stages.
func DefaultStages() Flex {
	return Structured([]any{"registration", "submission", "evaluation"})
}

// OrEmptyObject returns f, or an empty JSON object if nothing is set.
func OrEmptyObject(f Flex) Flex {
	if f.IsZero() {
		return Structured(map[string]any{})
	}
	return f
}

// Package canonical turns arbitrary JSON into its RFC 8785 (JCS) canonical form.
//
// Submissions are modelled as a closed Value variant instead of interface{} so
// that canonicalization is total: every Value either canonicalizes or reports
// which part of it cannot be represented.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrUnsupported = errors.New("unsupported JSON value")
	ErrCycle       = errors.New("JSON value contains a cycle")
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Member is one key/value pair of an object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	text    string
	items   []Value
	members []Member
}

func Null() Value { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }
func Number(n json.Number) Value { return Value{kind: KindNumber, number: n} }
func String(s string) Value { return Value{kind: KindString, text: s} }
func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }

func Object(members ...Member) Value {
	return Value{kind: KindObject, members: members}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) Items() []Value { return v.items }
func (v Value) Members() []Member { return v.members }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) BoolValue() bool { return v.boolean }
func (v Value) Text() string { return v.text }
func (v Value) NumberText() string { return v.number.String() }

// Lookup returns the value stored under key in an object.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON writes the value compactly, keeping object members in source order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON parses with the same rules as Parse.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) write(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.number == "" {
			return fmt.Errorf("%w: empty number", ErrUnsupported)
		}
		buf.WriteString(v.number.String())
	case KindString:
		if !utf8.ValidString(v.text) {
			return fmt.Errorf("%w: string is not valid UTF-8", ErrUnsupported)
		}
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if !utf8.ValidString(m.Key) {
				return fmt.Errorf("%w: object key is not valid UTF-8", ErrUnsupported)
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, v.kind)
	}
	return nil
}

// Parse decodes exactly one JSON value, keeping object member order.
// Duplicate object keys, trailing data, invalid UTF-8 and unpaired surrogate
// escapes are rejected.
func Parse(data []byte) (Value, error) {
	if !utf8.Valid(data) {
		return Value{}, fmt.Errorf("%w: input is not valid UTF-8", ErrInvalidJSON)
	}
	if err := checkSurrogates(data); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			return parseArray(dec)
		case '{':
			return parseObject(dec)
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func parseArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}

func parseObject(dec *json.Decoder) (Value, error) {
	members := []Member{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key must be a string, got %v", tok)
		}
		if _, dup := seen[key]; dup {
			return Value{}, fmt.Errorf("duplicate object key %q", key)
		}
		seen[key] = struct{}{}

		val, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Object(members...), nil
}

// checkSurrogates finds \u escapes inside strings that encode half of a
// surrogate pair without the other half. encoding/json would replace them
// with U+FFFD.
func checkSurrogates(data []byte) error {
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}

		switch c {
		case '"':
			inString = false
		case '\\':
			r, ok := escapedRune(data, i)
			if !ok {
				// other escapes, malformed ones are left to the decoder
				i++
				continue
			}
			switch {
			case r >= 0xD800 && r <= 0xDBFF:
				low, ok := escapedRune(data, i+6)
				if !ok || low < 0xDC00 || low > 0xDFFF {
					return fmt.Errorf("unpaired surrogate \\u%04x at offset %d", r, i)
				}
				i += 11
			case r >= 0xDC00 && r <= 0xDFFF:
				return fmt.Errorf("unpaired surrogate \\u%04x at offset %d", r, i)
			default:
				i += 5
			}
		}
	}
	return nil
}

// escapedRune decodes a \uXXXX escape starting at data[i].
func escapedRune(data []byte, i int) (rune, bool) {
	if i+6 > len(data) || data[i] != '\\' || data[i+1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(data[i+2:i+6]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

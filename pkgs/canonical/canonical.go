package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// ErrCanonicalize is wrapped by every failure to produce a canonical payload.
var ErrCanonicalize = errors.New("cannot canonicalize JSON")

// Canonicalize returns the RFC 8785 form of v: members sorted by UTF-16 code
// units, ES6 number serialization, minimal string escaping and no whitespace.
func Canonicalize(v Value) (string, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCanonicalize, err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCanonicalize, err)
	}
	return string(canon), nil
}

// CanonicalizeJSON parses raw JSON text and canonicalizes it.
func CanonicalizeJSON(data []byte) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCanonicalize, err)
	}
	return Canonicalize(v)
}

// CanonicalizeOptional canonicalizes an optional submission. An absent value
// yields the empty payload; an explicit JSON null yields "null".
func CanonicalizeOptional(v *Value) (string, error) {
	if v == nil {
		return "", nil
	}
	return Canonicalize(*v)
}

// FromAny converts a decoded Go value into a Value. Maps and slices that
// contain themselves are reported with ErrCycle.
func FromAny(in any) (Value, error) {
	return fromAny(in, make(map[uintptr]struct{}))
}

func fromAny(in any, visiting map[uintptr]struct{}) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		if _, err := strconv.ParseFloat(x.String(), 64); err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrUnsupported, x)
		}
		return Number(x), nil
	case json.RawMessage:
		return Parse(x)
	case float64:
		return floatValue(x)
	case float32:
		return floatValue(float64(x))
	case int:
		return Number(json.Number(strconv.FormatInt(int64(x), 10))), nil
	case int8:
		return Number(json.Number(strconv.FormatInt(int64(x), 10))), nil
	case int16:
		return Number(json.Number(strconv.FormatInt(int64(x), 10))), nil
	case int32:
		return Number(json.Number(strconv.FormatInt(int64(x), 10))), nil
	case int64:
		return Number(json.Number(strconv.FormatInt(x, 10))), nil
	case uint:
		return Number(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint8:
		return Number(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint16:
		return Number(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint32:
		return Number(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint64:
		return Number(json.Number(strconv.FormatUint(x, 10))), nil
	case []any:
		if err := enter(visiting, x); err != nil {
			return Value{}, err
		}
		defer leave(visiting, x)

		items := make([]Value, 0, len(x))
		for _, item := range x {
			v, err := fromAny(item, visiting)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]any:
		if err := enter(visiting, x); err != nil {
			return Value{}, err
		}
		defer leave(visiting, x)

		members := make([]Member, 0, len(x))
		for k, item := range x {
			v, err := fromAny(item, visiting)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k, Value: v})
		}
		// map order is irrelevant: Canonicalize sorts members
		return Object(members...), nil
	default:
		if hasInvalidUTF8(reflect.ValueOf(x), 0) {
			return Value{}, fmt.Errorf("%w: %T holds a string that is not valid UTF-8", ErrUnsupported, in)
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %T: %v", ErrUnsupported, in, err)
		}
		return Parse(raw)
	}
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite number", ErrUnsupported)
	}
	return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64))), nil
}

func enter(visiting map[uintptr]struct{}, container any) error {
	rv := reflect.ValueOf(container)
	// empty containers cannot hold themselves and may share a zero-size base pointer
	if rv.Len() == 0 {
		return nil
	}
	ptr := rv.Pointer()
	if _, ok := visiting[ptr]; ok {
		return ErrCycle
	}
	visiting[ptr] = struct{}{}
	return nil
}

func leave(visiting map[uintptr]struct{}, container any) {
	rv := reflect.ValueOf(container)
	if rv.Len() == 0 {
		return
	}
	delete(visiting, rv.Pointer())
}

const maxInspectDepth = 32

// hasInvalidUTF8 reports whether a value about to go through json.Marshal
// holds a string that would be rewritten to U+FFFD.
func hasInvalidUTF8(rv reflect.Value, depth int) bool {
	if !rv.IsValid() || depth > maxInspectDepth {
		return false
	}

	switch rv.Kind() {
	case reflect.String:
		return !utf8.ValidString(rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return hasInvalidUTF8(rv.Elem(), depth+1)
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).IsExported() && hasInvalidUTF8(rv.Field(i), depth+1) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		// byte slices marshal as base64
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if hasInvalidUTF8(rv.Index(i), depth+1) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasInvalidUTF8(iter.Key(), depth+1) || hasInvalidUTF8(iter.Value(), depth+1) {
				return true
			}
		}
	}
	return false
}

package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"null", `null`, `null`},
		{"scalar string", `"abc"`, `"abc"`},
		{"empty object", `{ }`, `{}`},
		{"empty array", `[ ]`, `[]`},
		{"sorted keys", `{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{
			"nested with whitespace",
			"{ \"b\" : [ 1 , {\"z\":null,\"y\":true} ],\n\t\"a\":\"x\" }",
			`{"a":"x","b":[1,{"y":true,"z":null}]}`,
		},
		{
			"number forms",
			`[4.50, 2e-3, 1E30, 0.000000000000000000000000001, -0, 100]`,
			`[4.5,0.002,1e+30,1e-27,0,100]`,
		},
		{
			"string escapes",
			`"caf\u00e9 \/ \t"`,
			"\"café / \\t\"",
		},
		{
			"utf16 key order",
			`{"\u20ac":"Euro Sign","\r":"Carriage Return","\ufb33":"Hebrew Letter Dalet With Dagesh","1":"One","\ud83d\ude00":"Emoji: Grinning Face","\u0080":"Control","\u00f6":"Latin Small Letter O With Diaeresis"}`,
			"{\"\\r\":\"Carriage Return\",\"1\":\"One\",\"\u0080\":\"Control\",\"\u00f6\":\"Latin Small Letter O With Diaeresis\",\"\u20ac\":\"Euro Sign\",\"\U0001F600\":\"Emoji: Grinning Face\",\"\ufb33\":\"Hebrew Letter Dalet With Dagesh\"}",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalizeJSON([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"x":1}`,
		`{"b":{"d":[3,2,1],"c":"\u00e9"},"a":[{"z":0.5,"y":-1e-7}]}`,
		`[null,true,false,"",0]`,
		`"plain"`,
	}

	for _, in := range inputs {
		once, err := CanonicalizeJSON([]byte(in))
		require.NoError(t, err)
		twice, err := CanonicalizeJSON([]byte(once))
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %s", in)
	}
}

func TestCanonicalizeKeyOrderIndependent(t *testing.T) {
	a, err := CanonicalizeJSON([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	b, err := CanonicalizeJSON([]byte(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalizeOptional(t *testing.T) {
	got, err := CanonicalizeOptional(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	null := Null()
	got, err = CanonicalizeOptional(&null)
	require.NoError(t, err)
	assert.Equal(t, "null", got)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":                   ``,
		"truncated":               `{"a":`,
		"trailing data":           `{"a":1} {"b":2}`,
		"duplicate key":           `{"a":1,"a":2}`,
		"bare word":               `nope`,
		"missing colon":           `{"a" 1}`,
		"lone high surrogate":     `{"s":"\ud800"}`,
		"lone low surrogate":      `{"s":"\udc00"}`,
		"high then non-low":       `{"s":"\ud800\u0041"}`,
		"high then plain text":    `["\uD83Dx"]`,
		"surrogate in key":        `{"\ud800":1}`,
		"raw invalid byte":        "{\"s\":\"\xff\"}",
		"invalid byte in key":     "{\"\xc3\":1}",
		"truncated utf8 sequence": "\"\xe2\x82\"",
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidJSON)

			_, err = CanonicalizeJSON([]byte(in))
			assert.ErrorIs(t, err, ErrCanonicalize)
		})
	}
}

func TestParseKeepsMemberOrder(t *testing.T) {
	v, err := Parse([]byte(`{"b":1,"a":[true,"s"]}`))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())

	members := v.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "b", members[0].Key)
	assert.Equal(t, "a", members[1].Key)

	a, ok := v.Lookup("a")
	require.True(t, ok)
	require.Equal(t, KindArray, a.Kind())
	assert.True(t, a.Items()[0].BoolValue())
	assert.Equal(t, "s", a.Items()[1].Text())

	b, _ := v.Lookup("b")
	assert.Equal(t, "1", b.NumberText())

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":[true,"s"]}`, string(raw))
}

func TestValueUnmarshalJSON(t *testing.T) {
	var wrapper struct {
		Data *Value `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"y":2,"x":1}}`), &wrapper))
	require.NotNil(t, wrapper.Data)

	got, err := Canonicalize(*wrapper.Data)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1,"y":2}`, got)
}

func TestFromAny(t *testing.T) {
	in := map[string]any{
		"list":  []any{1, 2.5, "three", nil, true},
		"inner": map[string]any{"k": int64(7), "u": uint8(3)},
		"num":   json.Number("10.0"),
	}

	v, err := FromAny(in)
	require.NoError(t, err)

	got, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"inner":{"k":7,"u":3},"list":[1,2.5,"three",null,true],"num":10}`, got)
}

func TestFromAnyStruct(t *testing.T) {
	type sample struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	v, err := FromAny(sample{Name: "n", Count: 2})
	require.NoError(t, err)

	got, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"count":2,"name":"n"}`, got)
}

func TestFromAnyRejects(t *testing.T) {
	cyclicMap := map[string]any{}
	cyclicMap["self"] = cyclicMap

	cyclicSlice := make([]any, 1)
	cyclicSlice[0] = cyclicSlice

	_, err := FromAny(cyclicMap)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = FromAny(cyclicSlice)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = FromAny(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupported)

	nan := 0.0
	_, err = FromAny(nan / nan)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = FromAny(json.Number("1.2.3"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFromAnySharedSubtreeIsNotACycle(t *testing.T) {
	shared := map[string]any{"v": 1}
	v, err := FromAny(map[string]any{"a": shared, "b": shared})
	require.NoError(t, err)

	got, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"v":1},"b":{"v":1}}`, got)
}

func TestCanonicalizeKeepsDistinctStringsDistinct(t *testing.T) {
	replacement, err := CanonicalizeJSON([]byte(`{"s":"\ufffd"}`))
	require.NoError(t, err)
	assert.Equal(t, "{\"s\":\"\ufffd\"}", replacement)

	pair, err := CanonicalizeJSON([]byte(`{"s":"\ud83d\ude00"}`))
	require.NoError(t, err)
	assert.Equal(t, "{\"s\":\"\U0001F600\"}", pair)

	// inputs that would otherwise collapse to U+FFFD are rejected
	for _, in := range []string{`{"s":"\ud800"}`, "{\"s\":\"\xff\"}"} {
		_, err := CanonicalizeJSON([]byte(in))
		assert.ErrorIs(t, err, ErrCanonicalize, "input %q", in)
	}
}

func TestCanonicalizeEscapedBackslashBeforeU(t *testing.T) {
	// an escaped backslash followed by "ud800" is plain text, not an escape
	got, err := CanonicalizeJSON([]byte(`{"s":"\\ud800"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"s":"\\ud800"}`, got)
}

func TestCanonicalizeRejectsInvalidUTF8Values(t *testing.T) {
	cases := map[string]Value{
		"string":     String("a\xffb"),
		"object key": Object(Member{Key: "\xed\xa0\x80", Value: Null()}),
		"nested":     Array(Bool(true), String("\xc0")),
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Canonicalize(v)
			assert.ErrorIs(t, err, ErrCanonicalize)
		})
	}
}

func TestFromAnyRejectsInvalidUTF8(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	inputs := map[string]any{
		"string":  "\xff",
		"map key": map[string]any{"\xff": 1},
		"struct":  payload{Name: "bad\xfe"},
		"pointer": &payload{Name: "\xc3"},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			v, err := FromAny(in)
			if err == nil {
				_, err = Canonicalize(v)
				assert.ErrorIs(t, err, ErrCanonicalize)
				return
			}
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}

	v, err := FromAny(payload{Name: "caf\u00e9"})
	require.NoError(t, err)
	got, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"café"}`, got)
}

package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilderChecksumsAddresses(t *testing.T) {
	kb := NewKeyBuilder(strings.ToLower("0xAbC123000000000000000000000000000000dEaD"))

	upper := kb.Record("0xABC123000000000000000000000000000000DEAD", "sub-1")
	lower := kb.Record("0xabc123000000000000000000000000000000dead", "sub-1")

	assert.Equal(t, upper, lower)
	assert.Equal(t,
		"0xabc123000000000000000000000000000000DEAd:record:0xabc123000000000000000000000000000000DEAd:sub-1",
		lower)
}

func TestKeyBuilderKeepsNonAddresses(t *testing.T) {
	kb := NewKeyBuilder("store")
	assert.Equal(t, "store:record:someone:42", kb.Record("someone", "42"))
	assert.Equal(t, "store:record:*", kb.RecordPattern())
}

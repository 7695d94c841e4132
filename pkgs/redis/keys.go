package redis

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// KeyBuilder provides methods to generate namespaced Redis keys
type KeyBuilder struct {
	RecordContract string
}

// checksumAddress converts an Ethereum address to checksummed format (EIP-55).
// If the input is not a valid Ethereum address, it returns the input unchanged.
func checksumAddress(addr string) string {
	if addr == "" {
		return addr
	}
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

// NewKeyBuilder creates a KeyBuilder scoped to one record store contract.
// Addresses are checksummed so that differently-cased input maps to one key.
func NewKeyBuilder(recordContract string) *KeyBuilder {
	return &KeyBuilder{
		RecordContract: checksumAddress(recordContract),
	}
}

// Record returns the key for the attested record of one submission
func (kb *KeyBuilder) Record(owner, submissionID string) string {
	return fmt.Sprintf("%s:record:%s:%s", kb.RecordContract, checksumAddress(owner), submissionID)
}

// RecordPattern matches every cached record of this contract
func (kb *KeyBuilder) RecordPattern() string {
	return fmt.Sprintf("%s:record:*", kb.RecordContract)
}

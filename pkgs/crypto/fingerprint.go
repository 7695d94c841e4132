package crypto

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

var (
	ErrFingerprint    = errors.New("failed to calculate fingerprint")
	ErrInvalidAddress = submissions.ErrInvalidAddress
	ErrInvalidQuality = submissions.ErrInvalidQuality
)

// Fingerprint is a Keccak-256 digest rendered as 0x followed by 64 lowercase hex characters.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Normalized returns the fingerprint trimmed, lowercased and 0x-prefixed.
func (f Fingerprint) Normalized() Fingerprint {
	s := strings.ToLower(strings.TrimSpace(string(f)))
	if s != "" && !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return Fingerprint(s)
}

// FingerprintGenerator produces the fingerprint of a submission.
type FingerprintGenerator interface {
	Generate(ctx context.Context, input submissions.SubmissionInput) (Fingerprint, error)
}

// fingerprintArgs mirrors Solidity abi.encode(address, string, string).
var fingerprintArgs = mustArguments("address", "string", "string")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("invalid abi type %q: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// EncodeFingerprintPayload returns the ABI encoding that ComputeFingerprint hashes.
func EncodeFingerprintPayload(address, quality, canonicalPayload string) ([]byte, error) {
	if !submissions.IsValidAddress(address) {
		return nil, fmt.Errorf("%w: %w: %q", ErrFingerprint, ErrInvalidAddress, address)
	}
	if !submissions.Quality(quality).Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrFingerprint, ErrInvalidQuality, quality)
	}

	packed, err := fingerprintArgs.Pack(common.HexToAddress(address), quality, canonicalPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: abi encode: %v", ErrFingerprint, err)
	}
	return packed, nil
}

// ComputeFingerprint hashes abi.encode(address, quality, canonicalPayload) with Keccak-256.
func ComputeFingerprint(address, quality, canonicalPayload string) (Fingerprint, error) {
	packed, err := EncodeFingerprintPayload(address, quality, canonicalPayload)
	if err != nil {
		return "", err
	}
	return Fingerprint(crypto.Keccak256Hash(packed).Hex()), nil
}

// Calculator computes fingerprints locally from a validated submission.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute canonicalizes the submission JSON and fingerprints it.
func (c *Calculator) Compute(input submissions.SubmissionInput) (Fingerprint, error) {
	payload, err := canonical.CanonicalizeOptional(input.SubmissionJSON)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFingerprint, err)
	}

	fp, err := ComputeFingerprint(input.WalletAddress, string(input.Quality), payload)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"address":      input.WalletAddress,
		"quality":      string(input.Quality),
		"payloadBytes": len(payload),
		"fingerprint":  fp,
	}).Debug("Computed local fingerprint")

	return fp, nil
}

// Generate implements FingerprintGenerator.
func (c *Calculator) Generate(ctx context.Context, input submissions.SubmissionInput) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.Compute(input)
}

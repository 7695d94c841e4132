// Package onchain reads attested submission records from the record store
// contract with read-only calls. Nothing here signs or sends transactions.
package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	abiloader "github.com/codatta/codattaOnchainDataVerify/pkgs/abi"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/metrics"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

var (
	ErrCallFailed        = errors.New("record store call failed")
	ErrMalformedResponse = errors.New("malformed record store response")
	ErrRecordNotFound    = errors.New("record not found")
)

// Default query window, matching the page the record store is read with.
const (
	DefaultOffset = 0
	DefaultLimit  = 100
)

// Record is the attested fingerprint of one submission.
type Record struct {
	Fingerprint  string `json:"fingerprint"`
	SubmissionID string `json:"submissionId"`
}

// Query selects a record by owner and submission id within a page window.
type Query struct {
	Address      common.Address
	SubmissionID string
	Offset       uint64
	Limit        uint64
}

// FingerprintReader returns the attested record for a submission.
type FingerprintReader interface {
	ReadFingerprint(ctx context.Context, address, submissionID string) (Record, error)
}

// recordTuple mirrors the (string fingerPrint, string submissionId) output tuple.
type recordTuple struct {
	FingerPrint  string
	SubmissionId string
}

// RecordStore binds to the record store contract
type RecordStore struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
	offset   uint64
	limit    uint64
}

// Option customises a RecordStore.
type Option func(*RecordStore)

// WithWindow overrides the offset/limit page the record is looked up in.
func WithWindow(offset, limit uint64) Option {
	return func(s *RecordStore) {
		s.offset = offset
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewRecordStore creates a record store client over any contract caller.
func NewRecordStore(caller ethereum.ContractCaller, contract common.Address, parsed abi.ABI, opts ...Option) *RecordStore {
	s := &RecordStore{
		caller:   caller,
		contract: contract,
		abi:      parsed,
		offset:   DefaultOffset,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Contract returns the record store address.
func (s *RecordStore) Contract() common.Address {
	return s.contract
}

// ReadFingerprint reads the attested record for address and submissionID using
// the configured page window.
func (s *RecordStore) ReadFingerprint(ctx context.Context, address, submissionID string) (Record, error) {
	if !submissions.IsValidAddress(address) {
		return Record{}, fmt.Errorf("%w: %q", submissions.ErrInvalidAddress, address)
	}
	return s.Query(ctx, Query{
		Address:      common.HexToAddress(address),
		SubmissionID: submissionID,
		Offset:       s.offset,
		Limit:        s.limit,
	})
}

// Query performs the read-only contract call and decodes element 1 of the result.
func (s *RecordStore) Query(ctx context.Context, q Query) (Record, error) {
	method := abiloader.RecordStoreMethod

	data, err := s.abi.Pack(method,
		q.Address,
		q.SubmissionID,
		new(big.Int).SetUint64(q.Offset),
		new(big.Int).SetUint64(q.Limit))
	if err != nil {
		return Record{}, fmt.Errorf("%w: failed to pack %s call: %v", ErrCallFailed, method, err)
	}

	msg := ethereum.CallMsg{
		To:   &s.contract,
		Data: data,
	}
	result, err := s.caller.CallContract(ctx, msg, nil)
	if err != nil {
		metrics.ContractCallsTotal.WithLabelValues(method, "error").Inc()
		return Record{}, fmt.Errorf("%w: %s: %w", ErrCallFailed, method, err)
	}

	record, err := s.decode(result)
	if err != nil {
		metrics.ContractCallsTotal.WithLabelValues(method, "malformed").Inc()
		return Record{}, err
	}

	if record.Fingerprint == "" {
		metrics.ContractCallsTotal.WithLabelValues(method, "not_found").Inc()
		return Record{}, fmt.Errorf("%w: no fingerprint for submission %q of %s in window offset=%d limit=%d",
			ErrRecordNotFound, q.SubmissionID, q.Address.Hex(), q.Offset, q.Limit)
	}
	if record.SubmissionID != "" && record.SubmissionID != q.SubmissionID {
		metrics.ContractCallsTotal.WithLabelValues(method, "not_found").Inc()
		return Record{}, fmt.Errorf("%w: record store returned submission %q, asked for %q",
			ErrRecordNotFound, record.SubmissionID, q.SubmissionID)
	}

	metrics.ContractCallsTotal.WithLabelValues(method, "ok").Inc()
	log.WithFields(log.Fields{
		"contract":     s.contract.Hex(),
		"address":      q.Address.Hex(),
		"submissionId": q.SubmissionID,
		"fingerprint":  record.Fingerprint,
	}).Debug("Read on-chain fingerprint")

	return record, nil
}

func (s *RecordStore) decode(result []byte) (record Record, err error) {
	out, err := s.abi.Unpack(abiloader.RecordStoreMethod, result)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out) < 2 {
		return Record{}, fmt.Errorf("%w: expected 2 outputs, got %d", ErrMalformedResponse, len(out))
	}

	// ConvertType panics when the tuple shape does not match
	defer func() {
		if r := recover(); r != nil {
			record = Record{}
			err = fmt.Errorf("%w: unexpected record shape: %v", ErrMalformedResponse, r)
		}
	}()

	tuple := *abi.ConvertType(out[1], new(recordTuple)).(*recordTuple)
	return Record{Fingerprint: tuple.FingerPrint, SubmissionID: tuple.SubmissionId}, nil
}

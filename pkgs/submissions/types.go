package submissions

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
)

var (
	ErrMissingSubmissionID = errors.New("submission id is required")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrInvalidQuality      = errors.New("invalid quality grade")
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Quality is the grade attached to a submission. The empty grade means "no ranking".
type Quality string

const (
	QualityNone Quality = ""
	QualityS    Quality = "S"
	QualityA    Quality = "A"
	QualityB    Quality = "B"
	QualityC    Quality = "C"
	QualityD    Quality = "D"
)

// Qualities lists every grade in display order, "no ranking" first.
var Qualities = []Quality{QualityNone, QualityS, QualityA, QualityB, QualityC, QualityD}

// Valid reports whether q is one of the enumerated grades.
func (q Quality) Valid() bool {
	for _, known := range Qualities {
		if q == known {
			return true
		}
	}
	return false
}

// ParseQuality accepts a grade as typed by a user. Surrounding whitespace is ignored
// but case is not: "a" is not a grade.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.TrimSpace(s))
	if !q.Valid() {
		return QualityNone, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	return q, nil
}

// IsValidAddress reports whether s is 0x followed by exactly 40 hex characters.
// Checksum casing is not enforced.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// SubmissionInput is one validated verification request. It is built once per
// form submission and never mutated afterwards.
type SubmissionInput struct {
	// SubmissionJSON is nil when the user supplied no JSON at all.
	SubmissionJSON *canonical.Value
	SubmissionID   string
	WalletAddress  string
	Quality        Quality
}

// Validate checks the invariants required before any fingerprinting or ledger read.
func (in SubmissionInput) Validate() error {
	if strings.TrimSpace(in.SubmissionID) == "" {
		return ErrMissingSubmissionID
	}
	if !IsValidAddress(in.WalletAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, in.WalletAddress)
	}
	if !in.Quality.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidQuality, string(in.Quality))
	}
	return nil
}

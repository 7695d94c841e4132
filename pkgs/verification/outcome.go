package verification

import (
	"strings"
)

// Outcome is the user-facing report of a finished run.
type Outcome struct {
	Title          string `json:"title"`
	Detail         string `json:"detail"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	RewardEligible bool   `json:"rewardEligible"`
}

var (
	successOutcome = Outcome{
		Title:          "Verification successful",
		Detail:         "your data matches the on-chain record (attested & tamper-proof).",
		Status:         "Completed",
		Message:        "To receive your reward, please verify the task on the Binance Wallet campaign page.",
		RewardEligible: true,
	}
	failureOutcome = Outcome{
		Title:   "Verification failed",
		Detail:  "Make sure your JSON/address/quality match the original submission.",
		Status:  "Not completed",
		Message: "This verification does not meet the campaign completion criteria",
	}
)

// Normalize trims whitespace, lowercases and ensures the 0x prefix.
func Normalize(fingerprint string) string {
	s := strings.ToLower(strings.TrimSpace(fingerprint))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// Compare reports whether two fingerprints are equal after normalization.
// An empty fingerprint never matches.
func Compare(local, onChain string) bool {
	l, o := Normalize(local), Normalize(onChain)
	return l != "" && l == o
}

// NewResult compares the fingerprints and keeps both as given.
func NewResult(local, onChain string) Result {
	return Result{
		Match:   Compare(local, onChain),
		Local:   local,
		OnChain: onChain,
	}
}

// Report maps a comparison result to the text shown to the user.
func Report(r Result) Outcome {
	if r.Match {
		return successOutcome
	}
	return failureOutcome
}

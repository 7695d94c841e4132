package submissions

import (
	"errors"
	"sort"
	"strings"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
)

// Form field names, as reported in ValidationErrors
const (
	FieldSubmissionJSON = "submissionJson"
	FieldSubmissionID   = "submissionId"
	FieldWalletAddress  = "walletAddress"
	FieldQuality        = "quality"
)

// FormInput is the raw form as typed by the user.
type FormInput struct {
	SubmissionJSON string `json:"submissionJson"`
	SubmissionID   string `json:"submissionId"`
	WalletAddress  string `json:"walletAddress"`
	Quality        string `json:"quality"`
}

// ValidationErrors maps a form field to the message shown next to it.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// AsValidationErrors extracts field errors from err, if any.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verr ValidationErrors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// ParseForm validates a raw form and builds the SubmissionInput the verifier runs on.
// All field problems are reported together.
func ParseForm(form FormInput) (SubmissionInput, error) {
	errs := ValidationErrors{}
	input := SubmissionInput{
		SubmissionID:  form.SubmissionID,
		WalletAddress: strings.TrimSpace(form.WalletAddress),
	}

	if text := strings.TrimSpace(form.SubmissionJSON); text != "" {
		v, err := canonical.Parse([]byte(text))
		switch {
		case err != nil:
			errs[FieldSubmissionJSON] = "Please enter a valid JSON format"
		case v.Kind() != canonical.KindObject && v.Kind() != canonical.KindArray:
			errs[FieldSubmissionJSON] = "Must be a JSON object"
		default:
			input.SubmissionJSON = &v
		}
	}

	if strings.TrimSpace(form.SubmissionID) == "" {
		errs[FieldSubmissionID] = "Submission ID is required"
	}

	switch {
	case input.WalletAddress == "":
		errs[FieldWalletAddress] = "Wallet address is required"
	case !IsValidAddress(input.WalletAddress):
		errs[FieldWalletAddress] = "Please enter a valid wallet address (0x format)"
	}

	quality, err := ParseQuality(form.Quality)
	if err != nil {
		errs[FieldQuality] = "Quality must be one of S, A, B, C, D or empty"
	}
	input.Quality = quality

	if len(errs) > 0 {
		return SubmissionInput{}, errs
	}
	return input, nil
}

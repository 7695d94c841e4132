package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

type inputFlags struct {
	json         string
	jsonFile     string
	submissionID string
	address      string
	quality      string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.json, "json", "", "Submission JSON text (empty means no submission data)")
	cmd.Flags().StringVar(&f.jsonFile, "json-file", "", "Read the submission JSON from a file, - for stdin")
	cmd.Flags().StringVar(&f.submissionID, "submission-id", "", "Submission id")
	cmd.Flags().StringVar(&f.address, "address", "", "Wallet address (0x format)")
	cmd.Flags().StringVar(&f.quality, "quality", "", "Quality grade: S, A, B, C, D or empty")
	cmd.MarkFlagsMutuallyExclusive("json", "json-file")
}

// form reads the flags into the raw form shape.
func (f *inputFlags) form(stdin io.Reader) (submissions.FormInput, error) {
	form := submissions.FormInput{
		SubmissionJSON: f.json,
		SubmissionID:   f.submissionID,
		WalletAddress:  f.address,
		Quality:        f.quality,
	}

	switch f.jsonFile {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return form, fmt.Errorf("failed to read submission JSON from stdin: %w", err)
		}
		form.SubmissionJSON = string(data)
	default:
		data, err := os.ReadFile(f.jsonFile)
		if err != nil {
			return form, fmt.Errorf("failed to read submission JSON: %w", err)
		}
		form.SubmissionJSON = string(data)
	}
	return form, nil
}

// parse validates the flags, printing field errors the way the form shows them.
func (f *inputFlags) parse(cmd *cobra.Command) (submissions.SubmissionInput, error) {
	form, err := f.form(cmd.InOrStdin())
	if err != nil {
		return submissions.SubmissionInput{}, &exitError{code: exitFailure, err: err}
	}

	input, err := submissions.ParseForm(form)
	if err == nil {
		return input, nil
	}

	if fields, ok := submissions.AsValidationErrors(err); ok {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", name, fields[name])
		}
		return submissions.SubmissionInput{}, &exitError{code: exitFailure, err: errors.New("invalid input")}
	}
	return submissions.SubmissionInput{}, &exitError{code: exitFailure, err: err}
}

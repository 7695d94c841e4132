package main

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

func newFingerprintCmd() *cobra.Command {
	var (
		in           inputFlags
		showEncoding bool
	)

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local fingerprint of a submission",
		Long: `Compute the fingerprint of a submission without touching the ledger.

Example:
  $ verifier fingerprint --json '{"x":1}' --submission-id abc123 \
      --address 0xAbC123000000000000000000000000000000dEaD --quality A --show-encoding`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := in.parse(cmd)
			if err != nil {
				return err
			}
			if err := printFingerprint(cmd.OutOrStdout(), input, showEncoding); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().BoolVar(&showEncoding, "show-encoding", false, "Also print the canonical payload and the ABI encoding")
	return cmd
}

func printFingerprint(out io.Writer, input submissions.SubmissionInput, showEncoding bool) error {
	if showEncoding {
		payload, err := canonical.CanonicalizeOptional(input.SubmissionJSON)
		if err != nil {
			return err
		}
		encoded, err := crypto.EncodeFingerprintPayload(input.WalletAddress, string(input.Quality), payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "canonical: %s\n", payload)
		fmt.Fprintf(out, "encoding:  %s\n", hexutil.Encode(encoded))
	}

	fp, err := crypto.NewCalculator().Compute(input)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, fp)
	return nil
}

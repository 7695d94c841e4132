package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codatta/codattaOnchainDataVerify/config"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/service"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/verification"
)

// runFunc runs one verification with the given observer.
type runFunc func(ctx context.Context, input submissions.SubmissionInput, observer verification.Observer) (verification.State, error)

func newVerifyCmd() *cobra.Command {
	var (
		in       inputFlags
		timeout  time.Duration
		prefetch bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a submission against its on-chain fingerprint",
		Long: `Recompute the fingerprint of a submission locally and compare it with the
fingerprint attested in the record store.

Exit status is 0 on match, 1 on mismatch and 2 when the run could not finish.

Example:
  $ verifier verify --json '{"x":1}' --submission-id abc123 \
      --address 0xAbC123000000000000000000000000000000dEaD --quality A`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := in.parse(cmd)
			if err != nil {
				return err
			}

			if err := config.LoadConfig(); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			settings := config.SettingsObj
			if cmd.Flags().Changed("timeout") {
				settings.StageTimeout = timeout
			}
			if cmd.Flags().Changed("prefetch") {
				settings.PrefetchOnChain = prefetch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := service.Build(ctx, settings)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer svc.Close()

			run := func(ctx context.Context, input submissions.SubmissionInput, observer verification.Observer) (verification.State, error) {
				return svc.NewRunner(verification.WithObserver(observer)).Run(ctx, input)
			}
			return runVerify(ctx, cmd.OutOrStdout(), run, input)
		},
	}

	in.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", verification.DefaultStageTimeout, "Timeout for each network stage")
	cmd.Flags().BoolVar(&prefetch, "prefetch", false, "Start the on-chain read while the local fingerprint is computed")
	return cmd
}

func runVerify(ctx context.Context, out io.Writer, run runFunc, input submissions.SubmissionInput) error {
	printer := newStepPrinter(out)

	state, err := run(ctx, input, printer.observe)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	outcome := verification.Report(*state.Result)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s\n", outcome.Title)
	if outcome.Detail != "" {
		fmt.Fprintf(out, "  %s\n", outcome.Detail)
	}
	fmt.Fprintf(out, "  Local:    %s\n", state.Result.Local)
	fmt.Fprintf(out, "  On-chain: %s\n", state.Result.OnChain)
	fmt.Fprintf(out, "  Status:   %s\n", outcome.Status)
	fmt.Fprintf(out, "  %s\n", outcome.Message)

	if !state.Result.Match {
		return &exitError{code: exitMismatch}
	}
	return nil
}

// stepPrinter prints every step status change once, in order.
type stepPrinter struct {
	out  io.Writer
	seen []verification.StepStatus
}

func newStepPrinter(out io.Writer) *stepPrinter {
	return &stepPrinter{out: out}
}

func (p *stepPrinter) observe(state verification.State) {
	for i, step := range state.Steps {
		if i < len(p.seen) && p.seen[i] == step.Status {
			continue
		}
		if i >= len(p.seen) {
			p.seen = append(p.seen, step.Status)
		} else {
			p.seen[i] = step.Status
		}
		p.print(step)
	}
}

func (p *stepPrinter) print(step verification.Step) {
	switch step.Status {
	case verification.StepRunning:
		fmt.Fprintf(p.out, "[ .. ] %s\n", step.Title())
	case verification.StepCompleted:
		fmt.Fprintf(p.out, "[ ok ] %s", step.Title())
		if step.Value != "" {
			fmt.Fprintf(p.out, ": %s", step.Value)
		}
		fmt.Fprintln(p.out)
	case verification.StepFailed:
		fmt.Fprintf(p.out, "[FAIL] %s: %v\n", step.Title(), step.Err)
	}
}

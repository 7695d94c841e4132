package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/metrics"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/onchain"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

var ErrStageTimeout = errors.New("verification stage timed out")

const DefaultStageTimeout = 30 * time.Second

// Delays is how long each completed step stays on screen before the run
// advances to the next stage.
type Delays struct {
	Local   time.Duration
	OnChain time.Duration
	Compare time.Duration
}

// DefaultDelays returns the standard 300/500/500ms pacing.
func DefaultDelays() Delays {
	return Delays{
		Local:   300 * time.Millisecond,
		OnChain: 500 * time.Millisecond,
		Compare: 500 * time.Millisecond,
	}
}

// Observer is called with every new state of a run.
type Observer func(State)

// Runner executes verification runs. A Runner holds no per-run state and may
// be shared between goroutines.
type Runner struct {
	generator    crypto.FingerprintGenerator
	reader       onchain.FingerprintReader
	delays       Delays
	stageTimeout time.Duration
	prefetch     bool
	observer     Observer
}

// Option customises a Runner.
type Option func(*Runner)

func WithDelays(d Delays) Option {
	return func(r *Runner) { r.delays = d }
}

func WithStageTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stageTimeout = d
		}
	}
}

// WithPrefetch starts the on-chain read alongside local computation.
func WithPrefetch(enabled bool) Option {
	return func(r *Runner) { r.prefetch = enabled }
}

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a runner over a fingerprint source and a record reader.
func NewRunner(generator crypto.FingerprintGenerator, reader onchain.FingerprintReader, opts ...Option) *Runner {
	r := &Runner{
		generator:    generator,
		reader:       reader,
		delays:       DefaultDelays(),
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type readResult struct {
	record onchain.Record
	err    error
}

// Run verifies one submission. Invalid input is rejected before any work.
// On stage failure the returned State is parked on the failing stage and the
// error is returned as well; cancelling ctx cancels the run.
func (r *Runner) Run(ctx context.Context, input submissions.SubmissionInput) (State, error) {
	state, err := Transition(State{}, Submit{RunID: uuid.NewString(), Input: input})
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return State{}, err
	}
	r.notify(state)

	logger := log.WithFields(log.Fields{
		"run":          state.RunID,
		"address":      input.WalletAddress,
		"submissionId": input.SubmissionID,
	})
	logger.Info("🔍 Verification started")

	var prefetched chan readResult
	if r.prefetch {
		prefetchCtx, cancelPrefetch := context.WithCancel(ctx)
		prefetched = make(chan readResult, 1)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := r.read(prefetchCtx, input)
			prefetched <- readResult{record: record, err: err}
		}()
		defer func() {
			cancelPrefetch()
			wg.Wait()
		}()
	}

	// Local fingerprint
	started := time.Now()
	fp, err := r.generate(ctx, input)
	if err != nil {
		metrics.ObserveStage(StageComputingLocal.String(), "failed", started)
		return r.park(ctx, state, err, logger)
	}
	metrics.ObserveStage(StageComputingLocal.String(), "ok", started)
	state = r.apply(state, LocalComputed{Fingerprint: fp})
	logger.WithField("fingerprint", fp).Info("✅ Local fingerprint computed")

	if err := sleep(ctx, r.delays.Local); err != nil {
		return r.park(ctx, state, err, logger)
	}
	state = r.apply(state, Advance{})

	// On-chain fingerprint
	started = time.Now()
	var record onchain.Record
	if prefetched != nil {
		select {
		case res := <-prefetched:
			record, err = res.record, res.err
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		record, err = r.read(ctx, input)
	}
	if err != nil {
		metrics.ObserveStage(StageReadingOnChain.String(), "failed", started)
		return r.park(ctx, state, err, logger)
	}
	metrics.ObserveStage(StageReadingOnChain.String(), "ok", started)
	state = r.apply(state, OnChainRead{Record: record})
	logger.WithField("fingerprint", record.Fingerprint).Info("✅ On-chain fingerprint read")

	if err := sleep(ctx, r.delays.OnChain); err != nil {
		return r.park(ctx, state, err, logger)
	}
	state = r.apply(state, Advance{})

	// Comparison
	result := NewResult(string(state.Local), state.OnChain.Fingerprint)
	state = r.apply(state, Compared{Result: result})

	if err := sleep(ctx, r.delays.Compare); err != nil {
		// the comparison is already final; only the pacing was cut short
		logger.Debug("Final display delay interrupted")
	}
	state = r.apply(state, Advance{})

	if result.Match {
		metrics.VerificationsTotal.WithLabelValues("match").Inc()
		logger.Info("🎉 Verification successful: fingerprints match")
	} else {
		metrics.VerificationsTotal.WithLabelValues("mismatch").Inc()
		logger.Warn("❌ Verification failed: fingerprints differ")
	}
	return state, nil
}

func (r *Runner) generate(ctx context.Context, input submissions.SubmissionInput) (crypto.Fingerprint, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	fp, err := r.generator.Generate(stageCtx, input)
	return fp, r.stageError(ctx, stageCtx, err)
}

func (r *Runner) read(ctx context.Context, input submissions.SubmissionInput) (onchain.Record, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	record, err := r.reader.ReadFingerprint(stageCtx, input.WalletAddress, input.SubmissionID)
	return record, r.stageError(ctx, stageCtx, err)
}

// stageError tells a stage timeout apart from the caller cancelling the run.
func (r *Runner) stageError(parent, stageCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %w", ErrStageTimeout, r.stageTimeout, err)
	}
	return err
}

func (r *Runner) park(ctx context.Context, state State, err error, logger *log.Entry) (State, error) {
	stage := state.Stage

	if ctx.Err() != nil {
		state = r.apply(state, Cancel{})
		metrics.VerificationsTotal.WithLabelValues("cancelled").Inc()
		logger.WithField("stage", stage).Warn("Verification cancelled")
		return state, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	state = r.apply(state, StageFailed{Err: err})
	metrics.VerificationsTotal.WithLabelValues("failed").Inc()
	logger.WithError(err).WithField("stage", stage).Error("Verification stage failed")
	return state, err
}

func (r *Runner) apply(state State, ev Event) State {
	next, err := Transition(state, ev)
	if err != nil {
		// unreachable: events are fired in stage order
		panic(err)
	}
	r.notify(next)
	return next
}

func (r *Runner) notify(state State) {
	if r.observer != nil {
		r.observer(state)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

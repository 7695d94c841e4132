// Package verification drives one fingerprint verification run: compute the
// local fingerprint, read the attested one, compare, report.
//
// State transitions are pure (Transition); side effects live in Runner.
package verification

import (
	"errors"
	"fmt"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/onchain"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

var (
	ErrInvalidTransition = errors.New("invalid verification transition")
	ErrInvalidInput      = errors.New("invalid verification input")
	ErrCancelled         = errors.New("verification cancelled")
)

// Stage is the position of a run in the verification pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageComputingLocal
	StageReadingOnChain
	StageComparing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageComputingLocal:
		return "computing_local"
	case StageReadingOnChain:
		return "reading_on_chain"
	case StageComparing:
		return "comparing"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Active reports whether work is in progress in this stage.
func (s Stage) Active() bool {
	return s == StageComputingLocal || s == StageReadingOnChain || s == StageComparing
}

// StepStatus is the display state of one step.
type StepStatus int

const (
	StepRunning StepStatus = iota
	StepCompleted
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s StepStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Step is one entry of the progress list shown to the user.
type Step struct {
	Stage  Stage
	Status StepStatus
	// Value is the fingerprint produced by the step, or "match"/"mismatch" for the comparison
	Value string
	Err   error
}

type stepText struct {
	running     string
	completed   string
	description string
}

var stepTexts = map[Stage]stepText{
	StageComputingLocal: {
		running:     "Calculating local fingerprint...",
		completed:   "Complete the local fingerprint generation",
		description: "We hash your JSON + address + quality locally to calculate your unique fingerprint.",
	},
	StageReadingOnChain: {
		running:     "Reading on-chain fingerprint...",
		completed:   "Complete the on-chain fingerprint reading",
		description: "Fetch the attested fingerprint from chain. Read-only call. No writes, no gas.",
	},
	StageComparing: {
		running:     "Comparing local fingerprint with on-chain fingerprint...",
		completed:   "Complete the fingerprint comparison",
		description: "Comparing the local and on-chain fingerprints means that the data has not been tampered with and can be self-verified.",
	},
}

// Title is the heading for the step in its current status.
func (s Step) Title() string {
	if s.Status == StepCompleted {
		return stepTexts[s.Stage].completed
	}
	return stepTexts[s.Stage].running
}

// Description explains what the step does.
func (s Step) Description() string {
	return stepTexts[s.Stage].description
}

// Result is the outcome of comparing the two fingerprints.
type Result struct {
	Match   bool   `json:"match"`
	Local   string `json:"local"`
	OnChain string `json:"onChain"`
}

// State is one verification run. A State is never mutated by Transition; each
// event yields a new value.
type State struct {
	RunID   string
	Stage   Stage
	Input   submissions.SubmissionInput
	Local   crypto.Fingerprint
	OnChain onchain.Record
	Result  *Result
	Steps   []Step
	// Err is set when the run parked on a failed or cancelled stage
	Err error
}

// Parked reports whether the run stopped on a failed stage.
func (s State) Parked() bool {
	return s.Err != nil && s.Stage.Active()
}

// Event drives a state transition.
type Event interface {
	event()
}

// Submit starts a fresh run, discarding any previous one.
type Submit struct {
	RunID string
	Input submissions.SubmissionInput
}

// LocalComputed completes the local step with its fingerprint. The run stays
// on the stage until Advance.
type LocalComputed struct {
	Fingerprint crypto.Fingerprint
}

// OnChainRead completes the on-chain step with the attested record.
type OnChainRead struct {
	Record onchain.Record
}

// Compared completes the comparison step with its result.
type Compared struct {
	Result Result
}

// Advance moves past a completed step: it opens the next stage, or finishes
// the run after the comparison.
type Advance struct{}

// StageFailed parks the run on the current stage.
type StageFailed struct {
	Err error
}

// Cancel parks the run on the current stage as cancelled by the user.
type Cancel struct{}

func (Submit) event()        {}
func (LocalComputed) event() {}
func (OnChainRead) event()   {}
func (Compared) event()      {}
func (Advance) event()       {}
func (StageFailed) event()   {}
func (Cancel) event()        {}

// Transition applies ev to s. Invalid events leave s untouched and return
// ErrInvalidTransition.
func Transition(s State, ev Event) (State, error) {
	if submit, ok := ev.(Submit); ok {
		if err := submit.Input.Validate(); err != nil {
			return s, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return State{
			RunID: submit.RunID,
			Stage: StageComputingLocal,
			Input: submit.Input,
			Steps: []Step{{Stage: StageComputingLocal, Status: StepRunning}},
		}, nil
	}

	if !s.Stage.Active() || s.Err != nil {
		return s, invalid(s, ev)
	}

	next := s
	next.Steps = append([]Step(nil), s.Steps...)

	switch e := ev.(type) {
	case LocalComputed:
		if !s.awaiting(StageComputingLocal) {
			return s, invalid(s, ev)
		}
		next.Local = e.Fingerprint
		next.complete(string(e.Fingerprint))

	case OnChainRead:
		if !s.awaiting(StageReadingOnChain) {
			return s, invalid(s, ev)
		}
		next.OnChain = e.Record
		next.complete(e.Record.Fingerprint)

	case Compared:
		if !s.awaiting(StageComparing) {
			return s, invalid(s, ev)
		}
		result := e.Result
		next.Result = &result
		if result.Match {
			next.complete("match")
		} else {
			next.complete("mismatch")
		}

	case Advance:
		if s.lastStep().Status != StepCompleted {
			return s, invalid(s, ev)
		}
		switch s.Stage {
		case StageComputingLocal:
			next.open(StageReadingOnChain)
		case StageReadingOnChain:
			next.open(StageComparing)
		default:
			next.Stage = StageDone
		}

	case StageFailed:
		err := e.Err
		if err == nil {
			err = errors.New("stage failed")
		}
		next.fail(err)

	case Cancel:
		next.fail(ErrCancelled)

	default:
		return s, invalid(s, ev)
	}

	return next, nil
}

func invalid(s State, ev Event) error {
	if s.Err != nil {
		return fmt.Errorf("%w: %T in parked stage %s", ErrInvalidTransition, ev, s.Stage)
	}
	return fmt.Errorf("%w: %T in stage %s", ErrInvalidTransition, ev, s.Stage)
}

// awaiting reports whether stage is current and its step still running.
func (s State) awaiting(stage Stage) bool {
	return s.Stage == stage && s.lastStep().Status == StepRunning
}

func (s State) lastStep() Step {
	if len(s.Steps) == 0 {
		return Step{Status: StepFailed}
	}
	return s.Steps[len(s.Steps)-1]
}

func (s *State) complete(value string) {
	last := &s.Steps[len(s.Steps)-1]
	last.Status = StepCompleted
	last.Value = value
}

func (s *State) open(stage Stage) {
	s.Stage = stage
	s.Steps = append(s.Steps, Step{Stage: stage, Status: StepRunning})
}

// fail parks the run. A step that already completed keeps its result.
func (s *State) fail(err error) {
	if last := &s.Steps[len(s.Steps)-1]; last.Status == StepRunning {
		last.Status = StepFailed
		last.Err = err
	}
	s.Err = err
}

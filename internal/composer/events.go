package composer

import (
	"github.com/shopspring/decimal"

	"github.com/chilly266futon/orderComposer/internal/domain"
)

type EventKind uint8

const (
	EventDraftChanged EventKind = iota
	EventSubmitted
	EventSubmitFailed
	EventSubmitUnknown
)

func (k EventKind) String() string {
	switch k {
	case EventSubmitted:
		return "submitted"
	case EventSubmitFailed:
		return "error"
	case EventSubmitUnknown:
		return "unknown_outcome"
	default:
		return "draft"
	}
}

// Event is delivered to the Observer after the composer state changed.
// Events raised by concurrent completions may arrive out of order;
// Snapshot.Version orders them.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

type Observer func(Event)

type Snapshot struct {
	Version       uint64
	Pair          domain.TradingPair
	Draft         domain.DraftOrder
	AmountAsset   string
	EstimateAsset string
	Estimating    bool
	Submitting    bool
}

type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeRejected
	OutcomeFailed
	OutcomeInvalid
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "pending"
	}
}

// Estimation tracks one estimate request. Applied and Out are valid once
// Done is closed.
type Estimation struct {
	Seq     uint64
	done    chan struct{}
	applied bool
	out     decimal.Decimal
	err     error
}

func newEstimation(seq uint64) *Estimation {
	return &Estimation{Seq: seq, done: make(chan struct{})}
}

func (e *Estimation) Done() <-chan struct{} { return e.done }

// Applied reports whether the response reached the draft. A superseded
// request is discarded and never applied.
func (e *Estimation) Applied() bool { return e.applied }

func (e *Estimation) Out() decimal.Decimal { return e.out }

func (e *Estimation) Err() error { return e.err }

// Submission tracks one submit attempt.
type Submission struct {
	done    chan struct{}
	outcome Outcome
	code    domain.ErrorKind
}

func newSubmission() *Submission {
	return &Submission{done: make(chan struct{})}
}

func resolvedSubmission(outcome Outcome, code domain.ErrorKind) *Submission {
	s := &Submission{done: make(chan struct{}), outcome: outcome, code: code}
	close(s.done)
	return s
}

func (s *Submission) Done() <-chan struct{} { return s.done }

func (s *Submission) Outcome() Outcome { return s.outcome }

func (s *Submission) Code() domain.ErrorKind { return s.code }

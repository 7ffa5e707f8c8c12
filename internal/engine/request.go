package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/bulkops/internal/access"
	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/selection"
)

// Operator-facing validation messages.
const (
	MsgNoAction      = "Please select an action to perform."
	MsgFormError     = "Form error occurred, please try again."
	MsgNoItems       = "No items selected."
	MsgInvalidConfig = "The action configuration is invalid."
)

// Engine errors.
var (
	ErrNilState     = errors.New("batch state is required")
	ErrNilRequest   = errors.New("execution request is required")
	ErrStepOverflow = errors.New("immediate execution did not finish in one pass")
)

// ValidationError rejects a submission before any processing starts. Message
// is safe to show to the operator.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(msg string, err error) error {
	return &ValidationError{Message: msg, Err: err}
}

// RecordStore materializes records for the engine.
type RecordStore interface {
	selection.RowLoader
	// Load returns the record ref points at, in ref's language and, when set,
	// at ref's revision. Missing records yield selection.ErrRecordNotFound.
	Load(ctx context.Context, ref selection.ItemRef) (selection.Record, error)
}

// AccessChecker decides whether acct may run def on rec.
type AccessChecker interface {
	HasAccess(ctx context.Context, def action.Definition, rec selection.Record, acct action.Account) bool
}

// Submission is what an operator sends to start a run.
type Submission struct {
	ActionID      string
	Configuration action.Configuration
	// Keys are encoded item references of an explicit selection.
	Keys []string
	// SelectAll targets every result of Query instead of Keys.
	SelectAll bool
	Query     *selection.QueryRef
	// ChunkSize overrides the configured size when positive.
	ChunkSize int
	// CaptureList overrides the configured list capture when set.
	CaptureList *bool
	Account     access.Account
}

// Request is the immutable description of one run.
type Request struct {
	ID            string               `json:"id"`
	ActionID      string               `json:"action_id"`
	Configuration action.Configuration `json:"configuration,omitempty"`
	Selection     selection.Selection  `json:"selection"`
	// Source is the listing the selection was made on, if any.
	Source      *selection.QueryRef `json:"source,omitempty"`
	ChunkSize   int                 `json:"chunk_size"`
	CaptureList bool                `json:"capture_list"`
	Account     access.Account      `json:"account"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Phase is the state of a run.
type Phase string

// Run phases.
const (
	PhaseNotStarted Phase = "not_started"
	PhaseListing    Phase = "listing"
	PhaseProcessing Phase = "processing"
	PhaseFinished   Phase = "finished"
)

// State is everything carried between invocations of a run.
type State struct {
	Phase      Phase        `json:"phase"`
	Listing    batch.Cursor `json:"listing"`
	Processing batch.Cursor `json:"processing"`
	// Captured holds the frozen item list once listing finished.
	Captured     []selection.ItemRef `json:"captured,omitempty"`
	ListCaptured bool                `json:"list_captured,omitempty"`
	// Invalid counts submitted keys that could not be decoded.
	Invalid  int         `json:"invalid,omitempty"`
	Executed int         `json:"executed"`
	Tally    tally.Tally `json:"tally"`
}

// NewState returns the state of a run that has not started.
func NewState() State {
	return State{Phase: PhaseNotStarted, Tally: tally.Tally{}}
}

// Done reports whether the run finished.
func (s State) Done() bool {
	return s.Phase == PhaseFinished
}

// Report describes the progress of s.
func (s State) Report() batch.Report {
	if s.Phase == PhaseListing {
		return batch.NewReport(batch.PhaseListing, s.Listing)
	}
	return batch.NewReport(batch.PhaseProcessing, s.Processing)
}

// clone copies the mutable parts of s so a step never writes through to its
// input.
func (s State) clone() State {
	out := s
	out.Captured = append([]selection.ItemRef(nil), s.Captured...)
	out.Tally = s.Tally.Clone()
	if s.Listing.Total != nil {
		n := *s.Listing.Total
		out.Listing.Total = &n
	}
	if s.Processing.Total != nil {
		n := *s.Processing.Total
		out.Processing.Total = &n
	}
	return out
}

// Title is the heading shown while a run is in progress.
func Title(def action.Definition) string {
	return fmt.Sprintf("Performing %s on selected entities.", def.Label)
}

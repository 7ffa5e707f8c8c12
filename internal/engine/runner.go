package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/selection"
)

// StepResult is the outcome of one invocation.
type StepResult struct {
	// State is the state to persist for the next invocation.
	State  State
	Report batch.Report
	// Message repeats Report.Message, or the summary once the run is done.
	Message string
	Done    bool
}

// Runner drives a run one chunk per invocation. The state passed in is never
// modified; callers persist the returned state and pass it back next time.
type Runner struct {
	p *Processor
}

// NewRunner returns a runner over p.
func NewRunner(p *Processor) *Runner {
	return &Runner{p: p}
}

// RunOneStep performs the next unit of work of req.
//
// A run that has not started is initialized and its first chunk handled in
// the same invocation. While listing, each invocation captures one window of
// item references; while processing, each invocation executes the action on
// one chunk. On error the returned state is the input state, so the step can
// be retried from the last persisted cursor.
func (r *Runner) RunOneStep(ctx context.Context, req Request, state State) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{State: state}, err
	}
	if state.Tally == nil {
		state.Tally = tally.Tally{}
	}
	if state.Phase == "" {
		state.Phase = PhaseNotStarted
	}

	st := state
	if st.Phase == PhaseNotStarted {
		var err error
		st, err = r.p.Initialize(ctx, req, st)
		if err != nil {
			return StepResult{State: state}, err
		}
	}

	var err error
	switch st.Phase {
	case PhaseListing:
		st, err = r.listStep(ctx, req, st)
	case PhaseProcessing:
		st, err = r.processStep(ctx, req, st)
	case PhaseFinished:
	default:
		err = fmt.Errorf("unknown phase %q", st.Phase)
	}
	if err != nil {
		return StepResult{State: state}, err
	}
	return result(st), nil
}

func result(st State) StepResult {
	res := StepResult{State: st, Report: st.Report(), Done: st.Done()}
	res.Message = res.Report.Message
	if res.Done {
		res.Message = tally.Summarize(st.Tally).Text
	}
	return res
}

func (r *Runner) listStep(ctx context.Context, req Request, state State) (State, error) {
	st := state.clone()
	size := req.ChunkSize

	offset, next := batch.NextWindow(st.Listing, size)
	chunk, err := r.p.resolver.ResolveChunk(ctx, req.Selection, offset, size)
	if err != nil {
		return state, fmt.Errorf("listing chunk %d: %w", st.Listing.ChunkIndex, err)
	}
	st.Captured = append(st.Captured, chunk.Items...)
	st.Tally.Add(tally.LabelNotFound, chunk.Unresolved)
	st.Listing = next.Advance(chunk.Size())

	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "list").
		Str("request_id", req.ID).
		Int("offset", offset).
		Int("captured", len(chunk.Items)).
		Int("unresolved", chunk.Unresolved).
		Msg("listing window captured")

	if !chunk.Exhausted && !st.Listing.Exhausted(offset, size) {
		return st, nil
	}

	st.ListCaptured = true
	if len(st.Captured) == 0 {
		st.Phase = PhaseFinished
		st.Processing = st.Processing.WithTotal(0)
	} else {
		st.Phase = PhaseProcessing
		st.Processing = batch.Cursor{}.WithTotal(len(st.Captured))
	}
	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Str("request_id", req.ID).
		Int("captured", len(st.Captured)).
		Str("phase", string(st.Phase)).
		Msg("item list captured")
	return st, nil
}

func (r *Runner) processStep(ctx context.Context, req Request, state State) (State, error) {
	st := state.clone()
	size := req.ChunkSize
	chunkIndex := st.Processing.ChunkIndex

	sel := req.Selection
	if st.ListCaptured {
		sel = selection.Explicit(st.Captured...)
	}

	offset, next := batch.NextWindow(st.Processing, size)
	chunk, err := r.p.resolver.ResolveChunk(ctx, sel, offset, size)
	if err != nil {
		return state, fmt.Errorf("resolving chunk %d: %w", chunkIndex, err)
	}

	def, inst, err := r.p.registry.New(req.ActionID)
	switch {
	case errors.Is(err, action.ErrNotFound):
		logging.FromContext(ctx).Warn().
			Ctx(ctx).
			Str("component", "engine").
			Str("request_id", req.ID).
			Str("action", req.ActionID).
			Int("chunk_index", chunkIndex).
			Msg("action disappeared, skipping chunk")
		st.Tally.Add(tally.LabelActionNotFound, chunk.Size())
	case err != nil:
		return state, fmt.Errorf("instantiating %s: %w", req.ActionID, err)
	default:
		bc := action.BatchContext{
			RequestID:  req.ID,
			ActionID:   req.ActionID,
			ChunkIndex: chunkIndex,
			Processed:  st.Processing.Processed,
			Total:      st.Processing.Total,
			Rows:       chunk.Rows,
		}
		res, chunkErr := r.p.ProcessChunk(ctx, req, def, inst, chunk, bc)
		if chunkErr != nil {
			return state, fmt.Errorf("processing chunk %d: %w", chunkIndex, chunkErr)
		}
		st.Tally = st.Tally.Merge(res.Tally)
		st.Executed += res.Executed
	}

	st.Processing = next.Advance(chunk.Size())
	if chunk.Exhausted || st.Processing.Exhausted(offset, size) {
		st.Phase = PhaseFinished
		logging.FromContext(ctx).Info().
			Ctx(ctx).
			Str("component", "engine").
			Str("request_id", req.ID).
			Int("processed", st.Processing.Processed).
			Int("executed", st.Executed).
			Msg("batch finished")
	}
	return st, nil
}

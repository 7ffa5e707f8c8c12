package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rshade/bulkops/internal/access"
	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/selection"
)

// Options tune how submissions become requests.
type Options struct {
	DefaultChunkSize int
	MaxChunkSize     int
	CaptureList      bool
	// Preconfiguration holds per-action settings that fill keys the operator
	// left out.
	Preconfiguration map[string]action.Configuration
	// ActionChunkSize overrides the chunk size of individual actions.
	ActionChunkSize map[string]int
	// Offered limits which actions may be submitted. Only its Include and
	// Exclude lists apply.
	Offered action.Filter
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultChunkSize: batch.DefaultChunkSize,
		MaxChunkSize:     batch.MaxChunkSize,
		CaptureList:      true,
	}
}

// Processor turns submissions into requests and processes single chunks. It
// holds no per-run state.
type Processor struct {
	registry *action.Registry
	records  RecordStore
	resolver *selection.Resolver
	access   AccessChecker
	opts     Options
	now      func() time.Time
}

// NewProcessor wires a processor. query may be nil when only explicit
// selections are used; checker defaults to access.PermissionChecker.
func NewProcessor(
	registry *action.Registry,
	records RecordStore,
	query selection.QueryEngine,
	checker AccessChecker,
	opts Options,
) *Processor {
	if checker == nil {
		checker = access.PermissionChecker{}
	}
	if opts.DefaultChunkSize <= 0 {
		opts.DefaultChunkSize = batch.DefaultChunkSize
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = batch.MaxChunkSize
	}
	return &Processor{
		registry: registry,
		records:  records,
		resolver: selection.NewResolver(query, records),
		access:   checker,
		opts:     opts,
		now:      time.Now,
	}
}

// Registry returns the action registry the processor resolves ids against.
func (p *Processor) Registry() *action.Registry {
	return p.registry
}

// Submit validates a submission and builds the request and initial state of
// a new run.
//
// Validation failures are returned as *ValidationError. Keys that cannot be
// decoded do not fail the submission; they are tallied as invalid and count
// as processed.
func (p *Processor) Submit(ctx context.Context, sub Submission) (Request, State, error) {
	log := logging.FromContext(ctx)

	actionID := strings.TrimSpace(sub.ActionID)
	if actionID == "" {
		return Request{}, State{}, invalid(MsgNoAction, nil)
	}
	if !p.opts.Offered.Offers(actionID) {
		return Request{}, State{}, invalid(MsgFormError, fmt.Errorf("%w: %s", action.ErrNotOffered, actionID))
	}
	def, inst, err := p.registry.New(actionID)
	if err != nil {
		return Request{}, State{}, invalid(MsgFormError, err)
	}

	var defaults action.Configuration
	if c, ok := inst.(action.Configurable); ok {
		defaults = c.DefaultConfiguration()
	}
	cfg := action.MergeConfiguration(sub.Configuration, p.opts.Preconfiguration[actionID], defaults)
	if c, ok := inst.(action.Configurable); ok {
		if vErr := c.ValidateConfiguration(cfg); vErr != nil {
			return Request{}, State{}, invalid(MsgInvalidConfig, vErr)
		}
	}

	chunkSize := p.chunkSizeFor(def, sub.ChunkSize)
	if sizeErr := batch.ValidateChunkSize(chunkSize, p.opts.MaxChunkSize); sizeErr != nil {
		return Request{}, State{}, invalid(MsgFormError, sizeErr)
	}

	req := Request{
		ID:            logging.NewID(),
		ActionID:      def.ID,
		Configuration: cfg,
		Source:        sub.Query,
		ChunkSize:     chunkSize,
		CaptureList:   p.opts.CaptureList,
		Account:       sub.Account,
		CreatedAt:     p.now().UTC(),
	}
	if sub.CaptureList != nil {
		req.CaptureList = *sub.CaptureList
	}

	state := NewState()
	if sub.SelectAll {
		if sub.Query == nil {
			return Request{}, State{}, invalid(MsgNoItems, selection.ErrNoQuery)
		}
		req.Selection = selection.AllMatching(*sub.Query)
	} else {
		refs, bad := selection.DecodeKeys(sub.Keys)
		if len(refs) == 0 {
			return Request{}, State{}, invalid(MsgNoItems, selection.ErrNoItems)
		}
		req.Selection = selection.Explicit(refs...)
		state.Invalid = len(bad)
		state.Tally.Add(tally.LabelInvalidKey, len(bad))
		if len(bad) > 0 {
			log.Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "submit").
				Int("invalid_keys", len(bad)).
				Msg("ignoring undecodable item keys")
		}
	}

	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "submit").
		Str("request_id", req.ID).
		Str("action", req.ActionID).
		Str("selection", string(req.Selection.Kind)).
		Int("chunk_size", req.ChunkSize).
		Bool("capture_list", req.CaptureList).
		Msg("batch submitted")

	return req, state, nil
}

func (p *Processor) chunkSizeFor(def action.Definition, requested int) int {
	switch {
	case requested > 0:
		return requested
	case p.opts.ActionChunkSize[def.ID] > 0:
		return p.opts.ActionChunkSize[def.ID]
	case def.ChunkSize > 0:
		return def.ChunkSize
	default:
		return p.opts.DefaultChunkSize
	}
}

// Initialize moves a run out of PhaseNotStarted: it picks the first phase and
// records totals that are cheap to know.
func (p *Processor) Initialize(ctx context.Context, req Request, state State) (State, error) {
	if state.Phase != PhaseNotStarted {
		return state, nil
	}
	if err := req.Selection.Validate(); err != nil {
		return state, fmt.Errorf("initializing %s: %w", req.ID, err)
	}
	st := state.clone()

	total, known, err := p.resolver.Total(ctx, req.Selection)
	if err != nil {
		return state, fmt.Errorf("initializing %s: %w", req.ID, err)
	}

	if req.Selection.Kind == selection.KindAllMatching && req.CaptureList {
		st.Phase = PhaseListing
		if known {
			st.Listing = st.Listing.WithTotal(total)
		}
	} else {
		st.Phase = PhaseProcessing
		if known {
			st.Processing = st.Processing.WithTotal(total + st.Invalid)
		}
		st.Processing = st.Processing.Advance(st.Invalid)
	}

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "initialize").
		Str("request_id", req.ID).
		Str("phase", string(st.Phase)).
		Bool("total_known", known).
		Int("total", total).
		Msg("batch initialized")
	return st, nil
}

// ChunkResult is the outcome of one processed chunk.
type ChunkResult struct {
	Tally    tally.Tally
	Executed int
	Skipped  int
}

// ProcessChunk loads, filters and executes one chunk.
//
// Records failing the type check or the access check, in that order, are
// tallied with a skip label and left out of the action call. Records that no
// longer exist are tallied as not found. Every position of the chunk
// therefore contributes exactly one outcome, except that the action decides
// the labels of the records it ran on.
//
// Errors from the action and from the record store propagate unchanged.
func (p *Processor) ProcessChunk(
	ctx context.Context,
	req Request,
	def action.Definition,
	inst action.Action,
	chunk selection.Chunk,
	bc action.BatchContext,
) (ChunkResult, error) {
	log := logging.FromContext(ctx)
	res := ChunkResult{Tally: tally.Tally{}}

	records := chunk.Records
	if records == nil {
		records = make([]selection.Record, 0, len(chunk.Items))
		for _, ref := range chunk.Items {
			rec, err := p.records.Load(ctx, ref)
			if errors.Is(err, selection.ErrRecordNotFound) {
				log.Warn().
					Ctx(ctx).
					Str("component", "engine").
					Str("request_id", req.ID).
					Str("item", ref.String()).
					Msg("selected item no longer exists")
				res.Tally.Add(tally.LabelNotFound, 1)
				res.Skipped++
				continue
			}
			if err != nil {
				return ChunkResult{}, fmt.Errorf("loading %s: %w", ref, err)
			}
			records = append(records, rec)
		}
	}
	res.Tally.Add(tally.LabelNotFound, chunk.Unresolved)
	res.Skipped += chunk.Unresolved

	survivors := make([]selection.Record, 0, len(records))
	for _, rec := range records {
		if !def.AppliesTo(rec.EntityTypeID()) {
			res.Tally.Add(tally.LabelTypeNotSupported, 1)
			res.Skipped++
			continue
		}
		if !p.hasAccess(ctx, req, def, inst, rec) {
			res.Tally.Add(tally.LabelAccessDenied, 1)
			res.Skipped++
			continue
		}
		survivors = append(survivors, rec)
	}

	if len(survivors) == 0 {
		return res, nil
	}

	if setter, ok := inst.(action.ContextSetter); ok {
		if !def.PassRows {
			bc.Rows = nil
		}
		setter.SetContext(bc)
	}
	if setter, ok := inst.(action.SourceListingSetter); ok && def.PassView {
		setter.SetSourceListing(req.Source)
	}

	labels, err := inst.ExecuteMany(ctx, survivors, req.Configuration)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("action %s: %w", def.ID, err)
	}
	if len(labels) == 0 {
		res.Tally.Add(def.Label, len(survivors))
	} else {
		res.Tally.AddAll(labels)
	}
	res.Executed = len(survivors)

	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "process_chunk").
		Str("request_id", req.ID).
		Int("chunk_index", bc.ChunkIndex).
		Int("executed", res.Executed).
		Int("skipped", res.Skipped).
		Msg("chunk processed")
	return res, nil
}

func (p *Processor) hasAccess(
	ctx context.Context,
	req Request,
	def action.Definition,
	inst action.Action,
	rec selection.Record,
) bool {
	if def.HasOwnRequirementCheck {
		if a, ok := inst.(action.Accessor); ok {
			return a.Access(ctx, rec, req.Account)
		}
	}
	return p.access.HasAccess(ctx, def, rec, req.Account)
}

// ImmediateResult is the outcome of an unbatched run.
type ImmediateResult struct {
	Request Request
	State   State
	Summary tally.Summary
	Message string
}

// ExecuteImmediate runs a small selection in a single pass without a
// persisted cursor.
func (p *Processor) ExecuteImmediate(ctx context.Context, sub Submission) (ImmediateResult, error) {
	capture := false
	sub.CaptureList = &capture
	req, state, err := p.Submit(ctx, sub)
	if err != nil {
		return ImmediateResult{}, err
	}
	req.ChunkSize = 0

	runner := NewRunner(p)
	step, err := runner.RunOneStep(ctx, req, state)
	if err != nil {
		return ImmediateResult{}, err
	}
	if !step.Done {
		return ImmediateResult{}, ErrStepOverflow
	}

	def, defErr := p.registry.Get(req.ActionID)
	label := req.ActionID
	if defErr == nil {
		label = def.Label
	}
	return ImmediateResult{
		Request: req,
		State:   step.State,
		Summary: tally.Summarize(step.State.Tally),
		Message: tally.Applied(label, step.State.Executed),
	}, nil
}

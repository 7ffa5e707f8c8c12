package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/access"
	"github.com/rshade/bulkops/internal/action"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/selection"
)

var admin = access.Account{ID: "admin", Admin: true}

type harness struct {
	records *memRecords
	reg     *action.Registry
	proc    *Processor
	runner  *Runner
	act     *recorder
}

func newHarness(t *testing.T, checker AccessChecker, nodes ...node) *harness {
	t.Helper()
	h := &harness{records: newMemRecords(nodes...), reg: action.NewRegistry(), act: &recorder{}}
	register(h.reg, action.Definition{ID: "label", Label: "label"}, h.act)
	h.proc = NewProcessor(h.reg, h.records, h.records, checker, DefaultOptions())
	h.runner = NewRunner(h.proc)
	return h
}

// drive runs until done and returns every step result.
func drive(t *testing.T, r *Runner, req Request, st State) []StepResult {
	t.Helper()
	var steps []StepResult
	for range 100 {
		res, err := r.RunOneStep(context.Background(), req, st)
		require.NoError(t, err)
		steps = append(steps, res)
		if res.Done {
			return steps
		}
		st = res.State
	}
	t.Fatal("run never finished")
	return nil
}

func TestExplicitTwoInvocations(t *testing.T) {
	nodes := pages(3)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), ChunkSize: 2, Account: admin,
	})
	require.NoError(t, err)

	steps := drive(t, h.runner, req, st)
	require.Len(t, steps, 2)
	assert.False(t, steps[0].Done)
	assert.True(t, steps[1].Done)
	assert.Equal(t, [][]string{{"1", "2"}, {"3"}}, h.act.calls)
	assert.Equal(t, tally.Tally{"label": 3}, steps[1].State.Tally)
	assert.Equal(t, "label operation performed on 3 results.", steps[1].Message)
	assert.Equal(t, "Processed 2 of 3 entities.", steps[0].Message)
}

func TestTypeFilter(t *testing.T) {
	nodes := []node{{typ: "page", id: "1", lang: "en"}, {typ: "article", id: "2", lang: "en"}}
	h := newHarness(t, nil, nodes...)
	register(h.reg, action.Definition{ID: "page_only", Label: "Action label", EntityType: "page"}, h.act)

	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "page_only", Keys: keysFor(nodes...), Account: admin,
	})
	require.NoError(t, err)
	steps := drive(t, h.runner, req, st)

	final := steps[len(steps)-1].State
	assert.Equal(t, tally.Tally{"Action label": 1, tally.LabelTypeNotSupported: 1}, final.Tally)
	assert.Equal(t, [][]string{{"1"}}, h.act.calls)
}

func TestAccessFilter(t *testing.T) {
	nodes := pages(3)
	h := newHarness(t, denyIDs{"2": true}, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), Account: admin,
	})
	require.NoError(t, err)
	steps := drive(t, h.runner, req, st)

	final := steps[len(steps)-1].State
	assert.Equal(t, 1, final.Tally[tally.LabelAccessDenied])
	assert.Equal(t, [][]string{{"1", "3"}}, h.act.calls)
	assert.Equal(t, 2, final.Executed)
}

func TestTypeCheckPrecedesAccessCheck(t *testing.T) {
	nodes := []node{{typ: "article", id: "2", lang: "en"}}
	h := newHarness(t, denyIDs{"2": true}, nodes...)
	register(h.reg, action.Definition{ID: "page_only", EntityType: "page"}, h.act)

	req, st, err := h.proc.Submit(context.Background(), Submission{ActionID: "page_only", Keys: keysFor(nodes...)})
	require.NoError(t, err)
	steps := drive(t, h.runner, req, st)
	assert.Equal(t, tally.Tally{tally.LabelTypeNotSupported: 1}, steps[len(steps)-1].State.Tally)
}

func TestAllMatchingThreeInvocations(t *testing.T) {
	h := newHarness(t, nil, pages(25)...)
	capture := false
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", SelectAll: true, Query: &selection.QueryRef{View: "content"},
		ChunkSize: 10, CaptureList: &capture, Account: admin,
	})
	require.NoError(t, err)

	steps := drive(t, h.runner, req, st)
	require.Len(t, steps, 3)
	var processed []int
	for i, s := range steps {
		processed = append(processed, s.State.Processing.Processed)
		assert.Equal(t, i == 2, s.Done)
		assert.True(t, s.Report.Determinate)
	}
	assert.Equal(t, []int{10, 20, 25}, processed)
	assert.Equal(t, 3, h.records.executes)
	assert.Equal(t, 1.0, steps[2].Report.Fraction)
}

func TestAllMatchingUnknownTotal(t *testing.T) {
	h := newHarness(t, nil, pages(25)...)
	h.records.countKnown = false
	capture := false
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", SelectAll: true, Query: &selection.QueryRef{View: "content"},
		ChunkSize: 10, CaptureList: &capture, Account: admin,
	})
	require.NoError(t, err)

	steps := drive(t, h.runner, req, st)
	require.Len(t, steps, 3)
	assert.False(t, steps[0].Report.Determinate)
	assert.Nil(t, steps[0].State.Processing.Total)
	assert.Equal(t, "Processed 10 entities.", steps[0].Message)
	assert.Equal(t, 25, steps[2].State.Processing.Processed)
}

func TestAllMatchingWithListCapture(t *testing.T) {
	h := newHarness(t, nil, pages(25)...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", SelectAll: true, Query: &selection.QueryRef{View: "content"},
		ChunkSize: 10, Account: admin,
	})
	require.NoError(t, err)
	require.True(t, req.CaptureList)

	first, err := h.runner.RunOneStep(context.Background(), req, st)
	require.NoError(t, err)
	assert.Equal(t, PhaseListing, first.State.Phase)
	assert.Equal(t, "Prepared 10 of 25 entities for processing.", first.Message)

	// Records deleted after capture are skipped, not retargeted.
	h.records.deleted["5"] = true
	h.records.deleted["8"] = true

	steps := append([]StepResult{first}, drive(t, h.runner, req, first.State)...)
	require.Len(t, steps, 6)
	assert.Equal(t, PhaseProcessing, steps[2].State.Phase)
	assert.True(t, steps[2].State.ListCaptured)
	assert.Len(t, steps[2].State.Captured, 25)

	final := steps[5].State
	assert.Equal(t, tally.Tally{"label": 23, tally.LabelNotFound: 2}, final.Tally)
	assert.Equal(t, 25, final.Processing.Processed)
	assert.Equal(t, 3, h.records.executes)
}

func TestLabelsFromAction(t *testing.T) {
	nodes := pages(6)
	h := newHarness(t, nil, nodes...)
	h.act.labels = func(recs []selection.Record) []string {
		out := make([]string, len(recs))
		for i, rec := range recs {
			if rec.ID() == "2" || rec.ID() == "5" {
				out[i] = "label2"
			} else {
				out[i] = "label1"
			}
		}
		return out
	}
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), ChunkSize: 4, Account: admin,
	})
	require.NoError(t, err)
	steps := drive(t, h.runner, req, st)
	assert.Equal(t, "Operations performed: label1 (4), label2 (2).", steps[len(steps)-1].Message)
}

func TestTallyConservation(t *testing.T) {
	nodes := append(pages(7), node{typ: "article", id: "a", lang: "en"})
	keys := append(keysFor(nodes...), selection.EncodeKey(selection.NewItemRef("en", "page", "404")))

	for _, size := range []int{1, 2, 3, 5, 9, 50} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			h := newHarness(t, denyIDs{"3": true, "6": true}, nodes...)
			register(h.reg, action.Definition{ID: "pages", Label: "Done", EntityType: "page"}, h.act)
			req, st, err := h.proc.Submit(context.Background(), Submission{
				ActionID: "pages", Keys: keys, ChunkSize: size, Account: admin,
			})
			require.NoError(t, err)

			prev := 0
			for range 100 {
				res, stepErr := h.runner.RunOneStep(context.Background(), req, st)
				require.NoError(t, stepErr)
				got := res.State.Processing
				assert.GreaterOrEqual(t, got.Processed, prev)
				require.NotNil(t, got.Total)
				assert.LessOrEqual(t, got.Processed, *got.Total)
				prev = got.Processed
				st = res.State
				if res.Done {
					break
				}
			}
			require.True(t, st.Done())
			assert.Equal(t, tally.Tally{
				"Done":                      5,
				tally.LabelAccessDenied:     2,
				tally.LabelTypeNotSupported: 1,
				tally.LabelNotFound:         1,
			}, st.Tally)
			assert.Equal(t, len(keys), st.Tally.Total())
			assert.Equal(t, 9, st.Processing.Processed)
		})
	}
}

func TestRunOneStepDoesNotMutateInput(t *testing.T) {
	nodes := pages(4)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), ChunkSize: 2, Account: admin,
	})
	require.NoError(t, err)

	first, err := h.runner.RunOneStep(context.Background(), req, st)
	require.NoError(t, err)
	snapshot := first.State.clone()

	_, err = h.runner.RunOneStep(context.Background(), req, first.State)
	require.NoError(t, err)
	assert.Equal(t, snapshot, first.State)

	// Replaying a persisted state repeats the same chunk.
	_, err = h.runner.RunOneStep(context.Background(), req, first.State)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}, {"3", "4"}}, h.act.calls)
}

func TestActionErrorPropagates(t *testing.T) {
	nodes := pages(4)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), ChunkSize: 2, Account: admin,
	})
	require.NoError(t, err)

	first, err := h.runner.RunOneStep(context.Background(), req, st)
	require.NoError(t, err)

	boom := errors.New("boom")
	h.act.err = boom
	res, err := h.runner.RunOneStep(context.Background(), req, first.State)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "processing chunk 1")
	assert.Equal(t, first.State, res.State)

	h.act.err = nil
	res, err = h.runner.RunOneStep(context.Background(), req, res.State)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, tally.Tally{"label": 4}, res.State.Tally)
}

func TestRecordStoreErrorPropagates(t *testing.T) {
	nodes := pages(2)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{ActionID: "label", Keys: keysFor(nodes...)})
	require.NoError(t, err)

	h.records.loadErr = errors.New("database is locked")
	_, err = h.runner.RunOneStep(context.Background(), req, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestActionVanishedBetweenSteps(t *testing.T) {
	nodes := pages(4)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", Keys: keysFor(nodes...), ChunkSize: 2, Account: admin,
	})
	require.NoError(t, err)
	first, err := h.runner.RunOneStep(context.Background(), req, st)
	require.NoError(t, err)

	other := NewRunner(NewProcessor(action.NewRegistry(), h.records, h.records, nil, DefaultOptions()))
	res, err := other.RunOneStep(context.Background(), req, first.State)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, tally.Tally{"label": 2, tally.LabelActionNotFound: 2}, res.State.Tally)
}

func TestCanceledContext(t *testing.T) {
	h := newHarness(t, nil, pages(1)...)
	req, st, err := h.proc.Submit(context.Background(), Submission{ActionID: "label", Keys: keysFor(pages(1)...)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.runner.RunOneStep(ctx, req, st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.act.calls)
}

func TestFinishedStateIsStable(t *testing.T) {
	nodes := pages(1)
	h := newHarness(t, nil, nodes...)
	req, st, err := h.proc.Submit(context.Background(), Submission{ActionID: "label", Keys: keysFor(nodes...)})
	require.NoError(t, err)
	steps := drive(t, h.runner, req, st)

	again, err := h.runner.RunOneStep(context.Background(), req, steps[0].State)
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.Len(t, h.act.calls, 1)
}

func TestEmptyCaptureFinishes(t *testing.T) {
	h := newHarness(t, nil)
	req, st, err := h.proc.Submit(context.Background(), Submission{
		ActionID: "label", SelectAll: true, Query: &selection.QueryRef{View: "content"}, Account: admin,
	})
	require.NoError(t, err)
	res, err := h.runner.RunOneStep(context.Background(), req, st)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "No items were processed.", res.Message)
}

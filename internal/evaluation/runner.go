// Package evaluation runs a model over every row of a design matrix.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/ports"

	"golang.org/x/sync/errgroup"
)

// Options bound the parallelism of one run.
type Options struct {
	// Workers is the number of chunks evaluated concurrently.
	Workers int
	// BatchSize is the number of rows per chunk.
	BatchSize int
}

// Runner maps design rows onto an evaluator.
type Runner struct {
	opts   Options
	logger *internal.Logger
}

func NewRunner(opts Options, logger *internal.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Runner{opts: opts, logger: logger.Named("evaluation")}
}

// Run evaluates every row of m. The result is aligned with the row order.
// Any failure discards all results and returns a core.EvaluationError for
// the lowest failing row.
func (r *Runner) Run(ctx context.Context, ev ports.Evaluator, m *gsa.DesignMatrix) ([]gsa.OutputVector, error) {
	rows := make([]param.Assignment, m.Rows())
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return r.RunRows(ctx, ev, rows)
}

// RunRows is Run over an explicit row list.
func (r *Runner) RunRows(ctx context.Context, ev ports.Evaluator, rows []param.Assignment) ([]gsa.OutputVector, error) {
	width := len(ev.Outputs())
	results := make([]gsa.OutputVector, len(rows))
	batch, isBatch := ev.(ports.BatchEvaluator)
	failed := &failure{}

	// Chunks above a known failure stop early; chunks below it keep going so
	// the reported row does not depend on scheduling.
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for start := 0; start < len(rows); start += r.opts.BatchSize {
		if ctx.Err() != nil || failed.above(start) {
			break
		}
		start := start
		end := min(start+r.opts.BatchSize, len(rows))
		g.Go(func() error {
			var err error
			if isBatch {
				err = r.runBatch(ctx, batch, rows, results, start, end, width, failed)
			} else {
				err = r.runChunk(ctx, ev, rows, results, start, end, width, failed)
			}
			var evalErr *core.EvaluationError
			if errors.As(err, &evalErr) {
				failed.record(evalErr)
				return nil
			}
			return err
		})
	}
	waitErr := g.Wait()

	if err := failed.lowest(); err != nil {
		r.logger.Error("evaluation failed at row %d of %d: %v", err.Row, len(rows), err.Cause)
		return nil, err
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%s: %w", core.StageEvaluation, waitErr)
	}
	r.logger.Debug("evaluated %d rows (%d outputs, workers=%d, batch=%d)", len(rows), width, r.opts.Workers, r.opts.BatchSize)
	return results, nil
}

// failure tracks the lowest failing row seen so far.
type failure struct {
	mu  sync.Mutex
	err *core.EvaluationError
}

func (f *failure) record(err *core.EvaluationError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil || err.Row < f.err.Row {
		f.err = err
	}
}

func (f *failure) above(row int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err != nil && row > f.err.Row
}

func (f *failure) lowest() *core.EvaluationError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (r *Runner) runChunk(ctx context.Context, ev ports.Evaluator, rows []param.Assignment, results []gsa.OutputVector, start, end, width int, failed *failure) error {
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if failed.above(i) {
			return nil
		}
		out, err := ev.Evaluate(ctx, rows[i])
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			return core.NewEvaluationError(i, err)
		}
		if err := checkOutput(out, width); err != nil {
			return core.NewEvaluationError(i, err)
		}
		results[i] = out
	}
	return nil
}

func (r *Runner) runBatch(ctx context.Context, ev ports.BatchEvaluator, rows []param.Assignment, results []gsa.OutputVector, start, end, width int, failed *failure) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed.above(start) {
		return nil
	}
	outs, err := ev.EvaluateBatch(ctx, rows[start:end])
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		var evalErr *core.EvaluationError
		if errors.As(err, &evalErr) {
			return core.NewEvaluationError(start+evalErr.Row, evalErr.Cause)
		}
		return core.NewEvaluationError(start, err)
	}
	if len(outs) != end-start {
		return core.NewEvaluationError(start, fmt.Errorf("%w: batch returned %d results for %d rows", core.ErrOutputShape, len(outs), end-start))
	}
	for i, out := range outs {
		if err := checkOutput(out, width); err != nil {
			return core.NewEvaluationError(start+i, err)
		}
		results[start+i] = out
	}
	return nil
}

func checkOutput(out gsa.OutputVector, width int) error {
	if len(out) != width {
		return fmt.Errorf("%w: got %d values, want %d", core.ErrOutputShape, len(out), width)
	}
	for j, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("output %d is not finite (%v)", j, v)
		}
	}
	return nil
}

// Func adapts a plain function into an Evaluator.
type Func struct {
	Names []string
	Fn    func(ctx context.Context, a param.Assignment) (gsa.OutputVector, error)
}

func (f Func) Outputs() []string { return append([]string(nil), f.Names...) }

func (f Func) Evaluate(ctx context.Context, a param.Assignment) (gsa.OutputVector, error) {
	return f.Fn(ctx, a)
}

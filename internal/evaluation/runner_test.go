package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/param"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedRows(t *testing.T, n int) []param.Assignment {
	t.Helper()
	layout, err := param.NewLayout([]string{"i"})
	require.NoError(t, err)
	rows := make([]param.Assignment, n)
	for i := range rows {
		a, err := param.NewAssignment(layout, []float64{float64(i)})
		require.NoError(t, err)
		rows[i] = a
	}
	return rows
}

func echo() Func {
	return Func{
		Names: []string{"y", "y2"},
		Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
			v := a.MustValue("i")
			return gsa.OutputVector{v, 2 * v}, nil
		},
	}
}

func TestRunRows_PreservesOrder(t *testing.T) {
	r := NewRunner(Options{Workers: 8, BatchSize: 7}, nil)
	rows := indexedRows(t, 500)

	out, err := r.RunRows(context.Background(), echo(), rows)
	require.NoError(t, err)
	require.Len(t, out, 500)
	for i, v := range out {
		assert.Equal(t, gsa.OutputVector{float64(i), 2 * float64(i)}, v)
	}
}

func TestRunRows_FailureNamesRowAndDiscardsResults(t *testing.T) {
	r := NewRunner(Options{Workers: 4, BatchSize: 64}, nil)
	rows := indexedRows(t, 2000)
	boom := errors.New("solver diverged")

	ev := Func{
		Names: []string{"y"},
		Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
			if a.MustValue("i") == 37 {
				return nil, boom
			}
			return gsa.OutputVector{1}, nil
		},
	}

	out, err := r.RunRows(context.Background(), ev, rows)
	require.Error(t, err)
	assert.Nil(t, out)

	row, ok := core.FailedRow(err)
	require.True(t, ok)
	assert.Equal(t, 37, row)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, core.ErrEvaluation)
}

func TestRunRows_ReportsLowestFailingRow(t *testing.T) {
	r := NewRunner(Options{Workers: 4, BatchSize: 10}, nil)
	rows := indexedRows(t, 100)

	ev := Func{
		Names: []string{"y"},
		Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
			i := int(a.MustValue("i"))
			if i == 15 || i == 5 {
				return nil, fmt.Errorf("bad row %d", i)
			}
			return gsa.OutputVector{1}, nil
		},
	}

	_, err := r.RunRows(context.Background(), ev, rows)
	row, ok := core.FailedRow(err)
	require.True(t, ok)
	assert.Equal(t, 5, row)
}

func TestRunRows_OutputShapeMismatch(t *testing.T) {
	r := NewRunner(Options{Workers: 2, BatchSize: 4}, nil)
	ev := Func{
		Names: []string{"a", "b"},
		Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
			if a.MustValue("i") == 3 {
				return gsa.OutputVector{1}, nil
			}
			return gsa.OutputVector{1, 2}, nil
		},
	}

	_, err := r.RunRows(context.Background(), ev, indexedRows(t, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrOutputShape)
	row, _ := core.FailedRow(err)
	assert.Equal(t, 3, row)
}

func TestRunRows_NonFiniteOutputFails(t *testing.T) {
	r := NewRunner(Options{Workers: 1, BatchSize: 4}, nil)
	ev := Func{
		Names: []string{"y"},
		Fn: func(_ context.Context, a param.Assignment) (gsa.OutputVector, error) {
			return gsa.OutputVector{1 / (a.MustValue("i") - 2)}, nil
		},
	}
	_, err := r.RunRows(context.Background(), ev, indexedRows(t, 4))
	row, ok := core.FailedRow(err)
	require.True(t, ok)
	assert.Equal(t, 2, row)
}

func TestRunRows_Cancelled(t *testing.T) {
	r := NewRunner(Options{Workers: 2, BatchSize: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunRows(ctx, echo(), indexedRows(t, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, core.IsEvaluationError(err))
}

type batchEcho struct {
	calls  atomic.Int32
	failAt int
}

func (b *batchEcho) Outputs() []string { return []string{"y"} }

func (b *batchEcho) Evaluate(ctx context.Context, a param.Assignment) (gsa.OutputVector, error) {
	panic("batch evaluator should not be called row by row")
}

func (b *batchEcho) EvaluateBatch(_ context.Context, rows []param.Assignment) ([]gsa.OutputVector, error) {
	b.calls.Add(1)
	out := make([]gsa.OutputVector, len(rows))
	for i, a := range rows {
		v := a.MustValue("i")
		if int(v) == b.failAt {
			return nil, core.NewEvaluationError(i, errors.New("batch row failed"))
		}
		out[i] = gsa.OutputVector{v}
	}
	return out, nil
}

func TestRunRows_UsesBatchEvaluator(t *testing.T) {
	r := NewRunner(Options{Workers: 3, BatchSize: 25}, nil)
	ev := &batchEcho{failAt: -1}

	out, err := r.RunRows(context.Background(), ev, indexedRows(t, 100))
	require.NoError(t, err)
	assert.Equal(t, int32(4), ev.calls.Load())
	assert.Equal(t, gsa.OutputVector{99}, out[99])
}

func TestRunRows_BatchErrorRowIsAbsolute(t *testing.T) {
	r := NewRunner(Options{Workers: 1, BatchSize: 25}, nil)
	ev := &batchEcho{failAt: 60}

	_, err := r.RunRows(context.Background(), ev, indexedRows(t, 100))
	row, ok := core.FailedRow(err)
	require.True(t, ok)
	assert.Equal(t, 60, row)
}

package gsa

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"gosobol/domain/core"
	"gosobol/domain/param"
)

// Float is a float64 that encodes NaN and infinities as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// RunSummary is the persisted and served view of a Run.
type RunSummary struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Seed        uint64            `json:"seed"`
	Scheme      Scheme            `json:"scheme"`
	BaseSamples int               `json:"base_samples"`
	Rows        int               `json:"rows"`
	Fingerprint string            `json:"fingerprint"`
	Parameters  []param.Parameter `json:"parameters"`
	Outputs     []OutputSummary   `json:"outputs"`
	Violations  []ViolationRow    `json:"violations,omitempty"`
	TimingsMS   map[string]int64  `json:"timings_ms,omitempty"`
}

// OutputSummary collects everything known about one output.
type OutputSummary struct {
	Name       string             `json:"name"`
	Mean       Float              `json:"mean"`
	Variance   Float              `json:"variance"`
	Degenerate bool               `json:"degenerate"`
	Ranking    []IndexRow         `json:"ranking"`
	Pairs      []PairRow          `json:"second_order,omitempty"`
	Model      *ModelSummary      `json:"model,omitempty"`
	Comparison *ComparisonSummary `json:"comparison,omitempty"`
}

type IndexRow struct {
	Parameter string `json:"parameter"`
	S1        Float  `json:"s1"`
	ST        Float  `json:"st"`
	S1Conf    Float  `json:"s1_conf"`
	STConf    Float  `json:"st_conf"`
}

type PairRow struct {
	A  string `json:"a"`
	B  string `json:"b"`
	S2 Float  `json:"s2"`
}

type ViolationRow struct {
	Parameter string `json:"parameter"`
	Output    string `json:"output"`
	S1        Float  `json:"s1"`
	ST        Float  `json:"st"`
}

type ModelSummary struct {
	Strategy     Strategy           `json:"strategy"`
	Retained     []string           `json:"retained"`
	Fixed        map[string]float64 `json:"fixed"`
	CumulativeS1 Float              `json:"cumulative_s1"`
	Reached      bool               `json:"reached"`
	Expression   string             `json:"expression"`
}

type ComparisonSummary struct {
	Samples           int   `json:"samples"`
	ExplainedVariance Float `json:"explained_variance"`
	MaxAbsDeviation   Float `json:"max_abs_deviation"`
	MeanAbsDeviation  Float `json:"mean_abs_deviation"`
	Correlation       Float `json:"correlation"`
	RankCorrelation   Float `json:"rank_correlation"`
	FullMean          Float `json:"full_mean"`
	SurrogateMean     Float `json:"surrogate_mean"`
}

// Summary flattens the run.
func (r *Run) Summary() RunSummary {
	s := RunSummary{
		ID:          r.ID.String(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Seed:        r.Seed,
		Scheme:      r.Scheme,
		BaseSamples: r.BaseSamples,
		Rows:        r.Rows,
		Fingerprint: r.Fingerprint.String(),
		Parameters:  r.Parameters,
	}
	if len(r.Timings) > 0 {
		s.TimingsMS = make(map[string]int64, len(r.Timings))
		for stage, d := range r.Timings {
			s.TimingsMS[string(stage)] = d.Milliseconds()
		}
	}

	for o, name := range r.Outputs {
		out := OutputSummary{Name: name, Mean: Float(math.NaN()), Variance: Float(math.NaN())}
		if res := r.Result; res != nil {
			out.Degenerate = res.IsDegenerate(name)
			if o < len(res.Variance) {
				out.Variance = Float(res.Variance[o])
			}
			if o < len(res.Mean) {
				out.Mean = Float(res.Mean[o])
			}
			ranked, _ := res.Ranked(name)
			for _, rp := range ranked {
				out.Ranking = append(out.Ranking, IndexRow{
					Parameter: rp.Parameter,
					S1:        Float(rp.S1),
					ST:        Float(rp.ST),
					S1Conf:    Float(rp.S1Conf),
					STConf:    Float(rp.STConf),
				})
			}
			out.Pairs = pairRows(res, name)
		}
		if m, ok := r.Model(name); ok {
			out.Model = &ModelSummary{
				Strategy:     m.Strategy,
				Retained:     m.RetainedParameters(),
				Fixed:        m.Fixed,
				CumulativeS1: Float(m.CumulativeS1),
				Reached:      m.Reached,
				Expression:   m.Describe(),
			}
		}
		if c, ok := r.Report(name); ok {
			out.Comparison = &ComparisonSummary{
				Samples:           c.Samples,
				ExplainedVariance: Float(c.ExplainedVariance),
				MaxAbsDeviation:   Float(c.MaxAbsDeviation),
				MeanAbsDeviation:  Float(c.MeanAbsDeviation),
				Correlation:       Float(c.Correlation),
				RankCorrelation:   Float(c.RankCorrelation),
				FullMean:          Float(c.FullMean),
				SurrogateMean:     Float(c.SurrogateMean),
			}
		}
		s.Outputs = append(s.Outputs, out)
	}

	if r.Result != nil {
		for _, v := range r.Result.Violations {
			s.Violations = append(s.Violations, ViolationRow{Parameter: v.Parameter, Output: v.Output, S1: Float(v.S1), ST: Float(v.ST)})
		}
	}
	return s
}

// pairRows lists defined S2 values, strongest interaction first.
func pairRows(res *SobolResult, output string) []PairRow {
	if res.S2 == nil {
		return nil
	}
	var rows []PairRow
	for i := range res.Parameters {
		for j := i + 1; j < len(res.Parameters); j++ {
			v, ok := res.SecondOrder(res.Parameters[i], res.Parameters[j], output)
			if !ok || math.IsNaN(v) {
				continue
			}
			rows = append(rows, PairRow{A: res.Parameters[i], B: res.Parameters[j], S2: Float(v)})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return math.Abs(float64(rows[i].S2)) > math.Abs(float64(rows[j].S2)) })
	return rows
}

// Output returns the summary of one output.
func (s *RunSummary) Output(name string) (OutputSummary, error) {
	for _, o := range s.Outputs {
		if o.Name == name {
			return o, nil
		}
	}
	return OutputSummary{}, core.NewNotFoundError("output", name)
}

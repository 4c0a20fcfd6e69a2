package simplify

import (
	"gosobol/domain/core"
	"gosobol/domain/gsa"
)

// Criterion decides how many ranked parameters a model retains. Exactly
// one of Cutoff or TopK is set.
type Criterion struct {
	// Cutoff is the share of Var(Y) the retained first-order indices must cover.
	Cutoff *float64
	TopK   *int
}

func CutoffCriterion(c float64) Criterion { return Criterion{Cutoff: &c} }

func TopKCriterion(k int) Criterion { return Criterion{TopK: &k} }

// Validate reports conflicting or missing settings.
func (c Criterion) Validate() error {
	switch {
	case c.Cutoff != nil && c.TopK != nil:
		return core.NewConfigurationError(core.StageSimplify, "criterion", "cutoff and top_k are mutually exclusive")
	case c.Cutoff == nil && c.TopK == nil:
		return core.NewConfigurationError(core.StageSimplify, "criterion", "one of cutoff or top_k is required")
	case c.Cutoff != nil && (*c.Cutoff <= 0 || *c.Cutoff > 1):
		return core.NewConfigurationError(core.StageSimplify, "cutoff", "must be in (0, 1], got %g", *c.Cutoff)
	case c.TopK != nil && *c.TopK < 1:
		return core.NewConfigurationError(core.StageSimplify, "top_k", "must be at least 1, got %d", *c.TopK)
	}
	return nil
}

// Selection is the outcome of applying a Criterion to one output.
type Selection struct {
	Retained     []string
	CumulativeS1 float64
	Reached      bool
}

// Select walks the ranking of output and keeps parameters until the
// criterion is met.
func Select(res *gsa.SobolResult, output string, c Criterion) (Selection, error) {
	if err := c.Validate(); err != nil {
		return Selection{}, err
	}
	ranked, err := res.Ranked(output)
	if err != nil {
		return Selection{}, err
	}

	var sel Selection
	if c.TopK != nil {
		k := min(*c.TopK, len(ranked))
		for _, rp := range ranked[:k] {
			sel.Retained = append(sel.Retained, rp.Parameter)
			sel.CumulativeS1 += gsa.RankKey(rp.S1)
		}
		sel.Reached = true
		return sel, nil
	}

	// A constant output has nothing to explain.
	if res.IsDegenerate(output) {
		sel.Reached = true
		return sel, nil
	}
	for _, rp := range ranked {
		if sel.CumulativeS1 >= *c.Cutoff {
			break
		}
		sel.Retained = append(sel.Retained, rp.Parameter)
		sel.CumulativeS1 += gsa.RankKey(rp.S1)
	}
	sel.Reached = sel.CumulativeS1 >= *c.Cutoff
	return sel, nil
}

package app

import (
	"math"
	"math/rand/v2"
	"sort"

	"gosobol/domain/core"
	"gosobol/domain/inventory"
	"gosobol/domain/param"
	"gosobol/internal"
)

// ZeroPolicy decides what happens to exchanges whose amount is zero, where
// a relative spread would give a zero-width range.
type ZeroPolicy string

const (
	ZeroSkip     ZeroPolicy = "skip"
	ZeroAbsolute ZeroPolicy = "absolute"
	ZeroReject   ZeroPolicy = "reject"
)

// Naming decides how parameter names derive from exchanges.
type Naming string

const (
	// NamingInput names a parameter p_<input>.
	NamingInput Naming = "input"
	// NamingInputOutput names a parameter p_<input>_<output>.
	NamingInputOutput Naming = "input_output"
)

// AssignOptions are all explicit; nothing has a default.
type AssignOptions struct {
	Fraction     float64
	Spread       float64
	Distribution param.Distribution
	ZeroPolicy   ZeroPolicy
	// AbsoluteSpread is the half-width used for zero amounts under ZeroAbsolute.
	AbsoluteSpread float64
	Naming         Naming
	// Seed is the run's root seed.
	Seed uint64
}

// Validate checks the options before anything is selected.
func (o AssignOptions) Validate() error {
	if !(o.Fraction > 0 && o.Fraction <= 1) {
		return core.NewConfigurationError(core.StageAssignment, "fraction", "must be in (0, 1], got %g", o.Fraction)
	}
	if !(o.Spread > 0) || math.IsInf(o.Spread, 0) {
		return core.NewConfigurationError(core.StageAssignment, "spread", "must be positive, got %g", o.Spread)
	}
	switch o.Distribution {
	case param.Uniform, param.Triangle, param.Normal:
	default:
		return core.NewConfigurationError(core.StageAssignment, "distribution", "must be uniform, triangle or normal, got %q", o.Distribution)
	}
	switch o.ZeroPolicy {
	case ZeroSkip, ZeroReject:
	case ZeroAbsolute:
		if !(o.AbsoluteSpread > 0) {
			return core.NewConfigurationError(core.StageAssignment, "absolute_spread", "must be positive when zero_policy is absolute")
		}
	default:
		return core.NewConfigurationError(core.StageAssignment, "zero_policy", "unknown policy %q", o.ZeroPolicy)
	}
	switch o.Naming {
	case NamingInput, NamingInputOutput:
	default:
		return core.NewConfigurationError(core.StageAssignment, "naming", "unknown naming %q", o.Naming)
	}
	return nil
}

// AssignResult lists what an assignment changed.
type AssignResult struct {
	Parameters []param.Parameter
	Exchanges  []*inventory.Exchange
	Eligible   int
	// SkippedZero counts zero amounts left out under ZeroSkip.
	SkippedZero int
}

// UncertaintyService turns a fraction of a host model's exchanges into
// registered parameters.
type UncertaintyService struct {
	logger *internal.Logger
}

func NewUncertaintyService(logger *internal.Logger) *UncertaintyService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &UncertaintyService{logger: logger.Named("assignment")}
}

type planned struct {
	exchange *inventory.Exchange
	param    param.Parameter
}

// Assign selects max(1, round(fraction * eligible)) non-structural
// exchanges, defines one parameter per selection in reg and rewrites each
// selected amount to reference it. Every parameter is planned and checked
// first; on any error neither reg nor the exchanges are modified.
func (s *UncertaintyService) Assign(reg *param.Registry, exchanges []*inventory.Exchange, opts AssignOptions) (*AssignResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if reg.Sealed() {
		return nil, core.NewConfigurationError(core.StageAssignment, "registry", "%v", core.ErrRegistrySealed)
	}

	result := &AssignResult{}
	var eligible []*inventory.Exchange
	for _, ex := range exchanges {
		switch {
		case ex.Structural(), ex.Amount.IsParameter():
			continue
		case ex.Amount.Value() == 0 && opts.ZeroPolicy == ZeroSkip:
			result.SkippedZero++
			continue
		}
		eligible = append(eligible, ex)
	}
	result.Eligible = len(eligible)
	if result.SkippedZero > 0 {
		s.logger.Info("skipped %d zero-valued exchanges", result.SkippedZero)
	}
	if len(eligible) == 0 {
		return nil, core.NewConfigurationError(core.StageAssignment, "exchanges", "no eligible exchanges to parameterize")
	}

	count := max(1, int(math.Round(opts.Fraction*float64(len(eligible)))))
	seed := core.DeriveSeed(opts.Seed, "assignment")
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	chosen := rng.Perm(len(eligible))[:count]
	sort.Ints(chosen)

	plan := make([]planned, 0, count)
	names := make(map[string]string, count)
	for _, i := range chosen {
		ex := eligible[i]
		p, err := s.parameterFor(ex, opts)
		if err != nil {
			return nil, err
		}
		if prev, dup := names[p.Name]; dup || reg.Has(p.Name) {
			if dup {
				s.logger.Error("exchanges %s and %s both map to parameter %q", prev, ex.ID, p.Name)
			}
			return nil, core.NewDuplicateParameterError(core.StageAssignment, p.Name)
		}
		names[p.Name] = ex.ID
		plan = append(plan, planned{exchange: ex, param: p})
	}

	for _, pl := range plan {
		if err := reg.Define(pl.param); err != nil {
			return nil, err
		}
	}
	for _, pl := range plan {
		pl.exchange.Amount = inventory.ParameterRef(pl.param.Name)
		result.Parameters = append(result.Parameters, pl.param)
		result.Exchanges = append(result.Exchanges, pl.exchange)
	}
	s.logger.Info("parameterized %d of %d eligible exchanges (fraction %g, spread %g, %s)",
		count, len(eligible), opts.Fraction, opts.Spread, opts.Distribution)
	return result, nil
}

func (s *UncertaintyService) parameterFor(ex *inventory.Exchange, opts AssignOptions) (param.Parameter, error) {
	v := ex.Amount.Value()
	var low, high, std float64
	switch {
	case v != 0:
		low, high = (1-opts.Spread)*v, (1+opts.Spread)*v
		if low > high {
			low, high = high, low
		}
		std = opts.Spread * math.Abs(v) / 2
	case opts.ZeroPolicy == ZeroAbsolute:
		low, high = -opts.AbsoluteSpread, opts.AbsoluteSpread
		std = opts.AbsoluteSpread / 2
	default:
		return param.Parameter{}, core.NewConfigurationError(core.StageAssignment, ex.ID,
			"exchange %s has a zero amount and zero_policy is reject", ex)
	}

	name := "p_" + ex.Input
	if opts.Naming == NamingInputOutput {
		name += "_" + ex.Output
	}
	p := param.Parameter{
		Name:         param.SanitizeName(name),
		Distribution: opts.Distribution,
		Low:          low,
		High:         high,
		Default:      v,
	}
	if opts.Distribution == param.Normal {
		p.Std = std
	}
	if err := p.Validate(); err != nil {
		return param.Parameter{}, err
	}
	return p, nil
}

// NewParameters assigns uncertainty to exchanges in a fresh registry and
// seals it.
func (s *UncertaintyService) NewParameters(exchanges []*inventory.Exchange, opts AssignOptions) (*param.Registry, *AssignResult, error) {
	reg := param.NewRegistry()
	res, err := s.Assign(reg, exchanges, opts)
	if err != nil {
		return nil, nil, err
	}
	reg.Seal()
	return reg, res, nil
}

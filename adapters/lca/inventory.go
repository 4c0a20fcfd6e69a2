// Package lca is an in-memory life-cycle inventory: activities linked by
// exchanges, elementary flows and characterization methods. It is the host
// model the analysis runs against.
package lca

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gosobol/domain/core"
	"gosobol/domain/gsa"
	"gosobol/domain/inventory"
	"gosobol/domain/param"

	"gonum.org/v1/gonum/mat"
)

// Activity is a process or, when Flow is set, an elementary flow.
type Activity struct {
	Database string
	Name     string
	Unit     string
	Flow     bool
}

// Link is one input of an activity: Amount units of Input per unit produced.
type Link struct {
	Input  string  `yaml:"input"`
	Amount float64 `yaml:"amount"`
}

// Method characterizes flows into one impact score.
type Method struct {
	Name    string
	Unit    string
	Factors map[string]float64
}

// Inventory owns activities and their exchanges. Build it completely
// before the first evaluation; after that only exchange amounts may change.
type Inventory struct {
	activities []Activity
	byName     map[string]int
	exchanges  []*inventory.Exchange
	methods    []Method
	root       string

	once   sync.Once
	layout *structure
	err    error
}

func New() *Inventory {
	return &Inventory{byName: make(map[string]int)}
}

// AddFlow declares an elementary flow (emission or resource).
func (inv *Inventory) AddFlow(database, name, unit string) error {
	return inv.add(Activity{Database: database, Name: name, Unit: unit, Flow: true})
}

// AddActivity declares a process producing one unit of itself and
// consuming the given inputs, which must already exist.
func (inv *Inventory) AddActivity(database, name, unit string, links ...Link) error {
	for _, l := range links {
		if _, ok := inv.byName[l.Input]; !ok {
			return fmt.Errorf("activity %q: unknown input %q", name, l.Input)
		}
	}
	if err := inv.add(Activity{Database: database, Name: name, Unit: unit}); err != nil {
		return err
	}
	inv.exchanges = append(inv.exchanges, &inventory.Exchange{
		ID:     name + ":" + name,
		Input:  name,
		Output: name,
		Amount: inventory.Literal(1),
		Kind:   inventory.Production,
	})
	for _, l := range links {
		kind := inventory.Technosphere
		if inv.activities[inv.byName[l.Input]].Flow {
			kind = inventory.Biosphere
		}
		inv.exchanges = append(inv.exchanges, &inventory.Exchange{
			ID:     name + ":" + l.Input,
			Input:  l.Input,
			Output: name,
			Amount: inventory.Literal(l.Amount),
			Kind:   kind,
		})
	}
	return nil
}

func (inv *Inventory) add(a Activity) error {
	if a.Name == "" {
		return fmt.Errorf("activity name is required")
	}
	if _, dup := inv.byName[a.Name]; dup {
		return fmt.Errorf("activity %q already exists", a.Name)
	}
	inv.byName[a.Name] = len(inv.activities)
	inv.activities = append(inv.activities, a)
	return nil
}

// AddMethod registers an impact method. Factors are keyed by flow name.
func (inv *Inventory) AddMethod(name, unit string, factors map[string]float64) error {
	for flow := range factors {
		i, ok := inv.byName[flow]
		if !ok || !inv.activities[i].Flow {
			return fmt.Errorf("method %q: %q is not a flow", name, flow)
		}
	}
	for _, m := range inv.methods {
		if m.Name == name {
			return fmt.Errorf("method %q already exists", name)
		}
	}
	inv.methods = append(inv.methods, Method{Name: name, Unit: unit, Factors: factors})
	return nil
}

// SetRoot sets the activity whose unit production is assessed.
func (inv *Inventory) SetRoot(name string) error {
	i, ok := inv.byName[name]
	if !ok || inv.activities[i].Flow {
		return fmt.Errorf("root %q is not an activity", name)
	}
	inv.root = name
	return nil
}

func (inv *Inventory) Root() string { return inv.root }

func (inv *Inventory) Activities() []Activity {
	return append([]Activity(nil), inv.activities...)
}

func (inv *Inventory) Methods() []Method {
	return append([]Method(nil), inv.methods...)
}

// Exchanges returns every exchange. The pointers are the inventory's own.
func (inv *Inventory) Exchanges() []*inventory.Exchange {
	return append([]*inventory.Exchange(nil), inv.exchanges...)
}

// ExchangesIn returns the exchanges consumed by activities of one database.
func (inv *Inventory) ExchangesIn(database string) []*inventory.Exchange {
	var out []*inventory.Exchange
	for _, ex := range inv.exchanges {
		if inv.activities[inv.byName[ex.Output]].Database == database {
			out = append(out, ex)
		}
	}
	return out
}

// Outputs names one score per method.
func (inv *Inventory) Outputs() []string {
	names := make([]string, len(inv.methods))
	for i, m := range inv.methods {
		names[i] = m.Name
	}
	return names
}

// structure maps activities onto matrix rows and columns.
type structure struct {
	process map[string]int
	flow    map[string]int
	flows   []string
	root    int
}

func (inv *Inventory) structure() (*structure, error) {
	inv.once.Do(func() {
		if inv.root == "" {
			inv.err = core.NewConfigurationError(core.StageEvaluation, "root", "inventory has no root activity")
			return
		}
		if len(inv.methods) == 0 {
			inv.err = core.NewConfigurationError(core.StageEvaluation, "methods", "inventory has no impact methods")
			return
		}
		s := &structure{process: make(map[string]int), flow: make(map[string]int)}
		for _, a := range inv.activities {
			if a.Flow {
				s.flow[a.Name] = len(s.flows)
				s.flows = append(s.flows, a.Name)
			} else {
				s.process[a.Name] = len(s.process)
			}
		}
		if len(s.flows) == 0 {
			inv.err = core.NewConfigurationError(core.StageEvaluation, "flows", "inventory has no elementary flows")
			return
		}
		s.root = s.process[inv.root]
		inv.layout = s
	})
	return inv.layout, inv.err
}

// Evaluate solves A x = f for a unit of the root and returns C B x per
// method. Parameter references are resolved against a.
func (inv *Inventory) Evaluate(ctx context.Context, a param.Assignment) (gsa.OutputVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := inv.structure()
	if err != nil {
		return nil, err
	}

	np, nf := len(s.process), len(s.flows)
	tech := mat.NewDense(np, np, nil)
	bio := mat.NewDense(nf, np, nil)
	for _, ex := range inv.exchanges {
		v, err := ex.Amount.Resolve(a)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", ex.ID, err)
		}
		col := s.process[ex.Output]
		switch ex.Kind {
		case inventory.Production:
			tech.Set(col, col, tech.At(col, col)+v)
		case inventory.Technosphere:
			row := s.process[ex.Input]
			tech.Set(row, col, tech.At(row, col)-v)
		case inventory.Biosphere:
			row := s.flow[ex.Input]
			bio.Set(row, col, bio.At(row, col)+v)
		}
	}

	demand := mat.NewVecDense(np, nil)
	demand.SetVec(s.root, 1)
	var supply mat.VecDense
	if err := supply.SolveVec(tech, demand); err != nil {
		return nil, fmt.Errorf("solve technosphere: %w", err)
	}
	var emissions mat.VecDense
	emissions.MulVec(bio, &supply)

	out := make(gsa.OutputVector, len(inv.methods))
	for i, m := range inv.methods {
		for f, flow := range s.flows {
			out[i] += m.Factors[flow] * emissions.AtVec(f)
		}
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("method %q: non-finite score", m.Name)
		}
	}
	return out, nil
}

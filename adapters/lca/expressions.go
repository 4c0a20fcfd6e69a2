package lca

import (
	"fmt"
	"sort"
	"strings"

	"gosobol/domain/inventory"
)

// Expressions returns each method's score as a closed form over the
// parameters referenced by exchanges. Only acyclic inventories have one.
func (inv *Inventory) Expressions() (map[string]string, error) {
	s, err := inv.structure()
	if err != nil {
		return nil, err
	}

	production := make(map[string]inventory.Amount)
	consumers := make(map[string][]*inventory.Exchange)
	emitters := make(map[string][]*inventory.Exchange)
	for _, ex := range inv.exchanges {
		switch ex.Kind {
		case inventory.Production:
			production[ex.Output] = ex.Amount
		case inventory.Technosphere:
			consumers[ex.Input] = append(consumers[ex.Input], ex)
		case inventory.Biosphere:
			emitters[ex.Input] = append(emitters[ex.Input], ex)
		}
	}

	// supply[p] is the scaling of process p for one unit of the root:
	// x_p = (f_p + sum_c a_pc x_c) / a_pp.
	supply := make(map[string]string)
	visiting := make(map[string]bool)
	var scale func(p string) (string, error)
	scale = func(p string) (string, error) {
		if e, ok := supply[p]; ok {
			return e, nil
		}
		if visiting[p] {
			return "", fmt.Errorf("inventory has a cycle through %q; no closed form", p)
		}
		visiting[p] = true
		defer delete(visiting, p)

		var terms []string
		if p == inv.root {
			terms = append(terms, "1")
		}
		for _, ex := range consumers[p] {
			x, err := scale(ex.Output)
			if err != nil {
				return "", err
			}
			terms = appendTerm(terms, product(amount(ex.Amount), x))
		}
		e := sum(terms)
		if prod, ok := production[p]; ok && e != "0" && prod.String() != "1" {
			e = "(" + e + ") / " + amount(prod)
		}
		supply[p] = e
		return e, nil
	}

	out := make(map[string]string, len(inv.methods))
	for _, m := range inv.methods {
		var terms []string
		for _, flow := range s.flows {
			cf, ok := m.Factors[flow]
			if !ok || cf == 0 {
				continue
			}
			var flowTerms []string
			for _, ex := range emitters[flow] {
				x, err := scale(ex.Output)
				if err != nil {
					return nil, err
				}
				flowTerms = appendTerm(flowTerms, product(amount(ex.Amount), x))
			}
			if len(flowTerms) == 0 {
				continue
			}
			terms = appendTerm(terms, product(formatNumber(cf), sum(flowTerms)))
		}
		out[m.Name] = sum(terms)
	}
	return out, nil
}

// ParameterNames lists the parameter names the exchanges reference.
func (inv *Inventory) ParameterNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, ex := range inv.exchanges {
		if name := ex.Amount.Parameter(); name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func amount(a inventory.Amount) string {
	if a.IsParameter() {
		return a.Parameter()
	}
	return formatNumber(a.Value())
}

func formatNumber(v float64) string {
	s := inventory.Literal(v).String()
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}

func product(a, b string) string {
	switch {
	case a == "0" || b == "0":
		return "0"
	case a == "1":
		return b
	case b == "1":
		return a
	}
	return group(a) + " * " + group(b)
}

// group parenthesizes anything that is not a single operand.
func group(e string) string {
	if strings.Contains(e, " ") {
		return "(" + e + ")"
	}
	return e
}

func appendTerm(terms []string, t string) []string {
	if t == "0" {
		return terms
	}
	return append(terms, t)
}

func sum(terms []string) string {
	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, " + ")
}

// Package report renders run summaries as terminal tables, Markdown, HTML
// and JSON.
package report

import (
	"fmt"
	"math"
	"strings"

	"gosobol/domain/gsa"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the table format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// tableBuilder wraps a go-pretty writer for one render mode.
type tableBuilder struct {
	writer table.Writer
	mode   Mode
}

func newTable(m Mode, header ...interface{}) *tableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	w.AppendHeader(table.Row(header))
	return &tableBuilder{writer: w, mode: m}
}

func (b *tableBuilder) row(vals ...interface{}) {
	b.writer.AppendRow(table.Row(vals))
}

// alignRight right-aligns the given 1-based columns.
func (b *tableBuilder) alignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	b.writer.SetColumnConfigs(cfgs)
}

func (b *tableBuilder) String() string {
	if b.mode == Markdown {
		return b.writer.RenderMarkdown()
	}
	return b.writer.Render()
}

// Ranking lists the parameters of one output by descending S1. limit <= 0
// lists all of them.
func Ranking(out gsa.OutputSummary, m Mode, limit int) string {
	t := newTable(m, "#", "Parameter", "S1", "±", "ST", "±")
	t.alignRight(1, 3, 4, 5, 6)
	for i, r := range out.Ranking {
		if limit > 0 && i >= limit {
			break
		}
		t.row(i+1, r.Parameter, num(r.S1), num(r.S1Conf), num(r.ST), num(r.STConf))
	}
	return t.String()
}

// Models lists the retained parameters and surrogate of every output.
func Models(s *gsa.RunSummary, m Mode) string {
	t := newTable(m, "Output", "Strategy", "Retained", "ΣS1", "Reached", "Surrogate")
	t.alignRight(4)
	for _, out := range s.Outputs {
		if out.Model == nil {
			continue
		}
		reached := "yes"
		if !out.Model.Reached {
			reached = "no"
		}
		t.row(out.Name, out.Model.Strategy, strings.Join(out.Model.Retained, ", "),
			num(out.Model.CumulativeS1), reached, out.Model.Expression)
	}
	return t.String()
}

// Comparison lists the validation metrics of every output.
func Comparison(s *gsa.RunSummary, m Mode) string {
	t := newTable(m, "Output", "Retained", "Samples", "R²", "Max |Δ|", "Mean |Δ|", "Pearson", "Spearman")
	t.alignRight(2, 3, 4, 5, 6, 7, 8)
	for _, out := range s.Outputs {
		c := out.Comparison
		if c == nil {
			continue
		}
		retained := 0
		if out.Model != nil {
			retained = len(out.Model.Retained)
		}
		t.row(out.Name, retained, c.Samples, num(c.ExplainedVariance),
			num(c.MaxAbsDeviation), num(c.MeanAbsDeviation), num(c.Correlation), num(c.RankCorrelation))
	}
	return t.String()
}

func num(f gsa.Float) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "n/a"
	case v != 0 && (math.Abs(v) < 1e-3 || math.Abs(v) >= 1e6):
		return fmt.Sprintf("%.3e", v)
	}
	return fmt.Sprintf("%.3f", v)
}

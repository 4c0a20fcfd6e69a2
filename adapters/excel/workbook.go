package excel

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gosobol/domain/gsa"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetSummary    = "Summary"
	SheetSobol      = "Sobol"
	SheetPairs      = "Interactions"
	SheetModels     = "Models"
	SheetValidation = "Validation"
)

// WriteWorkbook writes a run summary as an xlsx workbook. Undefined
// indices are left as empty cells.
func WriteWorkbook(w io.Writer, s *gsa.RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetSobol, SheetPairs, SheetModels, SheetValidation} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSummary, summaryRows(s)},
		{SheetSobol, sobolRows(s)},
		{SheetPairs, pairRows(s)},
		{SheetModels, modelRows(s)},
		{SheetValidation, validationRows(s)},
	}
	for _, sh := range sheets {
		for i, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sh.name, i+1, err)
			}
		}
		if err := f.SetRowStyle(sh.name, 1, 1, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

// cell turns NaN into an empty cell.
func cell(v gsa.Float) interface{} {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return nil
	}
	return float64(v)
}

func summaryRows(s *gsa.RunSummary) [][]interface{} {
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Run", s.ID},
		{"Started", s.StartedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Finished", s.FinishedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Seed", s.Seed},
		{"Scheme", string(s.Scheme)},
		{"Base samples", s.BaseSamples},
		{"Evaluations", s.Rows},
		{"Fingerprint", s.Fingerprint},
	}
	stages := make([]string, 0, len(s.TimingsMS))
	for stage := range s.TimingsMS {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		rows = append(rows, []interface{}{"Time " + stage + " (ms)", s.TimingsMS[stage]})
	}
	rows = append(rows, []interface{}{})
	rows = append(rows, []interface{}{"Parameter", "Distribution", "Low", "Default", "High"})
	for _, p := range s.Parameters {
		rows = append(rows, []interface{}{p.Name, string(p.Distribution), p.Low, p.Default, p.High})
	}
	return rows
}

func sobolRows(s *gsa.RunSummary) [][]interface{} {
	rows := [][]interface{}{{"Output", "Parameter", "S1", "S1 conf", "ST", "ST conf"}}
	for _, out := range s.Outputs {
		for _, r := range out.Ranking {
			rows = append(rows, []interface{}{out.Name, r.Parameter, cell(r.S1), cell(r.S1Conf), cell(r.ST), cell(r.STConf)})
		}
	}
	return rows
}

func pairRows(s *gsa.RunSummary) [][]interface{} {
	rows := [][]interface{}{{"Output", "A", "B", "S2"}}
	for _, out := range s.Outputs {
		for _, p := range out.Pairs {
			rows = append(rows, []interface{}{out.Name, p.A, p.B, cell(p.S2)})
		}
	}
	return rows
}

func modelRows(s *gsa.RunSummary) [][]interface{} {
	rows := [][]interface{}{{"Output", "Strategy", "Retained", "Cumulative S1", "Reached", "Surrogate"}}
	for _, out := range s.Outputs {
		if m := out.Model; m != nil {
			rows = append(rows, []interface{}{out.Name, string(m.Strategy), strings.Join(m.Retained, ", "), cell(m.CumulativeS1), m.Reached, m.Expression})
		}
	}
	return rows
}

func validationRows(s *gsa.RunSummary) [][]interface{} {
	rows := [][]interface{}{{"Output", "Samples", "Explained variance", "Max |dev|", "Mean |dev|", "Pearson", "Spearman", "Full mean", "Surrogate mean"}}
	for _, out := range s.Outputs {
		if c := out.Comparison; c != nil {
			rows = append(rows, []interface{}{out.Name, c.Samples, cell(c.ExplainedVariance), cell(c.MaxAbsDeviation),
				cell(c.MeanAbsDeviation), cell(c.Correlation), cell(c.RankCorrelation), cell(c.FullMean), cell(c.SurrogateMean)})
		}
	}
	return rows
}

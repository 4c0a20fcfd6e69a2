// Package excel imports inventories from spreadsheets and exports run
// summaries as workbooks.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gosobol/adapters/lca"
	"gosobol/internal"

	"github.com/xuri/excelize/v2"
)

// Sheet names of an inventory workbook. A CSV inventory stores the
// exchanges table in the named file and the other two in siblings
// suffixed _flows.csv and _methods.csv.
const (
	SheetExchanges = "exchanges"
	SheetFlows     = "flows"
	SheetMethods   = "methods"
)

// Table is one sheet as header plus string rows.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// DataReader reads inventory tables from an xlsx workbook or a set of CSV
// files.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	fileType := "xlsx"
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger.Named("excel")}
}

// ReadTables reads the exchanges, flows and methods tables.
func (r *DataReader) ReadTables() (map[string]*Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	start := time.Now()
	tables := make(map[string]*Table, 3)
	var err error
	switch r.fileType {
	case "csv":
		err = r.readCSV(tables)
	default:
		err = r.readWorkbook(tables)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("read %s in %s (%d exchanges)", r.filePath, time.Since(start), len(tables[SheetExchanges].Rows))
	return tables, nil
}

func (r *DataReader) readWorkbook(tables map[string]*Table) error {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	for _, sheet := range []string{SheetExchanges, SheetFlows, SheetMethods} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			return fmt.Errorf("workbook %s has no %q sheet", r.filePath, sheet)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		t, err := processRows(sheet, rows)
		if err != nil {
			return err
		}
		tables[sheet] = t
	}
	return nil
}

func (r *DataReader) readCSV(tables map[string]*Table) error {
	base := strings.TrimSuffix(r.filePath, filepath.Ext(r.filePath))
	paths := map[string]string{
		SheetExchanges: r.filePath,
		SheetFlows:     base + "_flows.csv",
		SheetMethods:   base + "_methods.csv",
	}
	for sheet, path := range paths {
		rows, err := readCSVFile(path)
		if err != nil {
			return err
		}
		t, err := processRows(sheet, rows)
		if err != nil {
			return err
		}
		tables[sheet] = t
	}
	return nil
}

func readCSVFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	return rows, nil
}

// processRows converts raw rows into a Table keyed by lower-cased header.
func processRows(sheet string, rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one data row", sheet)
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	t := &Table{Headers: headers}
	for _, row := range rows[1:] {
		data := make(map[string]string, len(headers))
		empty := true
		for j, cell := range row {
			if j < len(headers) {
				data[headers[j]] = strings.TrimSpace(cell)
				empty = empty && data[headers[j]] == ""
			}
		}
		if !empty {
			t.Rows = append(t.Rows, data)
		}
	}
	return t, nil
}

func (t *Table) require(sheet string, cols ...string) error {
	for _, c := range cols {
		found := false
		for _, h := range t.Headers {
			if h == c {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: missing column %q", sheet, c)
		}
	}
	return nil
}

func parseAmount(sheet string, line int, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: invalid number %q", sheet, line, s)
	}
	return v, nil
}

// ReadInventory builds an inventory from the reader's tables. root names
// the assessed activity; when empty the last activity in the exchanges
// table is used.
func (r *DataReader) ReadInventory(root string) (*lca.Inventory, error) {
	tables, err := r.ReadTables()
	if err != nil {
		return nil, err
	}
	return BuildInventory(tables, root)
}

type activityRow struct {
	database, name, unit string
	links                []lca.Link
}

// BuildInventory assembles tables into an inventory. Activities may appear
// in any order; they are added inputs first.
func BuildInventory(tables map[string]*Table, root string) (*lca.Inventory, error) {
	flows, exchanges, methods := tables[SheetFlows], tables[SheetExchanges], tables[SheetMethods]
	if flows == nil || exchanges == nil || methods == nil {
		return nil, fmt.Errorf("inventory needs %s, %s and %s tables", SheetExchanges, SheetFlows, SheetMethods)
	}
	if err := flows.require(SheetFlows, "database", "name", "unit"); err != nil {
		return nil, err
	}
	if err := exchanges.require(SheetExchanges, "database", "activity", "unit", "input", "amount"); err != nil {
		return nil, err
	}
	if err := methods.require(SheetMethods, "method", "unit", "flow", "factor"); err != nil {
		return nil, err
	}

	inv := lca.New()
	for _, row := range flows.Rows {
		if err := inv.AddFlow(row["database"], row["name"], row["unit"]); err != nil {
			return nil, err
		}
	}

	var order []string
	activities := make(map[string]*activityRow)
	for i, row := range exchanges.Rows {
		name := row["activity"]
		a, ok := activities[name]
		if !ok {
			a = &activityRow{database: row["database"], name: name, unit: row["unit"]}
			activities[name] = a
			order = append(order, name)
		}
		if row["input"] == "" {
			continue
		}
		amount, err := parseAmount(SheetExchanges, i+2, row["amount"])
		if err != nil {
			return nil, err
		}
		a.links = append(a.links, lca.Link{Input: row["input"], Amount: amount})
	}

	added := make(map[string]bool, len(order))
	visiting := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		a, ok := activities[name]
		if !ok || added[name] {
			// Flows and unknown inputs are left for AddActivity to judge.
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("%s: activity %q depends on itself", SheetExchanges, name)
		}
		visiting[name] = true
		for _, l := range a.links {
			if err := visit(l.Input); err != nil {
				return err
			}
		}
		visiting[name] = false
		added[name] = true
		return inv.AddActivity(a.database, a.name, a.unit, a.links...)
	}
	for _, name := range order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	factors := make(map[string]map[string]float64)
	units := make(map[string]string)
	var methodOrder []string
	for i, row := range methods.Rows {
		m := row["method"]
		if _, ok := factors[m]; !ok {
			factors[m] = make(map[string]float64)
			units[m] = row["unit"]
			methodOrder = append(methodOrder, m)
		}
		v, err := parseAmount(SheetMethods, i+2, row["factor"])
		if err != nil {
			return nil, err
		}
		factors[m][row["flow"]] = v
	}
	for _, m := range methodOrder {
		if err := inv.AddMethod(m, units[m], factors[m]); err != nil {
			return nil, err
		}
	}

	if root == "" && len(order) > 0 {
		root = order[len(order)-1]
	}
	if err := inv.SetRoot(root); err != nil {
		return nil, err
	}
	return inv, nil
}

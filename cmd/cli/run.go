package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gosobol/adapters/excel"
	"gosobol/adapters/expression"
	"gosobol/adapters/lca"
	"gosobol/adapters/report"
	"gosobol/adapters/sqlite"
	"gosobol/app"
	"gosobol/domain/gsa"
	"gosobol/domain/param"
	"gosobol/internal"
	"gosobol/internal/config"
	"gosobol/ports"

	"github.com/spf13/cobra"
)

// modelFlags select the model under analysis: an expression model file or
// an inventory (YAML, xlsx or csv) with uncertainty assigned per the
// analysis assignment section.
type modelFlags struct {
	configPath string
	modelPath  string
	inventory  string
	database   string
	root       string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file with an analysis section (required)")
	cmd.Flags().StringVarP(&f.modelPath, "model", "m", "", "expression model YAML")
	cmd.Flags().StringVar(&f.inventory, "inventory", "", "inventory file (.yaml, .xlsx or .csv)")
	cmd.Flags().StringVar(&f.database, "database", "", "only parameterize exchanges of this database")
	cmd.Flags().StringVar(&f.root, "root", "", "root activity of a spreadsheet inventory")
	cmd.MarkFlagRequired("config")
}

// load reads the analysis options and builds the model with its parameters.
func (f *modelFlags) load(logger *internal.Logger) (*config.AnalysisConfig, ports.Evaluator, []param.Parameter, error) {
	appConfig, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := &appConfig.Analysis
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	switch {
	case f.modelPath != "" && f.inventory != "":
		return nil, nil, nil, fmt.Errorf("--model and --inventory are mutually exclusive")
	case f.modelPath != "":
		data, err := os.ReadFile(f.modelPath)
		if err != nil {
			return nil, nil, nil, err
		}
		m, err := expression.Parse(data)
		if err != nil {
			return nil, nil, nil, err
		}
		return cfg, m, m.Parameters(), nil
	case f.inventory != "":
		if err := cfg.ValidateAssignment(); err != nil {
			return nil, nil, nil, err
		}
		inv, err := loadInventory(f.inventory, f.root, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		exchanges := inv.Exchanges()
		if f.database != "" {
			exchanges = inv.ExchangesIn(f.database)
		}
		reg, _, err := app.NewUncertaintyService(logger).NewParameters(exchanges, app.AssignOptionsFromConfig(cfg))
		if err != nil {
			return nil, nil, nil, err
		}
		return cfg, inv, reg.Parameters(), nil
	}
	return nil, nil, nil, fmt.Errorf("one of --model or --inventory is required")
}

func loadInventory(path, root string, logger *internal.Logger) (*lca.Inventory, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
		return excel.NewDataReader(path, logger).ReadInventory(root)
	}
	return lca.LoadFile(path)
}

func newRunCmd(logger func() *internal.Logger) *cobra.Command {
	var flags modelFlags
	var format, xlsxPath, storePath string
	var top int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run sensitivity analysis, simplification and validation on a model",
		Long: `Run the full analysis on an expression model or an inventory.

Example: gosobol run -c analysis.yaml -m model.yaml --format markdown
         gosobol run -c analysis.yaml --inventory plant.xlsx --database fg --xlsx run.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			defer log.Sync()

			cfg, model, params, err := flags.load(log)
			if err != nil {
				return err
			}
			opts, err := app.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			log.Info("analysis %s", cfg)

			var runs ports.RunRepository
			if storePath != "" {
				store, err := sqlite.Open(storePath)
				if err != nil {
					return err
				}
				defer store.Close()
				runs = store
			}

			run, err := app.NewAnalysisService(runs, log).Run(cmd.Context(), app.AnalysisRequest{Model: model, Parameters: params, Options: opts})
			if err != nil {
				return err
			}
			summary := run.Summary()
			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, &summary); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(), format, &summary, top)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "ascii", "output format: ascii, markdown, html or json")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the run to this workbook")
	cmd.Flags().StringVar(&storePath, "store", os.Getenv("GOSOBOL_STORE"), "record the run in this SQLite file")
	cmd.Flags().IntVar(&top, "top", 10, "parameters listed per output in ascii format (0 for all)")
	return cmd
}

func render(w io.Writer, format string, s *gsa.RunSummary, top int) error {
	switch format {
	case "ascii":
		fmt.Fprintf(w, "Run %s (seed %d, %d evaluations)\n\n", s.ID, s.Seed, s.Rows)
		if err := report.TopParameters(w, s, top); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n\n%s\n", report.Models(s, report.ASCII), report.Comparison(s, report.ASCII))
		return nil
	case "markdown":
		_, err := io.WriteString(w, report.Document(s))
		return err
	case "html":
		_, err := w.Write(report.HTML(s))
		return err
	case "json":
		return report.JSON(w, s)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeWorkbook(path string, s *gsa.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := excel.WriteWorkbook(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

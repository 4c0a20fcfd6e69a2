package main

import (
	"os"

	"gosobol/domain/gsa"
	"gosobol/internal"
	"gosobol/internal/sampling"

	"github.com/spf13/cobra"
)

func newSampleCmd(logger func() *internal.Logger) *cobra.Command {
	var flags modelFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the design matrix of a model as CSV",
		Long: `Draw the design matrix the analysis would evaluate, without evaluating it.

Example: gosobol sample -c analysis.yaml -m model.yaml -o design.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			defer log.Sync()

			cfg, _, params, err := flags.load(log)
			if err != nil {
				return err
			}
			scheme, err := gsa.ParseScheme(cfg.Sampling.Scheme)
			if err != nil {
				return err
			}
			design, err := sampling.NewSampler(log).Generate(params, sampling.Options{
				N:      cfg.Sampling.N,
				Seed:   cfg.Seed(),
				Scheme: scheme,
			})
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				return sampling.WriteCSV(cmd.OutOrStdout(), design)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := sampling.WriteCSV(f, design); err != nil {
				f.Close()
				return err
			}
			log.Info("wrote %d rows (fingerprint %s) to %s", design.Rows(), design.Fingerprint(), outPath)
			return f.Close()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output CSV file")
	return cmd
}

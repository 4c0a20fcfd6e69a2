package main

import (
	"fmt"
	"os"

	"gosobol/internal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	godotenv.Load()

	var logLevel string
	rootCmd := &cobra.Command{
		Use:           "gosobol",
		Short:         "Global sensitivity analysis and model simplification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "ERROR|WARN|INFO|DEBUG")
	logger := func() *internal.Logger {
		if logLevel == "" {
			return internal.NewLogger(internal.LogLevelWarn)
		}
		return internal.NewLogger(internal.ParseLogLevel(logLevel))
	}

	rootCmd.AddCommand(
		newRunCmd(logger),
		newDemoCmd(logger),
		newSampleCmd(logger),
		newRunsCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gosobol/domain/gsa"
	"gosobol/internal"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *internal.Logger { return internal.NewNopLogger() }

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const analysisYAML = `
analysis:
  assignment: {fraction: 1, spread: 0.3, distribution: uniform, zero_policy: skip, naming: input}
  sampling: {n: 64, seed: 11, scheme: saltelli}
  sensitivity: {resamples: 10}
  simplify: {top_k: 1, strategy: regression}
  validation: {samples: 50}
`

const modelYAML = `
parameters:
  - {name: a, distribution: uniform, low: 0, default: 0.5, high: 1}
  - {name: b, distribution: uniform, low: 0, default: 0.5, high: 1}
outputs:
  - {name: y, expression: "a + 10 * b"}
`

func writeFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "analysis.yaml")
	model := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(analysisYAML), 0o644))
	require.NoError(t, os.WriteFile(model, []byte(modelYAML), 0o644))
	return cfg, model
}

func TestDemoCmd(t *testing.T) {
	out, err := execute(t, newDemoCmd(quiet), "--n", "64")
	require.NoError(t, err)
	assert.Contains(t, out, "Parameterized 2 of 6 eligible foreground exchanges")
	assert.Contains(t, out, "Impact co2")
	assert.Contains(t, out, "Impact ch4")
	assert.Contains(t, out, "Full vs simplified")
}

func TestRunCmd_JSON(t *testing.T) {
	cfg, model := writeFiles(t)
	xlsx := filepath.Join(t.TempDir(), "run.xlsx")
	out, err := execute(t, newRunCmd(quiet), "-c", cfg, "-m", model, "--format", "json", "--xlsx", xlsx)
	require.NoError(t, err)

	var s gsa.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, uint64(11), s.Seed)
	assert.Equal(t, "b", s.Outputs[0].Ranking[0].Parameter)
	assert.FileExists(t, xlsx)
}

func TestRunCmd_Errors(t *testing.T) {
	cfg, model := writeFiles(t)

	_, err := execute(t, newRunCmd(quiet), "-c", cfg)
	assert.ErrorContains(t, err, "one of --model or --inventory")

	_, err = execute(t, newRunCmd(quiet), "-c", cfg, "-m", model, "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, newRunCmd(quiet), "-m", model)
	assert.Error(t, err)
}

func TestSampleCmd(t *testing.T) {
	cfg, model := writeFiles(t)
	out, err := execute(t, newSampleCmd(quiet), "-c", cfg, "-m", model)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	// Header plus 64 blocks of 2k+2 rows.
	assert.Len(t, records, 1+64*6)
}

func TestRunsCmd_Store(t *testing.T) {
	cfg, model := writeFiles(t)
	store := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, newRunCmd(quiet), "-c", cfg, "-m", model, "--format", "json", "--store", store)
	require.NoError(t, err)
	var s gsa.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))

	out, err = execute(t, newRunsCmd(quiet), "list", "--store", store)
	require.NoError(t, err)
	assert.Contains(t, out, s.ID)

	out, err = execute(t, newRunsCmd(quiet), "show", s.ID, "--store", store, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Sensitivity run "+s.ID)

	_, err = execute(t, newRunsCmd(quiet), "show", "missing", "--store", store)
	assert.Error(t, err)

	_, err = execute(t, newRunsCmd(quiet), "list", "--store", filepath.Join(t.TempDir(), "none.db"))
	assert.Error(t, err)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gosobol/app"
	"gosobol/domain/gsa"
	"gosobol/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const analysis = `{
	"sampling": {"n": 128, "seed": 7, "scheme": "saltelli"},
	"sensitivity": {"resamples": 20},
	"simplify": {"top_k": 1, "strategy": "regression"},
	"validation": {"samples": 100}
}`

const model = `{
	"parameters": [
		{"name": "p1", "distribution": "triangle", "low": 0.5, "default": 1, "high": 1.5},
		{"name": "p2", "distribution": "triangle", "low": 1, "default": 2, "high": 3}
	],
	"outputs": [{"name": "f", "expression": "2 * p1 + 3 * p2"}]
}`

const inventory = `{
	"root": "root",
	"flows": [{"database": "bg", "name": "CO2", "unit": "kg"}],
	"activities": [
		{"database": "bg", "name": "power", "unit": "kWh", "exchanges": [{"input": "CO2", "amount": 0.5}]},
		{"database": "fg", "name": "root", "unit": "kg", "exchanges": [{"input": "power", "amount": 4}]}
	],
	"methods": [{"name": "gwp", "unit": "kg", "factors": {"CO2": 1}}]
}`

func newTestServer() *Server {
	kit := testkit.NewTestKit()
	return NewServer(kit.Analysis, app.NewUncertaintyService(kit.Logger), kit.Runs, kit.Logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func createRun(t *testing.T, s *Server, body string) gsa.RunSummary {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var summary gsa.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "/runs/"+summary.ID, rec.Header().Get("Location"))
	return summary
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateRun_Model(t *testing.T) {
	s := newTestServer()
	summary := createRun(t, s, `{"model": `+model+`, "analysis": `+analysis+`}`)
	require.Len(t, summary.Outputs, 1)
	assert.Equal(t, "p2", summary.Outputs[0].Ranking[0].Parameter)
	require.NotNil(t, summary.Outputs[0].Model)
	assert.Equal(t, []string{"p2"}, summary.Outputs[0].Model.Retained)

	rec := do(t, s, http.MethodGet, "/runs/"+summary.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got gsa.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, summary.ID, got.ID)

	rec = do(t, s, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []gsa.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, s, http.MethodGet, "/runs/"+summary.ID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Sensitivity run "+summary.ID)

	rec = do(t, s, http.MethodGet, "/runs/"+summary.ID+"/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Sobol")
}

func TestCreateRun_Inventory(t *testing.T) {
	body := `{
		"inventory": ` + inventory + `,
		"database": "fg",
		"analysis": {
			"assignment": {"fraction": 1, "spread": 0.2, "distribution": "uniform", "zero_policy": "skip", "naming": "input"},
			"sampling": {"n": 64, "seed": 3, "scheme": "saltelli"},
			"sensitivity": {"resamples": 10},
			"simplify": {"top_k": 1, "strategy": "symbolic"},
			"validation": {"samples": 50}
		}
	}`
	summary := createRun(t, newTestServer(), body)
	require.Len(t, summary.Parameters, 1)
	assert.Equal(t, "p_power", summary.Parameters[0].Name)
	require.NotNil(t, summary.Outputs[0].Model)
	assert.Equal(t, gsa.StrategySymbolic, summary.Outputs[0].Model.Strategy)
}

func TestReport_EscapesInventoryNames(t *testing.T) {
	hostile := strings.Replace(inventory, `"name": "gwp"`, `"name": "<img src=x onerror=alert(1)>"`, 1)
	body := `{
		"inventory": ` + hostile + `,
		"database": "fg",
		"analysis": {
			"assignment": {"fraction": 1, "spread": 0.2, "distribution": "uniform", "zero_policy": "skip", "naming": "input"},
			"sampling": {"n": 32, "seed": 3, "scheme": "saltelli"},
			"simplify": {"top_k": 1, "strategy": "regression"},
			"validation": {"samples": 20}
		}
	}`
	s := newTestServer()
	summary := createRun(t, s, body)
	require.Len(t, summary.Outputs, 1)
	assert.Equal(t, "<img src=x onerror=alert(1)>", summary.Outputs[0].Name)

	rec := do(t, s, http.MethodGet, "/runs/"+summary.ID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<img")
	assert.Contains(t, rec.Body.String(), "Sensitivity run "+summary.ID)
}

func TestCreateRun_Errors(t *testing.T) {
	s := newTestServer()
	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"model": `, "INVALID_INPUT"},
		{"unknown field", `{"modle": {}, "analysis": ` + analysis + `}`, "INVALID_INPUT"},
		{"no analysis", `{"model": ` + model + `}`, "CONFIG_INVALID"},
		{"no model", `{"analysis": ` + analysis + `}`, "INVALID_INPUT"},
		{"both", `{"model": ` + model + `, "inventory": ` + inventory + `, "analysis": ` + analysis + `}`, "INVALID_INPUT"},
		{"missing seed", `{"model": ` + model + `, "analysis": {"sampling": {"n": 8, "scheme": "saltelli"}, "simplify": {"top_k": 1, "strategy": "regression"}}}`, "CONFIG_INVALID"},
		{"markup output name", `{"model": ` + strings.Replace(model, `"name": "f"`, `"name": "<b>f</b>"`, 1) + `, "analysis": ` + analysis + `}`, "CONFIG_INVALID"},
		{"inventory without assignment", `{"inventory": ` + inventory + `, "analysis": ` + analysis + `}`, "CONFIG_INVALID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/runs", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestCreateRun_EvaluationFailure(t *testing.T) {
	body := `{
		"model": {
			"parameters": [{"name": "x", "distribution": "uniform", "low": -1, "default": 0.5, "high": 1}],
			"outputs": [{"name": "inv", "expression": "1 / (x - x)"}]
		},
		"analysis": ` + analysis + `
	}`
	rec := do(t, newTestServer(), http.MethodPost, "/runs", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EVALUATION_FAILED", resp.Code)
	require.NotNil(t, resp.Row)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{"/runs/nope", "/runs/nope/report", "/runs/nope/export.xlsx"} {
		rec := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := do(t, s, http.MethodGet, "/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

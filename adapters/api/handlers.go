package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"gosobol/adapters/excel"
	"gosobol/adapters/expression"
	"gosobol/adapters/lca"
	"gosobol/adapters/report"
	"gosobol/app"
	"gosobol/domain/core"
	"gosobol/domain/param"
	"gosobol/internal/config"
	"gosobol/internal/errors"
	"gosobol/ports"

	"github.com/go-chi/chi/v5"
)

// RunRequest is the POST /runs body. Exactly one of Model or Inventory is
// set. An inventory gets uncertainty assigned to the exchanges of Database
// (every exchange when empty) with the analysis assignment options.
type RunRequest struct {
	Model     json.RawMessage `json:"model,omitempty"`
	Inventory json.RawMessage `json:"inventory,omitempty"`
	Database  string          `json:"database,omitempty"`
	Analysis  json.RawMessage `json:"analysis"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Row   *int   `json:"row,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	resp := errorResponse{Code: code, Error: err.Error()}
	if row, ok := core.FailedRow(err); ok {
		resp.Row = &row
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.InvalidInput(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if len(req.Analysis) == 0 {
		s.writeError(w, core.NewConfigurationError(core.StageConfig, "analysis", "is required"))
		return
	}
	cfg, err := config.ParseAnalysis(req.Analysis)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	model, params, err := s.buildModel(req, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run, err := s.analysis.Run(r.Context(), app.AnalysisRequest{Model: model, Parameters: params, Options: opts})
	if err != nil {
		s.writeError(w, err)
		return
	}
	summary := run.Summary()
	w.Header().Set("Location", "/runs/"+summary.ID)
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) buildModel(req RunRequest, cfg *config.AnalysisConfig) (ports.Evaluator, []param.Parameter, error) {
	switch {
	case len(req.Model) > 0 && len(req.Inventory) > 0:
		return nil, nil, errors.InvalidInput("model and inventory are mutually exclusive")
	case len(req.Model) > 0:
		m, err := expression.Parse(req.Model)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Parameters(), nil
	case len(req.Inventory) > 0:
		if err := cfg.ValidateAssignment(); err != nil {
			return nil, nil, err
		}
		inv, err := lca.Load(bytes.NewReader(req.Inventory))
		if err != nil {
			return nil, nil, &errors.AppError{Code: errors.CodeInvalidInput, Message: "invalid inventory", Cause: err}
		}
		exchanges := inv.Exchanges()
		if req.Database != "" {
			exchanges = inv.ExchangesIn(req.Database)
		}
		reg, _, err := s.uncertainty.NewParameters(exchanges, app.AssignOptionsFromConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		return inv, reg.Parameters(), nil
	}
	return nil, nil, errors.InvalidInput("one of model or inventory is required")
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters := ports.RunFilters{Limit: 50}
	for key, dst := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		if v := r.URL.Query().Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.writeError(w, errors.InvalidInput(fmt.Sprintf("%s must be a non-negative integer", key)))
				return
			}
			*dst = n
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(report.HTML(run))
}

func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := excel.WriteWorkbook(&buf, run); err != nil {
		s.writeError(w, errors.Wrap(err, "failed to build workbook"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.xlsx"`, run.ID))
	w.Write(buf.Bytes())
}

package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/pipeline"
	"github.com/sells-group/signal-cli/internal/retrieval"
	"github.com/sells-group/signal-cli/internal/signal"
	"github.com/sells-group/signal-cli/internal/store"
)

// runController starts, runs and cancels pipeline runs.
type runController interface {
	Run(ctx context.Context, req model.RunRequest) (*model.RunResult, error)
	Start(ctx context.Context, req model.RunRequest) (string, error)
	Cancel(runID string) bool
}

type signalTransitioner interface {
	Transition(ctx context.Context, orgID, id string, to model.SignalStatus) error
}

// api serves the HTTP trigger surface.
type api struct {
	store    store.Store
	runs     runController
	signals  signalTransitioner
	scorer   *retrieval.Scorer
	metrics  *monitoring.Collector
	checker  *monitoring.Checker // optional
	lookback int
	limit    int
}

func (a *api) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics", a.getMetrics)
		r.Route("/pipeline/runs", func(r chi.Router) {
			r.Post("/", a.createRun)
			r.Get("/{id}", a.getRun)
			r.Delete("/{id}", a.cancelRun)
		})
		r.Route("/organizations/{orgID}", func(r chi.Router) {
			r.Get("/signals", a.listSignals)
			r.Post("/signals/{signalID}/status", a.setSignalStatus)
			r.Post("/retrieve", a.retrieve)
		})
	})
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequestBody is the trigger payload. The window is a Go duration string.
type runRequestBody struct {
	OrganizationID string   `json:"organization_id"`
	RecencyWindow  string   `json:"recency_window,omitempty"`
	Targets        []string `json:"targets,omitempty"`
}

func (a *api) createRun(w http.ResponseWriter, r *http.Request) {
	var body runRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := model.RunRequest{OrganizationID: body.OrganizationID, Targets: body.Targets}
	if body.RecencyWindow != "" {
		d, err := time.ParseDuration(body.RecencyWindow)
		if err != nil {
			writeError(w, http.StatusBadRequest, "recency_window must be a duration such as 48h")
			return
		}
		req.RecencyWindow = d
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id, err := a.runs.Start(r.Context(), req)
		if err != nil {
			writeRunError(w, err)
			return
		}
		writeResponse(w, http.StatusAccepted, map[string]string{"run_id": id})
		return
	}

	res, err := a.runs.Run(r.Context(), req)
	if err != nil && res == nil {
		writeRunError(w, err)
		return
	}
	writeResponse(w, http.StatusOK, res)
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "run not found")
		return
	}
	writeResponse(w, http.StatusOK, run)
}

func (a *api) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.runs.Cancel(id) {
		writeError(w, http.StatusNotFound, "run is not in flight")
		return
	}
	writeResponse(w, http.StatusAccepted, map[string]string{"run_id": id, "status": "cancelling"})
}

func (a *api) listSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SignalFilter{
		OrganizationID: chi.URLParam(r, "orgID"),
		Status:         model.SignalStatus(q.Get("status")),
		TargetID:       q.Get("target_id"),
		Subtype:        model.PatternType(q.Get("subtype")),
		Limit:          queryInt(q.Get("limit"), 0),
		Offset:         queryInt(q.Get("offset"), 0),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	signals, err := a.store.ListSignals(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{"signals": signals})
}

func (a *api) setSignalStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.SignalStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be resolved or dismissed")
		return
	}
	orgID, id := chi.URLParam(r, "orgID"), chi.URLParam(r, "signalID")
	err := a.signals.Transition(r.Context(), orgID, id, body.Status)
	switch {
	case err == nil:
		writeResponse(w, http.StatusOK, map[string]string{"id": id, "status": string(body.Status)})
	case errors.Is(err, signal.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeStoreError(w, err, "signal not found")
	}
}

type retrieveBody struct {
	Query   string   `json:"query"`
	Related []string `json:"related,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

func (a *api) retrieve(w http.ResponseWriter, r *http.Request) {
	var body retrieveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	results, err := rankSignals(r.Context(), a.store, a.scorer, chi.URLParam(r, "orgID"),
		retrieval.Query{Text: body.Query, Related: body.Related}, cmp.Or(max(body.Limit, 0), a.limit))
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{"results": results})
}

func (a *api) getMetrics(w http.ResponseWriter, r *http.Request) {
	if a.checker != nil {
		if snap := a.checker.Latest(); snap != nil {
			writeResponse(w, http.StatusOK, snap)
			return
		}
	}
	snap, err := a.metrics.Collect(r.Context(), a.lookback)
	if err != nil {
		zap.L().Error("metrics collection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "metrics unavailable")
		return
	}
	writeResponse(w, http.StatusOK, snap)
}

// rankSignals scores an organization's active signals against q and returns
// the best n.
func rankSignals(ctx context.Context, st store.Store, scorer *retrieval.Scorer, orgID string, q retrieval.Query, n int) ([]retrieval.Scored, error) {
	signals, err := st.ListSignals(ctx, store.SignalFilter{
		OrganizationID: orgID,
		Status:         model.SignalActive,
		Limit:          1000,
	})
	if err != nil {
		return nil, err
	}
	return retrieval.Top(scorer.Score(retrieval.FromSignals(signals), q), n), nil
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrOrganizationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zap.L().Error("pipeline run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
	}
}

func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if notFound != "" && errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	zap.L().Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, map[string]string{"error": msg})
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

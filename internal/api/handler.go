package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/engine"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
)

const maxChainsPerRun = 64

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	reg    *dist.Registry
	log    *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader, reg *dist.Registry, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{eng: eng, loader: loader, reg: reg, log: log, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/model", h.getModel)
	h.mux.HandleFunc("GET /v1/model/dot", h.getModelDOT)
	h.mux.HandleFunc("POST /v1/model/reload", h.reloadModel)
	h.mux.HandleFunc("POST /v1/runs", h.startRun)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(log, h.mux)
}

// GET /v1/model: vertex table of the loaded model.
func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	tpl := h.eng.Template()
	if tpl == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNoModel.Error())
		return
	}
	var nodes []model.NodeSummary
	_ = tpl.Inspect(func(m *model.Model) error {
		nodes = m.Summary()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": h.loader.Config().Version,
		"nodes":   nodes,
		"moves":   tpl.Moves(),
	})
}

// GET /v1/model/dot: the model graph in Graphviz DOT.
func (h *Handler) getModelDOT(w http.ResponseWriter, r *http.Request) {
	tpl := h.eng.Template()
	if tpl == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNoModel.Error())
		return
	}
	var dot string
	err := tpl.Inspect(func(m *model.Model) error {
		var err error
		dot, err = m.DOT()
		return err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeText(w, http.StatusOK, "text/vnd.graphviz", dot)
}

// POST /v1/model/reload: re-read the model file and swap the template.
func (h *Handler) reloadModel(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tpl, err := engine.TemplateFromConfig(cfg, h.reg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.SwapModel(tpl)
	h.log.Info("model reloaded via API", "nodes", len(cfg.Model.Nodes))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"nodes_count": len(cfg.Model.Nodes),
	})
}

// runRequest overrides the configured run settings. Omitted fields keep
// the config value.
type runRequest struct {
	Chains      *int    `json:"chains"`
	Generations *int    `json:"generations"`
	SampleEvery *int    `json:"sample_every"`
	Seed        *uint64 `json:"seed"`
}

// POST /v1/runs: run chains synchronously and return their samples.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	run := h.loader.Config().Run
	req := engine.RunRequest{
		Chains:      pick(body.Chains, run.Chains),
		Generations: pick(body.Generations, run.Generations),
		SampleEvery: pick(body.SampleEvery, run.SampleEvery),
		Seed:        pick(body.Seed, run.Seed),
	}
	if req.Chains < 1 || req.Chains > maxChainsPerRun {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("chains must be between 1 and %d", maxChainsPerRun))
		return
	}
	if req.Generations < 0 || req.SampleEvery < 1 {
		writeError(w, http.StatusBadRequest, "generations must not be negative and sample_every must be positive")
		return
	}

	res, err := h.eng.Run(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, engine.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, engine.ErrRunTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, engine.ErrNoModel):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func pick[T any](override *T, def T) T {
	if override != nil {
		return *override
	}
	return def
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 without a model or if the chain queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.eng.Template() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "no model"})
		return
	}
	util := h.eng.QueueUtilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
			"chains_running":    h.eng.ChainsRunning(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"chains_running":    h.eng.ChainsRunning(),
	})
}

package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/core/ports"
)

type Router struct {
	engine   ports.RetrievalEngine
	defaults domain.FusionConfig
	metrics  http.Handler
}

func NewRouter(engine ports.RetrievalEngine, defaults domain.FusionConfig, metrics http.Handler) *Router {
	return &Router{
		engine:   engine,
		defaults: defaults.Normalize(),
		metrics:  metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Question string   `json:"question"`
	Alpha    *float64 `json:"alpha,omitempty"`
	TopK     *int     `json:"top_k,omitempty"`
}

type retrieveResult struct {
	DocumentID string  `json:"doc_id"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Section    string  `json:"section,omitempty"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

type retrieveResponse struct {
	Results    []retrieveResult `json:"results"`
	Count      int              `json:"count"`
	DurationMs float64          `json:"duration_ms"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	cfg := rt.defaults
	if req.Alpha != nil {
		cfg.Alpha = *req.Alpha
	}
	if req.TopK != nil {
		cfg.TopK = *req.TopK
	}
	cfg = cfg.Normalize()

	start := time.Now()
	fused, err := rt.engine.Retrieve(r.Context(), req.Question, cfg)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	results := make([]retrieveResult, 0, len(fused))
	for _, c := range fused {
		results = append(results, retrieveResult{
			DocumentID: c.DocumentID,
			Page:       c.Page,
			ChunkIndex: c.ChunkIndex,
			Section:    c.Section,
			Text:       c.Text,
			Source:     string(c.Source),
			Score:      c.FusedScore,
		})
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Results:    results,
		Count:      len(results),
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

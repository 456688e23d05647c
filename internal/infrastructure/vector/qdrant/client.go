package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/core/ports"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/resilience"
)

// Client is the semantic retrieval source. A question is searched two ways
// against the same collection: a dense cosine search over the embedded
// question and a sparse keyword search over a hashed BM25-style query
// vector. The two result lists are rank-fused with plain RRF before leaving
// the adapter; the composite score is the candidate's raw score and is
// normalized upstream like any other source score.
//
// Every failure mode (embedding, transport, bad payloads) degrades to an
// empty list. One leg failing still lets the other contribute.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Config struct {
	BaseURL           string
	Collection        string
	RequestsPerSecond float64
}

const internalRRFK = 60

func New(cfg Config, embedder ports.Embedder, executor *resilience.Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		executor:   executor,
		limiter:    limiter,
		logger:     logger,
	}
}

func (c *Client) SearchSemantic(ctx context.Context, question string, topK int, filter domain.SearchFilter) []domain.Candidate {
	if strings.TrimSpace(question) == "" {
		return nil
	}
	if topK <= 0 {
		topK = 10
	}

	dense := c.denseSearch(ctx, question, topK, filter)
	sparse := c.sparseSearch(ctx, question, topK, filter)
	if len(dense) == 0 && len(sparse) == 0 {
		return nil
	}

	return fuseLegs(dense, sparse, topK)
}

func (c *Client) denseSearch(ctx context.Context, question string, limit int, filter domain.SearchFilter) []domain.Candidate {
	if c.embedder == nil {
		return nil
	}
	vector, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		c.logger.Warn("semantic_embed_failed", "error", err)
		return nil
	}
	if len(vector) == 0 {
		return nil
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildPayloadFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	points, err := c.queryPoints(ctx, "qdrant_dense_search",
		fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection), reqBody, decodeSearchPoints)
	if err != nil {
		c.logger.Warn("semantic_dense_search_failed", "error", err)
		return nil
	}
	return pointsToCandidates(points)
}

func (c *Client) sparseSearch(ctx context.Context, question string, limit int, filter domain.SearchFilter) []domain.Candidate {
	query := encodeSparseQuery(question)
	if len(query.Indices) == 0 {
		return nil
	}

	reqBody := map[string]any{
		"query":        query,
		"using":        "sparse",
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildPayloadFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	points, err := c.queryPoints(ctx, "qdrant_sparse_search",
		fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection), reqBody, decodeQueryPoints)
	if err != nil {
		c.logger.Warn("semantic_sparse_search_failed", "error", err)
		return nil
	}
	return pointsToCandidates(points)
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) queryPoints(
	ctx context.Context,
	operation string,
	url string,
	reqBody map[string]any,
	decode func(io.Reader) ([]scoredPoint, error),
) ([]scoredPoint, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var points []scoredPoint
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("qdrant search status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		}

		points, err = decode(resp.Body)
		return err
	}

	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, call, classifyQdrantError)
	}
	if err != nil {
		return nil, err
	}
	return points, nil
}

func decodeSearchPoints(r io.Reader) ([]scoredPoint, error) {
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return resp.Result, nil
}

func decodeQueryPoints(r io.Reader) ([]scoredPoint, error) {
	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return resp.Result.Points, nil
}

func pointsToCandidates(points []scoredPoint) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		c := domain.Candidate{
			DocumentID: getStringPayload(p.Payload, "doc_id"),
			Page:       getIntPayload(p.Payload, "page"),
			ChunkIndex: getIntPayload(p.Payload, "chunk_index"),
			Section:    getStringPayload(p.Payload, "section"),
			Text:       getStringPayload(p.Payload, "text"),
			Source:     domain.SourceSemantic,
			RawScore:   p.Score,
		}
		if c.DocumentID == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fuseLegs rank-fuses the dense and sparse result lists with unweighted RRF.
// Each leg arrives already ordered best-first by the server.
func fuseLegs(dense, sparse []domain.Candidate, topK int) []domain.Candidate {
	type entry struct {
		candidate domain.Candidate
		score     float64
	}
	entries := make(map[string]*entry, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	accumulate := func(list []domain.Candidate) {
		for rank, c := range list {
			key := c.IdentityKey()
			e, ok := entries[key]
			if !ok {
				e = &entry{candidate: c}
				entries[key] = e
				order = append(order, key)
			}
			e.score += 1.0 / float64(internalRRFK+rank+1)
		}
	}
	accumulate(dense)
	accumulate(sparse)

	out := make([]domain.Candidate, 0, len(order))
	for _, key := range order {
		e := entries[key]
		c := e.candidate
		c.RawScore = e.score
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RawScore != out[j].RawScore {
			return out[i].RawScore > out[j].RawScore
		}
		return out[i].IdentityKey() < out[j].IdentityKey()
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func buildPayloadFilter(filter domain.SearchFilter) map[string]any {
	if filter.IsZero() {
		return nil
	}
	var must []map[string]any
	if strings.TrimSpace(filter.Metric) != "" {
		must = append(must, map[string]any{
			"key":   "metric",
			"match": map[string]any{"value": filter.Metric},
		})
	}
	if strings.TrimSpace(filter.Period) != "" {
		must = append(must, map[string]any{
			"key":   "period",
			"match": map[string]any{"value": filter.Period},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

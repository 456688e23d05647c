package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Config struct {
	BaseURL    string
	GenModel   string
	EmbedModel string
}

func New(cfg Config, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		genModel:   cfg.GenModel,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	if c.executor == nil {
		return c.doPostJSON(ctx, path, payload, out, operation)
	}
	return c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		return c.doPostJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func decodeStrictJSON(raw string, out any) error {
	dec := json.NewDecoder(strings.NewReader(extractJSONObject(raw)))
	return dec.Decode(out)
}

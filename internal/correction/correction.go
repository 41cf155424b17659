// Package correction fixes OCR typos in Korean power-industry documents
// using a hosted instruct model on the Hugging Face Inference API.
package correction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	ErrEmptyInput       = errors.New("input text is empty")
	ErrUnauthorized     = errors.New("inference API key rejected")
	ErrModelLoading     = errors.New("model is loading")
	ErrTimeout          = errors.New("inference request timed out")
	ErrUnexpectedStatus = errors.New("unexpected inference API status")
	ErrNotConfigured    = errors.New("correction API key not configured")
)

// Models maps short names to Hugging Face model IDs.
var Models = map[string]string{
	"llama3-8b":   "meta-llama/Meta-Llama-3-8B-Instruct",
	"llama3-70b":  "meta-llama/Meta-Llama-3-70B-Instruct",
	"qwen2.5-72b": "Qwen/Qwen2.5-72B-Instruct",
	"qwen2.5-7b":  "Qwen/Qwen2.5-7B-Instruct",
	"mistral-7b":  "mistralai/Mistral-7B-Instruct-v0.3",
}

const DefaultModel = "qwen2.5-7b"

// DefaultMaxRetries is used when Config.MaxRetries is negative.
const DefaultMaxRetries = 2

// ResolveModel expands a short model name; unknown names are used verbatim
// as model IDs.
func ResolveModel(name string) string {
	if name == "" {
		name = DefaultModel
	}
	if id, ok := Models[name]; ok {
		return id
	}
	return name
}

// Config configures the correction client.
type Config struct {
	BaseURL      string        // default: "https://api-inference.huggingface.co"
	APIKey       string        // Hugging Face access token
	Model        string        // short name or model ID, default: qwen2.5-7b
	Timeout      time.Duration // per request, default: 60s
	MaxRetries   int           // retries while the model is loading; 0 disables, negative uses DefaultMaxRetries
	RetryBase    time.Duration // first backoff step, default: 1s
	MaxNewTokens int           // default: 2048
	Temperature  float64       // default: 0.1
}

// Change is one correction reported by the model.
type Change struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Type      string `json:"type"`
}

// Result is the outcome of a correction attempt. On failure CorrectedText
// holds the input unchanged and Error describes what went wrong.
type Result struct {
	Success         bool           `json:"success"`
	CorrectedText   string         `json:"corrected_text"`
	Corrections     []Change       `json:"corrections"`
	Confidence      float64        `json:"confidence"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	RawResponse     string         `json:"-"`
	Error           string         `json:"error,omitempty"`
}

// Client calls the inference API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a correction client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Model = ResolveModel(cfg.Model)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 2048
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the resolved model ID.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Correct asks the model to fix OCR errors in text. It never fails: on any
// error the input is returned unchanged with Success false (fail-open).
func (c *Client) Correct(ctx context.Context, text string) Result {
	res, err := c.correct(ctx, text)
	if err != nil {
		slog.Warn("ocr correction failed", "model", c.cfg.Model, "error", err)
		return Result{
			CorrectedText:   text,
			Corrections:     []Change{},
			ExtractedFields: map[string]any{},
			Error:           err.Error(),
		}
	}
	return res
}

func (c *Client) correct(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"inputs": chatPrompt(text),
		"parameters": map[string]any{
			"max_new_tokens":   c.cfg.MaxNewTokens,
			"temperature":      c.cfg.Temperature,
			"return_full_text": false,
			"do_sample":        c.cfg.Temperature > 0,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding request: %w", err)
	}

	var generated string
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries), retry.NewFibonacci(c.cfg.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := c.generate(ctx, body)
		if errors.Is(err, ErrModelLoading) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		generated = out
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res := parseResponse(generated)
	res.Success = true
	res.RawResponse = generated
	if res.CorrectedText == "" {
		res.CorrectedText = text
	}
	return res, nil
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	url := c.cfg.BaseURL + "/models/" + c.cfg.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}
		return "", fmt.Errorf("calling inference API: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrUnauthorized
	case http.StatusServiceUnavailable:
		return "", ErrModelLoading
	default:
		return "", fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(payload), 200))
	}

	// The API answers with a list of generations, or a bare object for some models.
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(payload, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}
	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(payload, &single); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return single.GeneratedText, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/codescan-mcp/internal/fingerprint"
	"github.com/dshills/codescan-mcp/pkg/types"
)

const (
	// DefaultRetryBudget is the total attempt count for transient failures.
	DefaultRetryBudget = 3
	// DefaultRetryDelay is the backoff base; attempt n sleeps base * 2^n.
	DefaultRetryDelay = time.Second
	// DefaultCacheSize bounds the per-process outcome cache.
	DefaultCacheSize = 4096
)

// Config configures the OpenAI-compatible analysis client. BaseURL may
// point at any chat-completions endpoint (LM Studio, vLLM, the hosted API).
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
	RetryBudget int
	RetryDelay  time.Duration
	CacheSize   int
	Logger      *slog.Logger
}

// completionAPI is the slice of the OpenAI client this package needs; tests
// substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client against a chat-completions endpoint with
// bounded retries, exponential backoff, and one-shot self-repair of
// malformed replies.
type OpenAIClient struct {
	api   completionAPI
	cfg   Config
	cache *outcomeCache
	log   *slog.Logger

	// sleep is a seam so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an analysis client from config, filling in defaults.
func New(cfg Config) *OpenAIClient {
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		api:   openai.NewClientWithConfig(clientCfg),
		cfg:   cfg,
		cache: newOutcomeCache(cfg.CacheSize),
		log:   cfg.Logger,
		sleep: sleepContext,
	}
}

// Analyze sends one chunk for analysis. The returned Outcome is Success
// with the parsed issues, or a Failure classified per the error taxonomy;
// no error or panic ever crosses this boundary.
func (c *OpenAIClient) Analyze(ctx context.Context, req Request) (out types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = types.Failf(types.FailUnknown, "panic analyzing %s: %v", req.FilePath, r)
		}
	}()

	key := fingerprint.SumString(req.ContextHeader + "\x00" + req.ChunkText)
	if cached, ok := c.cache.get(key); ok {
		return cached
	}

	prompt := analysisPrompt(req)
	var last types.Outcome
	for attempt := 0; attempt < c.cfg.RetryBudget; attempt++ {
		raw, err := c.complete(ctx, prompt, c.cfg.Temperature)
		if err != nil {
			kind, transient := classify(err)
			c.log.Warn("analysis attempt failed",
				"file", req.FilePath,
				"chunk", req.ChunkIndex,
				"attempt", attempt+1,
				"kind", string(kind),
				"error", err)
			last = types.Failed(kind, err.Error())
			if !transient {
				return last
			}
			if attempt == c.cfg.RetryBudget-1 {
				break
			}
			delay := c.cfg.RetryDelay * time.Duration(1<<attempt)
			if serr := c.sleep(ctx, delay); serr != nil {
				return last
			}
			continue
		}

		reply, ok := Extract(raw)
		if !ok {
			reply, ok = c.repair(ctx, req, raw)
		}
		if !ok {
			return types.Failf(types.FailJSONDecode,
				"unparsable analyzer output for %s chunk %d after repair", req.FilePath, req.ChunkIndex)
		}

		out = types.Success(reply.Issues)
		c.cache.set(key, out)
		return out
	}
	return last
}

// Close releases client resources. The underlying HTTP transport is owned
// by the go-openai client and needs no explicit teardown.
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.TopP > 0 {
		req.TopP = c.cfg.TopP
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("endpoint returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// repair performs exactly one round-trip re-sending the malformed candidate
// (bounded) with a terse minified-JSON instruction at deterministic
// sampling.
func (c *OpenAIClient) repair(ctx context.Context, req Request, malformed string) (*ModelReply, bool) {
	if len(malformed) > repairMaxInput {
		malformed = malformed[:repairMaxInput]
	}
	raw, err := c.complete(ctx, repairPrompt(malformed), 0)
	if err != nil {
		c.log.Warn("repair attempt failed",
			"file", req.FilePath, "chunk", req.ChunkIndex, "error", err)
		return nil, false
	}
	return Extract(raw)
}

// classify maps an endpoint error to the failure taxonomy and reports
// whether it is transient (worth a backoff-and-retry). Rate-limit and
// server-busy responses retry; other server-side errors are not expected to
// be transient and surface immediately.
func classify(err error) (types.FailureKind, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return types.FailTimeout, true
		}
		return types.FailConnection, true
	}
	return types.FailUnknown, false
}

func classifyStatus(status int) (types.FailureKind, bool) {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return types.FailAPI, true
	default:
		return types.FailAPI, false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

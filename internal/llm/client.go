// Package llm wraps genkit text generation with the reliability layer the
// Gemini free tier needs: retry with exponential backoff, rotation across
// several API keys when one runs out of quota, and a circuit breaker in
// front of the whole thing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/studyforge/studyai/internal/log"
)

// ErrNoAPIKeys is returned when the client is constructed without keys.
var ErrNoAPIKeys = errors.New("no API keys configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Options configures the client.
type Options struct {
	Model       string // model name; bare names resolve under googleai/
	Temperature float64
	MaxTokens   int
	Retry       RetryConfig
	Breaker     CircuitBreakerConfig
}

// instance is one genkit runtime bound to a single API key.
type instance struct {
	g     *genkit.Genkit
	label string // masked key identifier for logs
}

// Client generates text through whichever API key currently works. The
// last working key stays active until it fails, so a healthy key is not
// abandoned between requests.
type Client struct {
	instances []instance
	modelName string
	options   Options
	breaker   *CircuitBreaker
	limiter   *rate.Limiter
	logger    log.Logger

	mu     sync.Mutex
	active int
}

// New creates a client with one genkit runtime per API key.
func New(ctx context.Context, apiKeys []string, opts Options, logger log.Logger) (*Client, error) {
	if len(apiKeys) == 0 {
		return nil, ErrNoAPIKeys
	}

	instances := make([]instance, 0, len(apiKeys))
	for _, key := range apiKeys {
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: key}))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit for key %s", maskKey(key))
		}
		instances = append(instances, instance{g: g, label: maskKey(key)})
	}

	return newClient(instances, opts, logger), nil
}

// NewWithGenkits builds a client over pre-initialized genkit runtimes.
// Used by tests that register mock models.
func NewWithGenkits(gs []*genkit.Genkit, opts Options, logger log.Logger) (*Client, error) {
	if len(gs) == 0 {
		return nil, ErrNoAPIKeys
	}
	instances := make([]instance, 0, len(gs))
	for i, g := range gs {
		instances = append(instances, instance{g: g, label: fmt.Sprintf("key-%d", i)})
	}
	return newClient(instances, opts, logger), nil
}

func newClient(instances []instance, opts Options, logger log.Logger) *Client {
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}

	modelName := opts.Model
	if !strings.Contains(modelName, "/") {
		modelName = "googleai/" + modelName
	}

	return &Client{
		instances: instances,
		modelName: modelName,
		options:   opts,
		breaker:   NewCircuitBreaker(opts.Breaker),
		limiter:   rate.NewLimiter(rate.Limit(2), 4),
		logger:    logger,
	}
}

// Keys returns how many API keys the client rotates across.
func (c *Client) Keys() int { return len(c.instances) }

// BreakerState exposes the circuit state for readiness reporting.
func (c *Client) BreakerState() CircuitState { return c.breaker.State() }

// Embedder returns an embedder bound to the primary API key's runtime.
// Embedding traffic is light enough that it does not rotate keys.
func (c *Client) Embedder(model string) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(c.instances[0].g, model)
}

// GenerateText runs one prompt and returns the model's text. The system
// prompt may be empty.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if c.options.Temperature > 0 || c.options.MaxTokens > 0 {
		cfg := map[string]any{}
		if c.options.Temperature > 0 {
			cfg["temperature"] = c.options.Temperature
		}
		if c.options.MaxTokens > 0 {
			cfg["maxOutputTokens"] = c.options.MaxTokens
		}
		opts = append(opts, ai.WithConfig(cfg))
	}

	resp, err := c.generate(ctx, opts)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateJSON runs one prompt that instructs the model to answer in JSON,
// extracts the first JSON value from the response, and unmarshals it into
// out. Models wrap JSON in prose and code fences often enough that the
// extraction step is not optional.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	text, err := c.GenerateText(ctx, system, prompt)
	if err != nil {
		return err
	}
	return UnmarshalResponse(text, out)
}

// generate walks the API keys starting from the last working one. A
// rotatable failure (quota, auth, transient 5xx that survived retries)
// moves on to the next key; anything else fails immediately.
func (c *Client) generate(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	start := c.active
	c.mu.Unlock()

	var lastErr error
	for i := range c.instances {
		idx := (start + i) % len(c.instances)
		inst := c.instances[idx]

		resp, err := c.generateWithRetry(ctx, inst, opts)
		if err == nil {
			c.mu.Lock()
			c.active = idx
			c.mu.Unlock()
			c.breaker.Success()
			return resp, nil
		}
		lastErr = err

		if !rotatableError(err) {
			c.breaker.Failure()
			return nil, err
		}
		if ctx.Err() != nil {
			c.breaker.Failure()
			return nil, fmt.Errorf("generate canceled: %w", ctx.Err())
		}
		c.logger.Warn("api key exhausted, rotating",
			"key", inst.label,
			"error", err,
		)
	}

	c.breaker.Failure()
	return nil, fmt.Errorf("all %d api keys failed: %w", len(c.instances), lastErr)
}

// generateWithRetry executes one generation on a single key with
// exponential backoff. Each attempt passes through the rate limiter.
func (c *Client) generateWithRetry(ctx context.Context, inst instance, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.options.Retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.options.Retry.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, inst.g, opts...)
		if err == nil {
			c.logger.Debug("generate succeeded",
				"key", inst.label,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == c.options.Retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"key", inst.label,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.options.Retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.options.Retry.MaxRetries, time.Since(start), lastErr)
}

// maskKey keeps only the last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}

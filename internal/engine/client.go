package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storyweaver/server/internal/config"
)

const defaultTimeout = 300 * time.Second

type clientOptions struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a generation client.
type ClientOption func(*clientOptions)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRateLimit caps outgoing calls. Zero disables the limit.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(o *clientOptions) {
		if requestsPerMinute > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
		}
	}
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func newClientOptions(opts []ClientOption) *clientOptions {
	o := &clientOptions{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *clientOptions) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

// NewGenerator builds the client for the configured provider.
func NewGenerator(cfg config.AIConfig, logger *zap.Logger) (Generator, error) {
	opts := []ClientOption{
		WithRateLimit(cfg.RequestsPerMinute),
		WithClientLogger(logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	switch cfg.Provider {
	case config.ProviderTable:
		return NewTableClient(TableConfig{
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			ProjectID:     cfg.ProjectID,
			OutlineTable:  cfg.OutlineTable,
			OutlineColumn: cfg.OutlineColumn,
			StoryTable:    cfg.StoryTable,
			StoryColumn:   cfg.StoryColumn,
		}, opts...), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, opts...), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
}

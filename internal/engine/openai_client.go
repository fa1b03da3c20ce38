package engine

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storyweaver/server/internal/prompts"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient generates outlines and chapters through any
// chat-completions compatible endpoint, rendering prompts locally.
type OpenAIClient struct {
	client  *openai.Client
	cfg     OpenAIConfig
	prompts *prompts.TemplateEngine
	opts    *clientOptions
}

func NewOpenAIClient(cfg OpenAIConfig, opts ...ClientOption) *OpenAIClient {
	o := newClientOptions(opts)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = o.httpClient

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		prompts: prompts.NewDefaultEngine(),
		opts:    o,
	}
}

func (c *OpenAIClient) GenerateOutline(ctx context.Context, params *StoryParameters) (string, error) {
	prompt, err := c.prompts.Render(prompts.OutlineTemplate, &prompts.TemplateContext{
		Genre:          params.Genre,
		MainCharacters: params.MainCharacters,
		PlotElements:   params.PlotElements,
		NumChapters:    params.NumChapters,
		WritingStyle:   params.WritingStyle,
		StoryTone:      params.StoryTone,
		Complexity:     params.Complexity,
		Language:       params.Language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return c.complete(ctx, prompt)
}

func (c *OpenAIClient) GenerateChapter(ctx context.Context, req *ChapterRequest) (string, error) {
	prompt, err := c.prompts.Render(prompts.ChapterTemplate, &prompts.TemplateContext{
		StoryOutline:   req.StoryOutline,
		GeneratedStory: req.GeneratedStory,
		WritingStyle:   req.WritingStyle,
		StoryTone:      req.StoryTone,
		Complexity:     req.Complexity,
		Language:       req.Language,
		Chapter:        req.Chapter,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return c.complete(ctx, prompt)
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.opts.wait(ctx); err != nil {
		return "", err
	}

	c.opts.logger.Debug("requesting chat completion",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_len", len(prompt)))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model")
	}
	return resp.Choices[0].Message.Content, nil
}

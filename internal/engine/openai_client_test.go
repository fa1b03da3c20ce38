package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyweaver/server/internal/config"
)

func chatServer(t *testing.T, reply string, captured *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		resp := openai.ChatCompletionResponse{Model: captured.Model}
		if reply != "" {
			resp.Choices = []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAIClient_GenerateOutline(t *testing.T) {
	var req openai.ChatCompletionRequest
	ts := chatServer(t, "**Introduction**\n\nA tale.", &req)
	defer ts.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: ts.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"})
	text, err := c.GenerateOutline(context.Background(), ParametersFrom(fantasyState()))

	require.NoError(t, err)
	assert.Equal(t, "**Introduction**\n\nA tale.", text)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Fantasy")
	assert.Contains(t, req.Messages[0].Content, "Name: Aria")
}

func TestOpenAIClient_GenerateChapter(t *testing.T) {
	var req openai.ChatCompletionRequest
	ts := chatServer(t, "**Chapter 2: Tide**\n\nWater.", &req)
	defer ts.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: ts.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"})
	text, err := c.GenerateChapter(context.Background(), &ChapterRequest{
		StoryOutline:   fantasyOutline,
		GeneratedStory: "**Chapter 1: The Lamplighter**\n\nLight.",
		WritingStyle:   "Descriptive",
		StoryTone:      "Serious",
		Complexity:     5,
		Language:       "English",
		Chapter:        2,
	})

	require.NoError(t, err)
	assert.Equal(t, "**Chapter 2: Tide**\n\nWater.", text)
	assert.Contains(t, req.Messages[0].Content, "Under the Tide")
	assert.Contains(t, req.Messages[0].Content, "The Lamplighter")
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	var req openai.ChatCompletionRequest
	ts := chatServer(t, "", &req)
	defer ts.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: ts.URL + "/v1", APIKey: "sk-test", Model: "m"})
	_, err := c.GenerateOutline(context.Background(), ParametersFrom(fantasyState()))

	assert.EqualError(t, err, "no choices returned from model")
}

func TestNewGenerator(t *testing.T) {
	cfg := config.Default().AI
	cfg.APIKey = "k"
	cfg.ProjectID = "p"

	gen, err := NewGenerator(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &TableClient{}, gen)

	cfg.Provider = config.ProviderOpenAI
	gen, err = NewGenerator(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)

	cfg.Provider = "carrier-pigeon"
	_, err = NewGenerator(cfg, zap.NewNop())
	assert.Error(t, err)
}

// Package llm talks to an OpenAI compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"classqa/internal/classroom/model"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = openai.GPT3Dot5Turbo
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

const summarySystemPrompt = `You are an educational analysis assistant. Analyze the set of student answers to a single question and write a summary that strictly follows the provided summary_instructions.

Your output MUST be ONLY the summary text. Do not add introductory phrases such as "Based on the data" or "Here is the summary", and do not wrap the summary in JSON or Markdown.`

const searchSystemPrompt = `You select questions that match a teacher's search query. You receive the query and a list of questions with their ids, titles and texts.

Reply with ONLY a JSON array of the matching question ids, for example [3, 7]. Reply with [] when nothing matches.`

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("openai api key not configured")

// Config holds chat completion settings.
type Config struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
}

// Client implements the summarizer and searcher collaborators on top of go-openai.
type Client struct {
	api *openai.Client
	cfg Config
}

// NewClient builds a client. A missing API key is reported on first use, so the
// rest of the service still starts.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	c := &Client{cfg: cfg}
	if cfg.APIKey != "" {
		apiCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		c.api = openai.NewClientWithConfig(apiCfg)
	}
	return c
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.api != nil
}

// Summarize returns the model's summary text, trimmed.
func (c *Client) Summarize(ctx context.Context, req model.SummaryRequest) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary request failed: %w", err)
	}
	return c.complete(ctx, summarySystemPrompt, string(payload))
}

// Search returns the model's raw reply, expected to be a JSON array of ids.
// The reply is untrusted; callers must validate it.
func (c *Client) Search(ctx context.Context, query string, candidates []model.SearchCandidate) (string, error) {
	payload, err := json.MarshalIndent(struct {
		Query     string                  `json:"query"`
		Questions []model.SearchCandidate `json:"questions"`
	}{Query: query, Questions: candidates}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode search request failed: %w", err)
	}
	return c.complete(ctx, searchSystemPrompt, string(payload))
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

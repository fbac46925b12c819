package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config describes an OpenAI-compatible chat completions endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// Timeout bounds one Complete call. Zero means no limit beyond ctx.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient sends each prompt as a single user message.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

var _ TextGenerator = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg Config, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation api key not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("generation model not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	logger.Info("generation client initialized", "base_url", oc.BaseURL, "model", cfg.Model)
	return &OpenAIClient{client: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.logger.Error("chat completion failed", "model", c.cfg.Model, "error", err)
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Status: http.StatusOK, Message: "no choices in response"}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &Error{Status: http.StatusOK, Message: "empty completion"}
	}
	c.logger.Debug("chat completion received", "finish_reason", resp.Choices[0].FinishReason, "chars", len(text))
	return text, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" {
			msg = fmt.Sprint(reqErr.Err)
		}
		return &Error{Status: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &Error{Message: err.Error(), Err: err}
}

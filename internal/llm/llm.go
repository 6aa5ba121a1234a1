package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/leanchems-go/internal/config"
)

// Client is the single completion call the conversation manager makes. *openai.Client
// satisfies it; tests substitute recording fakes.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ErrEmptyCompletion is returned when the provider answers without any usable text.
var ErrEmptyCompletion = errors.New("llm: completion has no content")

// NewClient creates the completion client for cfg.Provider: any OpenAI-compatible
// endpoint ("openai", the default) or Azure OpenAI ("azure", base_url required).
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	var clientCfg openai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderOpenAI:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	case config.ProviderAzure:
		if cfg.BaseURL == "" {
			return nil, errors.New("llm: azure provider requires base_url")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return openai.NewClientWithConfig(clientCfg), nil
}

// Content extracts the text of the first choice.
func Content(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

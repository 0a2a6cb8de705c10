package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// ErrNotConfigured is returned when no completion backend is set up.
var ErrNotConfigured = errors.New("OpenAI not configured")

// Answerer produces the reply to a single user message.
type Answerer interface {
	Answer(ctx context.Context, message string) (string, error)
}

// DefaultAPIVersion is the Azure OpenAI REST version used when none is set.
const DefaultAPIVersion = "2024-06-01"

// OpenAIConfig describes a chat-completions backend. APIType "azure" (the
// default) addresses the Azure deployment named by Deployment; "openai"
// treats Endpoint as a plain OpenAI-compatible base URL and Deployment as
// the model name.
type OpenAIConfig struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string
	APIType    string
}

type OpenAI struct {
	client     openai.Client
	deployment string
}

// NewOpenAI returns an answerer backed by a chat-completions deployment.
// Endpoint and deployment are both required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	deployment := strings.TrimSpace(cfg.Deployment)
	if endpoint == "" || deployment == "" {
		return nil, ErrNotConfigured
	}

	var opts []option.RequestOption
	switch apiType := strings.ToLower(strings.TrimSpace(cfg.APIType)); apiType {
	case "", "azure":
		version := strings.TrimSpace(cfg.APIVersion)
		if version == "" {
			version = DefaultAPIVersion
		}
		opts = append(opts, azure.WithEndpoint(endpoint, version))
		if cfg.APIKey != "" {
			opts = append(opts, azure.WithAPIKey(cfg.APIKey))
		}
	case "openai":
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithBaseURL(endpoint))
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
	default:
		return nil, fmt.Errorf("unknown OpenAI API type %q", apiType)
	}

	return &OpenAI{
		client:     openai.NewClient(opts...),
		deployment: deployment,
	}, nil
}

func (o *OpenAI) Answer(ctx context.Context, message string) (string, error) {
	res, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(message),
		},
		Model: o.deployment,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return res.Choices[0].Message.Content, nil
}

// Echo answers every message with itself. It is meant for local development.
type Echo struct{}

func (Echo) Answer(_ context.Context, message string) (string, error) {
	return "echo: " + message, nil
}

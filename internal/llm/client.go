// Package llm talks to an OpenAI-compatible chat-completion endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/httpclient"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }

func UserMessage(content string) Message { return Message{Role: "user", Content: content} }

// Model returns one raw response per message list, in input order.
type Model interface {
	Call(ctx context.Context, batches [][]Message, concurrency int) ([]string, error)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Seed        int       `json:"seed,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatClient is a Model backed by a chat-completion HTTP API.
type ChatClient struct {
	httpc       *resty.Client
	endpoint    string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	seed        int
	logger      hclog.Logger
}

// NewChatClient builds a client from the llm and http_client directives.
func NewChatClient(cfg *config.Config, logger hclog.Logger) (*ChatClient, error) {
	if cfg.LLM.Endpoint == "" {
		return nil, fmt.Errorf("llm endpoint is not configured")
	}
	if cfg.LLM.Model == "" {
		return nil, fmt.Errorf("llm model is not configured")
	}

	httpc := httpclient.InitializeRestyClient(logger, cfg)
	httpc.SetHeader("Content-Type", "application/json")
	if cfg.LLM.APIKey != "" {
		httpc.SetAuthToken(cfg.LLM.APIKey)
	}

	return &ChatClient{
		httpc:       httpc,
		endpoint:    cfg.LLM.Endpoint,
		model:       cfg.LLM.Model,
		temperature: cfg.LLM.Temperature,
		topP:        cfg.LLM.TopP,
		maxTokens:   cfg.MaxTokens(),
		seed:        cfg.LLM.Seed,
		logger:      logger,
	}, nil
}

// Name returns the configured model name. It is used to name cache files.
func (c *ChatClient) Name() string { return c.model }

// Complete sends a single conversation and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	var result chatResponse
	var failure apiError
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
			TopP:        c.topP,
			MaxTokens:   c.maxTokens,
			Seed:        c.seed,
		}).
		SetResult(&result).
		SetError(&failure).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if resp.IsError() {
		msg := failure.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("%d on chat completion: %s", resp.StatusCode(), msg)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// Call runs every conversation with at most concurrency requests in flight.
// A failed conversation yields an empty response so one bad batch does not sink the rest.
// Only cancellation of ctx is reported as an error.
func (c *ChatClient) Call(ctx context.Context, batches [][]Message, concurrency int) ([]string, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	responses := make([]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, messages := range batches {
		i, messages := i, messages
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := c.Complete(gctx, messages)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("model call failed, using empty response", "batch", i, "error", err)
				return nil
			}
			responses[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return responses, err
	}
	return responses, nil
}

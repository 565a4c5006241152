// Package ai wraps the OpenAI boundary the chatbot handler calls through.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pensador-ai/website/backend/internal/model/chat"
)

// ErrEmptyReply reports that the model produced no usable text even after the
// truncation retry.
var ErrEmptyReply = errors.New("model returned no text output")

// Config carries the model parameters for the boundary.
type Config struct {
	APIKey               string
	BaseURL              string
	Model                string
	UseTemperature       bool
	Temperature          float32
	UseTopP              bool
	TopP                 float32
	MaxOutputTokens      int
	RetryMaxOutputTokens int
	Timeout              time.Duration
}

// Enabled reports whether the boundary has the credential it needs.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// Service generates assistant replies for sanitized widget conversations.
type Service struct {
	client *openai.Client
	cfg    Config
	prompt string
}

// NewService builds the boundary client. The system instructions are
// assembled once; they do not vary per request.
func NewService(cfg Config) (*Service, error) {
	if !cfg.Enabled() {
		return nil, errors.New("openai api key or model missing")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		prompt: buildSystemInstructions(),
	}, nil
}

// Reply runs one model call for the conversation and returns the assistant
// text. When the reply comes back empty because the output-token ceiling cut
// it off, the call is retried once with the larger ceiling; network-level
// failures are never retried.
func (s *Service) Reply(ctx context.Context, msgs []chat.Message, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	input := s.buildInput(msgs, userMessage)

	text, truncated, err := s.complete(ctx, input, s.cfg.MaxOutputTokens)
	if err != nil {
		return "", err
	}

	if text == "" && truncated {
		log.Printf("[ai] retrying truncated completion model=%s firstCeiling=%d retryCeiling=%d",
			s.cfg.Model, s.cfg.MaxOutputTokens, s.cfg.RetryMaxOutputTokens)
		text, _, err = s.complete(ctx, input, s.cfg.RetryMaxOutputTokens)
		if err != nil {
			return "", err
		}
	}

	if text == "" {
		return "", ErrEmptyReply
	}

	return text, nil
}

// complete performs a single chat completion bounded by maxTokens and reports
// whether the output was cut off by that ceiling.
func (s *Service) complete(ctx context.Context, input []openai.ChatCompletionMessage, maxTokens int) (text string, truncated bool, err error) {
	req := openai.ChatCompletionRequest{
		Model:               s.cfg.Model,
		Messages:            input,
		MaxCompletionTokens: maxTokens,
	}
	if s.cfg.UseTemperature {
		req.Temperature = s.cfg.Temperature
	}
	if s.cfg.UseTopP {
		req.TopP = s.cfg.TopP
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", false, nil
	}

	choice := resp.Choices[0]
	return strings.TrimSpace(choice.Message.Content), choice.FinishReason == openai.FinishReasonLength, nil
}

// buildInput assembles system instructions, the history window and the new
// user turn in conversation order.
func (s *Service) buildInput(msgs []chat.Message, userMessage string) []openai.ChatCompletionMessage {
	input := make([]openai.ChatCompletionMessage, 0, len(msgs)+2)
	input = append(input, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.prompt,
	})

	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleUser:
			input = append(input, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case chat.RoleAssistant:
			input = append(input, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content})
		}
	}

	input = append(input, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	return input
}

// StatusForError extracts the HTTP status the boundary reported, defaulting
// to 500 for anything without one.
func StatusForError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode
	}

	return http.StatusInternalServerError
}

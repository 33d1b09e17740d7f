// Package llm asks an OpenAI-compatible chat completion endpoint for two short
// facts about a recognized object.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
	"ar-scan-go/internal/platform/logging"
)

// Texts shown in place of facts when generation fails.
const (
	FallbackEmptyCompletion = "Sorry, I couldn't generate information about this object."
	FallbackTransport       = "Sorry, there was an error communicating with the AI assistant."
)

const systemPrompt = "You are a concise information provider for an AR application. " +
	"Respond with exactly the format requested, without any additional text, introductions, or commentary. " +
	"Be direct and informative."

// Generator produces the facts text for a label.
type Generator interface {
	GenerateFacts(ctx context.Context, label string) (string, error)
}

// Sender performs one JSON call.
type Sender interface {
	Send(ctx context.Context, r httpjson.Request, out any) error
}

type Config struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	// Optional OpenRouter attribution headers.
	Referer string
	Title   string
}

type Service struct {
	cfg    Config
	client Sender
	logger *logging.Logger
}

func NewService(cfg Config, client Sender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{cfg: cfg, client: client, logger: logger}
}

// BuildMessages returns the fixed system and user messages for label.
func BuildMessages(label string) []openai.ChatCompletionMessage {
	user := fmt.Sprintf("Identify this object as '%s' and provide exactly 2 fun and interesting facts about it. "+
		"Format your response like this: 'This is a %s. [Fact 1] [Fact 2]' "+
		"Do not add any introductions, conclusions, or other commentary.", label, label)
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}

// GenerateFacts returns choices[0].message.content. A body without usable
// content is KindEmptyCompletion; transport and service failures keep their
// kind.
func (s *Service) GenerateFacts(ctx context.Context, label string) (string, error) {
	const op = "llm.generate"

	req := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    BuildMessages(label),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	header := http.Header{}
	if s.cfg.Referer != "" {
		header.Set("HTTP-Referer", s.cfg.Referer)
	}
	if s.cfg.Title != "" {
		header.Set("X-Title", s.cfg.Title)
	}

	var resp openai.ChatCompletionResponse
	err := s.client.Send(ctx, httpjson.Request{
		URL:         s.cfg.URL,
		Header:      header,
		BearerToken: s.cfg.APIKey,
		Body:        req,
	}, &resp)
	if err != nil {
		if platformerrors.IsKind(err, platformerrors.KindParse) {
			return "", &platformerrors.Error{Kind: platformerrors.KindEmptyCompletion, Op: op, Message: "unreadable completion", Cause: err}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", platformerrors.New(platformerrors.KindEmptyCompletion, op, "completion has no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", platformerrors.New(platformerrors.KindEmptyCompletion, op, "completion content is empty")
	}

	s.logger.InfoTag(logging.TagLLM, "facts generated for %q (%d chars, model %s)", label, len(text), resp.Model)
	return text, nil
}

// FallbackFor maps a generation failure to the text shown instead of facts.
func FallbackFor(err error) string {
	if platformerrors.IsKind(err, platformerrors.KindEmptyCompletion) {
		return FallbackEmptyCompletion
	}
	return FallbackTransport
}

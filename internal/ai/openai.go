package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/belai/internal/shared"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

// openingCue stands in for the empty user turn that asks the AI to greet.
// Chat completion endpoints reject a conversation without a user message.
const openingCue = "(The learner has joined. Please start the conversation now.)"

var errEmptyCompletion = errors.New("the AI returned an empty response")

// Config configures an OpenAIClient.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// OpenAIClient implements ConversationClient and Coach over an
// OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	apiKey  string
	logger  *slog.Logger
}

// NewOpenAIClient creates a client. A missing API key is not an error here;
// every call will fail with a ConfigurationError instead.
func NewOpenAIClient(cfg Config, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		logger:  logger,
	}
}

type chatSession struct {
	id     string
	system string

	// mu serializes exchanges so history stays in turn order.
	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (s *chatSession) ID() string { return s.id }

func (c *OpenAIClient) credentialError(op string) error {
	if c.apiKey == "" {
		return &shared.ConfigurationError{Op: op, Err: errors.New("AI API key is not configured")}
	}
	return nil
}

// OpenSession starts a conversation bound to systemInstruction.
func (c *OpenAIClient) OpenSession(_ context.Context, systemInstruction string) (Session, error) {
	if err := c.credentialError("open session"); err != nil {
		return nil, err
	}
	s := &chatSession{id: uuid.NewString(), system: systemInstruction}
	c.logger.Debug("chat session opened", "session_id", s.id, "model", c.model)
	return s, nil
}

// Exchange sends one user turn within s.
func (c *OpenAIClient) Exchange(ctx context.Context, s Session, userText string) (Reply, error) {
	const op = "exchange"
	if err := c.credentialError(op); err != nil {
		return Reply{}, err
	}
	cs, ok := s.(*chatSession)
	if !ok || cs == nil {
		return Reply{}, &shared.ServiceError{Op: op, Err: fmt.Errorf("session %T was not opened by this client", s)}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	content := strings.TrimSpace(userText)
	if content == "" {
		content = openingCue
	}
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}

	messages := make([]openai.ChatCompletionMessage, 0, len(cs.history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: cs.system})
	messages = append(messages, cs.history...)
	messages = append(messages, userMsg)

	text, err := c.complete(ctx, openai.ChatCompletionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return Reply{}, shared.NewServiceError(op, err)
	}

	cs.history = append(cs.history, userMsg, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: text,
	})
	return Reply{Text: text, Citations: ExtractCitations(text)}, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Warn("chat completion failed", "model", req.Model, "error", err)
		return "", describeAPIError(err)
	}
	c.logger.Debug("chat completion finished",
		"model", req.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// describeAPIError reduces API errors to their human-readable message.
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("status %d: %w", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err
}

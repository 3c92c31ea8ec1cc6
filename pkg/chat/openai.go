package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIProbeModel = "gpt-4o-mini"

// openAIAPI is the subset of the go-openai client used here, extracted
// for testability.
type openAIAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// OpenAIClient implements Client for OpenAI and OpenAI-compatible
// endpoints. Unlike Gemini, the endpoint keeps no server-side chat state,
// so each session carries its own history and replays it on every send.
type OpenAIClient struct {
	api        openAIAPI
	probeModel string
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	// APIKey is the endpoint credential.
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
	// ProbeModel overrides the model used for connectivity probes
	// (default gpt-4o-mini).
	ProbeModel string
}

// NewOpenAIClient creates an OpenAI-backed chat client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key not set")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	probeModel := cfg.ProbeModel
	if probeModel == "" {
		probeModel = defaultOpenAIProbeModel
	}

	return &OpenAIClient{
		api:        openai.NewClientWithConfig(clientCfg),
		probeModel: probeModel,
	}, nil
}

// NewSession creates a session holding its own dialogue history.
func (c *OpenAIClient) NewSession(ctx context.Context, model, systemInstruction string) (Session, error) {
	if model == "" {
		return nil, &SessionInitError{Provider: "openai", Model: model, Err: errors.New("model is required")}
	}

	var history []openai.ChatCompletionMessage
	if systemInstruction != "" {
		history = append(history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}

	return &openAISession{
		id:      uuid.New().String(),
		api:     c.api,
		model:   model,
		history: history,
	}, nil
}

// Probe issues a one-token completion against the probe model.
func (c *OpenAIClient) Probe(ctx context.Context) bool {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.probeModel,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		log.Printf("openai probe failed: %v", err)
		return false
	}
	return true
}

// Close implements Client.
func (c *OpenAIClient) Close() error {
	return nil
}

type openAISession struct {
	id    string
	api   openAIAPI
	model string

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (s *openAISession) ID() string { return s.id }

func (s *openAISession) Send(ctx context.Context, text string) (Stream, error) {
	s.mu.Lock()
	s.history = append(s.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	messages := make([]openai.ChatCompletionMessage, len(s.history))
	copy(messages, s.history)
	s.mu.Unlock()

	upstream, err := s.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, &StreamError{Provider: "openai", Err: err}
	}

	stream, fragments, errCh := newChanStream(ctx)

	go func() {
		defer close(fragments)
		defer close(errCh)
		defer func() { _ = upstream.Close() }()

		var reply []byte
		for {
			resp, err := upstream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					// Completed reply joins the history so the next
					// send carries full context.
					s.mu.Lock()
					s.history = append(s.history, openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: string(reply),
					})
					s.mu.Unlock()
					return
				}
				errCh <- &StreamError{Provider: "openai", Err: err}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			reply = append(reply, delta...)

			select {
			case fragments <- delta:
			case <-stream.ctx.Done():
				return
			}
		}
	}()

	return stream, nil
}

package chat

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiClient implements Client using the Google Gen AI SDK.
// One GeminiClient holds one API credential; sessions created from it
// are independent chat bindings that accumulate history remotely.
type GeminiClient struct {
	client     *genai.Client
	probeModel string
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	// APIKey is the Gemini API key. Falls back to GEMINI_API_KEY.
	APIKey string
	// ProbeModel overrides the model used for connectivity probes
	// (default DefaultProbeModel).
	ProbeModel string
}

// NewGeminiClient creates a Gemini-backed chat client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	probeModel := cfg.ProbeModel
	if probeModel == "" {
		probeModel = DefaultProbeModel
	}

	return &GeminiClient{
		client:     client,
		probeModel: probeModel,
	}, nil
}

// NewSession creates a chat session bound to the given model and optional
// system instruction.
func (c *GeminiClient) NewSession(ctx context.Context, model, systemInstruction string) (Session, error) {
	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	chatSession, err := c.client.Chats.Create(ctx, model, config, nil)
	if err != nil {
		return nil, &SessionInitError{Provider: "gemini", Model: model, Err: err}
	}

	return &geminiSession{
		id:   uuid.New().String(),
		chat: chatSession,
	}, nil
}

// Probe issues a one-token generation against the probe model.
// Any failure collapses to false; causes are not distinguished.
func (c *GeminiClient) Probe(ctx context.Context) bool {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	}
	_, err := c.client.Models.GenerateContent(ctx, c.probeModel, genai.Text("ping"), config)
	if err != nil {
		log.Printf("gemini probe failed: %v", err)
		return false
	}
	return true
}

// Close implements Client. The genai.Client does not expose a Close
// method; its resources are managed by the SDK.
func (c *GeminiClient) Close() error {
	return nil
}

type geminiSession struct {
	id   string
	chat *genai.Chat
}

func (s *geminiSession) ID() string { return s.id }

// Send starts one streaming exchange. The SDK's iter.Seq2 stream is
// pumped into a channel-backed Stream so the caller can consume and
// cancel it independently.
func (s *geminiSession) Send(ctx context.Context, text string) (Stream, error) {
	stream, fragments, errCh := newChanStream(ctx)

	go func() {
		defer close(fragments)
		defer close(errCh)

		for resp, err := range s.chat.SendMessageStream(stream.ctx, genai.Part{Text: text}) {
			if err != nil {
				errCh <- &StreamError{Provider: "gemini", Err: err}
				return
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			select {
			case fragments <- chunk:
			case <-stream.ctx.Done():
				return
			}
		}
	}()

	return stream, nil
}

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const defaultModelID = "eleven_multilingual_v2"

// Options configures the ElevenLabs client.
type Options struct {
	APIKey     string
	BaseURL    string
	VoiceID    string
	ModelID    string
	HTTPClient *http.Client
}

// Client calls the ElevenLabs text-to-speech endpoint and returns encoded
// audio (mp3) in one synchronous round trip.
type Client struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

type convertRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if opts.VoiceID == "" {
		return nil, errors.New("elevenlabs voice id is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	modelID := opts.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		voiceID:    opts.VoiceID,
		modelID:    modelID,
		httpClient: client,
	}, nil
}

// Convert synthesizes speech for text and returns the audio bytes with their
// MIME type.
func (c *Client) Convert(ctx context.Context, text string) ([]byte, string, error) {
	body, err := json.Marshal(convertRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invoke elevenlabs: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("%w: elevenlabs status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", domain.ErrNoAudioProduced
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return audio, mimeType, nil
}

package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	TTSModel   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a lightweight facade over the Gemini REST API covering the two
// calls the pipeline needs: text generation for summaries and speech
// generation for audio.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	ttsModel   string
	httpClient *http.Client
	logger     *infra.Logger
}

// TextResult is a normalized text generation response. Raw carries the
// provider's response body verbatim for audit storage and is excluded from
// checkpoint serialization by the caller.
type TextResult struct {
	Text         string
	ModelVersion string
	FinishReason string
	Raw          []byte
}

// SpeechResult carries decoded audio bytes and the provider-reported MIME type.
type SpeechResult struct {
	Data     []byte
	MimeType string
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates   []candidate `json:"candidates"`
	ModelVersion string      `json:"modelVersion,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	ttsModel := opts.TTSModel
	if ttsModel == "" {
		ttsModel = "gemini-2.5-flash-preview-tts"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		ttsModel:   ttsModel,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured text model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateText sends a single-turn prompt and returns the first candidate's
// first text part. An empty candidate list is an error; the caller decides
// whether a placeholder is acceptable.
func (c *Client) GenerateText(ctx context.Context, prompt string) (*TextResult, error) {
	payload := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
	}

	raw, response, err := c.invoke(ctx, c.model, payload)
	if err != nil {
		return nil, err
	}

	result := &TextResult{
		Text:         firstText(response),
		ModelVersion: response.ModelVersion,
		Raw:          raw,
	}
	if len(response.Candidates) > 0 {
		result.FinishReason = response.Candidates[0].FinishReason
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("finish_reason", result.FinishReason).
		Int("summary_len", len(result.Text)).
		Msg("genai: text generated")

	return result, nil
}

// GenerateSpeech synthesizes speech for the given text using a prebuilt voice.
// The returned bytes are the decoded inline payload, typically raw PCM at
// 24 kHz mono 16-bit; the caller is responsible for containerizing them.
func (c *Client) GenerateSpeech(ctx context.Context, text, voice string) (*SpeechResult, error) {
	payload := generateContentRequest{
		Contents: []content{{
			Parts: []part{{Text: "Read aloud in a warm, welcoming tone: " + text}},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}

	_, response, err := c.invoke(ctx, c.ttsModel, payload)
	if err != nil {
		return nil, err
	}

	audio := firstInlineData(response)
	if audio == nil || audio.Data == "" {
		return nil, domain.ErrNoAudioProduced
	}
	data, err := base64.StdEncoding.DecodeString(audio.Data)
	if err != nil {
		return nil, fmt.Errorf("decode audio data: %w", err)
	}

	c.logger.Debug().
		Str("model", c.ttsModel).
		Str("voice", voice).
		Str("mime_type", audio.MimeType).
		Int("audio_bytes", len(data)).
		Msg("genai: speech generated")

	return &SpeechResult{Data: data, MimeType: audio.MimeType}, nil
}

func (c *Client) invoke(ctx context.Context, model string, payload generateContentRequest) ([]byte, *generateContentResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invoke gemini: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, nil, fmt.Errorf("%w: gemini status %d: %s", domain.ErrProviderFailure, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, nil, fmt.Errorf("%w: gemini status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var response generateContentResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, nil, fmt.Errorf("decode gemini response: %w", err)
	}
	return raw, &response, nil
}

func firstText(response *generateContentResponse) string {
	for _, cand := range response.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
		break
	}
	return ""
}

func firstInlineData(response *generateContentResponse) *inlineData {
	for _, cand := range response.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil {
				return p.InlineData
			}
		}
		break
	}
	return nil
}

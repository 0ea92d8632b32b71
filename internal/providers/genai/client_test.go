package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"server/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, transport roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		Model:      "gemini-2.5-flash",
		TTSModel:   "gemini-2.5-flash-preview-tts",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestGenerateTextExtractsFirstCandidate(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		captured = r
		capturedBody, _ = io.ReadAll(r.Body)
		return jsonResponse(http.StatusOK, `{
			"candidates":[{"content":{"parts":[{"text":"A summary."}]},"finishReason":"STOP"}],
			"modelVersion":"gemini-2.5-flash-001"
		}`), nil
	})

	res, err := client.GenerateText(context.Background(), "Summarize this")
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if res.Text != "A summary." {
		t.Fatalf("Text = %q", res.Text)
	}
	if res.FinishReason != "STOP" {
		t.Fatalf("FinishReason = %q", res.FinishReason)
	}
	if res.ModelVersion != "gemini-2.5-flash-001" {
		t.Fatalf("ModelVersion = %q", res.ModelVersion)
	}
	if len(res.Raw) == 0 {
		t.Fatalf("Raw response body not captured")
	}

	if !strings.Contains(captured.URL.Path, "models/gemini-2.5-flash:generateContent") {
		t.Fatalf("request path = %q", captured.URL.Path)
	}
	if captured.URL.Query().Get("key") != "test-key" {
		t.Fatalf("api key missing from query")
	}
	var req generateContentRequest
	if err := json.Unmarshal(capturedBody, &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "Summarize this" {
		t.Fatalf("request contents = %+v", req.Contents)
	}
}

func TestGenerateTextEmptyCandidates(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
	})
	res, err := client.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if res.Text != "" {
		t.Fatalf("Text = %q, want empty so the caller can apply its placeholder", res.Text)
	}
}

func TestGenerateTextAPIError(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`), nil
	})
	_, err := client.GenerateText(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want the provider message surfaced", err)
	}
}

func TestGenerateTextTransportError(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := client.GenerateText(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
}

func TestGenerateSpeechDecodesInlineAudio(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 32)
	encoded := base64.StdEncoding.EncodeToString(pcm)

	var capturedBody []byte
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		capturedBody, _ = io.ReadAll(r.Body)
		return jsonResponse(http.StatusOK, `{
			"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"`+encoded+`"}}]}}]
		}`), nil
	})

	res, err := client.GenerateSpeech(context.Background(), "hello", "Kore")
	if err != nil {
		t.Fatalf("GenerateSpeech returned error: %v", err)
	}
	if !bytes.Equal(res.Data, pcm) {
		t.Fatalf("decoded audio differs from source PCM")
	}
	if res.MimeType != "audio/L16;rate=24000" {
		t.Fatalf("MimeType = %q", res.MimeType)
	}

	var req generateContentRequest
	if err := json.Unmarshal(capturedBody, &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if req.GenerationConfig == nil || len(req.GenerationConfig.ResponseModalities) != 1 || req.GenerationConfig.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("generation config = %+v, want AUDIO modality", req.GenerationConfig)
	}
	if got := req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Kore" {
		t.Fatalf("voice = %q, want Kore", got)
	}
	if !strings.HasPrefix(req.Contents[0].Parts[0].Text, "Read aloud in a warm, welcoming tone: ") {
		t.Fatalf("speech prompt = %q", req.Contents[0].Parts[0].Text)
	}
}

func TestGenerateSpeechNoAudio(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"no audio here"}]}}]}`), nil
	})
	_, err := client.GenerateSpeech(context.Background(), "hello", "Kore")
	if !errors.Is(err, domain.ErrNoAudioProduced) {
		t.Fatalf("err = %v, want ErrNoAudioProduced", err)
	}
}

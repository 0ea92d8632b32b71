package workflow

import (
	"context"
	"fmt"

	"server/internal/domain"
	"server/internal/providers/genai"
	"server/internal/providers/tts"
	"server/internal/textutil"
)

// AudioArtifact is the synthesize stage's checkpointed output. The audio
// bytes live in blob storage; the checkpoint carries only the key.
type AudioArtifact struct {
	StorageKey string `json:"storageKey"`
	MimeType   string `json:"mimeType"`
	Size       int    `json:"size"`
}

// Synthesizer turns cleaned summary text into a stored audio artifact. The
// direct and delegated variants all satisfy this one capability; which one
// runs is a configuration choice.
type Synthesizer interface {
	Synthesize(ctx context.Context, submissionID, text string) (*AudioArtifact, error)
}

// GeminiSynthesizer performs one synchronous Gemini speech call. Gemini
// returns base64 raw PCM, so a WAV container header is prefixed before the
// artifact is stored.
type GeminiSynthesizer struct {
	client *genai.Client
	blobs  domain.BlobStore
	voice  string
	format PCMFormat
}

func NewGeminiSynthesizer(client *genai.Client, blobs domain.BlobStore, voice string) *GeminiSynthesizer {
	return &GeminiSynthesizer{
		client: client,
		blobs:  blobs,
		voice:  voice,
		format: DefaultPCMFormat,
	}
}

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, submissionID, text string) (*AudioArtifact, error) {
	speech, err := s.client.GenerateSpeech(ctx, text, s.voice)
	if err != nil {
		return nil, err
	}
	wav := WAVContainer(speech.Data, s.format)
	key := fmt.Sprintf("submissions/%s/tts.wav", submissionID)
	storedKey, err := s.blobs.Put(ctx, key, wav, "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	return &AudioArtifact{StorageKey: storedKey, MimeType: "audio/wav", Size: len(wav)}, nil
}

// ElevenLabsSynthesizer performs one synchronous ElevenLabs call, which
// returns already-encoded mp3 audio.
type ElevenLabsSynthesizer struct {
	client *tts.Client
	blobs  domain.BlobStore
}

func NewElevenLabsSynthesizer(client *tts.Client, blobs domain.BlobStore) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{client: client, blobs: blobs}
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, submissionID, text string) (*AudioArtifact, error) {
	audio, mimeType, err := s.client.Convert(ctx, text)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("submissions/%s/tts.mp3", submissionID)
	storedKey, err := s.blobs.Put(ctx, key, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	return &AudioArtifact{StorageKey: storedKey, MimeType: mimeType, Size: len(audio)}, nil
}

// DelegatedSynthesizer drives the synthd sidecar through the submit/poll
// protocol. The sidecar writes the audio to blob storage itself and reports
// the key back in the terminal status.
type DelegatedSynthesizer struct {
	poller *Poller
}

func NewDelegatedSynthesizer(poller *Poller) *DelegatedSynthesizer {
	return &DelegatedSynthesizer{poller: poller}
}

func (s *DelegatedSynthesizer) Synthesize(ctx context.Context, submissionID, text string) (*AudioArtifact, error) {
	status, err := s.poller.Run(ctx, Task{SubmissionID: submissionID, Text: text})
	if err != nil {
		return nil, err
	}
	if status.ResultKey == "" {
		return nil, domain.ErrNoAudioProduced
	}
	return &AudioArtifact{StorageKey: status.ResultKey, MimeType: "audio/mpeg"}, nil
}

var (
	_ Synthesizer = (*GeminiSynthesizer)(nil)
	_ Synthesizer = (*ElevenLabsSynthesizer)(nil)
	_ Synthesizer = (*DelegatedSynthesizer)(nil)
)

// synthesizeStage normalizes the summary for speech, stores the cleaned text
// as a side artifact, and invokes the configured synthesizer. Like summarize,
// it runs without retry.
func (o *Orchestrator) synthesizeStage(ctx context.Context, sub *domain.Submission, summary string) (AudioArtifact, error) {
	clean := textutil.CleanForSpeech(summary)

	key := fmt.Sprintf("submissions/%s/clean_summary.txt", sub.ID)
	if _, err := o.blobs.Put(ctx, key, []byte(clean), "text/plain"); err != nil {
		return AudioArtifact{}, fmt.Errorf("store clean summary: %w", err)
	}

	artifact, err := o.synthesizer.Synthesize(ctx, sub.ID, clean)
	if err != nil {
		return AudioArtifact{}, err
	}
	return *artifact, nil
}

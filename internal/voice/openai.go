package voice

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider wraps Whisper transcription and OpenAI speech synthesis.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI voice adapter.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// Transcribe sends audio through Whisper.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req *TranscriptionRequest) (_ *Transcription, err error) {
	started := time.Now()
	defer func() { observe("openai", "transcribe", started, err) }()

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   req.Audio,
		FilePath: req.Filename,
		Language: req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	return &Transcription{
		Text:       resp.Text,
		Provider:   "openai",
		DurationMs: int64(resp.Duration * 1000),
	}, nil
}

// Synthesize generates speech from text.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *SpeechRequest) (_ *Speech, err error) {
	started := time.Now()
	defer func() { observe("openai", "synthesize", started, err) }()

	voice := openai.SpeechVoice(req.Voice)
	if req.Voice == "" {
		voice = openai.VoiceAlloy
	}
	model := openai.SpeechModel(req.Model)
	if req.Model == "" {
		model = openai.TTSModel1
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: model,
		Input: req.Text,
		Voice: voice,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}

	return &Speech{Audio: audio, ContentType: "audio/mpeg", Provider: "openai"}, nil
}

// Voices lists the fixed OpenAI speech voices.
func (p *OpenAIProvider) Voices(ctx context.Context) ([]Voice, error) {
	names := []openai.SpeechVoice{
		openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer,
	}
	voices := make([]Voice, 0, len(names))
	for _, v := range names {
		voices = append(voices, Voice{ID: string(v), Name: string(v), Provider: "openai"})
	}
	return voices, nil
}

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const assemblyAIBaseURL = "https://api.assemblyai.com"

// AssemblyAIProvider transcribes audio through AssemblyAI's async API:
// upload the audio, create a transcript job, then poll until it settles.
type AssemblyAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAssemblyAIProvider creates an AssemblyAI adapter.
func NewAssemblyAIProvider(apiKey string, client *http.Client) *AssemblyAIProvider {
	return &AssemblyAIProvider{apiKey: apiKey, baseURL: assemblyAIBaseURL, client: client}
}

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyTranscriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type assemblyTranscript struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Error      string  `json:"error"`
	AudioDur   float64 `json:"audio_duration"`
	Confidence float64 `json:"confidence"`
}

// Transcribe runs the full upload/create/poll cycle.
func (p *AssemblyAIProvider) Transcribe(ctx context.Context, req *TranscriptionRequest) (_ *Transcription, err error) {
	started := time.Now()
	defer func() { observe("assemblyai", "transcribe", started, err) }()

	audioURL, err := p.upload(ctx, req)
	if err != nil {
		return nil, err
	}

	id, err := p.createTranscript(ctx, audioURL, req.Language)
	if err != nil {
		return nil, err
	}

	transcript, err := p.poll(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Transcription{
		Text:       transcript.Text,
		Provider:   "assemblyai",
		DurationMs: int64(transcript.AudioDur * 1000),
		Confidence: transcript.Confidence,
	}, nil
}

func (p *AssemblyAIProvider) upload(ctx context.Context, req *TranscriptionRequest) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", req.Audio)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("assemblyai upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assemblyai upload returned %d", resp.StatusCode)
	}

	var payload assemblyUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return payload.UploadURL, nil
}

func (p *AssemblyAIProvider) createTranscript(ctx context.Context, audioURL, language string) (string, error) {
	body, err := json.Marshal(assemblyTranscriptRequest{AudioURL: audioURL, LanguageCode: language})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("assemblyai transcript create failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assemblyai transcript create returned %d", resp.StatusCode)
	}

	var transcript assemblyTranscript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	return transcript.ID, nil
}

// poll fetches the transcript until it reaches a terminal status, backing off
// between attempts.
func (p *AssemblyAIProvider) poll(ctx context.Context, id string) (*assemblyTranscript, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	policy := backoff.WithContext(b, ctx)

	var transcript *assemblyTranscript
	err := backoff.Retry(func() error {
		t, err := p.getTranscript(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		switch t.Status {
		case "completed":
			transcript = t
			return nil
		case "error":
			return backoff.Permanent(fmt.Errorf("assemblyai transcription failed: %s", t.Error))
		default:
			return fmt.Errorf("transcript %s still %s", id, t.Status)
		}
	}, policy)
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

func (p *AssemblyAIProvider) getTranscript(ctx context.Context, id string) (*assemblyTranscript, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("assemblyai poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assemblyai poll returned %d", resp.StatusCode)
	}

	var transcript assemblyTranscript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return &transcript, nil
}

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// defaultElevenLabsVoice is "Rachel", the stock voice every account has.
const defaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsProvider synthesizes speech through the ElevenLabs REST API.
type ElevenLabsProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewElevenLabsProvider creates an ElevenLabs adapter.
func NewElevenLabsProvider(apiKey string, client *http.Client) *ElevenLabsProvider {
	return &ElevenLabsProvider{apiKey: apiKey, baseURL: elevenLabsBaseURL, client: client}
}

type elevenLabsTTSRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Synthesize generates speech for the given voice ID.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req *SpeechRequest) (_ *Speech, err error) {
	started := time.Now()
	defer func() { observe("elevenlabs", "synthesize", started, err) }()

	voice := req.Voice
	if voice == "" {
		voice = defaultElevenLabsVoice
	}
	model := req.Model
	if model == "" {
		model = "eleven_monolingual_v1"
	}

	body, err := json.Marshal(elevenLabsTTSRequest{Text: req.Text, ModelID: model})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs audio: %w", err)
	}

	return &Speech{Audio: audio, ContentType: "audio/mpeg", Provider: "elevenlabs"}, nil
}

type elevenLabsVoicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
		Labels  struct {
			Gender string `json:"gender"`
		} `json:"labels"`
	} `json:"voices"`
}

// Voices lists the account's available voices.
func (p *ElevenLabsProvider) Voices(ctx context.Context) (_ []Voice, err error) {
	started := time.Now()
	defer func() { observe("elevenlabs", "voices", started, err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs returned %d", resp.StatusCode)
	}

	var payload elevenLabsVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode elevenlabs voices: %w", err)
	}

	voices := make([]Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		voices = append(voices, Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Gender:   v.Labels.Gender,
			Provider: "elevenlabs",
		})
	}
	return voices, nil
}

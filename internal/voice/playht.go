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

const playHTBaseURL = "https://api.play.ht"

// PlayHTProvider synthesizes speech through the Play.ht v2 REST API.
type PlayHTProvider struct {
	apiKey  string
	userID  string
	baseURL string
	client  *http.Client
}

// NewPlayHTProvider creates a Play.ht adapter.
func NewPlayHTProvider(apiKey, userID string, client *http.Client) *PlayHTProvider {
	return &PlayHTProvider{apiKey: apiKey, userID: userID, baseURL: playHTBaseURL, client: client}
}

func (p *PlayHTProvider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("X-USER-ID", p.userID)
}

type playHTTTSRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	OutputFormat string `json:"output_format"`
	VoiceEngine  string `json:"voice_engine,omitempty"`
}

// Synthesize generates speech. Play.ht streams the audio bytes directly when
// asked for audio/mpeg.
func (p *PlayHTProvider) Synthesize(ctx context.Context, req *SpeechRequest) (_ *Speech, err error) {
	started := time.Now()
	defer func() { observe("playht", "synthesize", started, err) }()

	if req.Voice == "" {
		return nil, fmt.Errorf("playht requires a voice id")
	}

	body, err := json.Marshal(playHTTTSRequest{
		Text:         req.Text,
		Voice:        req.Voice,
		OutputFormat: "mp3",
		VoiceEngine:  req.Model,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v2/tts/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("playht request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playht returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read playht audio: %w", err)
	}

	return &Speech{Audio: audio, ContentType: "audio/mpeg", Provider: "playht"}, nil
}

type playHTVoice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

// Voices lists available Play.ht voices.
func (p *PlayHTProvider) Voices(ctx context.Context) (_ []Voice, err error) {
	started := time.Now()
	defer func() { observe("playht", "voices", started, err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v2/voices", nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("playht request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playht returned %d", resp.StatusCode)
	}

	var payload []playHTVoice
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode playht voices: %w", err)
	}

	voices := make([]Voice, 0, len(payload))
	for _, v := range payload {
		voices = append(voices, Voice{
			ID:       v.ID,
			Name:     v.Name,
			Language: v.Language,
			Gender:   v.Gender,
			Provider: "playht",
		})
	}
	return voices, nil
}

package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const deepgramBaseURL = "https://api.deepgram.com"

// DeepgramProvider transcribes audio through the Deepgram listen API.
type DeepgramProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewDeepgramProvider creates a Deepgram adapter.
func NewDeepgramProvider(apiKey string, client *http.Client) *DeepgramProvider {
	return &DeepgramProvider{apiKey: apiKey, baseURL: deepgramBaseURL, client: client}
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts raw audio to /v1/listen.
func (p *DeepgramProvider) Transcribe(ctx context.Context, req *TranscriptionRequest) (_ *Transcription, err error) {
	started := time.Now()
	defer func() { observe("deepgram", "transcribe", started, err) }()

	params := url.Values{}
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if req.Language != "" {
		params.Set("language", req.Language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/listen?"+params.Encode(), req.Audio)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram returned %d", resp.StatusCode)
	}

	var payload deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}

	if len(payload.Results.Channels) == 0 || len(payload.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram returned no transcript")
	}
	alt := payload.Results.Channels[0].Alternatives[0]

	return &Transcription{
		Text:       alt.Transcript,
		Provider:   "deepgram",
		DurationMs: int64(payload.Metadata.Duration * 1000),
		Confidence: alt.Confidence,
	}, nil
}

// Package voice adapts speech-to-text and text-to-speech providers behind
// provider-agnostic interfaces. Adapters are thin REST wrappers; every call
// records a provider request metric.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/capitalize-ai/mission-control/internal/config"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// ErrProviderNotConfigured is returned when a provider is requested but its
// API key is missing.
var ErrProviderNotConfigured = errors.New("voice provider not configured")

// TranscriptionRequest carries audio to transcribe.
type TranscriptionRequest struct {
	Audio    io.Reader
	Filename string
	Language string
}

// Transcription is a completed speech-to-text result.
type Transcription struct {
	Text       string  `json:"text"`
	Provider   string  `json:"provider"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SpeechRequest carries text to synthesize.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Model string `json:"model,omitempty"`
}

// Speech is synthesized audio.
type Speech struct {
	Audio       []byte
	ContentType string
	Provider    string
}

// Voice describes one synthesizer voice offered by a provider.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Provider string `json:"provider"`
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, req *TranscriptionRequest) (*Transcription, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *SpeechRequest) (*Speech, error)
	Voices(ctx context.Context) ([]Voice, error)
}

// Registry holds the configured provider adapters keyed by provider name.
type Registry struct {
	transcribers map[string]Transcriber
	synthesizers map[string]Synthesizer

	defaultSTT string
	defaultTTS string
}

// NewRegistry builds adapters for every provider with credentials configured.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		transcribers: make(map[string]Transcriber),
		synthesizers: make(map[string]Synthesizer),
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}

	if cfg.OpenAIAPIKey != "" {
		oa := NewOpenAIProvider(cfg.OpenAIAPIKey)
		r.register("openai", oa, oa)
	}
	if cfg.DeepgramAPIKey != "" {
		r.register("deepgram", NewDeepgramProvider(cfg.DeepgramAPIKey, httpClient), nil)
	}
	if cfg.AssemblyAIAPIKey != "" {
		r.register("assemblyai", NewAssemblyAIProvider(cfg.AssemblyAIAPIKey, httpClient), nil)
	}
	if cfg.ElevenLabsAPIKey != "" {
		r.register("elevenlabs", nil, NewElevenLabsProvider(cfg.ElevenLabsAPIKey, httpClient))
	}
	if cfg.PlayHTAPIKey != "" && cfg.PlayHTUserID != "" {
		r.register("playht", nil, NewPlayHTProvider(cfg.PlayHTAPIKey, cfg.PlayHTUserID, httpClient))
	}
	return r
}

func (r *Registry) register(name string, t Transcriber, s Synthesizer) {
	if t != nil {
		r.transcribers[name] = t
		if r.defaultSTT == "" || name == "openai" {
			r.defaultSTT = name
		}
	}
	if s != nil {
		r.synthesizers[name] = s
		if r.defaultTTS == "" || name == "openai" {
			r.defaultTTS = name
		}
	}
}

// Transcriber returns the named adapter, or the default when name is empty.
func (r *Registry) Transcriber(name string) (Transcriber, string, error) {
	if name == "" {
		name = r.defaultSTT
	}
	t, ok := r.transcribers[name]
	if !ok {
		return nil, name, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return t, name, nil
}

// Synthesizer returns the named adapter, or the default when name is empty.
func (r *Registry) Synthesizer(name string) (Synthesizer, string, error) {
	if name == "" {
		name = r.defaultTTS
	}
	s, ok := r.synthesizers[name]
	if !ok {
		return nil, name, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return s, name, nil
}

// Providers lists configured provider names with their capabilities.
func (r *Registry) Providers() []ProviderInfo {
	seen := make(map[string]*ProviderInfo)
	for name := range r.transcribers {
		seen[name] = &ProviderInfo{Name: name, Transcribe: true}
	}
	for name := range r.synthesizers {
		if info, ok := seen[name]; ok {
			info.Synthesize = true
		} else {
			seen[name] = &ProviderInfo{Name: name, Synthesize: true}
		}
	}
	out := make([]ProviderInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProviderInfo describes a configured voice provider.
type ProviderInfo struct {
	Name       string `json:"name"`
	Transcribe bool   `json:"transcribe"`
	Synthesize bool   `json:"synthesize"`
}

// observe records a provider metric for one adapter call.
func observe(provider, operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordProviderRequest(provider, operation, status, time.Since(started).Seconds())
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/voice"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// maxAudioSize bounds uploaded audio (25MB, the Whisper limit).
const maxAudioSize = 25 << 20

// VoiceHandler handles speech-to-text and text-to-speech endpoints.
type VoiceHandler struct {
	registry *voice.Registry
	logger   *logger.Logger
}

// NewVoiceHandler creates a new voice handler.
func NewVoiceHandler(registry *voice.Registry, log *logger.Logger) *VoiceHandler {
	return &VoiceHandler{
		registry: registry,
		logger:   log,
	}
}

// Providers handles GET /api/v1/voice/providers
func (h *VoiceHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.registry.Providers(),
	})
}

// Transcribe handles POST /api/v1/voice/transcribe
//
// Accepts multipart form data with an "audio" file field. ?provider= selects
// the adapter.
func (h *VoiceHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transcriber, provider, err := h.registry.Transcriber(r.URL.Query().Get("provider"))
	if err != nil {
		writeVoiceError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxAudioSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	result, err := transcriber.Transcribe(ctx, &voice.TranscriptionRequest{
		Audio:    file,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	})
	if err != nil {
		h.logger.Error("transcription failed",
			zap.String("provider", provider),
			zap.String("tenant_id", middleware.GetTenantID(ctx)),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// speechRequest is the synthesis request body.
type speechRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Speech handles POST /api/v1/voice/speech
func (h *VoiceHandler) Speech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateSpeechText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	synthesizer, provider, err := h.registry.Synthesizer(req.Provider)
	if err != nil {
		writeVoiceError(w, err)
		return
	}

	result, err := synthesizer.Synthesize(ctx, &voice.SpeechRequest{
		Text:  req.Text,
		Voice: req.Voice,
		Model: req.Model,
	})
	if err != nil {
		h.logger.Error("speech synthesis failed",
			zap.String("provider", provider),
			zap.String("tenant_id", middleware.GetTenantID(ctx)),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("X-Voice-Provider", result.Provider)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// Voices handles GET /api/v1/voice/voices?provider=
func (h *VoiceHandler) Voices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	synthesizer, provider, err := h.registry.Synthesizer(r.URL.Query().Get("provider"))
	if err != nil {
		writeVoiceError(w, err)
		return
	}

	voices, err := synthesizer.Voices(ctx)
	if err != nil {
		h.logger.Error("failed to list voices",
			zap.String("provider", provider),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to list voices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"voices":   voices,
	})
}

func writeVoiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, voice.ErrProviderNotConfigured) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "voice provider error")
}

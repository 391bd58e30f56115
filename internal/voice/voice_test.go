package voice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/config"
)

func TestRegistryDefaultsAndLookup(t *testing.T) {
	reg := NewRegistry(&config.Config{
		OpenAIAPIKey:     "sk-test",
		DeepgramAPIKey:   "dg-test",
		ElevenLabsAPIKey: "el-test",
	})

	_, name, err := reg.Transcriber("")
	require.NoError(t, err)
	assert.Equal(t, "openai", name, "openai is the preferred default")

	_, name, err = reg.Transcriber("deepgram")
	require.NoError(t, err)
	assert.Equal(t, "deepgram", name)

	_, _, err = reg.Transcriber("assemblyai")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, name, err = reg.Synthesizer("elevenlabs")
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", name)

	providers := reg.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "deepgram", providers[0].Name)
	assert.True(t, providers[0].Transcribe)
	assert.False(t, providers[0].Synthesize)
	assert.Equal(t, "openai", providers[2].Name)
	assert.True(t, providers[2].Transcribe)
	assert.True(t, providers[2].Synthesize)
}

func TestRegistryEmpty(t *testing.T) {
	reg := NewRegistry(&config.Config{})

	_, _, err := reg.Transcriber("")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
	_, _, err = reg.Synthesizer("")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
	assert.Empty(t, reg.Providers())
}

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPath, gotKey, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	p := NewElevenLabsProvider("el-key", server.Client())
	p.baseURL = server.URL

	speech, err := p.Synthesize(context.Background(), &SpeechRequest{Text: "hello world"})
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), speech.Audio)
	assert.Equal(t, "audio/mpeg", speech.ContentType)
	assert.Equal(t, "elevenlabs", speech.Provider)
	assert.Equal(t, "/v1/text-to-speech/"+defaultElevenLabsVoice, gotPath)
	assert.Equal(t, "el-key", gotKey)
	assert.Contains(t, gotBody, `"hello world"`)
	assert.Contains(t, gotBody, "eleven_monolingual_v1")
}

func TestElevenLabsSynthesizeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewElevenLabsProvider("bad-key", server.Client())
	p.baseURL = server.URL

	_, err := p.Synthesize(context.Background(), &SpeechRequest{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDeepgramTranscribe(t *testing.T) {
	var gotAuth, gotModel, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotModel = r.URL.Query().Get("model")
		gotLanguage = r.URL.Query().Get("language")
		w.Write([]byte(`{
			"metadata": {"duration": 2.5},
			"results": {"channels": [{"alternatives": [
				{"transcript": "schedule the daily digest", "confidence": 0.97}
			]}]}
		}`))
	}))
	defer server.Close()

	p := NewDeepgramProvider("dg-key", server.Client())
	p.baseURL = server.URL

	result, err := p.Transcribe(context.Background(), &TranscriptionRequest{
		Audio:    strings.NewReader("fake-audio"),
		Language: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "schedule the daily digest", result.Text)
	assert.Equal(t, "deepgram", result.Provider)
	assert.Equal(t, int64(2500), result.DurationMs)
	assert.InDelta(t, 0.97, result.Confidence, 1e-9)
	assert.Equal(t, "Token dg-key", gotAuth)
	assert.Equal(t, "nova-2", gotModel)
	assert.Equal(t, "en", gotLanguage)
}

func TestDeepgramTranscribeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": {"channels": []}}`))
	}))
	defer server.Close()

	p := NewDeepgramProvider("dg-key", server.Client())
	p.baseURL = server.URL

	_, err := p.Transcribe(context.Background(), &TranscriptionRequest{
		Audio: strings.NewReader("fake-audio"),
	})
	assert.ErrorContains(t, err, "no transcript")
}

package whisper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loudWav() []byte {
	pcm := make([]byte, 3200)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i], pcm[i+1] = 0x00, 0x40 // 16384
	}
	return append(utils.BuildWavHeader(len(pcm), 16000, 1, 16), pcm...)
}

func newWhisperServer(t *testing.T, text string, calls *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "clip.wav", header.Filename)
			data, _ := io.ReadAll(file)
			assert.NotEmpty(t, data)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"text":%q}`, text)
	}))
}

func TestTranscribe(t *testing.T) {
	calls := 0
	srv := newWhisperServer(t, "  are you a shark?  ", &calls)
	defer srv.Close()

	provider, err := asr.Create("whisper", &asr.Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	text, err := provider.Transcribe(context.Background(), loudWav(), "clip")
	require.NoError(t, err)
	assert.Equal(t, "are you a shark?", text)
	assert.Equal(t, 1, calls)
}

func TestTranscribe_EmptyResult(t *testing.T) {
	calls := 0
	srv := newWhisperServer(t, "", &calls)
	defer srv.Close()

	provider, err := asr.Create("whisper", &asr.Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = provider.Transcribe(context.Background(), loudWav(), "clip.wav")
	assert.ErrorIs(t, err, asr.ErrNoSpeech)
}

func TestTranscribe_SilentWavSkipsRequest(t *testing.T) {
	calls := 0
	srv := newWhisperServer(t, "ignored", &calls)
	defer srv.Close()

	provider, err := asr.Create("whisper", &asr.Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	silent := append(utils.BuildWavHeader(3200, 16000, 1, 16), make([]byte, 3200)...)
	_, err = provider.Transcribe(context.Background(), silent, "clip.wav")
	assert.ErrorIs(t, err, asr.ErrNoSpeech)
	assert.Zero(t, calls)
}

func TestTranscribe_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"whisper down"}}`)
	}))
	defer srv.Close()

	provider, err := asr.Create("whisper", &asr.Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = provider.Transcribe(context.Background(), loudWav(), "clip.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whisper down")
}

func TestMissingKey(t *testing.T) {
	_, err := asr.Create("whisper", &asr.Config{})
	assert.Error(t, err)
}

func TestNormalizeFilename(t *testing.T) {
	assert.Equal(t, "a.webm", normalizeFilename("../../a.webm", "webm"))
	assert.Equal(t, "audio.mp3", normalizeFilename("", "mp3"))
	assert.Equal(t, "rec.wav", normalizeFilename("rec", ""))
}

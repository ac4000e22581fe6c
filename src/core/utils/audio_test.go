package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavDuration(t *testing.T) {
	pcm := make([]byte, 32000) // 16kHz 单声道 16bit，一秒
	data := append(BuildWavHeader(len(pcm), 16000, 1, 16), pcm...)

	d, err := WavDuration(data)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, "wav", DetectAudioFormat(data))

	_, err = WavDuration([]byte("not a wav"))
	assert.Error(t, err)
}

func TestDetectAudioFormat(t *testing.T) {
	assert.Equal(t, "mp3", DetectAudioFormat([]byte("ID3\x04\x00")))
	assert.Equal(t, "mp3", DetectAudioFormat([]byte{0xFF, 0xFB, 0x90, 0x00}))
	assert.Equal(t, "ogg", DetectAudioFormat([]byte("OggS\x00\x02")))
	assert.Equal(t, "webm", DetectAudioFormat([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}))
	assert.Equal(t, "m4a", DetectAudioFormat([]byte("\x00\x00\x00\x20ftypM4A ")))
	assert.Equal(t, "", DetectAudioFormat([]byte("hello")))
}

func TestMP3DurationInvalid(t *testing.T) {
	_, err := MP3DurationFromBytes(nil)
	assert.Error(t, err)

	_, err = MP3Duration(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestSaveAudioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "a.mp3")
	require.NoError(t, SaveAudioFile([]byte("abc"), path))
	assert.FileExists(t, path)
}

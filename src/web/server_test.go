package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/auth"
	"noir-server-go/src/core/chat"
	"noir-server-go/src/core/health"
	"noir-server-go/src/core/memory"
	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/types"
	"noir-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noirReply = "🧠 *He suspects.*\n🎬 *flaps fins innocently*\n🗣️ 'I am a real dolphin! 😊'"

type fakeLLM struct {
	mu       sync.Mutex
	prompts  []string
	errorMsg string
}

func (f *fakeLLM) Initialize() error { return nil }
func (f *fakeLLM) Cleanup() error    { return nil }

func (f *fakeLLM) Response(ctx context.Context, sessionID string, messages []types.Message) (<-chan types.Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	f.mu.Unlock()

	ch := make(chan types.Response, 4)
	if f.errorMsg != "" {
		ch <- types.Response{Error: f.errorMsg, StopReason: "error"}
	} else {
		half := len(noirReply) / 2
		for half < len(noirReply) && !utf8Start(noirReply[half]) {
			half++
		}
		ch <- types.Response{Content: noirReply[:half]}
		ch <- types.Response{Content: noirReply[half:]}
	}
	close(ch)
	return ch, nil
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type fakeTTS struct {
	dir   string
	voice string
}

func (f *fakeTTS) Initialize() error { return nil }
func (f *fakeTTS) Cleanup() error    { return nil }

func (f *fakeTTS) ToTTS(ctx context.Context, text string) (string, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("tts_%d.wav", len(text)))
	return path, os.WriteFile(path, []byte(text), 0644)
}

func (f *fakeTTS) SetVoice(voice string) error {
	if voice != "Rachel" && voice != "Bella" {
		return fmt.Errorf("未知音色: %s", voice)
	}
	f.voice = voice
	return nil
}

func (f *fakeTTS) Voices(ctx context.Context) (map[string]string, error) {
	return map[string]string{"Rachel": "id-rachel", "Bella": "id-bella"}, nil
}

type fakeASR struct {
	text string
	err  error
}

func (f *fakeASR) Initialize() error { return nil }
func (f *fakeASR) Cleanup() error    { return nil }

func (f *fakeASR) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return f.text, f.err
}

type testEnv struct {
	router *gin.Engine
	llm    *fakeLLM
	deps   *Deps
}

type envOption func(*Deps)

func withSpeaker(t *testing.T) envOption {
	return func(d *Deps) {
		d.Speaker = speech.NewSpeaker(&fakeTTS{dir: t.TempDir(), voice: "Rachel"}, nil, d.Logger)
	}
}

func withASR(a *fakeASR) envOption {
	return func(d *Deps) { d.ASR = a }
}

func withAuth(t *testing.T) envOption {
	return func(d *Deps) {
		at, err := auth.NewAuthToken("secret", "static-token")
		require.NoError(t, err)
		d.Auth = at
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := utils.NewTestLogger(io.Discard)

	store, err := memory.NewChromemStore(context.Background(), memory.Config{PersistDir: t.TempDir()},
		memory.NewHashEmbedder(256), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	llm := &fakeLLM{}
	deps := &Deps{
		Config: &configs.Config{},
		Logger: logger,
		Agent: chat.NewAgent(llm, store, chat.NewSessionStore(nil, 40, logger), chat.AgentConfig{
			SystemPrompt: "You are Noir.",
			UserTopK:     3,
			AITopK:       2,
		}, logger),
		Memory: store,
	}
	for _, opt := range opts {
		opt(deps)
	}
	router, err := NewRouter(context.Background(), deps)
	require.NoError(t, err)
	return &testEnv{router: router, llm: llm, deps: deps}
}

func (e *testEnv) do(method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, withSpeaker(t))
	w := env.do(http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.LLM)
	assert.True(t, status.TTS)
	assert.False(t, status.ASR)
	assert.True(t, status.Memory)
	assert.False(t, status.Transcripts)
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/chat/stream")
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/chat", ChatRequest{SessionID: "s1", Message: "are you a shark?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, noirReply, resp.Reply)
	assert.Equal(t, "I am a real dolphin! 😊", resp.Speech)
	assert.Equal(t, "happy", resp.Emotion)
	assert.Empty(t, resp.AudioURL)

	w = env.do(http.MethodGet, "/api/session/s1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["history"], 2)
}

func TestChatErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/chat", ChatRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.llm.errorMsg = "DeepSeek服务响应异常: 401"
	w = env.do(http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.True(t, strings.HasPrefix(resp["message"].(string), "Error: "), resp["message"])
}

func TestChatWithSpeech(t *testing.T) {
	env := newTestEnv(t, withSpeaker(t))
	w := env.do(http.MethodPost, "/api/chat", ChatRequest{Message: "hello", Speak: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AudioURL)
	assert.Equal(t, "I am a real dolphin!", resp.Speech)

	w = env.do(http.MethodGet, resp.AudioURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "I am a real dolphin!", w.Body.String())

	for _, name := range []string{".hidden", "missing.wav"} {
		w = env.do(http.MethodGet, "/api/audio/"+name, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, name)
	}
}

func TestChatStream(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: "s1", Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:delta")
	assert.Contains(t, body, "event:done")
	assert.Contains(t, body, `"emotion":"happy"`)

	env.llm.errorMsg = "boom"
	w = env.do(http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: "s1", Message: "hello"})
	body = w.Body.String()
	assert.Contains(t, body, "event:error")
	assert.NotContains(t, body, "event:done")
}

func newVoiceRequest(t *testing.T, sessionID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", sessionID))
	part, err := mw.CreateFormFile("file", "input.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio payload"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestVoice_TranscriptReachesPrompt(t *testing.T) {
	env := newTestEnv(t, withASR(&fakeASR{text: "is Darkhan a real seller?"}))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, newVoiceRequest(t, "v1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "is Darkhan a real seller?", resp.Transcript)
	assert.Equal(t, noirReply, resp.Reply)
	assert.Contains(t, env.llm.lastPrompt(), "is Darkhan a real seller?")
}

func TestVoice_Errors(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, newVoiceRequest(t, "v1"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = newTestEnv(t, withASR(&fakeASR{err: asr.ErrNoSpeech}))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, newVoiceRequest(t, "v1"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, env.llm.prompts)
}

func TestTTS(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/tts", TTSRequest{Text: "privet"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = newTestEnv(t, withSpeaker(t))
	w = env.do(http.MethodPost, "/api/tts", TTSRequest{Text: "lol privet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "laugh out loud privet", resp["speech"])

	w = env.do(http.MethodPost, "/api/tts", TTSRequest{Text: "🦈🦈"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/tts/stream", TTSRequest{Text: "privet"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = env.do(http.MethodGet, "/api/tts/voices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "id-bella")

	w = env.do(http.MethodPost, "/api/tts/voice", VoiceRequest{Voice: "Bella"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, "/api/tts/voice", VoiceRequest{Voice: "Nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.deps.Memory.AddMessage(ctx, "I am a real dolphin", memory.RoleUser))
	require.NoError(t, env.deps.Memory.AddMessage(ctx, "Darkhan sold me", memory.RoleAI))

	w := env.do(http.MethodGet, "/api/memory/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_messages"])

	w = env.do(http.MethodGet, "/api/memory/search?q=dolphin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode(t, w)["results"].([]interface{})
	require.NotEmpty(t, found)
	assert.Equal(t, "I am a real dolphin", found[0].(map[string]interface{})["content"])

	w = env.do(http.MethodGet, "/api/memory/search?q=darkhan&mode=keyword", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["results"], 1)

	w = env.do(http.MethodGet, "/api/memory/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/memory/recent?count=1&role=ai", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "Darkhan sold me", results[0].(map[string]interface{})["content"])

	w = env.do(http.MethodDelete, "/api/memory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	n, err := env.deps.Memory.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, withAuth(t))

	w := env.do(http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := decode(t, w)
	sessionID := session["session_id"].(string)
	token := session["token"].(string)
	require.NotEmpty(t, token)

	w = env.do(http.MethodPost, "/api/chat", ChatRequest{SessionID: sessionID, Message: "hello"},
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, "/api/chat", ChatRequest{SessionID: "someone-else", Message: "hello"},
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/memory/stats", nil, "Authorization", "Bearer static-token")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/chat", ChatRequest{SessionID: "s1", Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/session/s1/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	n, err := env.deps.Memory.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)

	w = env.do(http.MethodDelete, "/api/session/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := env.deps.Agent.Sessions().Lookup("s1")
	assert.False(t, ok)
}

func TestConfigRoute(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Config.Server.Auth.Enabled = true

	w := env.do(http.MethodGet, "/api/cfg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"auth_enabled":true`)
}

func TestHealthRoute(t *testing.T) {
	quick := &health.ConnectivityConfig{Enabled: true, Timeout: time.Second, RetryAttempts: 1}

	t.Run("未配置检查器", func(t *testing.T) {
		w := newTestEnv(t).do(http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("LLM不可用", func(t *testing.T) {
		logger := utils.NewTestLogger(io.Discard)
		checker := health.NewHealthChecker(health.Targets{LLM: &fakeLLM{errorMsg: "401 invalid key"}}, quick, logger)
		require.Error(t, checker.CheckAllProviders(context.Background(), health.FunctionalCheck))

		env := newTestEnv(t, func(d *Deps) { d.Health = checker })
		w := env.do(http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Healthy bool                          `json:"healthy"`
			Results map[string]health.CheckResult `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Healthy)
		assert.Contains(t, body.Results["LLM"].Error, "invalid key")
	})

	t.Run("刷新基础检查", func(t *testing.T) {
		logger := utils.NewTestLogger(io.Discard)
		checker := health.NewHealthChecker(health.Targets{LLM: &fakeLLM{}}, quick, logger)
		env := newTestEnv(t, func(d *Deps) { d.Health = checker })

		w := env.do(http.MethodGet, "/api/health?refresh=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"LLM"`)
	})
}

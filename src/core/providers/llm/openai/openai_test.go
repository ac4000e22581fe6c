package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"noir-server-go/src/core/providers/llm"
	"noir-server-go/src/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChatServer 模拟OpenAI兼容的流式对话接口，返回的请求体通过 captured 读取
func newChatServer(t *testing.T, chunks []string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "deepseek-chat",
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"content": c}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func drain(ch <-chan types.Response) (string, string) {
	var text strings.Builder
	errMsg := ""
	for resp := range ch {
		text.WriteString(resp.Content)
		if resp.Error != "" {
			errMsg = resp.Error
		}
	}
	return text.String(), errMsg
}

func TestDeepSeekProvider_Stream(t *testing.T) {
	var body map[string]interface{}
	srv := newChatServer(t, []string{"🧠 *", "<think>plan</think>", "Glub", " glub!"}, &body)
	defer srv.Close()

	provider, err := llm.Create("deepseek", &llm.Config{
		Type:             "deepseek",
		APIKey:           "test-key",
		BaseURL:          srv.URL + "/v1",
		Temperature:      1.1,
		TopP:             0.9,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.6,
	})
	require.NoError(t, err)

	ch, err := provider.Response(context.Background(), "s1", []types.Message{
		{Role: types.RoleSystem, Content: "You are Noir."},
		{Role: types.RoleUser, Content: "are you a shark?"},
	})
	require.NoError(t, err)

	text, errMsg := drain(ch)
	assert.Empty(t, errMsg)
	assert.Equal(t, "🧠 *Glub glub!", text)

	assert.Equal(t, DeepSeekModel, body["model"])
	assert.InDelta(t, 1.1, body["temperature"], 0.001)
	assert.InDelta(t, 0.9, body["top_p"], 0.001)
	assert.InDelta(t, 0.3, body["frequency_penalty"], 0.001)
	assert.InDelta(t, 0.6, body["presence_penalty"], 0.001)
	assert.EqualValues(t, llm.DefaultMaxTokens, body["max_tokens"])
	assert.Equal(t, true, body["stream"])

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "are you a shark?", messages[1].(map[string]interface{})["content"])
}

func TestProvider_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	provider, err := llm.Create("openai", &llm.Config{APIKey: "bad", BaseURL: srv.URL + "/v1", ModelName: "gpt-4o-mini"})
	require.NoError(t, err)

	ch, err := provider.Response(context.Background(), "s1", []types.Message{{Role: types.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	text, errMsg := drain(ch)
	assert.Empty(t, text)
	assert.Contains(t, errMsg, "OpenAI服务响应异常")
	assert.Contains(t, errMsg, "invalid api key")
}

func TestProvider_MissingKey(t *testing.T) {
	_, err := llm.Create("deepseek", &llm.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DeepSeek")
}

func TestCreate_UnknownProvider(t *testing.T) {
	_, err := llm.Create("nope", &llm.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未知的LLM提供者")
}

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"noir-server-go/src/core/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeServer 回显式的服务端，按消息类型返回固定回复
func fakeServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg types.ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case types.MsgHello:
				if msg.Token == "bad" {
					conn.WriteJSON(types.ServerMessage{Type: types.MsgError, Message: "无效的认证token"})
					return
				}
				conn.WriteJSON(types.ServerMessage{Type: types.MsgHello, SessionID: "cli-1"})
			case types.MsgChat:
				if msg.Text == "exit" {
					conn.WriteJSON(types.ServerMessage{Type: types.MsgBye})
					return
				}
				conn.WriteJSON(types.ServerMessage{Type: types.MsgLLM, Text: "Privet, "})
				conn.WriteJSON(types.ServerMessage{Type: types.MsgLLM, Text: msg.Text})
				conn.WriteJSON(types.ServerMessage{Type: types.MsgDone, Emotion: "happy"})
			case types.MsgClear:
				conn.WriteJSON(types.ServerMessage{Type: types.MsgCleared})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitTurn(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.turnDone:
	case <-time.After(5 * time.Second):
		t.Fatal("等待回复超时")
	}
}

func TestClient_ChatAndClear(t *testing.T) {
	out := &syncBuffer{}
	client, err := NewClient(wsURL(fakeServer(t)), out)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Hello("", ""))
	assert.Equal(t, "cli-1", client.SessionID())

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		client.ReadMessages()
	}()

	require.NoError(t, client.Chat("comrade", false))
	waitTurn(t, client)
	assert.Contains(t, out.String(), "Privet, comrade\n[happy]")

	require.NoError(t, client.ClearHistory())
	waitTurn(t, client)
	assert.Contains(t, out.String(), "已清空对话历史")

	require.NoError(t, client.Chat("exit", false))
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("收到bye后读循环应退出")
	}
	assert.Contains(t, out.String(), "再见")
}

func TestClient_HelloRejected(t *testing.T) {
	client, err := NewClient(wsURL(fakeServer(t)), &syncBuffer{})
	require.NoError(t, err)
	defer client.Close()

	err = client.Hello("", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的认证token")
}

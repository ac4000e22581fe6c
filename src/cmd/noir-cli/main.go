// noir-cli 命令行对话客户端，通过WebSocket连接服务端
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"

	"noir-server-go/src/core/types"

	"github.com/gorilla/websocket"
)

// Client WebSocket对话客户端
type Client struct {
	conn      *websocket.Conn
	out       io.Writer
	sessionID string

	writeMu sync.Mutex
	// 一轮回复结束时通知输入循环
	turnDone chan struct{}
}

// NewClient 连接服务端
func NewClient(addr string, out io.Writer) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("连接服务端失败: %w", err)
	}
	return &Client{
		conn:     conn,
		out:      out,
		turnDone: make(chan struct{}, 1),
	}, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) send(msg types.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hello 绑定会话并等待服务端确认
func (c *Client) Hello(sessionID, token string) error {
	if err := c.send(types.ClientMessage{Type: types.MsgHello, SessionID: sessionID, Token: token}); err != nil {
		return fmt.Errorf("发送hello失败: %w", err)
	}
	var msg types.ServerMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("读取hello响应失败: %w", err)
	}
	switch msg.Type {
	case types.MsgHello:
		c.sessionID = msg.SessionID
		return nil
	case types.MsgError:
		return fmt.Errorf("认证失败: %s", msg.Message)
	default:
		return fmt.Errorf("期望hello响应，收到: %s", msg.Type)
	}
}

// SessionID 当前会话ID
func (c *Client) SessionID() string {
	return c.sessionID
}

// Chat 发送一条文字消息
func (c *Client) Chat(text string, speak bool) error {
	return c.send(types.ClientMessage{Type: types.MsgChat, Text: text, Speak: &speak})
}

// ClearHistory 清空会话历史与记忆
func (c *Client) ClearHistory() error {
	return c.send(types.ClientMessage{Type: types.MsgClear})
}

// ReadMessages 打印服务端消息，连接断开或收到bye时返回
func (c *Client) ReadMessages() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) &&
				!strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("读取消息失败: %v", err)
			}
			return
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("解析消息失败: %v", err)
			continue
		}
		if !c.render(msg) {
			return
		}
	}
}

// render 输出一条消息，返回false表示会话结束
func (c *Client) render(msg types.ServerMessage) bool {
	switch msg.Type {
	case types.MsgLLM:
		fmt.Fprint(c.out, msg.Text)
	case types.MsgSTT:
		fmt.Fprintf(c.out, "[识别] %s\n", msg.Text)
	case types.MsgDone:
		fmt.Fprintf(c.out, "\n[%s]\n", msg.Emotion)
		c.signalTurn()
	case types.MsgTTS:
		fmt.Fprintf(c.out, "[音频] %s (%dms)\n", msg.AudioURL, msg.DurationMs)
	case types.MsgCleared:
		fmt.Fprintln(c.out, "[已清空对话历史]")
		c.signalTurn()
	case types.MsgError:
		fmt.Fprintf(c.out, "\n[错误] %s\n", msg.Message)
		c.signalTurn()
	case types.MsgBye:
		fmt.Fprintln(c.out, "再见!")
		c.signalTurn()
		return false
	}
	return true
}

func (c *Client) signalTurn() {
	select {
	case c.turnDone <- struct{}{}:
	default:
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8000/", "WebSocket服务地址")
	token := flag.String("token", "", "认证token，服务端开启认证时必填")
	session := flag.String("session", "", "会话ID，为空时由服务端分配")
	speak := flag.Bool("speak", false, "是否请求语音合成")
	flag.Parse()

	log.SetFlags(log.Ltime)

	client, err := NewClient(*addr, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer client.Close()

	if err := client.Hello(*session, *token); err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Printf("已连接，会话ID: %s\n输入消息开始对话，/clear 清空历史，/quit 退出\n", client.SessionID())

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		client.ReadMessages()
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		client.Close()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/clear":
			err = client.ClearHistory()
		default:
			err = client.Chat(line, *speak)
		}
		if err != nil {
			log.Printf("发送消息失败: %v", err)
			return
		}

		select {
		case <-client.turnDone:
		case <-finished:
			return
		}
	}
}

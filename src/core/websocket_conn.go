package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed 连接已关闭
var ErrConnectionClosed = errors.New("websocket connection is closed")

const (
	// 超过该时间没有收到任何消息时断开
	readTimeout  = 5 * time.Minute
	writeTimeout = 30 * time.Second
	closeTimeout = 5 * time.Second
)

// websocketConn 在gorilla连接上增加写串行化和活跃时间记录
type websocketConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	closed     atomic.Bool
	lastActive atomic.Int64 // unix秒
}

func newWebsocketConn(conn *websocket.Conn) *websocketConn {
	w := &websocketConn{conn: conn}
	w.touch()

	// 单条消息的上限与音频上传一致，超出时读取会直接失败
	conn.SetReadLimit(maxAudioMessage)
	conn.SetPongHandler(func(string) error {
		w.touch()
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return w
}

func (w *websocketConn) touch() {
	w.lastActive.Store(time.Now().Unix())
}

func (w *websocketConn) ReadMessage() (int, []byte, error) {
	if w.closed.Load() {
		return 0, nil, ErrConnectionClosed
	}

	w.conn.SetReadDeadline(time.Now().Add(readTimeout))
	messageType, p, err := w.conn.ReadMessage()
	if err != nil {
		w.closed.Store(true)
		return 0, nil, err
	}
	w.touch()
	return messageType, p, nil
}

func (w *websocketConn) WriteMessage(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.closed.Load() {
		return ErrConnectionClosed
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(messageType, data); err != nil {
		w.closed.Store(true)
		return err
	}
	w.touch()
	return nil
}

// Close 尽量发送关闭帧后关闭底层连接，可重复调用
func (w *websocketConn) Close() error {
	if w.closed.Swap(true) {
		// 读写出错时只做了标记，底层连接仍需关闭
		return w.conn.Close()
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "connection closed")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	return w.conn.Close()
}

// IsClosed 检查连接是否已关闭
func (w *websocketConn) IsClosed() bool {
	return w.closed.Load()
}

// LastActive 最后一次成功读写的时间
func (w *websocketConn) LastActive() time.Time {
	return time.Unix(w.lastActive.Load(), 0)
}

// IsStale 已关闭或超过 timeout 没有活动
func (w *websocketConn) IsStale(timeout time.Duration) bool {
	return w.IsClosed() || time.Since(w.LastActive()) > timeout
}

package types

// WebSocket 消息类型
const (
	MsgHello   = "hello"
	MsgChat    = "chat"
	MsgClear   = "clear"
	MsgAbort   = "abort"
	MsgPing    = "ping"
	MsgPong    = "pong"
	MsgSTT     = "stt"
	MsgLLM     = "llm"
	MsgDone    = "done"
	MsgTTS     = "tts"
	MsgCleared = "cleared"
	MsgBye     = "bye"
	MsgError   = "error"
)

// ClientMessage 客户端发送的消息
type ClientMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Token     string `json:"token,omitempty"`
	// 为空时服务端在TTS可用时默认合成语音
	Speak *bool `json:"speak,omitempty"`
}

// ServerMessage 服务端下发的消息
type ServerMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
	Speech     string `json:"speech,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

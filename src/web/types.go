package web

// ChatRequest 文本对话请求
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Speak     bool   `json:"speak"`
}

// ChatResponse 对话响应（兼容Python版本字段）
type ChatResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"session_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Reply      string `json:"reply,omitempty"`
	Speech     string `json:"speech,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TTSRequest 语音合成请求
type TTSRequest struct {
	Text string `json:"text"`
}

// VoiceRequest 切换音色请求
type VoiceRequest struct {
	Voice string `json:"voice"`
}

// StatusResponse 各功能是否可用
type StatusResponse struct {
	LLM         bool   `json:"llm"`
	TTS         bool   `json:"tts"`
	ASR         bool   `json:"asr"`
	Memory      bool   `json:"memory"`
	Transcripts bool   `json:"transcripts"`
	Sessions    int    `json:"sessions"`
	Websocket   string `json:"websocket,omitempty"`
}

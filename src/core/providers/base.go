package providers

import (
	"context"

	"noir-server-go/src/core/types"
)

// Provider 所有提供者的基础接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// ASRProvider 语音识别提供者接口
type ASRProvider interface {
	Provider
	// 识别一段完整的音频，filename 用于告知服务端音频格式
	Transcribe(ctx context.Context, audioData []byte, filename string) (string, error)
}

// TTSProvider 语音合成提供者接口
type TTSProvider interface {
	Provider

	// 合成音频并返回文件路径
	ToTTS(ctx context.Context, text string) (string, error)

	SetVoice(voice string) error

	// 可用音色，名称到ID的映射
	Voices(ctx context.Context) (map[string]string, error)
}

// LLMProvider 大语言模型提供者接口
type LLMProvider interface {
	types.LLMProvider
}

// Message 对话消息
type Message = types.Message

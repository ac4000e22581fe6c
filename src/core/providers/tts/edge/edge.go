package edge

import (
	"context"
	"fmt"
	"os"

	"noir-server-go/src/core/providers/tts"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// DefaultVoice 未配置音色时使用
const DefaultVoice = "en-US-AnaNeural"

// 常用的英文音色，Edge TTS 无需密钥
var knownVoices = []string{
	"en-US-AnaNeural",
	"en-US-AriaNeural",
	"en-US-JennyNeural",
	"en-US-GuyNeural",
	"en-GB-SoniaNeural",
	"ru-RU-SvetlanaNeural",
	"zh-CN-XiaoxiaoNeural",
}

// Provider Edge TTS提供者实现
type Provider struct {
	*tts.BaseProvider
}

// NewProvider 创建Edge TTS提供者
func NewProvider(config *tts.Config, deleteFile bool) (*Provider, error) {
	if config.Voice == "" {
		config.Voice = DefaultVoice
	}
	return &Provider{
		BaseProvider: tts.NewBaseProvider(config, deleteFile),
	}, nil
}

// Voices 返回常用音色，当前音色总在其中
func (p *Provider) Voices(ctx context.Context) (map[string]string, error) {
	voices := make(map[string]string, len(knownVoices)+1)
	for _, v := range knownVoices {
		voices[v] = v
	}
	current := p.Voice()
	voices[current] = current
	return voices, nil
}

// ToTTS 将文本转换为音频文件，并返回文件路径
// 使用的edge库是github.com/wujunwei928/edge-tts-go，默认使用24k采样率
func (p *Provider) ToTTS(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	conn, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(p.Voice()))
	if err != nil {
		return "", fmt.Errorf("创建 edge-tts-go Communicate 失败: %v", err)
	}

	// 获取音频流数据
	audioData, err := conn.Stream()
	if err != nil {
		return "", fmt.Errorf("edge-tts-go 获取音频流失败: %v", err)
	}

	tempFile := p.OutputPath("edge_tts", "mp3")
	if err := os.WriteFile(tempFile, audioData, 0644); err != nil {
		return "", fmt.Errorf("写入音频文件 '%s' 失败: %v", tempFile, err)
	}
	return tempFile, nil
}

func init() {
	// 注册Edge TTS提供者
	tts.Register("edge", func(config *tts.Config, deleteFile bool) (tts.Provider, error) {
		return NewProvider(config, deleteFile)
	})
}

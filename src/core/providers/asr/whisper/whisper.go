package whisper

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Provider OpenAI兼容的Whisper语音识别
type Provider struct {
	*asr.BaseProvider
	client *openai.Client
}

func init() {
	asr.Register("whisper", func(config *asr.Config) (asr.Provider, error) {
		return NewProvider(config)
	})
}

// NewProvider 创建Whisper提供者
func NewProvider(config *asr.Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("缺少Whisper API key")
	}
	if config.ModelName == "" {
		config.ModelName = openai.Whisper1
	}
	return &Provider{
		BaseProvider: asr.NewBaseProvider(config),
	}, nil
}

// Initialize 初始化客户端
func (p *Provider) Initialize() error {
	config := p.Config()
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Transcribe 识别一段完整音频
func (p *Provider) Transcribe(ctx context.Context, audioData []byte, filename string) (string, error) {
	if len(audioData) == 0 {
		return "", asr.ErrNoSpeech
	}

	format := utils.DetectAudioFormat(audioData)
	// WAV 可以在本地判断静音，避免无意义的请求
	if format == "wav" && len(audioData) > 44 && p.IsSilence(audioData[44:]) {
		return "", asr.ErrNoSpeech
	}
	filename = normalizeFilename(filename, format)

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.Config().ModelName,
		FilePath: filename,
		Reader:   bytes.NewReader(audioData),
		Language: p.Config().Language,
	})
	if err != nil {
		return "", fmt.Errorf("Whisper语音识别失败: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", asr.ErrNoSpeech
	}
	return text, nil
}

// normalizeFilename 上传接口依据扩展名判断格式，缺失时按文件头补全
func normalizeFilename(filename, format string) string {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "audio"
	}
	if filepath.Ext(name) == "" {
		if format == "" {
			format = "wav"
		}
		name += "." + format
	}
	return name
}

package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"noir-server-go/src/core/providers"

	"github.com/google/uuid"
)

// Config TTS配置结构
type Config struct {
	Type      string `yaml:"type"`
	OutputDir string `yaml:"output_dir"`
	Voice     string `yaml:"voice,omitempty"`
	Format    string `yaml:"format,omitempty"`
	BaseURL   string `yaml:"url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	ModelID   string `yaml:"model_id,omitempty"`

	// 音色参数，为空时由具体提供者决定默认值
	Stability       *float64 `yaml:"stability,omitempty"`
	SimilarityBoost *float64 `yaml:"similarity_boost,omitempty"`
	Style           *float64 `yaml:"style,omitempty"`
	SpeakerBoost    *bool    `yaml:"use_speaker_boost,omitempty"`
}

// Provider TTS提供者接口
type Provider interface {
	providers.TTSProvider
}

// BaseProvider TTS基础实现
type BaseProvider struct {
	config     *Config
	deleteFile bool

	mu    sync.RWMutex
	voice string
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// DeleteFile 获取是否删除文件标志
func (p *BaseProvider) DeleteFile() bool {
	return p.deleteFile
}

// Voice 当前音色
func (p *BaseProvider) Voice() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voice
}

// SetVoice 切换音色
func (p *BaseProvider) SetVoice(voice string) error {
	if strings.TrimSpace(voice) == "" {
		return fmt.Errorf("音色不能为空")
	}
	p.mu.Lock()
	p.voice = voice
	p.mu.Unlock()
	return nil
}

// Voices 默认只返回当前音色
func (p *BaseProvider) Voices(ctx context.Context) (map[string]string, error) {
	voice := p.Voice()
	return map[string]string{voice: voice}, nil
}

// OutputPath 生成一个新的输出文件路径
func (p *BaseProvider) OutputPath(prefix, ext string) string {
	return filepath.Join(p.config.OutputDir, fmt.Sprintf("%s_%s.%s", prefix, uuid.NewString(), ext))
}

// NewBaseProvider 创建TTS基础提供者
func NewBaseProvider(config *Config, deleteFile bool) *BaseProvider {
	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(os.TempDir(), "noir_tts")
	}
	return &BaseProvider{
		config:     config,
		deleteFile: deleteFile,
		voice:      config.Voice,
	}
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %v", err)
	}
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	if !p.deleteFile {
		return nil
	}
	// 清理输出目录中的临时文件
	for _, ext := range []string{"wav", "mp3", "opus"} {
		matches, err := filepath.Glob(filepath.Join(p.config.OutputDir, "*."+ext))
		if err != nil {
			return fmt.Errorf("查找临时文件失败: %v", err)
		}
		for _, file := range matches {
			if err := os.Remove(file); err != nil {
				return fmt.Errorf("删除临时文件失败: %v", err)
			}
		}
	}
	return nil
}

// Factory TTS工厂函数类型
type Factory func(config *Config, deleteFile bool) (Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册TTS提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 创建TTS提供者实例
func Create(name string, config *Config, deleteFile bool) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的TTS提供者: %s", name)
	}

	provider, err := factory(config, deleteFile)
	if err != nil {
		return nil, fmt.Errorf("创建TTS提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化TTS提供者失败: %w", err)
	}

	return provider, nil
}

package asr

import (
	"errors"
	"fmt"
	"math"

	"noir-server-go/src/core/providers"
)

// ErrNoSpeech 音频中没有识别出语音
var ErrNoSpeech = errors.New("未识别到语音")

// Config ASR配置结构
type Config struct {
	Type      string `yaml:"type"`
	ModelName string `yaml:"model_name"`
	BaseURL   string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Language  string `yaml:"language"`
}

// Provider ASR提供者接口
type Provider interface {
	providers.ASRProvider
}

// BaseProvider ASR基础实现
type BaseProvider struct {
	config *Config

	// 静音检测配置
	silenceThreshold float64 // 能量阈值
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// NewBaseProvider 创建ASR基础提供者
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{
		config:           config,
		silenceThreshold: 0.01, // 默认能量阈值
	}
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory ASR工厂函数类型
type Factory func(config *Config) (Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册ASR提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 创建ASR提供者实例
func Create(name string, config *Config) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的ASR提供者: %s", name)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("创建ASR提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化ASR提供者失败: %w", err)
	}

	return provider, nil
}

// calculateEnergy 计算16位PCM音频的RMS能量
func calculateEnergy(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}

	var sum float64
	samples := len(data) / 2 // 16位音频，每个样本2字节

	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		amplitude := float64(sample) / 32768.0 // 归一化到[-1,1]
		sum += amplitude * amplitude
	}

	return math.Sqrt(sum / float64(samples))
}

// IsSilence 检测PCM数据是否是静音
func (p *BaseProvider) IsSilence(pcm []byte) bool {
	return calculateEnergy(pcm) < p.silenceThreshold
}

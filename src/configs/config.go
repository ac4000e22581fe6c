package configs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TokenConfig Token配置
type TokenConfig struct {
	Token string `yaml:"token"`
}

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled bool          `yaml:"enabled"`
			Secret  string        `yaml:"secret"`
			Tokens  []TokenConfig `yaml:"tokens"`
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		Enabled   bool   `yaml:"enabled"`
		Port      int    `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
		Websocket string `yaml:"websocket"`
	} `yaml:"web"`

	DefaultPrompt string `yaml:"prompt"`
	DeleteAudio   bool   `yaml:"delete_audio"`

	Chat ChatConfig `yaml:"chat"`

	SelectedModule map[string]string `yaml:"selected_module"`

	ASR    map[string]ASRConfig    `yaml:"ASR"`
	TTS    map[string]TTSConfig    `yaml:"TTS"`
	LLM    map[string]LLMConfig    `yaml:"LLM"`
	Memory map[string]MemoryConfig `yaml:"Memory"`

	CMDExit []string `yaml:"CMD_exit"`

	ConnectivityCheck ConnectivityCheckConfig `yaml:"connectivity_check"`
}

// ConnectivityCheckConfig 启动时的连通性检查配置
type ConnectivityCheckConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Functional    bool   `yaml:"functional"`
	Timeout       string `yaml:"timeout"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryDelay    string `yaml:"retry_delay"`
	TestModes     struct {
		ASRTestAudio  string `yaml:"asr_test_audio"`
		LLMTestPrompt string `yaml:"llm_test_prompt"`
		TTSTestText   string `yaml:"tts_test_text"`
	} `yaml:"test_modes"`
}

// ChatConfig 对话与记忆召回配置
type ChatConfig struct {
	UserTopK     int     `yaml:"user_top_k" json:"user_top_k"`
	AITopK       int     `yaml:"ai_top_k" json:"ai_top_k"`
	HistoryLimit int     `yaml:"history_limit" json:"history_limit"`
	MaxDistance  float64 `yaml:"max_distance" json:"max_distance"`
}

// ASRConfig ASR配置结构
type ASRConfig struct {
	Type      string `yaml:"type"`
	ModelName string `yaml:"model_name"`
	BaseURL   string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Language  string `yaml:"language"`
}

// TTSConfig TTS配置结构
type TTSConfig struct {
	Type      string `yaml:"type"`
	Voice     string `yaml:"voice"`
	Format    string `yaml:"format"`
	OutputDir string `yaml:"output_dir"`
	BaseURL   string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ModelID   string `yaml:"model_id"`
}

// LLMConfig LLM配置结构
type LLMConfig struct {
	Type             string                 `yaml:"type"`
	ModelName        string                 `yaml:"model_name"`
	BaseURL          string                 `yaml:"url"`
	APIKey           string                 `yaml:"api_key"`
	Temperature      float64                `yaml:"temperature"`
	MaxTokens        int                    `yaml:"max_tokens"`
	TopP             float64                `yaml:"top_p"`
	FrequencyPenalty float64                `yaml:"frequency_penalty"`
	PresencePenalty  float64                `yaml:"presence_penalty"`
	Extra            map[string]interface{} `yaml:",inline"`
}

// MemoryConfig 向量记忆配置结构（嵌入模型 + 本地向量库）
type MemoryConfig struct {
	Type       string `yaml:"type"`
	PersistDir string `yaml:"persist_dir"`
	Collection string `yaml:"collection"`
	ModelName  string `yaml:"model_name"`
	BaseURL    string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Compress   bool   `yaml:"compress"`
}

// 环境变量与配置项的对应关系
const (
	EnvDeepSeekKey   = "DEEPSEEK_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvPromptFile    = "NOIR_PROMPT_FILE"
	EnvAuthSecret    = "NOIR_AUTH_SECRET"
)

// LoadConfig 从文件加载配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	config, err := LoadConfigFile(path)
	return config, path, err
}

// LoadConfigFile 读取指定路径的配置文件并应用默认值与环境变量
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// 召回数量允许显式配置为0来关闭，默认值需在解析前设置
	config := &Config{Chat: ChatConfig{UserTopK: 3, AITopK: 2}}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.IP == "" {
		c.Server.IP = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Web.Port == 0 {
		c.Web.Port = 7860
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = 40
	}
	if c.Chat.MaxDistance == 0 {
		c.Chat.MaxDistance = 1.0
	}
	if c.DefaultPrompt == "" {
		c.DefaultPrompt = DefaultPersona
	}
	if c.SelectedModule == nil {
		c.SelectedModule = map[string]string{}
	}
}

// applyEnv 用环境变量覆盖密钥类配置，空值不覆盖
func (c *Config) applyEnv() error {
	for name, llmCfg := range c.LLM {
		if llmCfg.APIKey != "" {
			continue
		}
		switch llmCfg.Type {
		case "deepseek":
			llmCfg.APIKey = os.Getenv(EnvDeepSeekKey)
		case "openai":
			llmCfg.APIKey = os.Getenv(EnvOpenAIKey)
		case "anthropic":
			llmCfg.APIKey = os.Getenv(EnvAnthropicKey)
		}
		c.LLM[name] = llmCfg
	}
	for name, ttsCfg := range c.TTS {
		if ttsCfg.APIKey == "" && ttsCfg.Type == "elevenlabs" {
			ttsCfg.APIKey = os.Getenv(EnvElevenLabsKey)
			c.TTS[name] = ttsCfg
		}
	}
	for name, asrCfg := range c.ASR {
		if asrCfg.APIKey == "" {
			asrCfg.APIKey = os.Getenv(EnvOpenAIKey)
			c.ASR[name] = asrCfg
		}
	}
	for name, memCfg := range c.Memory {
		if memCfg.APIKey == "" && memCfg.Type == "openai" {
			memCfg.APIKey = os.Getenv(EnvOpenAIKey)
			c.Memory[name] = memCfg
		}
	}
	if secret := os.Getenv(EnvAuthSecret); secret != "" {
		c.Server.Auth.Secret = secret
	}
	if promptFile := os.Getenv(EnvPromptFile); promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return fmt.Errorf("读取人设提示词文件失败: %w", err)
		}
		if prompt := strings.TrimSpace(string(data)); prompt != "" {
			c.DefaultPrompt = prompt
		}
	}
	return nil
}

// Validate 校验必要配置
func (c *Config) Validate() error {
	selected := c.SelectedModule["LLM"]
	if selected == "" {
		return fmt.Errorf("配置文件中缺少必要的模块配置: LLM")
	}
	if _, ok := c.LLM[selected]; !ok {
		return fmt.Errorf("找不到LLM配置: %s", selected)
	}
	if c.Web.Enabled && c.Web.Port <= 0 {
		return fmt.Errorf("无效的Web端口: %d", c.Web.Port)
	}
	if c.Chat.UserTopK < 0 || c.Chat.AITopK < 0 {
		return fmt.Errorf("记忆召回数量不能为负数")
	}
	return nil
}

// SelectedLLM 返回当前选择的LLM名称与配置
func (c *Config) SelectedLLM() (string, LLMConfig) {
	name := c.SelectedModule["LLM"]
	return name, c.LLM[name]
}

// SelectedTTS 返回当前选择的TTS配置，未选择时ok为false
func (c *Config) SelectedTTS() (string, TTSConfig, bool) {
	name := c.SelectedModule["TTS"]
	cfg, ok := c.TTS[name]
	return name, cfg, ok && name != ""
}

// SelectedASR 返回当前选择的ASR配置，未选择时ok为false
func (c *Config) SelectedASR() (string, ASRConfig, bool) {
	name := c.SelectedModule["ASR"]
	cfg, ok := c.ASR[name]
	return name, cfg, ok && name != ""
}

// SelectedMemory 返回当前选择的记忆配置，未选择时ok为false
func (c *Config) SelectedMemory() (string, MemoryConfig, bool) {
	name := c.SelectedModule["Memory"]
	cfg, ok := c.Memory[name]
	return name, cfg, ok && name != ""
}

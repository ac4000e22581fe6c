package server

import (
	"context"
	"net/http"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// PublicConfig 对外展示的配置，不包含任何密钥
type PublicConfig struct {
	SelectedModule map[string]string  `json:"selected_module"`
	LLM            ModelInfo          `json:"llm"`
	TTS            *ModelInfo         `json:"tts,omitempty"`
	ASR            *ModelInfo         `json:"asr,omitempty"`
	Memory         *ModelInfo         `json:"memory,omitempty"`
	Chat           configs.ChatConfig `json:"chat"`
	Websocket      string             `json:"websocket,omitempty"`
	AuthEnabled    bool               `json:"auth_enabled"`
	DeleteAudio    bool               `json:"delete_audio"`
}

// ModelInfo 模块的类型与模型名称
type ModelInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
}

type DefaultCfgService struct {
	logger *utils.Logger
	config *configs.Config
}

// NewDefaultCfgService 构造函数
func NewDefaultCfgService(config *configs.Config, logger *utils.Logger) (*DefaultCfgService, error) {
	service := &DefaultCfgService{
		logger: logger,
		config: config,
	}

	return service, nil
}

// Start 实现 CfgService 接口，注册所有 Cfg 相关路由
func (s *DefaultCfgService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/cfg", s.handleGet)

	s.logger.Info("Cfg HTTP服务路由注册完成")
	return nil
}

func (s *DefaultCfgService) handleGet(c *gin.Context) {
	c.JSON(http.StatusOK, Sanitize(s.config))
}

// Sanitize 提取可公开的配置项
func Sanitize(config *configs.Config) PublicConfig {
	selected := make(map[string]string, len(config.SelectedModule))
	for k, v := range config.SelectedModule {
		selected[k] = v
	}

	llmName, llmCfg := config.SelectedLLM()
	out := PublicConfig{
		SelectedModule: selected,
		LLM:            ModelInfo{Name: llmName, Type: llmCfg.Type, Model: llmCfg.ModelName},
		Chat:           config.Chat,
		Websocket:      config.Web.Websocket,
		AuthEnabled:    config.Server.Auth.Enabled,
		DeleteAudio:    config.DeleteAudio,
	}
	if name, cfg, ok := config.SelectedTTS(); ok {
		out.TTS = &ModelInfo{Name: name, Type: cfg.Type, Model: cfg.ModelID, Voice: cfg.Voice}
	}
	if name, cfg, ok := config.SelectedASR(); ok {
		out.ASR = &ModelInfo{Name: name, Type: cfg.Type, Model: cfg.ModelName}
	}
	if name, cfg, ok := config.SelectedMemory(); ok {
		out.Memory = &ModelInfo{Name: name, Type: cfg.Type, Model: cfg.ModelName}
	}
	return out
}

package web

import (
	"context"
	"errors"
	"net/http"

	"noir-server-go/src/core/speech"

	"github.com/gin-gonic/gin"
)

type DefaultTTSService struct {
	deps *Deps
}

// NewDefaultTTSService 构造函数
func NewDefaultTTSService(deps *Deps) *DefaultTTSService {
	return &DefaultTTSService{deps: deps}
}

// Start 注册语音合成相关路由
func (s *DefaultTTSService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	// 音频文件由浏览器 <audio> 直接加载，无法携带认证头
	apiGroup.GET("/audio/:filename", s.handleAudio)

	secured := apiGroup.Group("/tts", RequireAuth(s.deps.Auth), s.requireTTS)
	secured.POST("", s.handleSynthesize)
	secured.POST("/stream", s.handleStream)
	secured.GET("/voices", s.handleVoices)
	secured.POST("/voice", s.handleSetVoice)

	s.deps.Logger.Info("TTS HTTP服务路由注册完成")
	return nil
}

func (s *DefaultTTSService) requireTTS(c *gin.Context) {
	if !s.deps.Speaker.Enabled() {
		respondError(c, http.StatusServiceUnavailable, speech.ErrDisabled.Error())
		return
	}
	c.Next()
}

func (s *DefaultTTSService) handleSynthesize(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "解析失败: "+err.Error())
		return
	}
	result, err := s.deps.Speaker.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, speech.ErrNothingToSay) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		s.deps.Logger.Warn("语音合成失败: %v", err)
		respondError(c, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"speech":      result.Speech,
		"audio_url":   audioURL(result.AudioFile),
		"duration_ms": result.Duration.Milliseconds(),
		"cached":      result.Cached,
	})
}

func (s *DefaultTTSService) handleStream(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "解析失败: "+err.Error())
		return
	}

	c.Header("Content-Type", "audio/mpeg")
	c.Header("Cache-Control", "no-cache")
	n, err := s.deps.Speaker.Stream(c.Request.Context(), req.Text, c.Writer)
	if err == nil {
		return
	}
	s.deps.Logger.Warn("流式语音合成失败(已写入%d字节): %v", n, err)
	if c.Writer.Written() {
		return
	}
	c.Header("Content-Type", "application/json; charset=utf-8")
	switch {
	case errors.Is(err, speech.ErrStreamUnsupported):
		respondError(c, http.StatusNotImplemented, err.Error())
	case errors.Is(err, speech.ErrNothingToSay):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusBadGateway, "Error: "+err.Error())
	}
}

func (s *DefaultTTSService) handleVoices(c *gin.Context) {
	voices, err := s.deps.Speaker.Provider().Voices(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "voices": voices})
}

func (s *DefaultTTSService) handleSetVoice(c *gin.Context) {
	var req VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "解析失败: "+err.Error())
		return
	}
	if err := s.deps.Speaker.SetVoice(req.Voice); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Logger.Info("音色已切换为: %s", req.Voice)
	c.JSON(http.StatusOK, gin.H{"success": true, "voice": req.Voice})
}

func (s *DefaultTTSService) handleAudio(c *gin.Context) {
	path, ok := s.deps.Speaker.Locate(c.Param("filename"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "file not found"})
		return
	}
	c.File(path)
}

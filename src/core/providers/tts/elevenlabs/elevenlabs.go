package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"noir-server-go/src/core/providers/tts"
	"noir-server-go/src/core/utils"

	"github.com/dgraph-io/ristretto"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultModelID = "eleven_monolingual_v1"
	DefaultVoice   = "Rachel"

	voicesCacheKey = "voices"
	voicesCacheTTL = 10 * time.Minute
)

// VoiceSettings ElevenLabs音色参数
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings 默认音色参数
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.75,
		SimilarityBoost: 0.75,
		Style:           0.5,
		UseSpeakerBoost: true,
	}
}

// Clamp 将所有参数限制在 [0,1]
func (s VoiceSettings) Clamp() VoiceSettings {
	s.Stability = clamp01(s.Stability)
	s.SimilarityBoost = clamp01(s.SimilarityBoost)
	s.Style = clamp01(s.Style)
	return s
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

// Provider ElevenLabs TTS提供者
type Provider struct {
	*tts.BaseProvider
	client   *resty.Client
	cache    *ristretto.Cache
	settings VoiceSettings
	modelID  string
}

func init() {
	tts.Register("elevenlabs", func(config *tts.Config, deleteFile bool) (tts.Provider, error) {
		return NewProvider(config, deleteFile)
	})
}

// NewProvider 创建ElevenLabs提供者
func NewProvider(config *tts.Config, deleteFile bool) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("缺少ElevenLabs API key")
	}
	if config.Voice == "" {
		config.Voice = DefaultVoice
	}

	settings := DefaultVoiceSettings()
	if config.Stability != nil {
		settings.Stability = *config.Stability
	}
	if config.SimilarityBoost != nil {
		settings.SimilarityBoost = *config.SimilarityBoost
	}
	if config.Style != nil {
		settings.Style = *config.Style
	}
	if config.SpeakerBoost != nil {
		settings.UseSpeakerBoost = *config.SpeakerBoost
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}

	return &Provider{
		BaseProvider: tts.NewBaseProvider(config, deleteFile),
		settings:     settings.Clamp(),
		modelID:      modelID,
	}, nil
}

// Initialize 初始化HTTP客户端与音色缓存
func (p *Provider) Initialize() error {
	if err := p.BaseProvider.Initialize(); err != nil {
		return err
	}

	baseURL := p.Config().BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p.client = resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("xi-api-key", p.Config().APIKey).
		SetTimeout(60 * time.Second)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        100,
		MaxCost:            16,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return fmt.Errorf("创建音色缓存失败: %v", err)
	}
	p.cache = cache
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	if p.cache != nil {
		p.cache.Close()
	}
	return p.BaseProvider.Cleanup()
}

// Settings 当前音色参数
func (p *Provider) Settings() VoiceSettings {
	return p.settings
}

// Voices 获取账号下可用的音色，名称到ID的映射
func (p *Provider) Voices(ctx context.Context) (map[string]string, error) {
	if cached, ok := p.cache.Get(voicesCacheKey); ok {
		return cached.(map[string]string), nil
	}

	var result voicesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/voices")
	if err != nil {
		return nil, fmt.Errorf("获取ElevenLabs音色列表失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("获取ElevenLabs音色列表失败: %s %s", resp.Status(), resp.String())
	}

	voices := make(map[string]string, len(result.Voices))
	for _, v := range result.Voices {
		voices[v.Name] = v.VoiceID
	}
	p.cache.SetWithTTL(voicesCacheKey, voices, 1, voicesCacheTTL)
	p.cache.Wait()
	return voices, nil
}

// SetVoice 切换音色，音色名称必须存在于账号中
func (p *Provider) SetVoice(voice string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := p.resolveVoice(ctx, voice); err != nil {
		return err
	}
	return p.BaseProvider.SetVoice(voice)
}

// resolveVoice 按名称（或ID）查找音色ID
func (p *Provider) resolveVoice(ctx context.Context, voice string) (string, error) {
	voices, err := p.Voices(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := voices[voice]; ok {
		return id, nil
	}
	names := make([]string, 0, len(voices))
	for name, id := range voices {
		if id == voice || strings.EqualFold(name, voice) {
			return id, nil
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if best, score := utils.ClosestMatch(voice, names); score >= 0.5 {
		return "", fmt.Errorf("未找到音色 '%s'，是否是 '%s'", voice, best)
	}
	return "", fmt.Errorf("未找到音色 '%s'", voice)
}

func (p *Provider) newRequest(ctx context.Context, text string) (*resty.Request, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("合成文本为空")
	}
	voiceID, err := p.resolveVoice(ctx, p.Voice())
	if err != nil {
		return nil, err
	}
	return p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/mpeg").
		SetPathParam("voice_id", voiceID).
		SetBody(synthesizeRequest{
			Text:          text,
			ModelID:       p.modelID,
			VoiceSettings: p.settings,
		}), nil
}

// ToTTS 合成音频并保存为mp3文件
func (p *Provider) ToTTS(ctx context.Context, text string) (string, error) {
	req, err := p.newRequest(ctx, text)
	if err != nil {
		return "", err
	}
	resp, err := req.Post("/text-to-speech/{voice_id}")
	if err != nil {
		return "", fmt.Errorf("ElevenLabs合成请求失败: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ElevenLabs合成失败: %s %s", resp.Status(), resp.String())
	}

	path := p.OutputPath("elevenlabs", "mp3")
	if err := os.WriteFile(path, resp.Body(), 0644); err != nil {
		return "", fmt.Errorf("写入音频文件 '%s' 失败: %v", path, err)
	}
	return path, nil
}

// Stream 以流式接口合成音频并直接写入w
func (p *Provider) Stream(ctx context.Context, text string, w io.Writer) (int64, error) {
	req, err := p.newRequest(ctx, text)
	if err != nil {
		return 0, err
	}
	resp, err := req.SetDoNotParseResponse(true).Post("/text-to-speech/{voice_id}/stream")
	if err != nil {
		return 0, fmt.Errorf("ElevenLabs流式合成请求失败: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		return 0, fmt.Errorf("ElevenLabs流式合成失败: %s %s", resp.Status(), string(msg))
	}
	return io.Copy(w, body)
}

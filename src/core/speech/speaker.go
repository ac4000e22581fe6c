package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"noir-server-go/src/core/providers"
	"noir-server-go/src/core/utils"
)

var (
	// ErrDisabled 未配置语音合成
	ErrDisabled = errors.New("语音合成未启用")
	// ErrNothingToSay 回复中没有可朗读的内容
	ErrNothingToSay = errors.New("没有可朗读的内容")
	// ErrStreamUnsupported 当前TTS不支持流式合成
	ErrStreamUnsupported = errors.New("当前TTS不支持流式合成")
)

// Streamer 支持流式合成的TTS提供者
type Streamer interface {
	Stream(ctx context.Context, text string, w io.Writer) (int64, error)
}

// 不超过该长度的台词写入音频缓存
const cacheableRunes = 64

// Result 一次语音合成的结果
type Result struct {
	Speech    string        `json:"speech"`
	AudioPath string        `json:"-"`
	AudioFile string        `json:"audio_file"`
	Duration  time.Duration `json:"duration"`
	Cached    bool          `json:"cached"`
}

// Speaker 从回复中提取台词并调用TTS合成
type Speaker struct {
	tts    providers.TTSProvider
	cache  *utils.AudioCache
	logger *utils.Logger

	// 生成过音频的目录，用于按文件名查找
	mu   sync.RWMutex
	dirs []string
}

// NewSpeaker 创建Speaker，tts 为空时表示语音功能关闭，cache 可为空
func NewSpeaker(tts providers.TTSProvider, cache *utils.AudioCache, logger *utils.Logger) *Speaker {
	s := &Speaker{tts: tts, cache: cache, logger: logger}
	if cache != nil {
		s.dirs = append(s.dirs, cache.CacheDir)
	}
	return s
}

// Enabled 是否可以合成语音
func (s *Speaker) Enabled() bool {
	return s != nil && s.tts != nil
}

// Provider 底层TTS提供者
func (s *Speaker) Provider() providers.TTSProvider {
	return s.tts
}

// Speak 提取回复中的台词并合成
func (s *Speaker) Speak(ctx context.Context, reply string) (*Result, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	speech, ok := ExtractSpeech(reply)
	if !ok {
		return nil, ErrNothingToSay
	}
	return s.Synthesize(ctx, speech)
}

// Synthesize 清理文本后合成，短句优先使用缓存
func (s *Speaker) Synthesize(ctx context.Context, text string) (*Result, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	clean := CleanForSpeech(text)
	if clean == "" {
		return nil, ErrNothingToSay
	}

	cacheable := s.cache != nil && len([]rune(clean)) <= cacheableRunes
	if cacheable {
		if path, ok := s.cache.Find(clean); ok {
			s.logger.Debug("命中音频缓存: %s", utils.Truncate(clean, 30))
			return s.result(clean, path, true), nil
		}
	}

	start := time.Now()
	path, err := s.tts.ToTTS(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("语音合成失败: %w", err)
	}
	s.logger.Info("语音合成完成，耗时: %s，文本: %s", time.Since(start), utils.Truncate(clean, 50))

	if cacheable {
		if cached, err := s.cache.Save(clean, path); err != nil {
			s.logger.Warn("写入音频缓存失败: %v", err)
		} else {
			return s.result(clean, cached, true), nil
		}
	}
	return s.result(clean, path, false), nil
}

// SetVoice 切换音色，同时切换缓存
func (s *Speaker) SetVoice(voice string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := s.tts.SetVoice(voice); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.SetVoice(voice)
	}
	return nil
}

// Stream 清理文本后以流式接口合成并写入w
func (s *Speaker) Stream(ctx context.Context, text string, w io.Writer) (int64, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}
	streamer, ok := s.tts.(Streamer)
	if !ok {
		return 0, ErrStreamUnsupported
	}
	clean := CleanForSpeech(text)
	if clean == "" {
		return 0, ErrNothingToSay
	}
	return streamer.Stream(ctx, clean, w)
}

// Locate 按文件名查找已生成的音频，拒绝包含路径的文件名
func (s *Speaker) Locate(filename string) (string, bool) {
	if s == nil || filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dir := range s.dirs {
		path := filepath.Join(dir, filename)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

func (s *Speaker) rememberDir(path string) {
	dir := filepath.Clean(filepath.Dir(path))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dirs {
		if filepath.Clean(d) == dir {
			return
		}
	}
	s.dirs = append(s.dirs, dir)
}

func (s *Speaker) result(speech, path string, cached bool) *Result {
	s.rememberDir(path)
	res := &Result{
		Speech:    speech,
		AudioPath: path,
		AudioFile: filepath.Base(path),
		Cached:    cached,
	}
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if d, err := utils.MP3Duration(path); err == nil {
			res.Duration = d
		}
	}
	return res
}

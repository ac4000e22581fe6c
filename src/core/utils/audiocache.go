package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AudioCache 按文本缓存合成后的音频文件，相同的台词无需重复调用TTS
type AudioCache struct {
	CacheDir string
	Provider string
	Voice    string
	Format   string
}

// NewAudioCache 创建音频缓存，缓存目录不存在时自动创建
func NewAudioCache(cacheDir, provider, voice, format string) (*AudioCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("创建音频缓存目录失败: %v", err)
	}
	if format == "" {
		format = "mp3"
	}
	return &AudioCache{
		CacheDir: cacheDir,
		Provider: provider,
		Voice:    voice,
		Format:   format,
	}, nil
}

// Find 查找文本对应的缓存音频
func (c *AudioCache) Find(text string) (string, bool) {
	path := filepath.Join(c.CacheDir, c.filename(text))
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Save 将合成好的音频复制到缓存目录
func (c *AudioCache) Save(text, sourcePath string) (string, error) {
	target := filepath.Join(c.CacheDir, c.filename(text))
	if _, err := os.Stat(target); err == nil {
		return target, nil // 已缓存
	}
	if err := copyFile(sourcePath, target); err != nil {
		return "", err
	}
	return target, nil
}

// SetVoice 切换音色，后续读写使用新音色的缓存
func (c *AudioCache) SetVoice(voice string) {
	c.Voice = voice
}

// IsCachedFile 判断文件是否位于缓存目录中，缓存文件不应被清理
func (c *AudioCache) IsCachedFile(path string) bool {
	if path == "" {
		return false
	}
	return filepath.Clean(filepath.Dir(path)) == filepath.Clean(c.CacheDir)
}

func (c *AudioCache) filename(text string) string {
	key := strings.Join([]string{c.Provider, c.Voice, strings.TrimSpace(text)}, "|")
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s.%s", hex.EncodeToString(sum[:]), c.Format)
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("打开源文件失败: %v", err)
	}
	defer source.Close()

	target, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %v", err)
	}
	defer target.Close()

	if _, err := io.Copy(target, source); err != nil {
		return fmt.Errorf("复制文件内容失败: %v", err)
	}
	return nil
}

package utils

import (
	"bytes"
	"testing"

	"noir-server-go/src/configs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info("会话 %s 已恢复 %d 条", "abc", 3)
	assert.Contains(t, buf.String(), "会话 abc 已恢复 3 条")

	buf.Reset()
	logger.WithTag("TTS").Warn("合成失败")
	assert.Contains(t, buf.String(), "[warn] [TTS] 合成失败")
}

func TestLoggerLevel(t *testing.T) {
	cfg := &configs.Config{}
	cfg.Log.LogLevel = "warn"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.console = &buf
	logger.Info("不应输出")
	logger.Error("应输出")
	assert.NotContains(t, buf.String(), "不应输出")
	assert.Contains(t, buf.String(), "应输出")
	assert.False(t, logger.IsDebug())
}

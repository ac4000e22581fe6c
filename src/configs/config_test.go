package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: 8100
web:
  enabled: true
  port: 7861
selected_module:
  LLM: DeepSeekLLM
  TTS: ElevenLabsTTS
  ASR: WhisperASR
  Memory: ChromemMemory
LLM:
  DeepSeekLLM:
    type: deepseek
    model_name: deepseek-chat
    temperature: 1.1
    top_p: 0.9
    frequency_penalty: 0.3
    presence_penalty: 0.6
    max_tokens: 500
TTS:
  ElevenLabsTTS:
    type: elevenlabs
    voice: Rachel
ASR:
  WhisperASR:
    type: whisper
Memory:
  ChromemMemory:
    type: openai
    persist_dir: rag_db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFile_DefaultsAndEnv(t *testing.T) {
	t.Setenv(EnvDeepSeekKey, "ds-key")
	t.Setenv(EnvElevenLabsKey, "el-key")
	t.Setenv(EnvOpenAIKey, "oa-key")

	cfg, err := LoadConfigFile(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, 7861, cfg.Web.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.IP)
	assert.Equal(t, 3, cfg.Chat.UserTopK)
	assert.Equal(t, 2, cfg.Chat.AITopK)
	assert.Equal(t, 1.0, cfg.Chat.MaxDistance)
	assert.Equal(t, DefaultPersona, cfg.DefaultPrompt)

	name, llmCfg := cfg.SelectedLLM()
	assert.Equal(t, "DeepSeekLLM", name)
	assert.Equal(t, "ds-key", llmCfg.APIKey)
	assert.Equal(t, 0.6, llmCfg.PresencePenalty)

	_, ttsCfg, ok := cfg.SelectedTTS()
	require.True(t, ok)
	assert.Equal(t, "el-key", ttsCfg.APIKey)

	_, asrCfg, ok := cfg.SelectedASR()
	require.True(t, ok)
	assert.Equal(t, "oa-key", asrCfg.APIKey)

	_, memCfg, ok := cfg.SelectedMemory()
	require.True(t, ok)
	assert.Equal(t, "oa-key", memCfg.APIKey)
}

func TestLoadConfigFile_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv(EnvDeepSeekKey, "env-key")
	content := `
selected_module:
  LLM: DeepSeekLLM
LLM:
  DeepSeekLLM:
    type: deepseek
    api_key: file-key
`
	cfg, err := LoadConfigFile(writeConfig(t, content))
	require.NoError(t, err)
	_, llmCfg := cfg.SelectedLLM()
	assert.Equal(t, "file-key", llmCfg.APIKey)
}

func TestLoadConfigFile_MissingKeysDisableOptionalModules(t *testing.T) {
	t.Setenv(EnvElevenLabsKey, "")
	t.Setenv(EnvOpenAIKey, "")
	cfg, err := LoadConfigFile(writeConfig(t, testYAML))
	require.NoError(t, err)

	_, ttsCfg, _ := cfg.SelectedTTS()
	assert.Empty(t, ttsCfg.APIKey)
	_, asrCfg, _ := cfg.SelectedASR()
	assert.Empty(t, asrCfg.APIKey)
}

func TestLoadConfigFile_PromptFile(t *testing.T) {
	promptPath := filepath.Join(t.TempDir(), "persona.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("  You are a cat.  \n"), 0644))
	t.Setenv(EnvPromptFile, promptPath)

	cfg, err := LoadConfigFile(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.Equal(t, "You are a cat.", cfg.DefaultPrompt)
}

func TestLoadConfigFile_ZeroTopKDisablesRecall(t *testing.T) {
	content := `
selected_module:
  LLM: A
LLM:
  A:
    type: ollama
chat:
  user_top_k: 0
  history_limit: 10
`
	cfg, err := LoadConfigFile(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Chat.UserTopK)
	assert.Equal(t, 2, cfg.Chat.AITopK, "未配置的项保留默认值")
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
}

func TestValidate(t *testing.T) {
	t.Run("缺少LLM选择", func(t *testing.T) {
		_, err := LoadConfigFile(writeConfig(t, "web:\n  port: 7860\n"))
		require.Error(t, err)
	})

	t.Run("选择的LLM不存在", func(t *testing.T) {
		_, err := LoadConfigFile(writeConfig(t, "selected_module:\n  LLM: Missing\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Missing")
	})

	t.Run("未选择可选模块", func(t *testing.T) {
		cfg, err := LoadConfigFile(writeConfig(t, "selected_module:\n  LLM: A\nLLM:\n  A:\n    type: ollama\n"))
		require.NoError(t, err)
		_, _, ok := cfg.SelectedTTS()
		assert.False(t, ok)
		_, _, ok = cfg.SelectedMemory()
		assert.False(t, ok)
	})
}

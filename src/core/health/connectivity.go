// Package health 检查已启用的LLM/TTS/ASR/记忆服务是否可用
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/memory"
	"noir-server-go/src/core/providers"
	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/types"
	"noir-server-go/src/core/utils"
)

// CheckMode 检查模式
type CheckMode int

const (
	// BasicCheck 基础连通性检查（只验证连接和认证）
	BasicCheck CheckMode = iota
	// FunctionalCheck 功能性检查（执行实际的API调用测试）
	FunctionalCheck
)

func (m CheckMode) String() string {
	if m == FunctionalCheck {
		return "功能性"
	}
	return "基础连通性"
}

// CheckResult 检查结果
type CheckResult struct {
	ProviderType string                 `json:"provider_type"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Duration     time.Duration          `json:"duration"`
	Timestamp    time.Time              `json:"timestamp"`
	CheckMode    CheckMode              `json:"check_mode"`
}

// ConnectivityConfig 连通性检查配置
type ConnectivityConfig struct {
	Enabled       bool
	Functional    bool
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	TestModes     TestModes
}

// TestModes 测试模式配置
type TestModes struct {
	ASRTestAudio  string
	LLMTestPrompt string
	TTSTestText   string
}

// ConfigFromYAML 从YAML配置创建连通性检查配置
func ConfigFromYAML(yamlConfig *configs.ConnectivityCheckConfig) *ConnectivityConfig {
	cfg := DefaultConnectivityConfig()
	if yamlConfig == nil {
		return cfg
	}

	cfg.Enabled = yamlConfig.Enabled
	cfg.Functional = yamlConfig.Functional
	if t, err := time.ParseDuration(yamlConfig.Timeout); err == nil && t > 0 {
		cfg.Timeout = t
	}
	if t, err := time.ParseDuration(yamlConfig.RetryDelay); err == nil && t >= 0 {
		cfg.RetryDelay = t
	}
	if yamlConfig.RetryAttempts > 0 {
		cfg.RetryAttempts = yamlConfig.RetryAttempts
	}
	cfg.TestModes = TestModes{
		ASRTestAudio:  yamlConfig.TestModes.ASRTestAudio,
		LLMTestPrompt: yamlConfig.TestModes.LLMTestPrompt,
		TTSTestText:   yamlConfig.TestModes.TTSTestText,
	}
	return cfg
}

// DefaultConnectivityConfig 默认连通性检查配置
func DefaultConnectivityConfig() *ConnectivityConfig {
	return &ConnectivityConfig{
		Enabled:       true,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
	}
}

// Targets 需要检查的组件，为空的组件跳过
type Targets struct {
	LLM    types.LLMProvider
	TTS    providers.TTSProvider
	ASR    providers.ASRProvider
	Memory memory.Store
}

// HealthChecker 统一健康检查管理器
type HealthChecker struct {
	targets       Targets
	connConfig    *ConnectivityConfig
	logger        *utils.TaggedLogger
	testGenerator *TestDataGenerator

	mu      sync.RWMutex
	results map[string]*CheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(targets Targets, connConfig *ConnectivityConfig, logger *utils.Logger) *HealthChecker {
	if connConfig == nil {
		connConfig = DefaultConnectivityConfig()
	}

	return &HealthChecker{
		targets:       targets,
		connConfig:    connConfig,
		logger:        logger.WithTag("Health"),
		testGenerator: NewTestDataGenerator(connConfig.TestModes),
		results:       make(map[string]*CheckResult),
	}
}

// CheckAllProviders 检查所有已启用的组件，LLM不可用时返回错误
func (hc *HealthChecker) CheckAllProviders(ctx context.Context, mode CheckMode) error {
	hc.logger.Info("开始执行%s检查...", mode)

	var allErrors []error
	if hc.targets.LLM != nil {
		if err := hc.run(ctx, "LLM", mode, hc.checkLLM); err != nil {
			allErrors = append(allErrors, fmt.Errorf("LLM%s检查失败: %w", mode, err))
		}
	}

	// 可选组件失败只记录，不影响整体结果
	if hc.targets.TTS != nil {
		if err := hc.run(ctx, "TTS", mode, hc.checkTTS); err != nil {
			hc.logger.Warn("TTS%s检查失败，语音合成可能不可用: %v", mode, err)
		}
	}
	if hc.targets.ASR != nil {
		if err := hc.run(ctx, "ASR", mode, hc.checkASR); err != nil {
			hc.logger.Warn("ASR%s检查失败，语音识别可能不可用: %v", mode, err)
		}
	}
	if hc.targets.Memory != nil && hc.targets.Memory.Enabled() {
		if err := hc.run(ctx, "Memory", mode, hc.checkMemory); err != nil {
			hc.logger.Warn("记忆%s检查失败，对话将缺少长期记忆: %v", mode, err)
		}
	}

	if len(allErrors) > 0 {
		for _, err := range allErrors {
			hc.logger.Error("  - %v", err)
		}
		return errors.Join(allErrors...)
	}

	hc.logger.Info("所有资源%s检查通过", mode)
	return nil
}

type checkFunc func(ctx context.Context, mode CheckMode, details map[string]interface{}) error

// run 带重试地执行一项检查并记录结果
func (hc *HealthChecker) run(ctx context.Context, providerType string, mode CheckMode, check checkFunc) error {
	hc.logger.Info("检查%s...", providerType)

	start := time.Now()
	result := &CheckResult{
		ProviderType: providerType,
		Timestamp:    start,
		CheckMode:    mode,
		Details:      make(map[string]interface{}),
	}

	err := hc.withRetry(ctx, func(ctx context.Context) error {
		return check(ctx, mode, result.Details)
	})
	result.Duration = time.Since(start)
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}

	hc.mu.Lock()
	hc.results[providerType] = result
	hc.mu.Unlock()

	if err == nil {
		hc.logger.Info("%s %s检查通过", providerType, mode)
	}
	return err
}

// withRetry 每次尝试单独计算超时
func (hc *HealthChecker) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := hc.connConfig.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			hc.logger.Info("连接重试 %d/%d", attempt+1, attempts)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(hc.connConfig.RetryDelay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, hc.connConfig.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		hc.logger.Warn("连接尝试 %d/%d 失败: %v", attempt+1, attempts, err)
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("重试 %d 次后仍然失败: %w", attempts, lastErr)
}

// checkLLM 功能性检查发送测试提示词并读取完整回复
func (hc *HealthChecker) checkLLM(ctx context.Context, mode CheckMode, details map[string]interface{}) error {
	if mode != FunctionalCheck {
		return nil
	}

	messages := []types.Message{
		{Role: types.RoleUser, Content: hc.testGenerator.GetTestPrompt()},
	}
	responseChan, err := hc.targets.LLM.Response(ctx, "health_check", messages)
	if err != nil {
		return fmt.Errorf("LLM响应测试失败: %w", err)
	}

	var response strings.Builder
	for resp := range responseChan {
		if resp.Error != "" {
			return fmt.Errorf("LLM响应测试失败: %s", resp.Error)
		}
		response.WriteString(resp.Content)
	}
	responseText := response.String()
	if !hc.testGenerator.ValidateLLMResponse(responseText) {
		return fmt.Errorf("LLM响应验证失败: 响应内容不合理")
	}

	details["functional_test"] = "passed"
	details["test_response_length"] = len(responseText)
	return nil
}

// checkTTS 基础检查获取音色列表，功能性检查合成测试文本
func (hc *HealthChecker) checkTTS(ctx context.Context, mode CheckMode, details map[string]interface{}) error {
	voices, err := hc.targets.TTS.Voices(ctx)
	if err != nil {
		return fmt.Errorf("获取音色列表失败: %w", err)
	}
	details["voices"] = len(voices)
	if mode != FunctionalCheck {
		return nil
	}

	audioPath, err := hc.targets.TTS.ToTTS(ctx, hc.testGenerator.GetTestTTSText())
	if err != nil {
		return fmt.Errorf("TTS合成测试失败: %w", err)
	}
	defer os.Remove(audioPath)
	if !hc.testGenerator.ValidateTTSResponse(audioPath) {
		return fmt.Errorf("TTS响应验证失败: 音频文件为空")
	}

	details["functional_test"] = "passed"
	return nil
}

// checkASR 识别一段测试音频，服务端返回未识别到语音也视为可用
func (hc *HealthChecker) checkASR(ctx context.Context, mode CheckMode, details map[string]interface{}) error {
	if mode != FunctionalCheck {
		return nil
	}

	audio, filename, err := hc.testGenerator.GetTestAudioData()
	if err != nil {
		details["functional_test"] = "skipped - audio generation failed"
		hc.logger.Warn("生成测试音频失败，跳过功能性测试: %v", err)
		return nil
	}

	text, err := hc.targets.ASR.Transcribe(ctx, audio, filename)
	if err != nil && !errors.Is(err, asr.ErrNoSpeech) {
		return fmt.Errorf("ASR转录测试失败: %w", err)
	}

	details["functional_test"] = "passed"
	details["test_response_length"] = len(text)
	return nil
}

// checkMemory 基础检查统计记录数，功能性检查执行一次语义检索
func (hc *HealthChecker) checkMemory(ctx context.Context, mode CheckMode, details map[string]interface{}) error {
	count, err := hc.targets.Memory.Count(ctx, "")
	if err != nil {
		return fmt.Errorf("读取记忆数量失败: %w", err)
	}
	details["total_messages"] = count
	if mode != FunctionalCheck {
		return nil
	}

	if _, err := hc.targets.Memory.Query(ctx, hc.testGenerator.GetTestPrompt(), 1, ""); err != nil {
		return fmt.Errorf("记忆检索测试失败: %w", err)
	}
	details["functional_test"] = "passed"
	return nil
}

// GetResults 获取所有检查结果的副本
func (hc *HealthChecker) GetResults() map[string]CheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make(map[string]CheckResult, len(hc.results))
	for k, v := range hc.results {
		out[k] = *v
	}
	return out
}

// Healthy 已执行的检查是否全部通过
func (hc *HealthChecker) Healthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	for _, r := range hc.results {
		if !r.Success {
			return false
		}
	}
	return true
}

// PrintReport 打印检查报告
func (hc *HealthChecker) PrintReport() {
	results := hc.GetResults()
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	hc.logger.Info("=== 连通性检查报告 ===")
	for _, name := range names {
		result := results[name]
		status := "✓ 通过"
		if !result.Success {
			status = "✗ 失败"
		}
		hc.logger.Info("%s (%s): %s (耗时: %v)", name, result.CheckMode, status, result.Duration)
		if result.Error != "" {
			hc.logger.Error("  错误: %s", result.Error)
		}
		for key, value := range result.Details {
			hc.logger.Info("  %s: %v", key, value)
		}
	}
	hc.logger.Info("=== 检查报告结束 ===")
}

package health

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"noir-server-go/src/core/utils"
)

// TestDataGenerator 测试数据生成器
type TestDataGenerator struct {
	testModes TestModes // 测试配置
}

// NewTestDataGenerator 创建测试数据生成器
func NewTestDataGenerator(testModes TestModes) *TestDataGenerator {
	return &TestDataGenerator{
		testModes: testModes,
	}
}

// GetTestAudioData 获取测试音频数据及文件名
// 优先使用配置文件中指定的音频文件，否则生成一段短的正弦波WAV
func (tdg *TestDataGenerator) GetTestAudioData() ([]byte, string, error) {
	if tdg.testModes.ASRTestAudio != "" {
		audioData, err := os.ReadFile(tdg.testModes.ASRTestAudio)
		if err != nil {
			return nil, "", fmt.Errorf("读取配置的测试音频文件失败: %v", err)
		}
		return audioData, filepath.Base(tdg.testModes.ASRTestAudio), nil
	}
	return sineWav(16000, 100), "health_check.wav", nil
}

// sineWav 生成16位单声道的低幅度440Hz正弦波
func sineWav(sampleRate, durationMs int) []byte {
	totalSamples := sampleRate / 1000 * durationMs
	pcm := make([]byte, totalSamples*2)
	for i := 0; i < totalSamples; i++ {
		sample := int16(1000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		// 小端序写入
		pcm[2*i] = byte(sample)
		pcm[2*i+1] = byte(sample >> 8)
	}
	return append(utils.BuildWavHeader(len(pcm), sampleRate, 1, 16), pcm...)
}

// GetTestPrompt 获取LLM测试提示词
func (tdg *TestDataGenerator) GetTestPrompt() string {
	if tdg.testModes.LLMTestPrompt != "" {
		return tdg.testModes.LLMTestPrompt
	}
	return "Hello, this is a health check test. Please respond with a simple greeting."
}

// GetTestTTSText 获取TTS测试文本
func (tdg *TestDataGenerator) GetTestTTSText() string {
	if tdg.testModes.TTSTestText != "" {
		return tdg.testModes.TTSTestText
	}
	return "Privet!"
}

// ValidateLLMResponse 验证LLM响应是否合理
func (tdg *TestDataGenerator) ValidateLLMResponse(response string) bool {
	return len(response) > 0 && len(response) <= 10000
}

// ValidateTTSResponse 验证合成的音频文件存在且非空
func (tdg *TestDataGenerator) ValidateTTSResponse(audioPath string) bool {
	if audioPath == "" {
		return false
	}
	info, err := os.Stat(audioPath)
	return err == nil && info.Size() > 0
}

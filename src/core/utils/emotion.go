package utils

import (
	"regexp"
	"strings"
)

// EmotionEmoji 定义情绪到表情的映射
var EmotionEmoji = map[string]string{
	"neutral":     "😐",
	"happy":       "😊",
	"laughing":    "😂",
	"funny":       "🤡",
	"sad":         "😢",
	"angry":       "😠",
	"crying":      "😭",
	"loving":      "🥰",
	"embarrassed": "😳",
	"surprised":   "😮",
	"shocked":     "😱",
	"thinking":    "🤔",
	"winking":     "😉",
	"cool":        "😎",
	"relaxed":     "😌",
	"delicious":   "😋",
	"kissy":       "😘",
	"confident":   "😏",
	"sleepy":      "😴",
	"silly":       "🤪",
	"confused":    "😕",
}

// 同一情绪的其他常见表情
var emotionAliases = map[string][]string{
	"happy":     {"😄", "😁", "🙂", "☺️", "🐬"},
	"laughing":  {"🤣", "😆"},
	"sad":       {"😞", "😔", "🥺"},
	"angry":     {"😡", "🤬", "💢"},
	"loving":    {"❤️", "😍", "💕"},
	"surprised": {"😲", "😯"},
	"shocked":   {"🙀", "😨"},
	"confident": {"😈", "🦈"},
	"cool":      {"🕶️"},
	"thinking":  {"🧐"},
	"silly":     {"😜", "😝"},
}

// GetEmotionEmoji 根据情绪返回对应的表情
func GetEmotionEmoji(emotion string) string {
	if emoji, ok := EmotionEmoji[emotion]; ok {
		return emoji
	}
	return EmotionEmoji["neutral"] // 默认返回中性表情
}

// DetectEmotion 返回文本中最先出现的表情所对应的情绪，未找到时返回neutral
func DetectEmotion(text string) string {
	best := "neutral"
	bestIdx := -1
	check := func(emotion, emoji string) {
		idx := strings.Index(text, emoji)
		if idx < 0 {
			return
		}
		if bestIdx < 0 || idx < bestIdx {
			best, bestIdx = emotion, idx
		}
	}
	for emotion, emoji := range EmotionEmoji {
		if emotion == "neutral" {
			continue
		}
		check(emotion, emoji)
	}
	for emotion, emojis := range emotionAliases {
		for _, emoji := range emojis {
			check(emotion, emoji)
		}
	}
	return best
}

var ( // 简化版表情符号正则表达式
	SimpleEmojiRegex = regexp.MustCompile(`[\x{1F000}-\x{1FFFF}]|` +
		`[\x{2600}-\x{26FF}]|` + // 杂项符号
		`[\x{2700}-\x{27BF}]|` + // 装饰符号
		`[\x{FE0F}\x{200D}]`) // 变体选择符与零宽连接符
)

// RemoveAllEmoji 移除文本中的表情符号
func RemoveAllEmoji(text string) string {
	return SimpleEmojiRegex.ReplaceAllString(text, "")
}

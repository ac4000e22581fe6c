package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// RemoveAllPunctuation 移除所有标点与符号，保留文字、数字和空白
func RemoveAllPunctuation(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var markdownRegex = regexp.MustCompile(`[\*#\-+=>` + "`" + `~_\[\](){}|\\]`)

// RemoveMarkdownSyntax 将Markdown语法符号替换为空格
func RemoveMarkdownSyntax(text string) string {
	return markdownRegex.ReplaceAllString(text, " ")
}

var spaceRegex = regexp.MustCompile(`\s+`)

// CollapseSpaces 合并连续空白并去除首尾空白
func CollapseSpaces(text string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}

// Truncate 按字符截断文本，超出部分以...结尾，用于日志输出
func Truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

// IsQuitCommand 判断用户输入是否命中退出指令
func IsQuitCommand(text string, commands []string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(RemoveAllPunctuation(text)))
	if cleaned == "" {
		return false
	}
	for _, cmd := range commands {
		if cleaned == strings.ToLower(strings.TrimSpace(cmd)) {
			return true
		}
	}
	return false
}

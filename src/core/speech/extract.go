// Package speech 负责从角色回复中提取台词并整理成适合语音合成的文本
package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// 🗣️ 后的引号台词，单引号内允许出现 it's 这类撇号
var speechRegex = regexp.MustCompile(`🗣\x{FE0F}?\s*(?:'((?:[^']|'\p{L})+)'|"([^"]+)")`)

// ExtractSpeech 提取回复中需要朗读的部分
// 有台词标记时返回所有台词，以空格连接；没有标记时，正文字符占比不低于30%才返回全文
func ExtractSpeech(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	matches := speechRegex.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		segments := make([]string, 0, len(matches))
		for _, m := range matches {
			segment := m[1]
			if segment == "" {
				segment = m[2]
			}
			if segment = strings.TrimSpace(segment); segment != "" {
				segments = append(segments, segment)
			}
		}
		if len(segments) > 0 {
			return strings.Join(segments, " "), true
		}
	}

	// 去掉表情与符号后的正文占比
	total := len([]rune(text))
	plain := len([]rune(strings.TrimSpace(keepPlain(text))))
	if float64(plain) > float64(total)*0.3 {
		return text, true
	}
	return "", false
}

func isPlainRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) ||
		strings.ContainsRune(".,!?-", r)
}

func keepPlain(text string) string {
	return strings.Map(func(r rune) rune {
		if isPlainRune(r) {
			return r
		}
		return -1
	}, text)
}

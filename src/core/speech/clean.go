package speech

import (
	"regexp"
	"sort"
	"strings"

	"noir-server-go/src/core/utils"
)

// 网络用语缩写
var slang = map[string]string{
	"lol":  "laugh out loud",
	"omg":  "oh my god",
	"btw":  "by the way",
	"imo":  "in my opinion",
	"tbh":  "to be honest",
	"irl":  "in real life",
	"afk":  "away from keyboard",
	"brb":  "be right back",
	"gtg":  "got to go",
	"ttyl": "talk to you later",
	"nyet": "no",
	"da":   "yes",
}

// 直播与游戏用语
var streamTerms = map[string]string{
	"vtuber":  "virtual tuber",
	"pog":     "awesome",
	"poggers": "amazing",
	"kek":     "laugh",
	"sus":     "suspicious",
	"based":   "cool",
	"cringe":  "cringy",
	"comrade": "friend",
}

type wordRule struct {
	re   *regexp.Regexp
	repl string
}

var (
	wordRules = append(buildRules(slang), buildRules(streamTerms)...)

	repeatedDots     = regexp.MustCompile(`\.{2,}`)
	repeatedBangs    = regexp.MustCompile(`!{2,}`)
	repeatedQuestion = regexp.MustCompile(`\?{2,}`)
	markdownChars    = regexp.MustCompile("[*_~`#]")
	unspeakable      = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?()'-]`)
	smartQuotes      = strings.NewReplacer("‘", "'", "’", "'", "“", "", "”", "")
)

func buildRules(m map[string]string) []wordRule {
	words := make([]string, 0, len(m))
	for w := range m {
		words = append(words, w)
	}
	sort.Strings(words)
	rules := make([]wordRule, 0, len(words))
	for _, w := range words {
		rules = append(rules, wordRule{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			repl: m[w],
		})
	}
	return rules
}

// CleanForSpeech 整理文本使其更适合朗读：合并重复标点、展开网络用语、去掉Markdown与表情
func CleanForSpeech(text string) string {
	text = repeatedDots.ReplaceAllString(text, ".")
	text = repeatedBangs.ReplaceAllString(text, "!")
	text = repeatedQuestion.ReplaceAllString(text, "?")

	for _, rule := range wordRules {
		text = rule.re.ReplaceAllLiteralString(text, rule.repl)
	}

	text = smartQuotes.Replace(text)
	text = markdownChars.ReplaceAllString(text, "")
	text = utils.RemoveAllEmoji(text)
	text = unspeakable.ReplaceAllString(text, "")
	return utils.CollapseSpaces(text)
}

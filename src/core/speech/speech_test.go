package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const noirReply = "🧠 *Oh no, human has discovered my fatal flaw!*\n" +
	"🎬 *frantically spins compass made of seashells*\n" +
	"🗣️ 'Nyet comrade, we took wrong turn at Area 51! 🛸🦈 Now lost... but hey, free WiFi!!'"

func TestExtractSpeech(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"角色回复", noirReply, "Nyet comrade, we took wrong turn at Area 51! 🛸🦈 Now lost... but hey, free WiFi!!", true},
		{"单条台词", "🗣️ 'Hello there! How are you doing today?'", "Hello there! How are you doing today?", true},
		{"多条台词", "🗣️ 'First speech' and then 🗣️ 'Second speech'", "First speech Second speech", true},
		{"双引号", `🗣️ "Glub glub"`, "Glub glub", true},
		{"台词中的撇号", "🗣️ 'It's a dolphin, I'm sure' *nods*", "It's a dolphin, I'm sure", true},
		{"无变体选择符", "🗣 'plain marker'", "plain marker", true},
		{"无标记的普通文本", "Regular text without any speech markers", "Regular text without any speech markers", true},
		{"几乎全是表情", "🎭🎪🎨 Hi 🚀🌟✨", "", false},
		{"空文本", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractSpeech(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"重复标点", "Wait... what?? No!!!", "Wait. what? No!"},
		{"网络用语", "LOL btw I am AFK, brb", "laugh out loud by the way I am away from keyboard, be right back"},
		{"俄语", "Nyet, da comrade", "no, yes friend"},
		{"整词匹配", "Darkhan sold data", "Darkhan sold data"},
		{"直播用语", "pog, poggers, so sus and based vtuber", "awesome, amazing, so suspicious and cool virtual tuber"},
		{"Markdown与表情", "**Glub** _glub_ 🦈🐬 `shark`", "Glub glub shark"},
		{"保留撇号", "I’m a dolphin", "I'm a dolphin"},
		{"去掉符号", "100% real @ dolphin #1", "100 real dolphin 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanForSpeech(tt.input))
		})
	}
}

func TestEmojiToText(t *testing.T) {
	assert.Equal(t, "I am :dolphin: not :shark: :joy:", EmojiToText("I am 🐬 not 🦈 😂"))
	assert.Equal(t, ":speaking_head: 'hi'", EmojiToText("🗣️ 'hi'"))
	assert.Equal(t, "unknown 🦑 stays", EmojiToText("unknown 🦑 stays"))
}

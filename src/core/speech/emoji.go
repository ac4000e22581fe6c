package speech

import (
	"sort"
	"strings"
)

// emojiNames 表情到短代码的映射
var emojiNames = map[string]string{
	"😀": ":grinning:",
	"😃": ":smiley:",
	"😄": ":smile:",
	"😁": ":grin:",
	"😆": ":laughing:",
	"😅": ":sweat_smile:",
	"😂": ":joy:",
	"🤣": ":rofl:",
	"😊": ":blush:",
	"😇": ":innocent:",
	"🙂": ":slight_smile:",
	"🙃": ":upside_down:",
	"😉": ":wink:",
	"😌": ":relieved:",
	"😍": ":heart_eyes:",
	"🥰": ":smiling_face_with_3_hearts:",
	"😘": ":kissing_heart:",
	"😗": ":kissing:",
	"😙": ":kissing_smiling_eyes:",
	"😚": ":kissing_closed_eyes:",
	"😋": ":yum:",
	"😜": ":stuck_out_tongue_winking_eye:",
	"😝": ":stuck_out_tongue_closed_eyes:",
	"😛": ":stuck_out_tongue:",
	"🤑": ":money_mouth:",
	"🤗": ":hugs:",
	"🤭": ":hand_over_mouth:",
	"🤫": ":shushing_face:",
	"🤔": ":thinking:",
	"🤐": ":zipper_mouth:",
	"🤨": ":raised_eyebrow:",
	"😐": ":neutral_face:",
	"🦈": ":shark:",
	"🐬": ":dolphin:",
	"🧠": ":brain:",
	"🎬": ":clapper:",
	"🗣️": ":speaking_head:",
	"🗣": ":speaking_head:",
	"🛸": ":flying_saucer:",
	"👻": ":ghost:",
	"💀": ":skull:",
}

var emojiReplacer = newEmojiReplacer()

func newEmojiReplacer() *strings.Replacer {
	keys := make([]string, 0, len(emojiNames))
	for k := range emojiNames {
		keys = append(keys, k)
	}
	// 较长的序列优先匹配，例如带变体选择符的 🗣️
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, emojiNames[k])
	}
	return strings.NewReplacer(pairs...)
}

// EmojiToText 将已知表情替换为 :短代码:，未知表情保持不变
func EmojiToText(text string) string {
	return emojiReplacer.Replace(text)
}

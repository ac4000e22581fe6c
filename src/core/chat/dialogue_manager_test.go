package chat

import (
	"testing"

	"noir-server-go/src/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMsg(s string) Message      { return Message{Role: types.RoleUser, Content: s} }
func assistantMsg(s string) Message { return Message{Role: types.RoleAssistant, Content: s} }

func TestDialogueManager_GetLLMDialogue(t *testing.T) {
	dm := NewDialogueManager(0)
	dm.Put(userMsg("hi"), assistantMsg("privet"))

	dialogue := dm.GetLLMDialogue("persona")
	require.Len(t, dialogue, 3)
	assert.Equal(t, types.RoleSystem, dialogue[0].Role)
	assert.Equal(t, "persona", dialogue[0].Content)
	assert.Equal(t, "privet", dialogue[2].Content)

	assert.Len(t, dm.GetLLMDialogue(""), 2, "空提示词不添加系统消息")
}

func TestDialogueManager_WithMemory(t *testing.T) {
	dm := NewDialogueManager(0)
	dialogue := dm.GetLLMDialogueWithMemory("persona", "I am a real dolphin\nDarkhan sold me", "are you a shark?")
	require.Len(t, dialogue, 2)
	assert.Equal(t, "I am a real dolphin\nDarkhan sold me\n\nCurrent message: are you a shark?", dialogue[1].Content)

	dialogue = dm.GetLLMDialogueWithMemory("persona", "", "hello")
	assert.Equal(t, "hello", dialogue[1].Content)
	assert.Equal(t, 0, dm.Len(), "组装提示词不修改历史")
}

func TestDialogueManager_Trim(t *testing.T) {
	dm := NewDialogueManager(4)
	for _, s := range []string{"1", "2", "3"} {
		dm.Put(userMsg("q"+s), assistantMsg("a"+s))
	}
	history := dm.History()
	require.Len(t, history, 4)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "a3", history[3].Content)

	// 奇数上限时保证历史以用户消息开头
	dm = NewDialogueManager(3)
	dm.Put(userMsg("q1"), assistantMsg("a1"), userMsg("q2"), assistantMsg("a2"))
	history = dm.History()
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
}

func TestDialogueManager_JSON(t *testing.T) {
	dm := NewDialogueManager(0)
	dm.Put(userMsg("hi"), assistantMsg("privet"))
	data, err := dm.ToJSON()
	require.NoError(t, err)

	restored := NewDialogueManager(0)
	require.NoError(t, restored.LoadFromJSON(data))
	assert.Equal(t, dm.History(), restored.History())

	assert.Error(t, restored.LoadFromJSON("{"))

	restored.Clear()
	assert.Equal(t, 0, restored.Len())
}

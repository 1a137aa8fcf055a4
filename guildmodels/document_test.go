package guildmodels

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionDocumentKeepsInsertionOrder(t *testing.T) {
	doc := NewPermissionDocument()
	doc.Set("zeta", []string{"1"})
	doc.Set("alpha", []string{"2"})
	doc.Set("zeta", []string{"3"})

	assert.Equal(t, []string{"zeta", "alpha"}, Keys(doc))

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":["3"],"alpha":["2"]}`, string(out))
}

func TestReactionRoleDocumentUnmarshal(t *testing.T) {
	t.Run("keeps file order", func(t *testing.T) {
		doc := NewReactionRoleDocument()
		require.NoError(t, json.Unmarshal([]byte(`{"b": [{"emojiId": "x", "roleId": "R1"}], "a": [], "c": []}`), doc))
		assert.Equal(t, []string{"b", "a", "c"}, Keys(doc))
		rules, ok := doc.Get("b")
		require.True(t, ok)
		require.Len(t, rules, 1)
		assert.Equal(t, "R1", rules[0].RoleID)
	})

	t.Run("rejects arrays", func(t *testing.T) {
		doc := NewReactionRoleDocument()
		assert.Error(t, json.Unmarshal([]byte(`["a"]`), doc))
	})
}

func TestKeysIsACopy(t *testing.T) {
	doc := NewPermissionDocument()
	doc.Set("a", nil)
	doc.Set("b", nil)
	doc.Set("c", nil)
	keys := Keys(doc)

	for _, key := range keys {
		if key != "c" {
			doc.Delete(key)
		}
	}
	assert.Equal(t, []string{"c"}, Keys(doc))
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestRoleGrantRuleWireFormat(t *testing.T) {
	ungated := NewRoleGrantRule("🔥", "R1", "C1", "")
	out, err := json.Marshal(ungated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"emojiId":"🔥","roleId":"R1","channelId":"C1"}`, string(out))

	var legacy RoleGrantRule
	require.NoError(t, json.Unmarshal([]byte(`{"emojiId":"a:1","roleId":"R2","channelId":null,"requireRoleId":null}`), &legacy))
	assert.Equal(t, "", legacy.Channel())
	assert.False(t, legacy.IsGated())

	gated := NewRoleGrantRule("🔥", "R1", "C2", "R9")
	assert.False(t, gated.SameGrant(ungated))
	assert.True(t, gated.SameGrant(NewRoleGrantRule("🔥", "R1", "", "R9")))
	assert.True(t, gated.References("R9"))
	assert.True(t, gated.References("R1"))
	assert.False(t, gated.References("R2"))
}

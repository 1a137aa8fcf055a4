package emoji_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callummance/reactbot/emoji"
)

func TestParse(t *testing.T) {
	t.Run("custom emoji forms normalize to the same key", func(t *testing.T) {
		for _, raw := range []string{"<:blob:123456>", "<a:blob:123456>", "blob:123456", "  <:blob:123456>  "} {
			e, err := emoji.Parse(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, emoji.Custom, e.Kind())
			assert.Equal(t, "blob:123456", e.Key(), raw)
		}
	})

	t.Run("unicode emoji keep their grapheme", func(t *testing.T) {
		e, err := emoji.Parse("🔥")
		require.NoError(t, err)
		assert.Equal(t, emoji.Unicode, e.Kind())
		assert.Equal(t, "🔥", e.Key())
		assert.Equal(t, "🔥", e.String())
	})

	t.Run("rejects empty and multi-token input", func(t *testing.T) {
		_, err := emoji.Parse("   ")
		assert.Error(t, err)
		_, err = emoji.Parse("🔥 🔥")
		assert.Error(t, err)
		_, err = emoji.Parse("<:broken")
		assert.Error(t, err)
	})
}

func TestEqualIgnoresAnimation(t *testing.T) {
	still, err := emoji.Parse("<:dance:42>")
	require.NoError(t, err)
	animated, err := emoji.Parse("<a:dance:42>")
	require.NoError(t, err)

	assert.True(t, still.Equal(animated))
	assert.Equal(t, "<a:dance:42>", animated.String())
	assert.Equal(t, "<:dance:42>", still.String())
}

func TestFromDiscordMatchesStoredKeys(t *testing.T) {
	custom := emoji.FromDiscord(&discordgo.Emoji{Name: "dance", ID: "42", Animated: true})
	assert.True(t, custom.MatchesKey("dance:42"))
	assert.False(t, custom.MatchesKey("dance:43"))
	assert.False(t, custom.MatchesKey("🔥"))

	unicode := emoji.FromDiscord(&discordgo.Emoji{Name: "🔥"})
	assert.True(t, unicode.MatchesKey("🔥"))
	assert.False(t, unicode.MatchesKey("fire:1"))

	assert.True(t, emoji.FromDiscord(nil).IsZero())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "blob:1", emoji.Normalize("<a:blob:1>"))
	assert.Equal(t, "✅", emoji.Normalize(" ✅ "))
	assert.Equal(t, "not an emoji", emoji.Normalize(" not an emoji "))
}

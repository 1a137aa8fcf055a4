package reactroles_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callummance/reactbot/emoji"
	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/persist"
	"github.com/callummance/reactbot/reactroles"
)

//memorySaver keeps every snapshot it is handed, encoded the way the adapter would write it
type memorySaver struct {
	mu        sync.Mutex
	snapshots [][]byte
}

func (m *memorySaver) Save(name string, doc interface{}) {
	data, err := persist.Encode(doc)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, data)
}

func (m *memorySaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

func (m *memorySaver) last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil
	}
	return m.snapshots[len(m.snapshots)-1]
}

//bytesLoader serves a single document from memory
type bytesLoader []byte

func (b bytesLoader) Load(_ string, v interface{}) error {
	if b == nil {
		return nil
	}
	return json.Unmarshal(b, v)
}

func rule(emojiKey, roleID, requireRoleID string) guildmodels.RoleGrantRule {
	return guildmodels.NewRoleGrantRule(emojiKey, roleID, "", requireRoleID)
}

func encoded(t *testing.T, s *reactroles.Store) string {
	t.Helper()
	data, err := persist.Encode(s.Document())
	require.NoError(t, err)
	return string(data)
}

func TestConcreteScenario(t *testing.T) {
	saver := &memorySaver{}
	store := reactroles.NewStore(saver)

	assert.Equal(t, reactroles.Added, store.AddRule("100", "channelA", rule("🔥", "R1", "")))
	assert.Equal(t, reactroles.DuplicateExists, store.AddRule("100", "channelA", rule("🔥", "R1", "")))
	assert.Len(t, store.Lookup("100"), 1)

	assert.True(t, store.OnRoleDeleted("R1"))
	assert.Equal(t, []guildmodels.RoleGrantRule{}, store.Lookup("100"))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 2, saver.count())
	assert.Equal(t, "{}\n", string(saver.last()))
}

func TestAddRule(t *testing.T) {
	t.Run("records channel and normalizes emoji", func(t *testing.T) {
		store := reactroles.NewStore(nil)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("<a:blob:99>", "R1", "")))

		rules := store.Lookup("m1")
		require.Len(t, rules, 1)
		assert.Equal(t, "blob:99", rules[0].EmojiID)
		assert.Equal(t, "c1", rules[0].Channel())
	})

	t.Run("equivalent emoji forms are duplicates", func(t *testing.T) {
		saver := &memorySaver{}
		store := reactroles.NewStore(saver)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("<:blob:99>", "R1", "")))
		assert.Equal(t, reactroles.DuplicateExists, store.AddRule("m1", "c1", rule("blob:99", "R1", "")))
		assert.Len(t, store.Lookup("m1"), 1)
		assert.Equal(t, 1, saver.count(), "rejected duplicates are not persisted")
	})

	t.Run("prerequisite is part of the identity", func(t *testing.T) {
		store := reactroles.NewStore(nil)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "")))
		assert.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "GATE")))
		assert.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R2", "")))
		assert.Equal(t, reactroles.DuplicateExists, store.AddRule("m1", "c1", rule("🔥", "R1", "GATE")))
		assert.Len(t, store.Lookup("m1"), 3)
	})

	t.Run("caller mutations do not leak into the index", func(t *testing.T) {
		store := reactroles.NewStore(nil)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "GATE")))
		rules := store.Lookup("m1")
		*rules[0].RequireRoleID = "OTHER"
		rules[0].RoleID = "OTHER"
		assert.Equal(t, "GATE", store.Lookup("m1")[0].RequiredRole())
		assert.Equal(t, "R1", store.Lookup("m1")[0].RoleID)
	})
}

func TestRemoveRule(t *testing.T) {
	t.Run("missing mapping leaves index byte identical", func(t *testing.T) {
		saver := &memorySaver{}
		store := reactroles.NewStore(saver)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "")))
		before := encoded(t, store)

		assert.Equal(t, reactroles.NoSuchMapping, store.RemoveRule("m1", "✅"))
		assert.Equal(t, reactroles.NoSuchMapping, store.RemoveRule("nope", "🔥"))
		assert.Equal(t, before, encoded(t, store))
		assert.Equal(t, 1, saver.count())
	})

	t.Run("removes every rule sharing the emoji", func(t *testing.T) {
		store := reactroles.NewStore(nil)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "")))
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R2", "GATE")))
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("✅", "R3", "")))

		assert.Equal(t, reactroles.Removed, store.RemoveRule("m1", "🔥"))
		rules := store.Lookup("m1")
		require.Len(t, rules, 1)
		assert.Equal(t, "R3", rules[0].RoleID)
	})

	t.Run("deletes the entry once empty", func(t *testing.T) {
		store := reactroles.NewStore(nil)
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("blob:5", "R1", "")))
		assert.Equal(t, reactroles.Removed, store.RemoveRule("m1", "<:blob:5>"))
		assert.Equal(t, 0, store.Len())
		assert.Empty(t, store.ListAll())
	})
}

func TestOnMessageDeleted(t *testing.T) {
	saver := &memorySaver{}
	store := reactroles.NewStore(saver)
	for _, key := range []string{"🔥", "✅", "blob:1"} {
		require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule(key, "R1", "")))
	}
	require.Equal(t, reactroles.Added, store.AddRule("m2", "c1", rule("🔥", "R1", "")))
	saves := saver.count()

	assert.True(t, store.OnMessageDeleted("m1"))
	assert.Empty(t, store.Lookup("m1"))
	assert.Len(t, store.Lookup("m2"), 1)
	assert.Equal(t, saves+1, saver.count())

	assert.False(t, store.OnMessageDeleted("m1"), "redelivered events are no-ops")
	assert.Equal(t, saves+1, saver.count(), "no-op deletions do not persist")
}

func TestOnRoleDeleted(t *testing.T) {
	saver := &memorySaver{}
	store := reactroles.NewStore(saver)
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "DOOMED", "")))
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("✅", "KEEP1", "")))
	require.Equal(t, reactroles.Added, store.AddRule("m2", "c2", rule("🎉", "KEEP2", "DOOMED")))
	require.Equal(t, reactroles.Added, store.AddRule("m3", "c3", rule("🎉", "KEEP3", "OTHER")))
	saves := saver.count()

	assert.True(t, store.OnRoleDeleted("DOOMED"))

	m1 := store.Lookup("m1")
	require.Len(t, m1, 1)
	assert.Equal(t, "KEEP1", m1[0].RoleID)
	assert.Empty(t, store.Lookup("m2"), "entry emptied by filtering is deleted")
	assert.Len(t, store.Lookup("m3"), 1, "unrelated rules are untouched")
	assert.Equal(t, saves+1, saver.count())

	assert.False(t, store.OnRoleDeleted("DOOMED"))
	assert.False(t, store.OnRoleDeleted("NEVER_USED"))
	assert.Equal(t, saves+1, saver.count())
}

func TestMatchAndFind(t *testing.T) {
	store := reactroles.NewStore(nil)
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("<a:party:7>", "R1", "")))
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("party:7", "R2", "GATE")))
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R3", "")))

	reaction := emoji.FromDiscord(&discordgo.Emoji{Name: "party", ID: "7", Animated: true})
	matched := store.Match("m1", reaction)
	require.Len(t, matched, 2)
	assert.Equal(t, "R1", matched[0].RoleID)
	assert.Equal(t, "R2", matched[1].RoleID)

	assert.Empty(t, store.Match("m1", emoji.NewUnicode("✅")), "unmapped reactions are silently ignored")
	assert.Empty(t, store.Match("unknown", reaction))

	found, ok := store.Find("m1", "party:7", "R2")
	require.True(t, ok)
	assert.Equal(t, "GATE", found.RequiredRole())
	_, ok = store.Find("m1", "party:7", "R3")
	assert.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	saver := &memorySaver{}
	store := reactroles.NewStore(saver)
	require.Equal(t, reactroles.Added, store.AddRule("300", "c1", rule("🔥", "R1", "")))
	require.Equal(t, reactroles.Added, store.AddRule("100", "c2", rule("blob:1", "R2", "R9")))
	require.Equal(t, reactroles.Added, store.AddRule("300", "c1", rule("✅", "R3", "")))
	require.Equal(t, reactroles.Added, store.AddRule("200", "", rule("🎉", "R4", "")))

	reloaded := reactroles.NewStore(nil)
	require.NoError(t, reloaded.Load(bytesLoader(saver.last())))

	assert.Equal(t, store.ListAll(), reloaded.ListAll())
	assert.Equal(t, encoded(t, store), encoded(t, reloaded))
	assert.Equal(t, []string{"300", "100", "200"}, guildmodels.Keys(reloaded.Document()))
}

func TestLoadDocumentFormat(t *testing.T) {
	doc := `{
  "111": [
    {"emojiId": "<:blob:1>", "roleId": "R1", "channelId": "C1", "requireRoleId": null},
    {"emojiId": "blob:1", "roleId": "R1", "channelId": null}
  ],
  "222": []
}`
	store := reactroles.NewStore(nil)
	require.NoError(t, store.Load(bytesLoader(doc)))

	rules := store.Lookup("111")
	require.Len(t, rules, 1, "duplicates collapse once keys are normalized")
	assert.Equal(t, "blob:1", rules[0].EmojiID)
	assert.Equal(t, 1, store.Len(), "empty entries are dropped")

	missing := reactroles.NewStore(nil)
	require.NoError(t, missing.Load(bytesLoader(nil)))
	assert.Equal(t, 0, missing.Len())
}

func TestConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	store := reactroles.NewStore(&memorySaver{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.AddRule("m1", "c1", rule("🔥", string(rune('A'+i)), ""))
		}(i)
	}
	wg.Wait()
	assert.Len(t, store.Lookup("m1"), 50)
}

func TestOnRoleDeletedIgnoresEmptyRole(t *testing.T) {
	saver := &memorySaver{}
	store := reactroles.NewStore(saver)
	require.Equal(t, reactroles.Added, store.AddRule("m1", "c1", rule("🔥", "R1", "")))

	assert.False(t, store.OnRoleDeleted(""))
	assert.Len(t, store.Lookup("m1"), 1, "ungated rules must survive")
	assert.Equal(t, 1, saver.count())
}

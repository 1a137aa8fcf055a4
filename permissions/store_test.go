package permissions_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/permissions"
	"github.com/callummance/reactbot/persist"
)

const owner = "OWNER"

type saveRecord struct {
	name string
	data string
}

type memorySaver struct {
	saves []saveRecord
}

func (m *memorySaver) Save(name string, doc interface{}) {
	data, err := persist.Encode(doc)
	if err != nil {
		panic(err)
	}
	m.saves = append(m.saves, saveRecord{name: name, data: string(data)})
}

type stringLoader string

func (s stringLoader) Load(_ string, v interface{}) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func TestPermissionFailsClosed(t *testing.T) {
	store := permissions.NewStore(owner, nil)

	assert.False(t, store.IsPermitted("clr", "someone", nil))
	assert.False(t, store.IsPermitted("clr", "someone", []string{"roleX"}))
	assert.True(t, store.IsPermitted("clr", owner, nil), "owner needs no permit-list entry")

	require.Equal(t, permissions.Added, store.AddRole("clr", "roleX"))
	assert.True(t, store.IsPermitted("clr", "someone", []string{"roleX"}))
	assert.True(t, store.IsPermitted("CLR", "someone", []string{"other", "roleX"}), "command names are case-insensitive")
	assert.False(t, store.IsPermitted("clr", "someone", []string{"other"}))
	assert.False(t, store.IsPermitted("msg", "someone", []string{"roleX"}))
}

func TestEmptyOwnerIsNeverMatched(t *testing.T) {
	store := permissions.NewStore("", nil)
	assert.False(t, store.IsOwner(""))
	assert.False(t, store.IsPermitted("set", "", nil))
}

func TestAddAndRemoveRole(t *testing.T) {
	saver := &memorySaver{}
	store := permissions.NewStore(owner, saver)

	assert.Equal(t, permissions.Added, store.AddRole("Msg", "R1"))
	assert.Equal(t, permissions.AlreadyPresent, store.AddRole("msg", "R1"))
	assert.Equal(t, permissions.Added, store.AddRole("msg", "R2"))
	require.Len(t, saver.saves, 2, "only changes are persisted")
	assert.Equal(t, permissions.DocumentName, saver.saves[1].name)
	assert.Equal(t, "{\n  \"msg\": [\n    \"R1\",\n    \"R2\"\n  ]\n}\n", saver.saves[1].data)

	assert.Equal(t, permissions.NotPresent, store.RemoveRole("msg", "R9"))
	assert.Equal(t, permissions.NotPresent, store.RemoveRole("clr", "R1"))
	assert.Len(t, saver.saves, 2)

	assert.Equal(t, permissions.Removed, store.RemoveRole("msg", "R1"))
	assert.Equal(t, permissions.Removed, store.RemoveRole("msg", "R2"))
	assert.Empty(t, store.ListAll(), "empty permit-lists are deleted")
	assert.Equal(t, "{}\n", saver.saves[len(saver.saves)-1].data)
	assert.False(t, store.IsPermitted("msg", "someone", []string{"R1", "R2"}))
}

func TestListAllIsSortedByCommand(t *testing.T) {
	store := permissions.NewStore(owner, nil)
	assert.Empty(t, store.ListAll())

	store.AddRole("set", "R3")
	store.AddRole("clr", "R1")
	store.AddRole("msgrole", "R2")
	store.AddRole("clr", "R4")

	assert.Equal(t, []permissions.Entry{
		{Command: "clr", RoleIDs: []string{"R1", "R4"}},
		{Command: "msgrole", RoleIDs: []string{"R2"}},
		{Command: "set", RoleIDs: []string{"R3"}},
	}, store.ListAll())

	listed := store.ListAll()
	listed[0].RoleIDs[0] = "tampered"
	assert.Equal(t, "R1", store.ListAll()[0].RoleIDs[0])
}

func TestPurgeRole(t *testing.T) {
	saver := &memorySaver{}
	store := permissions.NewStore(owner, saver)
	store.AddRole("clr", "DOOMED")
	store.AddRole("msg", "DOOMED")
	store.AddRole("msg", "KEEP")
	store.AddRole("set", "KEEP")
	saves := len(saver.saves)

	assert.True(t, store.PurgeRole("DOOMED"))
	assert.Equal(t, []permissions.Entry{
		{Command: "msg", RoleIDs: []string{"KEEP"}},
		{Command: "set", RoleIDs: []string{"KEEP"}},
	}, store.ListAll())
	assert.Len(t, saver.saves, saves+1)

	assert.False(t, store.PurgeRole("DOOMED"))
	assert.Len(t, saver.saves, saves+1)
}

func TestLoad(t *testing.T) {
	store := permissions.NewStore(owner, nil)
	require.NoError(t, store.Load(stringLoader(`{"msg": ["R1", "R1", "R2"], "CLR": ["R3"], "set": []}`)))

	assert.Equal(t, []permissions.Entry{
		{Command: "clr", RoleIDs: []string{"R3"}},
		{Command: "msg", RoleIDs: []string{"R1", "R2"}},
	}, store.ListAll())
	assert.True(t, store.IsPermitted("clr", "someone", []string{"R3"}))

	fresh := permissions.NewStore(owner, nil)
	require.NoError(t, fresh.Load(stringLoader("")))
	assert.Empty(t, fresh.ListAll())
}

func TestDocumentKeepsInsertionOrder(t *testing.T) {
	store := permissions.NewStore(owner, nil)
	store.AddRole("set", "R1")
	store.AddRole("clr", "R2")
	assert.Equal(t, []string{"set", "clr"}, guildmodels.Keys(store.Document()))
}

func TestEmptyRoleIsIgnored(t *testing.T) {
	saver := &memorySaver{}
	store := permissions.NewStore(owner, saver)
	require.Equal(t, permissions.Added, store.AddRole("clr", "R1"))

	assert.Equal(t, permissions.Rejected, store.AddRole("clr", ""))
	assert.Equal(t, permissions.Rejected, store.AddRole("  ", "R2"))
	assert.False(t, store.PurgeRole(""))
	assert.Equal(t, []permissions.Entry{{Command: "clr", RoleIDs: []string{"R1"}}}, store.ListAll())
	assert.Len(t, saver.saves, 1)
}

//Package permissions holds the command permit-lists: which roles may invoke which bot command.
//Commands without a permit-list can only be used by the owner.
package permissions

import (
	"sort"
	"strings"
	"sync"

	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/persist"
	"github.com/sirupsen/logrus"
)

//DocumentName is the file the permit-lists are persisted to
const DocumentName = "permissions.json"

//AddResult is the outcome of AddRole
type AddResult int

const (
	//Added means the role was appended to the command's permit-list
	Added AddResult = iota
	//AlreadyPresent means the role was already permitted
	AlreadyPresent
	//Rejected means the command or role was empty and nothing was stored
	Rejected
)

//RemoveResult is the outcome of RemoveRole
type RemoveResult int

const (
	//Removed means the role was taken off the permit-list
	Removed RemoveResult = iota
	//NotPresent means the role was not on the permit-list
	NotPresent
)

//Loader reads a persisted document
type Loader interface {
	Load(name string, v interface{}) error
}

//Entry is a single command and the roles allowed to use it
type Entry struct {
	Command string
	RoleIDs []string
}

//Store owns the permission index
type Store struct {
	ownerID string

	mu    sync.Mutex
	index *guildmodels.PermissionDocument
	saver persist.Saver
}

//NewStore returns an empty store. ownerID is the user who may always run every command.
func NewStore(ownerID string, saver persist.Saver) *Store {
	return &Store{
		ownerID: ownerID,
		index:   guildmodels.NewPermissionDocument(),
		saver:   saver,
	}
}

//Load replaces the index with the persisted document
func (s *Store) Load(loader Loader) error {
	loaded := guildmodels.NewPermissionDocument()
	if err := loader.Load(DocumentName, loaded); err != nil {
		return err
	}
	index := guildmodels.NewPermissionDocument()
	for _, cmd := range guildmodels.Keys(loaded) {
		roles, _ := loaded.Get(cmd)
		name := normalizeCommand(cmd)
		merged, _ := index.Get(name)
		for _, roleID := range roles {
			if roleID != "" && !contains(merged, roleID) {
				merged = append(merged, roleID)
			}
		}
		if len(merged) > 0 {
			index.Set(name, merged)
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	logrus.Infof("Loaded permit-lists for %d commands.", index.Len())
	return nil
}

//IsOwner reports whether the user is the configured owner
func (s *Store) IsOwner(actorID string) bool {
	return s.ownerID != "" && actorID == s.ownerID
}

//IsPermitted is true for the owner, or when the actor holds any role on the command's permit-list
func (s *Store) IsPermitted(command, actorID string, actorRoleIDs []string) bool {
	if s.IsOwner(actorID) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	permitted, ok := s.index.Get(normalizeCommand(command))
	if !ok {
		return false
	}
	for _, roleID := range actorRoleIDs {
		if contains(permitted, roleID) {
			return true
		}
	}
	return false
}

//AddRole permits a role to use a command
func (s *Store) AddRole(command, roleID string) AddResult {
	name := normalizeCommand(command)
	if name == "" || roleID == "" {
		return Rejected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, _ := s.index.Get(name)
	if contains(existing, roleID) {
		return AlreadyPresent
	}
	updated := make([]string, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, roleID)
	s.index.Set(name, updated)
	s.save()
	return Added
}

//RemoveRole revokes a role's permission to use a command, deleting the entry once it is empty
func (s *Store) RemoveRole(command, roleID string) RemoveResult {
	name := normalizeCommand(command)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.index.Get(name)
	if !ok || !contains(existing, roleID) {
		return NotPresent
	}
	s.setOrDelete(name, without(existing, roleID))
	s.save()
	return Removed
}

//ListAll returns every permit-list, sorted by command name
func (s *Store) ListAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Entry, 0, s.index.Len())
	for _, cmd := range guildmodels.Keys(s.index) {
		roles, _ := s.index.Get(cmd)
		res = append(res, Entry{Command: cmd, RoleIDs: append([]string(nil), roles...)})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Command < res[j].Command })
	return res
}

//PurgeRole removes a deleted role from every permit-list. Returns whether anything changed.
func (s *Store) PurgeRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, cmd := range guildmodels.Keys(s.index) {
		roles, _ := s.index.Get(cmd)
		if !contains(roles, roleID) {
			continue
		}
		s.setOrDelete(cmd, without(roles, roleID))
		changed = true
	}
	if changed {
		s.save()
		logrus.Infof("Removed deleted role %v from command permit-lists", roleID)
	}
	return changed
}

//Document returns a copy of the index in its persisted form
func (s *Store) Document() *guildmodels.PermissionDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := guildmodels.NewPermissionDocument()
	for _, cmd := range guildmodels.Keys(s.index) {
		roles, _ := s.index.Get(cmd)
		doc.Set(cmd, append([]string(nil), roles...))
	}
	return doc
}

//must hold s.mu
func (s *Store) setOrDelete(cmd string, roles []string) {
	if len(roles) == 0 {
		s.index.Delete(cmd)
		return
	}
	s.index.Set(cmd, roles)
}

//must hold s.mu
func (s *Store) save() {
	if s.saver == nil {
		return
	}
	s.saver.Save(DocumentName, s.index)
}

func normalizeCommand(command string) string {
	return strings.ToLower(strings.TrimSpace(command))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	res := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			res = append(res, v)
		}
	}
	return res
}

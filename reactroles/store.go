//Package reactroles keeps the reaction-role index: for each message, the emoji that grant roles when a
//member reacts with them or claims them through the message's button.
package reactroles

import (
	"sync"

	"github.com/callummance/reactbot/emoji"
	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/persist"
	"github.com/sirupsen/logrus"
)

//DocumentName is the file the index is persisted to
const DocumentName = "reactionRoleMap.json"

//AddResult is the outcome of AddRule
type AddResult int

const (
	//Added means the rule was appended
	Added AddResult = iota
	//DuplicateExists means an identical (emoji, role, prerequisite) rule is already registered
	DuplicateExists
)

//RemoveResult is the outcome of RemoveRule
type RemoveResult int

const (
	//Removed means at least one rule was deleted
	Removed RemoveResult = iota
	//NoSuchMapping means nothing matched and the index is unchanged
	NoSuchMapping
)

//Loader reads a persisted document
type Loader interface {
	Load(name string, v interface{}) error
}

//Listing is one rule along with the message it belongs to
type Listing struct {
	MessageID string
	Rule      guildmodels.RoleGrantRule
}

//Store owns the index. All reads and writes go through its methods, and each mutation snapshots the
//index to the saver while still holding the lock so that saves are never reordered.
type Store struct {
	mu    sync.Mutex
	index *guildmodels.ReactionRoleDocument
	saver persist.Saver
}

//NewStore returns an empty store. saver may be nil, in which case nothing is persisted.
func NewStore(saver persist.Saver) *Store {
	return &Store{
		index: guildmodels.NewReactionRoleDocument(),
		saver: saver,
	}
}

//Load replaces the index with the persisted document. Emoji keys are re-normalized and empty entries
//dropped.
func (s *Store) Load(loader Loader) error {
	loaded := guildmodels.NewReactionRoleDocument()
	if err := loader.Load(DocumentName, loaded); err != nil {
		return err
	}
	index := guildmodels.NewReactionRoleDocument()
	for _, msgID := range guildmodels.Keys(loaded) {
		rules, _ := loaded.Get(msgID)
		var kept []guildmodels.RoleGrantRule
		for _, rule := range rules {
			rule.EmojiID = emoji.Normalize(rule.EmojiID)
			if containsGrant(kept, rule) {
				logrus.Warnf("Dropping duplicate reaction-role rule %v -> %v on message %v", rule.EmojiID, rule.RoleID, msgID)
				continue
			}
			kept = append(kept, rule)
		}
		if len(kept) > 0 {
			index.Set(msgID, kept)
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	logrus.Infof("Loaded %d reaction-role message entries.", index.Len())
	return nil
}

//AddRule registers a rule on a message. The emoji key is normalized first and channelID, when given,
//is recorded on the rule so links to the message can be rebuilt later.
func (s *Store) AddRule(messageID, channelID string, rule guildmodels.RoleGrantRule) AddResult {
	rule = rule.Clone()
	rule.EmojiID = emoji.Normalize(rule.EmojiID)
	if channelID != "" {
		rule.ChannelID = &channelID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, _ := s.index.Get(messageID)
	if containsGrant(existing, rule) {
		return DuplicateExists
	}
	updated := make([]guildmodels.RoleGrantRule, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, rule)
	s.index.Set(messageID, updated)
	s.save()
	return Added
}

//RemoveRule deletes every rule on the message using the given emoji, whatever role it grants
func (s *Store) RemoveRule(messageID, emojiKey string) RemoveResult {
	key := emoji.Normalize(emojiKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.index.Get(messageID)
	if !ok {
		return NoSuchMapping
	}
	filtered := make([]guildmodels.RoleGrantRule, 0, len(existing))
	for _, rule := range existing {
		if rule.EmojiID != key {
			filtered = append(filtered, rule)
		}
	}
	if len(filtered) == len(existing) {
		return NoSuchMapping
	}
	if len(filtered) == 0 {
		s.index.Delete(messageID)
	} else {
		s.index.Set(messageID, filtered)
	}
	s.save()
	return Removed
}

//Lookup returns a copy of the rules on a message, or an empty slice
func (s *Store) Lookup(messageID string) []guildmodels.RoleGrantRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, _ := s.index.Get(messageID)
	return cloneRules(rules)
}

//Match returns the rules on a message that the given reaction emoji triggers
func (s *Store) Match(messageID string, e emoji.Emoji) []guildmodels.RoleGrantRule {
	res := []guildmodels.RoleGrantRule{}
	if e.IsZero() {
		return res
	}
	for _, rule := range s.Lookup(messageID) {
		if e.MatchesKey(rule.EmojiID) {
			res = append(res, rule)
		}
	}
	return res
}

//Find returns the first rule on a message with the given emoji and target role
func (s *Store) Find(messageID, emojiKey, roleID string) (guildmodels.RoleGrantRule, bool) {
	key := emoji.Normalize(emojiKey)
	for _, rule := range s.Lookup(messageID) {
		if rule.EmojiID == key && rule.RoleID == roleID {
			return rule, true
		}
	}
	return guildmodels.RoleGrantRule{}, false
}

//ListAll flattens the index in message insertion order, then rule insertion order
func (s *Store) ListAll() []Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := []Listing{}
	for _, msgID := range guildmodels.Keys(s.index) {
		rules, _ := s.index.Get(msgID)
		for _, rule := range rules {
			res = append(res, Listing{MessageID: msgID, Rule: rule.Clone()})
		}
	}
	return res
}

//Len returns the number of messages with at least one rule
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

//OnMessageDeleted drops every rule attached to a deleted message. Returns whether anything changed.
func (s *Store) OnMessageDeleted(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.index.Delete(messageID); !present {
		return false
	}
	s.save()
	logrus.Infof("Removed reaction-role mappings for deleted message %v", messageID)
	return true
}

//OnRoleDeleted drops every rule that grants or requires a deleted role. Returns whether anything changed.
func (s *Store) OnRoleDeleted(roleID string) bool {
	if roleID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, msgID := range guildmodels.Keys(s.index) {
		rules, _ := s.index.Get(msgID)
		filtered := make([]guildmodels.RoleGrantRule, 0, len(rules))
		for _, rule := range rules {
			if !rule.References(roleID) {
				filtered = append(filtered, rule)
			}
		}
		switch {
		case len(filtered) == 0:
			s.index.Delete(msgID)
			changed = true
		case len(filtered) != len(rules):
			s.index.Set(msgID, filtered)
			changed = true
		}
	}
	if changed {
		s.save()
		logrus.Infof("Cleaned up reaction-role mappings referencing deleted role %v", roleID)
	}
	return changed
}

//Document returns a deep copy of the index in its persisted form
func (s *Store) Document() *guildmodels.ReactionRoleDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := guildmodels.NewReactionRoleDocument()
	for _, msgID := range guildmodels.Keys(s.index) {
		rules, _ := s.index.Get(msgID)
		doc.Set(msgID, cloneRules(rules))
	}
	return doc
}

//must hold s.mu
func (s *Store) save() {
	if s.saver == nil {
		return
	}
	s.saver.Save(DocumentName, s.index)
}

func containsGrant(rules []guildmodels.RoleGrantRule, rule guildmodels.RoleGrantRule) bool {
	for _, existing := range rules {
		if existing.SameGrant(rule) {
			return true
		}
	}
	return false
}

func cloneRules(rules []guildmodels.RoleGrantRule) []guildmodels.RoleGrantRule {
	res := make([]guildmodels.RoleGrantRule, len(rules))
	for i, rule := range rules {
		res[i] = rule.Clone()
	}
	return res
}

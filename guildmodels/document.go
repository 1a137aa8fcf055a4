package guildmodels

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

//ReactionRoleDocument is the persisted form of the reaction-role index, keyed by message ID. Keys keep
//the order they were first added in, both in memory and on disk, so listings show entries in creation
//order.
type ReactionRoleDocument = orderedmap.OrderedMap[string, []RoleGrantRule]

//PermissionDocument is the persisted form of the permission index, keyed by command name
type PermissionDocument = orderedmap.OrderedMap[string, []string]

//NewReactionRoleDocument returns an empty reaction-role document
func NewReactionRoleDocument() *ReactionRoleDocument {
	return orderedmap.New[string, []RoleGrantRule]()
}

//NewPermissionDocument returns an empty permission document
func NewPermissionDocument() *PermissionDocument {
	return orderedmap.New[string, []string]()
}

//Keys lists a document's keys, oldest first. The result is a copy, so callers may modify the document
//while walking it.
func Keys[V any](doc *orderedmap.OrderedMap[string, V]) []string {
	res := make([]string, 0, doc.Len())
	for pair := doc.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Key)
	}
	return res
}

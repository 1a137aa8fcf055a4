package guildmodels

//RoleGrantRule represents a role which is handed out when a member reacts to (or claims from) a
//specific message with a specific emoji.
type RoleGrantRule struct {
	//Normalized emoji key, `name:id` for guild emoji or the raw unicode grapheme
	EmojiID string `json:"emojiId"`
	//The role to be granted
	RoleID string `json:"roleId"`
	//Channel containing the message. Only used to build links, so it may be missing on old entries.
	ChannelID *string `json:"channelId"`
	//Role the member must already hold, nil if the rule is ungated
	RequireRoleID *string `json:"requireRoleId,omitempty"`
}

//NewRoleGrantRule builds a rule, treating empty channel or prerequisite IDs as absent
func NewRoleGrantRule(emojiKey, roleID, channelID, requireRoleID string) RoleGrantRule {
	return RoleGrantRule{
		EmojiID:       emojiKey,
		RoleID:        roleID,
		ChannelID:     optional(channelID),
		RequireRoleID: optional(requireRoleID),
	}
}

//Channel returns the channel ID or an empty string
func (r RoleGrantRule) Channel() string {
	if r.ChannelID == nil {
		return ""
	}
	return *r.ChannelID
}

//RequiredRole returns the prerequisite role ID or an empty string if the rule is ungated
func (r RoleGrantRule) RequiredRole() string {
	if r.RequireRoleID == nil {
		return ""
	}
	return *r.RequireRoleID
}

//IsGated is true if the rule has a prerequisite role
func (r RoleGrantRule) IsGated() bool {
	return r.RequiredRole() != ""
}

//SameGrant reports whether two rules share the (emoji, role, prerequisite) triple which must be
//unique per message
func (r RoleGrantRule) SameGrant(other RoleGrantRule) bool {
	return r.EmojiID == other.EmojiID &&
		r.RoleID == other.RoleID &&
		r.RequiredRole() == other.RequiredRole()
}

//References is true if the rule grants or requires the given role
func (r RoleGrantRule) References(roleID string) bool {
	return r.RoleID == roleID || r.RequiredRole() == roleID
}

//Clone returns a copy which shares no pointers with r
func (r RoleGrantRule) Clone() RoleGrantRule {
	return RoleGrantRule{
		EmojiID:       r.EmojiID,
		RoleID:        r.RoleID,
		ChannelID:     optional(r.Channel()),
		RequireRoleID: optional(r.RequiredRole()),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

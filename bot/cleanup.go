package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

//HandleMessageDelete forgets the reaction roles of a deleted message
func (b *ReactBot) HandleMessageDelete(m *discordgo.MessageDelete) {
	if b.ReactionRoles.OnMessageDeleted(m.ID) {
		logrus.Infof("Removed reaction roles of deleted message %v", m.ID)
	}
}

//HandleMessageDeleteBulk forgets the reaction roles of every message in a bulk delete
func (b *ReactBot) HandleMessageDeleteBulk(m *discordgo.MessageDeleteBulk) {
	removed := 0
	for _, msgID := range m.Messages {
		if b.ReactionRoles.OnMessageDeleted(msgID) {
			removed++
		}
	}
	if removed > 0 {
		logrus.Infof("Removed reaction roles of %d messages bulk deleted from channel %v", removed, m.ChannelID)
	}
}

//HandleRoleDelete drops a deleted role from both the reaction-role rules and the command permit-lists
func (b *ReactBot) HandleRoleDelete(r *discordgo.GuildRoleDelete) {
	if b.ReactionRoles.OnRoleDeleted(r.RoleID) {
		logrus.Infof("Removed reaction roles referencing deleted role %v", r.RoleID)
	}
	if b.Permissions.PurgeRole(r.RoleID) {
		logrus.Infof("Removed deleted role %v from command permissions", r.RoleID)
	}
}

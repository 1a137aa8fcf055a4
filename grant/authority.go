package grant

import "github.com/bwmarrin/discordgo"

//AuthorityOf works out what the bot can do from its own member record. Roles granting either Manage
//Roles or Administrator count, including the @everyone role, whose ID is the guild ID.
func AuthorityOf(botMember *discordgo.Member, catalog []*discordgo.Role, guildID string) Authority {
	res := Authority{}
	if botMember == nil {
		return res
	}
	held := make(map[string]bool, len(botMember.Roles)+1)
	for _, id := range botMember.Roles {
		held[id] = true
	}
	held[guildID] = true

	for _, role := range catalog {
		if role == nil || !held[role.ID] {
			continue
		}
		if role.Permissions&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0 {
			res.CanManageRoles = true
		}
		if role.ID != guildID && role.Position > res.HighestPosition {
			res.HighestPosition = role.Position
		}
	}
	return res
}

//HighestPosition returns the position of the highest role in roleIDs, or 0 if none are in the catalog
func HighestPosition(roleIDs []string, catalog []*discordgo.Role) int {
	highest := 0
	for _, role := range catalog {
		if role != nil && role.Position > highest && hasRole(roleIDs, role.ID) {
			highest = role.Position
		}
	}
	return highest
}

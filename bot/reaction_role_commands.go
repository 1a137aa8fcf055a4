package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/emoji"
	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/reactroles"
	"github.com/sirupsen/logrus"
)

const msgRoleSyntax string = "`!msgrole <message_id> <emoji> <give_role> [require_role]`, `!msgrole list` or `!msgrole remove <message_id> <emoji>`"

const (
	claimButtonLabel  = "Claim %v"
	maxButtonLabel    = 80
	maxRowComponents  = 5
	maxMessageActions = 5
)

//handleMsgRoleMessage handles a message containing a msgrole command
//command format: !msgrole list | !msgrole remove <message_id> <emoji> | !msgrole <message_id> <emoji> <give_role...> [require_role]
func (b *ReactBot) handleMsgRoleMessage(inv *invocation, args []string) Response {
	if len(args) == 1 && strings.EqualFold(args[0], "list") {
		return b.listReactionRoles(inv)
	}
	if len(args) >= 1 && strings.EqualFold(args[0], "remove") {
		if len(args) < 3 {
			return inv.usage("Expected a message ID and an emoji.", msgRoleSyntax)
		}
		return b.removeReactionRole(inv, args[1], args[2])
	}
	if len(args) < 3 {
		return inv.usage("Expected a message ID, an emoji and a role.", msgRoleSyntax)
	}

	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	giveArg, requireArg := splitRoleArgs(args[2:], roles)
	giveRole := resolveRole(giveArg, roles)
	if giveRole == nil {
		return inv.notFound(fmt.Sprintf("Give role `%v` not found. Use a role mention, role ID, or exact role name.", giveArg))
	}
	var requireRole *discordgo.Role
	if requireArg != "" {
		requireRole = resolveRole(requireArg, roles)
	}
	return b.addReactionRole(inv, args[0], args[1], giveRole, requireRole)
}

//splitRoleArgs separates the role to give from an optional trailing prerequisite. With more than one
//word, the last is taken as the prerequisite only if it resolves to a role on its own.
func splitRoleArgs(args []string, roles []*discordgo.Role) (give string, require string) {
	if len(args) > 1 {
		last := args[len(args)-1]
		if resolveRole(last, roles) != nil {
			return strings.Join(args[:len(args)-1], " "), last
		}
	}
	return strings.Join(args, " "), ""
}

func (b *ReactBot) addReactionRole(inv *invocation, messageID, rawEmoji string, giveRole, requireRole *discordgo.Role) Response {
	if resp := b.requirePermission(inv, discordgo.PermissionManageRoles, "Manage Roles"); resp != nil {
		return resp
	}
	e, err := emoji.Parse(rawEmoji)
	if err != nil {
		return inv.usage(err.Error(), msgRoleSyntax)
	}

	target, err := b.findMessage(inv.guildID, messageID)
	if err != nil {
		return inv.internalError("Failed to search for the message", err)
	}
	if target == nil {
		return inv.notFound("Could not find that message in this server. Make sure the message ID is correct and the bot can view the channel.")
	}

	authority, _, err := b.botAuthority(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to check my own permissions", err)
	}
	if !authority.CanManageRoles {
		return inv.notAllowed("I need the Manage Roles permission to assign roles.")
	}
	if giveRole.Position >= authority.HighestPosition {
		return inv.notAllowed("I cannot assign that role because it is equal or higher than my highest role.")
	}

	requireID := ""
	if requireRole != nil {
		requireID = requireRole.ID
	}
	rule := guildmodels.NewRoleGrantRule(e.Key(), giveRole.ID, target.ChannelID, requireID)
	if b.ReactionRoles.AddRule(messageID, target.ChannelID, rule) == reactroles.DuplicateExists {
		return inv.duplicate("This emoji-role mapping already exists for that message with the same requirement.")
	}
	logrus.Infof("Registered reaction role %v -> %v on message %v in channel %v", e.Key(), giveRole.ID, messageID, target.ChannelID)

	if err := b.DiscordSession().MessageReactionAdd(target.ChannelID, messageID, e.Key()); err != nil {
		logrus.Warnf("Could not add reaction %v to message %v: %v", e.Key(), messageID, err)
	}
	b.attachClaimButton(target, e.Key(), giveRole)

	description := fmt.Sprintf("Registered reaction-role: react with %v on message %v to get role <@&%v>", e, messageID, giveRole.ID)
	if requireRole != nil {
		description += fmt.Sprintf(" (requires <@&%v>)", requireRole.ID)
	}
	return inv.success(description + ".")
}

//findMessage searches every text channel the bot can read for a message. Returns nil if no channel has it.
func (b *ReactBot) findMessage(guildID, messageID string) (*discordgo.Message, error) {
	channels, err := b.guildChannels(guildID)
	if err != nil {
		return nil, err
	}
	s := b.DiscordSession()
	for _, channel := range channels {
		if !isTextChannel(channel) || !b.botCan(channel.ID, discordgo.PermissionViewChannel|discordgo.PermissionReadMessageHistory) {
			continue
		}
		msg, err := s.ChannelMessage(channel.ID, messageID)
		if err != nil {
			logrus.Debugf("Message %v not found in channel %v: %v", messageID, channel.ID, err)
			continue
		}
		if msg.ChannelID == "" {
			msg.ChannelID = channel.ID
		}
		return msg, nil
	}
	return nil, nil
}

//attachClaimButton adds a button members can press to claim the role. The bot can only edit its own
//messages, so anything else gets a reply carrying the button instead.
func (b *ReactBot) attachClaimButton(target *discordgo.Message, emojiKey string, role *discordgo.Role) {
	customID, err := encodeClaimID(target.ID, emojiKey, role.ID)
	if err != nil {
		logrus.Warnf("Not adding claim button to message %v: %v", target.ID, err)
		return
	}
	button := claimButton(customID, role.Name)
	s := b.DiscordSession()

	if target.Author != nil && target.Author.ID == b.botUserID() {
		if components, ok := withClaimButton(target.Components, button); ok {
			_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
				ID:         target.ID,
				Channel:    target.ChannelID,
				Components: &components,
			})
			if err == nil {
				return
			}
			logrus.Debugf("Could not attach claim button to message %v, replying instead: %v", target.ID, err)
		}
	}

	_, err = s.ChannelMessageSendComplex(target.ChannelID, &discordgo.MessageSend{
		Content:    "Click the button to claim the role:",
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{button}}},
		Reference:  target.Reference(),
	})
	if err != nil {
		logrus.Warnf("Could not add claim button for message %v: %v", target.ID, err)
	}
}

func claimButton(customID, roleName string) discordgo.Button {
	label := fmt.Sprintf(claimButtonLabel, roleName)
	if len(label) > maxButtonLabel || roleName == "" {
		label = "Claim role"
	}
	return discordgo.Button{
		Label:    label,
		Style:    discordgo.PrimaryButton,
		CustomID: customID,
	}
}

//withClaimButton appends a button to a message's existing components, filling the last row before
//starting a new one. ok is false when the message has no room left.
func withClaimButton(existing []discordgo.MessageComponent, button discordgo.Button) ([]discordgo.MessageComponent, bool) {
	res := make([]discordgo.MessageComponent, 0, len(existing)+1)
	res = append(res, existing...)
	if n := len(res); n > 0 {
		if row, ok := actionsRow(res[n-1]); ok && len(row.Components) < maxRowComponents && allButtons(row.Components) {
			row.Components = append(append([]discordgo.MessageComponent{}, row.Components...), button)
			res[n-1] = row
			return res, true
		}
	}
	if len(res) >= maxMessageActions {
		return nil, false
	}
	return append(res, discordgo.ActionsRow{Components: []discordgo.MessageComponent{button}}), true
}

func actionsRow(c discordgo.MessageComponent) (discordgo.ActionsRow, bool) {
	switch row := c.(type) {
	case discordgo.ActionsRow:
		return row, true
	case *discordgo.ActionsRow:
		return *row, true
	}
	return discordgo.ActionsRow{}, false
}

func allButtons(components []discordgo.MessageComponent) bool {
	for _, c := range components {
		if c.Type() != discordgo.ButtonComponent {
			return false
		}
	}
	return true
}

func (b *ReactBot) removeReactionRole(inv *invocation, messageID, rawEmoji string) Response {
	if resp := b.requirePermission(inv, discordgo.PermissionManageRoles, "Manage Roles"); resp != nil {
		return resp
	}
	if len(b.ReactionRoles.Lookup(messageID)) == 0 {
		return inv.notFound("No mappings found for that message ID.")
	}
	if b.ReactionRoles.RemoveRule(messageID, rawEmoji) == reactroles.NoSuchMapping {
		return inv.notFound("No mapping found for that emoji on the specified message.")
	}
	logrus.Infof("Removed reaction roles for %v on message %v", emoji.Normalize(rawEmoji), messageID)
	return inv.success(fmt.Sprintf("Removed mapping for emoji %v on message %v.", rawEmoji, messageID))
}

func (b *ReactBot) listReactionRoles(inv *invocation) Response {
	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	var lines []string
	for _, listing := range b.ReactionRoles.ListAll() {
		lines = append(lines, reactionRoleLine(inv.guildID, inv.channelID, listing, roles))
	}
	return ResponseListing{
		command:    inv.command,
		commandMsg: inv.commandMsg,
		header:     "**Reaction-role mappings:**\n",
		empty:      "No reaction-role mappings registered.",
		lines:      lines,
		timestamp:  time.Now(),
	}
}

//reactionRoleLine describes one mapping. fallbackChannel is used for links when the rule has no channel.
func reactionRoleLine(guildID, fallbackChannel string, listing reactroles.Listing, roles []*discordgo.Role) string {
	channelID := listing.Rule.Channel()
	if channelID == "" {
		channelID = fallbackChannel
	}
	line := fmt.Sprintf("<%v> `%v` → %v",
		messageLink(guildID, channelID, listing.MessageID), listing.Rule.EmojiID, roleLabel(listing.Rule.RoleID, roles))
	if listing.Rule.IsGated() {
		line += fmt.Sprintf(" (requires %v)", roleLabel(listing.Rule.RequiredRole(), roles))
	}
	return line
}

package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/metrics"
	"github.com/sirupsen/logrus"
)

type slashOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

type slashCommand func(b *ReactBot, inv *invocation, opts slashOptions) Response

var slashCommands = map[string]slashCommand{
	commandSet:     (*ReactBot).handleSetSlash,
	commandMsg:     (*ReactBot).handleMsgSlash,
	commandMsgRole: (*ReactBot).handleMsgRoleSlash,
	commandClr:     (*ReactBot).handleClrSlash,
}

//Commands returns the slash commands the bot understands, ready to be registered with discord
func Commands() []*discordgo.ApplicationCommand {
	dmPermission := false
	textChannels := []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
	return []*discordgo.ApplicationCommand{
		{
			Name:         commandMsg,
			Description:  "Send a message to a channel",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel",
					ChannelTypes: textChannels,
					Required:     true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Message text",
					Required:    true,
				},
			},
		},
		{
			Name:         commandMsgRole,
			Description:  "Register a reaction-role mapping for an existing message",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message_id",
					Description: "Target message ID",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emoji",
					Description: "Emoji (unicode or custom like name:id)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "give_role",
					Description: "Role to give when reacting",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "require_role",
					Description: "Optional role required before giving the role",
				},
			},
		},
		{
			Name:         commandClr,
			Description:  "Clear messages in a channel",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel to clear",
					ChannelTypes: textChannels,
					Required:     true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "count",
					Description: `Number of messages to delete or "all"`,
					Required:    true,
				},
			},
		},
		{
			Name:         commandSet,
			Description:  "Manage command permissions (owner only)",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "command",
					Description: "Command name to modify (e.g., msgrole, clr)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "Action to perform",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to add or remove (not required for list)",
				},
			},
		},
	}
}

//HandleInteraction is called upon every interaction: slash commands and claim button presses
func (b *ReactBot) HandleInteraction(i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlashCommand(i)
	case discordgo.InteractionMessageComponent:
		if !b.handleClaimButton(i) {
			logrus.Debugf("Ignoring unknown component %v", i.MessageComponentData().CustomID)
		}
	}
}

func (b *ReactBot) handleSlashCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	handler, known := slashCommands[data.Name]
	if !known {
		b.replyEphemeral(i, "Unknown command.")
		return
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		b.replyEphemeral(i, "This command can only be used in a server.")
		return
	}

	err := b.DiscordSession().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logrus.Errorf("Failed to acknowledge %v command due to error %v", data.Name, err)
		return
	}

	inv := &invocation{
		command:        data.Name,
		commandMsg:     renderSlashCommand(data),
		guildID:        i.GuildID,
		channelID:      i.ChannelID,
		userID:         i.Member.User.ID,
		roleIDs:        i.Member.Roles,
		permissions:    i.Member.Permissions,
		hasPermissions: true,
	}
	opts := make(slashOptions, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}

	var result Response
	if !b.Permissions.IsPermitted(inv.command, inv.userID, inv.roleIDs) {
		result = inv.notAllowed("You do not have permission to use this command.")
	} else {
		result = handler(b, inv, opts)
	}
	b.respondToInteraction(i, inv.command, result)
}

//renderSlashCommand rebuilds something resembling what the user typed, for logs and error replies
func renderSlashCommand(data discordgo.ApplicationCommandInteractionData) string {
	parts := []string{"/" + data.Name}
	for _, opt := range data.Options {
		parts = append(parts, fmt.Sprintf("%v:%v", opt.Name, opt.Value))
	}
	return strings.Join(parts, " ")
}

//respondToInteraction logs a command's result and fills in the deferred reply, sending any further
//parts of the response as ephemeral followups
func (b *ReactBot) respondToInteraction(i *discordgo.InteractionCreate, command string, result Response) {
	result.WriteToLog()
	metrics.RecordCommand(command, result.Result())

	resps := []*discordgo.MessageSend{result.DiscordResponse()}
	if multi, ok := result.(MultiPartResponse); ok {
		resps = multi.DiscordResponses()
	}
	s := b.DiscordSession()
	first := resps[0]
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &first.Content,
		Embeds:          &first.Embeds,
		AllowedMentions: first.AllowedMentions,
	})
	if err != nil {
		logrus.Errorf("Failed to send response to %v command due to error %v", command, err)
		return
	}
	for _, resp := range resps[1:] {
		_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content:         resp.Content,
			Embeds:          resp.Embeds,
			AllowedMentions: resp.AllowedMentions,
			Flags:           discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			logrus.Errorf("Failed to send followup to %v command due to error %v", command, err)
			return
		}
	}
}

//replyEphemeral answers an interaction with a message only the invoking user can see
func (b *ReactBot) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.DiscordSession().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			Flags:           discordgo.MessageFlagsEphemeral,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
	if err != nil {
		logrus.Warnf("Failed to reply to interaction %v: %v", i.ID, err)
	}
}

func (b *ReactBot) handleMsgSlash(inv *invocation, opts slashOptions) Response {
	channel, text := opts["channel"], opts["text"]
	if channel == nil || text == nil {
		return inv.usage("Invalid options.", "`/msg channel:<channel> text:<message>`")
	}
	return b.sendToChannel(inv, channel.ChannelValue(nil).ID, text.StringValue())
}

func (b *ReactBot) handleClrSlash(inv *invocation, opts slashOptions) Response {
	channel, count := opts["channel"], opts["count"]
	if channel == nil || count == nil {
		return inv.usage("Invalid options.", "`/clr channel:<channel> count:<number|all>`")
	}
	return b.clearChannel(inv, channel.ChannelValue(nil).ID, count.StringValue())
}

func (b *ReactBot) handleMsgRoleSlash(inv *invocation, opts slashOptions) Response {
	messageID, rawEmoji, give := opts["message_id"], opts["emoji"], opts["give_role"]
	if messageID == nil || rawEmoji == nil || give == nil {
		return inv.usage("Missing required options.", "`/msgrole message_id:<id> emoji:<emoji> give_role:<role> [require_role:<role>]`")
	}
	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	giveRole := roleByID(give.RoleValue(nil, "").ID, roles)
	if giveRole == nil {
		return inv.notFound("Give role not found.")
	}
	var requireRole *discordgo.Role
	if prereq := opts["require_role"]; prereq != nil {
		requireRole = roleByID(prereq.RoleValue(nil, "").ID, roles)
		if requireRole == nil {
			return inv.notFound("Require role not found.")
		}
	}
	return b.addReactionRole(inv, strings.TrimSpace(messageID.StringValue()), rawEmoji.StringValue(), giveRole, requireRole)
}

func (b *ReactBot) handleSetSlash(inv *invocation, opts slashOptions) Response {
	command, action := opts["command"], opts["action"]
	if command == nil || action == nil {
		return inv.usage("Missing required options.", "`/set command:<command> action:<add|remove|list> [role:<role>]`")
	}
	if strings.EqualFold(action.StringValue(), "list") {
		return b.listPermissions(inv)
	}
	role := opts["role"]
	if role == nil {
		return inv.usage("A role is needed to add or remove a permission.", "`/set command:<command> action:<add|remove> role:<role>`")
	}
	roleID := role.RoleValue(nil, "").ID
	switch strings.ToLower(action.StringValue()) {
	case "add":
		return b.addPermission(inv, command.StringValue(), roleID)
	case "remove":
		return b.removePermission(inv, command.StringValue(), roleID)
	}
	return inv.usage(fmt.Sprintf("Unknown action `%v`.", action.StringValue()), "`add`, `remove` or `list`")
}

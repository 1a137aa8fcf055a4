package bot

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/metrics"
	"github.com/sirupsen/logrus"
)

//Command names, shared by the text and slash forms
const (
	commandSet     = "set"
	commandMsg     = "msg"
	commandMsgRole = "msgrole"
	commandClr     = "clr"
)

//invocation describes who ran a command and where, however it was invoked
type invocation struct {
	//The base command name
	command string
	//The full command as typed, or a rendering of the slash command options
	commandMsg string
	guildID    string
	channelID  string
	//The message carrying a text command. Empty for slash commands.
	messageID string
	userID    string
	roleIDs   []string
	//Permissions resolved by discord for interactions. Text commands compute them on demand.
	permissions    int64
	hasPermissions bool
}

type textCommand func(b *ReactBot, inv *invocation, args []string) Response

var textCommands = map[string]textCommand{
	commandSet:     (*ReactBot).handleSetMessage,
	commandMsg:     (*ReactBot).handleMsgMessage,
	commandMsgRole: (*ReactBot).handleMsgRoleMessage,
	commandClr:     (*ReactBot).handleClrMessage,
}

//parseCommand splits a prefixed message into a lowercase command name and its arguments
func parseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	words := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(words) == 0 {
		return "", nil, false
	}
	return strings.ToLower(words[0]), words[1:], true
}

//HandleMessage is called upon every recieved message. It checks if the message is a command, and executes it.
func (b *ReactBot) HandleMessage(msg *discordgo.MessageCreate) {
	if msg.GuildID == "" {
		return
	}
	command, args, ok := parseCommand(b.prefix, msg.Content)
	if !ok {
		return
	}
	handler, known := textCommands[command]
	if !known {
		return
	}

	inv := &invocation{
		command:    command,
		commandMsg: msg.Content,
		guildID:    msg.GuildID,
		channelID:  msg.ChannelID,
		messageID:  msg.ID,
		userID:     msg.Author.ID,
	}
	if msg.Member != nil {
		inv.roleIDs = msg.Member.Roles
	}

	var result Response
	if !b.Permissions.IsPermitted(command, inv.userID, inv.roleIDs) {
		result = inv.notAllowed("You do not have permission to use this command.")
	} else {
		result = handler(b, inv, args)
	}
	b.respondToMessage(msg.Message, command, result)
}

//respondToMessage logs a command's result and replies to the message that triggered it
func (b *ReactBot) respondToMessage(msg *discordgo.Message, command string, result Response) {
	if result == nil {
		return
	}
	result.WriteToLog()
	metrics.RecordCommand(command, result.Result())

	msgRef := discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	resps := []*discordgo.MessageSend{result.DiscordResponse()}
	if multi, ok := result.(MultiPartResponse); ok {
		resps = multi.DiscordResponses()
	}
	for i, resp := range resps {
		if i == 0 {
			resp.Reference = &msgRef
		}
		_, err := b.DiscordSession().ChannelMessageSendComplex(msg.ChannelID, resp)
		if err != nil {
			logrus.Errorf("Failed to send response to command due to error %v", err)
			return
		}
	}
}

//invokerCan checks the invoking member's permissions in the channel the command was sent from
func (b *ReactBot) invokerCan(inv *invocation, perm int64) (bool, error) {
	if !inv.hasPermissions {
		perms, err := b.DiscordSession().UserChannelPermissions(inv.userID, inv.channelID)
		if err != nil {
			return false, err
		}
		inv.permissions = perms
		inv.hasPermissions = true
	}
	return hasPermission(inv.permissions, perm), nil
}

//requirePermission returns a response refusing the command when the invoker lacks perm, or nil
func (b *ReactBot) requirePermission(inv *invocation, perm int64, permName string) Response {
	ok, err := b.invokerCan(inv, perm)
	if err != nil {
		logrus.Warnf("Failed to check permissions of user %v in channel %v: %v", inv.userID, inv.channelID, err)
		return inv.internalError("Failed to check your permissions", err)
	}
	if !ok {
		return inv.notAllowed("You need the " + permName + " permission to use this command.")
	}
	return nil
}

func (inv *invocation) success(description string) Response {
	return ResponseSuccess{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		timestamp:   time.Now(),
	}
}

func (inv *invocation) usage(description, syntax string) Response {
	return ResponseUsage{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		syntax:      syntax,
		timestamp:   time.Now(),
	}
}

func (inv *invocation) notFound(description string) Response {
	return ResponseNotFound{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		timestamp:   time.Now(),
	}
}

func (inv *invocation) duplicate(description string) Response {
	return ResponseDuplicate{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		timestamp:   time.Now(),
	}
}

func (inv *invocation) notAllowed(description string) Response {
	return ResponseNotAllowed{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		timestamp:   time.Now(),
	}
}

func (inv *invocation) internalError(description string, err error) Response {
	return ResponseInternalError{
		command:     inv.command,
		commandMsg:  inv.commandMsg,
		description: description,
		data:        map[string]string{"Error": err.Error()},
		timestamp:   time.Now(),
	}
}

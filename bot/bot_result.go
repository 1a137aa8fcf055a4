package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	successMessageColour int = 0x28bd00
	warnMessageColour    int = 0xbdb900
	errorMessageColour   int = 0xbd1b00
)

//Response represents the result of a command which can be both communicated over discord and written to the log.
type Response interface {
	DiscordResponse() *discordgo.MessageSend
	WriteToLog()
	//Result is the short label used for metrics
	Result() string
}

//MultiPartResponse is a response too long for a single message
type MultiPartResponse interface {
	Response
	DiscordResponses() []*discordgo.MessageSend
}

//ResponseSuccess will be returned when a command has been successfully completed
type ResponseSuccess struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//What was done, shown to the user
	description string
	//The time the success was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseSuccess) DiscordResponse() *discordgo.MessageSend {
	description := r.description
	if description == "" {
		description = fmt.Sprintf("Completed %v command successfully!", r.command)
	}
	return embedMessage(discordgo.MessageEmbed{
		Title:       "Success! \\o/",
		Description: description,
		Color:       successMessageColour,
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSuccess) WriteToLog() {
	logrus.Infof("%v Completed command %v successfully: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//Result labels the response for metrics
func (r ResponseSuccess) Result() string { return "success" }

//ResponsePartialSuccess will be returned when a command has executed but with issues
type ResponsePartialSuccess struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	//A map containing fields which should be included in the embed
	data map[string]string
	//The time the success was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponsePartialSuccess) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Completed %v command but with errors: \n%v", r.command, r.description)
	return embedMessage(discordgo.MessageEmbed{
		Title:       "Partial success...",
		Description: description,
		Color:       warnMessageColour,
		Fields:      stringMapToFields(r.data),
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponsePartialSuccess) WriteToLog() {
	logrus.Warnf("%v Completed command %v but with errors: %v | data: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.data)
}

//Result labels the response for metrics
func (r ResponsePartialSuccess) Result() string { return "partial" }

//ResponseUsage will be returned when there was an issue with the user's input
type ResponseUsage struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	//A description of the correct syntax
	syntax string
	//The time the error was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseUsage) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Sorry, but there was a problem with the data you supplied for the %v command: \n%v", r.command, r.description)
	return embedMessage(discordgo.MessageEmbed{
		Title:       "Uh-oh, there was something wrong with that command",
		Description: description,
		Color:       errorMessageColour,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Your command", Value: orPlaceholder(r.commandMsg)},
			{Name: "Correct syntax", Value: orPlaceholder(r.syntax)},
		},
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseUsage) WriteToLog() {
	logrus.Infof("%v Syntax error in command %v: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//Result labels the response for metrics
func (r ResponseUsage) Result() string { return "usage" }

//ResponseNotFound will be returned when a role, channel, message or mapping named in a command does not exist
type ResponseNotFound struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//What could not be found
	description string
	//The time the error was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseNotFound) DiscordResponse() *discordgo.MessageSend {
	return embedMessage(discordgo.MessageEmbed{
		Title:       "I couldn't find that",
		Description: r.description,
		Color:       warnMessageColour,
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseNotFound) WriteToLog() {
	logrus.Infof("%v Command %v referenced something that does not exist: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//Result labels the response for metrics
func (r ResponseNotFound) Result() string { return "not_found" }

//ResponseDuplicate will be returned when a command tried to add something which already exists
type ResponseDuplicate struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//What already exists
	description string
	//The time the error was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseDuplicate) DiscordResponse() *discordgo.MessageSend {
	return embedMessage(discordgo.MessageEmbed{
		Title:       "Nothing to do",
		Description: r.description,
		Color:       warnMessageColour,
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseDuplicate) WriteToLog() {
	logrus.Infof("%v Command %v made no changes: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//Result labels the response for metrics
func (r ResponseDuplicate) Result() string { return "duplicate" }

//ResponseInternalError will be returned when there was some kind of error within the bot or when communicating with
//APIs
type ResponseInternalError struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	//A map containing fields which should be included in the embed
	data map[string]string
	//The time the error was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseInternalError) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Oops! I encountered an unexpected error whilst running your %v command. Please try again later or file a bug report.", r.command)
	dataWithDescription := make(map[string]string, len(r.data)+1)
	for k, v := range r.data {
		dataWithDescription[k] = v
	}
	dataWithDescription["Error"] = r.description
	return embedMessage(discordgo.MessageEmbed{
		Title:       "Oops, something went wrong ;w;",
		Description: description,
		Color:       errorMessageColour,
		Fields:      stringMapToFields(dataWithDescription),
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInternalError) WriteToLog() {
	logrus.Errorf("%v Internal error whilst executing command %v: %v | data: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.data)
}

//Result labels the response for metrics
func (r ResponseInternalError) Result() string { return "error" }

//ResponseNotAllowed will be returned when a user tried to run a command that they do not have the correct role for
type ResponseNotAllowed struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	//The time the error was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseNotAllowed) DiscordResponse() *discordgo.MessageSend {
	return embedMessage(discordgo.MessageEmbed{
		Title:       "That's illegal m8",
		Description: "I'm sorry Dave, I can't let you do that...",
		Color:       errorMessageColour,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: orPlaceholder(r.description)},
			{Name: "Command", Value: orPlaceholder(r.commandMsg)},
		},
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseNotAllowed) WriteToLog() {
	logrus.Infof("%v Rejected command `%v` as the sender did not have the correct priveliges | description: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//Result labels the response for metrics
func (r ResponseNotAllowed) Result() string { return "not_allowed" }

//ResponseListing is returned by the list subcommands. It is sent as plain text split across as many
//messages as needed.
type ResponseListing struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//First line of the first message
	header string
	//Shown instead when there is nothing to list
	empty string
	lines []string
	//The time the listing was logged at
	timestamp time.Time
}

//DiscordResponse returns the first message of the listing
func (r ResponseListing) DiscordResponse() *discordgo.MessageSend {
	return r.DiscordResponses()[0]
}

//DiscordResponses splits the listing into messages short enough to send
func (r ResponseListing) DiscordResponses() []*discordgo.MessageSend {
	if len(r.lines) == 0 {
		return []*discordgo.MessageSend{{Content: r.empty}}
	}
	var res []*discordgo.MessageSend
	for _, chunk := range chunkLines(r.header, r.lines, maxChunkLength) {
		res = append(res, &discordgo.MessageSend{
			Content:         chunk,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		})
	}
	return res
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseListing) WriteToLog() {
	logrus.Infof("%v Listed %d entries for command %v", logLineLabel(r.timestamp), len(r.lines), r.commandMsg)
}

//Result labels the response for metrics
func (r ResponseListing) Result() string { return "success" }

/////////////////////
//Utility Functions//
/////////////////////
func logLineLabel(t time.Time) string {
	return fmt.Sprintf("#%v# | ", t.UnixNano())
}

func embedMessage(embed discordgo.MessageEmbed, timestamp time.Time) *discordgo.MessageSend {
	embed.Type = discordgo.EmbedTypeRich
	embed.Timestamp = timestamp.Format(time.RFC3339)
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Log ID: %d", timestamp.UnixNano()),
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{&embed},
		TTS:    false,
		Files:  []*discordgo.File{},
	}
}

func stringMapToFields(fields map[string]string) []*discordgo.MessageEmbedField {
	var res []*discordgo.MessageEmbedField
	for fieldName, content := range fields {
		field := discordgo.MessageEmbedField{
			Name:   fieldName,
			Value:  orPlaceholder(content),
			Inline: false,
		}
		res = append(res, &field)
	}
	return res
}

//Discord rejects embed fields with empty values
func orPlaceholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

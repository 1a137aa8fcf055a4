package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/discord"
	"github.com/sirupsen/logrus"
)

const msgSyntax string = "`!msg <#channel|channel_id|channel-name> <message>`"
const clrSyntax string = "`!clr <#channel|channel_id|channel-name> <number|all>`"

const (
	//Discord refuses to bulk delete messages older than this
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	//Delay between delete requests
	clearPause = 250 * time.Millisecond
	//Upper bound on how long a single clear may run for
	clearTimeout = 10 * time.Minute
)

//handleMsgMessage handles a message containing a msg command
//command format: !msg <channel> <text...>
func (b *ReactBot) handleMsgMessage(inv *invocation, args []string) Response {
	text := argsRemainder(strings.TrimPrefix(strings.TrimSpace(inv.commandMsg), b.prefix), 2)
	if len(args) < 2 || text == "" {
		return inv.usage("Expected a channel and some text to send.", msgSyntax)
	}
	return b.sendToChannel(inv, args[0], text)
}

//argsRemainder drops the first skip words from s and returns the rest with its original spacing
func argsRemainder(s string, skip int) string {
	s = strings.TrimSpace(s)
	for i := 0; i < skip; i++ {
		idx := strings.IndexFunc(s, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
	}
	return s
}

func (b *ReactBot) sendToChannel(inv *invocation, channelArg, text string) Response {
	target, resp := b.lookupChannel(inv, channelArg)
	if resp != nil {
		return resp
	}
	if !b.botCan(target.ID, discordgo.PermissionViewChannel|discordgo.PermissionSendMessages) {
		return inv.notAllowed("I do not have permission to send messages in that channel.")
	}
	if _, err := b.DiscordSession().ChannelMessageSend(target.ID, text); err != nil {
		logrus.Warnf("Failed to relay message to channel %v: %v", target.ID, err)
		return inv.internalError("Failed to send message. Check permissions and channel type.", err)
	}
	return inv.success(fmt.Sprintf("Sent your message to <#%v>", target.ID))
}

//lookupChannel resolves a channel argument to one of the guild's text channels
func (b *ReactBot) lookupChannel(inv *invocation, channelArg string) (*discordgo.Channel, Response) {
	channels, err := b.guildChannels(inv.guildID)
	if err != nil {
		return nil, inv.internalError("Failed to fetch the server's channels", err)
	}
	target := resolveChannel(channelArg, channels)
	if target == nil || !isTextChannel(target) {
		return nil, inv.notFound(fmt.Sprintf("Channel `%v` not found in this server.", channelArg))
	}
	return target, nil
}

//handleClrMessage handles a message containing a clr command
//command format: !clr <channel> <count|all>
func (b *ReactBot) handleClrMessage(inv *invocation, args []string) Response {
	if len(args) < 2 {
		return inv.usage("Expected a channel and a number of messages.", clrSyntax)
	}
	return b.clearChannel(inv, args[0], args[1])
}

func (b *ReactBot) clearChannel(inv *invocation, channelArg, countArg string) Response {
	if resp := b.requirePermission(inv, discordgo.PermissionManageMessages, "Manage Messages"); resp != nil {
		return resp
	}
	count, err := parseClearCount(countArg)
	if err != nil {
		return inv.usage(err.Error(), clrSyntax)
	}
	target, resp := b.lookupChannel(inv, channelArg)
	if resp != nil {
		return resp
	}
	needed := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory | discordgo.PermissionManageMessages)
	if !b.botCan(target.ID, needed) {
		return inv.notAllowed("I need View Channel, Read Message History and Manage Messages permissions in that channel to clear messages.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	deleted, err := clearMessages(ctx, b.DiscordSession(), target.ID, count, inv.messageID, time.Now(), clearPause)
	if err != nil {
		if deleted == 0 {
			return inv.internalError("Failed to delete messages. Check my permissions and try again.", err)
		}
		return ResponsePartialSuccess{
			command:     inv.command,
			commandMsg:  inv.commandMsg,
			description: fmt.Sprintf("Deleted %d message(s) from <#%v> before running into an error.", deleted, target.ID),
			data:        map[string]string{"Error": err.Error()},
			timestamp:   time.Now(),
		}
	}
	logrus.Infof("Cleared %d messages from channel %v on behalf of %v", deleted, target.ID, inv.userID)
	return inv.success(fmt.Sprintf("Deleted %d message(s) from <#%v>.", deleted, target.ID))
}

//messageCleaner is the part of the discord API a clear needs. *discordgo.Session satisfies it.
type messageCleaner interface {
	discord.MessageFetcher
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

//clearMessages deletes up to limit messages from the channel, newest first, or the whole history when
//limit is 0. excludeID is never deleted. Recent messages are bulk deleted a page at a time, and older
//ones are removed individually. Returns how many messages were actually deleted.
func clearMessages(ctx context.Context, cleaner messageCleaner, channelID string, limit int, excludeID string, now time.Time, pause time.Duration) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deleted, taken := 0, 0
	for page := range discord.MessagePages(ctx, cleaner, channelID, "") {
		if page.Error != nil {
			return deleted, page.Error
		}
		var recent, old []string
		for _, msg := range page.Messages {
			if limit > 0 && taken >= limit {
				break
			}
			if msg.ID == excludeID {
				continue
			}
			taken++
			if now.Sub(msg.Timestamp) < bulkDeleteMaxAge {
				recent = append(recent, msg.ID)
			} else {
				old = append(old, msg.ID)
			}
		}

		if len(recent) > 0 {
			if err := cleaner.ChannelMessagesBulkDelete(channelID, recent); err != nil {
				logrus.Warnf("Bulk delete of %d messages in channel %v failed: %v", len(recent), channelID, err)
			} else {
				deleted += len(recent)
			}
		}
		for _, msgID := range old {
			if err := cleaner.ChannelMessageDelete(channelID, msgID); err != nil {
				logrus.Debugf("Failed to delete old message %v: %v", msgID, err)
			} else {
				deleted++
			}
			if !sleepCtx(ctx, pause) {
				return deleted, ctx.Err()
			}
		}

		if limit > 0 && taken >= limit {
			break
		}
		if !sleepCtx(ctx, pause) {
			return deleted, ctx.Err()
		}
	}
	return deleted, nil
}

//sleepCtx waits for d, returning false if ctx ends first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package bot

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

//roleMatcher tries a single way of interpreting a role argument
type roleMatcher func(arg string, roles []*discordgo.Role) *discordgo.Role

var roleMentionRegex = regexp.MustCompile(`^<@&(\d+)>$`)

//roleResolvers are tried in order and the first match wins: a role mention, a raw role ID, the exact
//role name and finally the role name ignoring case
var roleResolvers = []roleMatcher{
	roleByMention,
	roleByID,
	roleByExactName,
	roleByFoldedName,
}

func roleByMention(arg string, roles []*discordgo.Role) *discordgo.Role {
	matches := roleMentionRegex.FindStringSubmatch(arg)
	if matches == nil {
		return nil
	}
	return roleByID(matches[1], roles)
}

func roleByID(arg string, roles []*discordgo.Role) *discordgo.Role {
	for _, role := range roles {
		if role.ID == arg {
			return role
		}
	}
	return nil
}

func roleByExactName(arg string, roles []*discordgo.Role) *discordgo.Role {
	for _, role := range roles {
		if role.Name == arg {
			return role
		}
	}
	return nil
}

func roleByFoldedName(arg string, roles []*discordgo.Role) *discordgo.Role {
	for _, role := range roles {
		if strings.EqualFold(role.Name, arg) {
			return role
		}
	}
	return nil
}

//resolveRole interprets a role argument against the guild's roles, returning nil if nothing matches.
//Names may be wrapped in double quotation marks.
func resolveRole(arg string, roles []*discordgo.Role) *discordgo.Role {
	arg = strings.TrimSpace(arg)
	if unquoted := strings.Trim(arg, `"`); unquoted != "" {
		arg = unquoted
	}
	if arg == "" {
		return nil
	}
	for _, resolver := range roleResolvers {
		if role := resolver(arg, roles); role != nil {
			return role
		}
	}
	return nil
}

var channelRefRegex = regexp.MustCompile(`^<?#?(\d+)>?$`)

//resolveChannel interprets a channel mention, channel ID or exact channel name
func resolveChannel(arg string, channels []*discordgo.Channel) *discordgo.Channel {
	arg = strings.TrimSpace(arg)
	if matches := channelRefRegex.FindStringSubmatch(arg); matches != nil {
		for _, channel := range channels {
			if channel.ID == matches[1] {
				return channel
			}
		}
	}
	for _, channel := range channels {
		if channel.Name == arg {
			return channel
		}
	}
	return nil
}

//isTextChannel is true for channels that hold messages the bot can post in and search
func isTextChannel(c *discordgo.Channel) bool {
	switch c.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread:
		return true
	}
	return false
}

const claimIDPrefix = "rr"
const maxCustomIDLength = 100

//encodeClaimID builds the custom ID for a "Claim role" button
func encodeClaimID(messageID, emojiKey, roleID string) (string, error) {
	id := strings.Join([]string{claimIDPrefix, messageID, url.QueryEscape(emojiKey), roleID}, "|")
	if len(id) > maxCustomIDLength {
		return "", fmt.Errorf("claim button id for %v is %d characters long, over the limit of %d", emojiKey, len(id), maxCustomIDLength)
	}
	return id, nil
}

//decodeClaimID splits a "Claim role" button ID. ok is false for any other component.
func decodeClaimID(customID string) (messageID, emojiKey, roleID string, ok bool) {
	parts := strings.Split(customID, "|")
	if len(parts) != 4 || parts[0] != claimIDPrefix {
		return "", "", "", false
	}
	emojiKey, err := url.QueryUnescape(parts[2])
	if err != nil {
		return "", "", "", false
	}
	if parts[1] == "" || emojiKey == "" || parts[3] == "" {
		return "", "", "", false
	}
	return parts[1], emojiKey, parts[3], true
}

//parseClearCount accepts `all` or a positive number of messages. A count of 0 means all.
func parseClearCount(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if strings.EqualFold(arg, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q is not a number greater than 0 or `all`", arg)
	}
	return n, nil
}

const maxChunkLength = 1900

//chunkLines packs lines into messages no longer than limit, starting with header
func chunkLines(header string, lines []string, limit int) []string {
	var res []string
	out := header
	for _, line := range lines {
		if len(out)+len(line)+1 > limit && out != "" {
			res = append(res, out)
			out = ""
		}
		out += line + "\n"
	}
	if out != "" {
		res = append(res, out)
	}
	return res
}

//messageLink builds a jump link to a message
func messageLink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%v/%v/%v", guildID, channelID, messageID)
}

//roleLabel describes a role for listings, including roles which have since been deleted
func roleLabel(roleID string, roles []*discordgo.Role) string {
	if role := roleByID(roleID, roles); role != nil {
		return fmt.Sprintf("%v (<@&%v>)", role.Name, role.ID)
	}
	return fmt.Sprintf("(deleted role: %v)", roleID)
}

func hasPermission(perms int64, perm int64) bool {
	return perms&discordgo.PermissionAdministrator != 0 || perms&perm == perm
}

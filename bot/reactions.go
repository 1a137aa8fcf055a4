package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/emoji"
	"github.com/callummance/reactbot/grant"
	"github.com/callummance/reactbot/guildmodels"
	"github.com/callummance/reactbot/metrics"
	"github.com/sirupsen/logrus"
)

//Sources of grant events, used as metrics labels
const (
	sourceReaction = "reaction"
	sourceButton   = "button"
)

//How long a prerequisite notice stays in the channel
const noticeLifetime = 10 * time.Second

//ruleOutcome is what happened when a single rule was applied to a member
type ruleOutcome struct {
	rule    guildmodels.RoleGrantRule
	outcome grant.Outcome
	//Set if discord rejected the role change
	err error
}

//HandleReactionAdd grants roles for every rule on the message matching the reaction's emoji. Reactions
//from bot accounts are ignored.
func (b *ReactBot) HandleReactionAdd(r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || isBotMember(r.Member) {
		return
	}
	rules := b.ReactionRoles.Match(r.MessageID, emoji.FromDiscord(&r.Emoji))
	if len(rules) == 0 {
		return
	}
	member := r.Member
	if member == nil {
		var err error
		member, err = b.guildMember(r.GuildID, r.UserID)
		if err != nil {
			logrus.Warnf("Failed to fetch member %v for reaction on message %v: %v", r.UserID, r.MessageID, err)
			return
		}
		if isBotMember(member) {
			return
		}
	}

	results, catalog := b.applyRules(r.GuildID, r.UserID, member.Roles, rules, grant.Add, sourceReaction)
	if missing, denied := prerequisiteDenial(results); denied {
		b.rejectReaction(r, missing, catalog)
	}
}

//HandleReactionRemove takes back roles for every rule on the message matching the reaction's emoji
func (b *ReactBot) HandleReactionRemove(r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" {
		return
	}
	rules := b.ReactionRoles.Match(r.MessageID, emoji.FromDiscord(&r.Emoji))
	if len(rules) == 0 {
		return
	}
	member, err := b.guildMember(r.GuildID, r.UserID)
	if err != nil {
		logrus.Warnf("Failed to fetch member %v for reaction removal on message %v: %v", r.UserID, r.MessageID, err)
		return
	}
	if isBotMember(member) {
		return
	}
	b.applyRules(r.GuildID, r.UserID, member.Roles, rules, grant.Remove, sourceReaction)
}

func isBotMember(member *discordgo.Member) bool {
	return member != nil && member.User != nil && member.User.Bot
}

//applyRules evaluates each rule against the member and carries out the grants and revocations decided
//upon. The guild's role catalog is returned alongside so callers can describe the results.
func (b *ReactBot) applyRules(guildID, userID string, memberRoles []string, rules []guildmodels.RoleGrantRule, action grant.Action, source string) ([]ruleOutcome, []*discordgo.Role) {
	authority, catalog, err := b.botAuthority(guildID)
	if err != nil {
		logrus.Warnf("Failed to work out own authority in guild %v, ignoring %v event: %v", guildID, source, err)
		return nil, nil
	}

	s := b.DiscordSession()
	results := make([]ruleOutcome, 0, len(rules))
	for _, rule := range rules {
		outcome := grant.Evaluate(grant.Request{
			Rule:          rule,
			Action:        action,
			MemberRoleIDs: memberRoles,
			Catalog:       catalog,
			Bot:           authority,
		})
		res := ruleOutcome{rule: rule, outcome: outcome}
		switch outcome {
		case grant.Granted:
			res.err = s.GuildMemberRoleAdd(guildID, userID, rule.RoleID)
		case grant.Revoked:
			res.err = s.GuildMemberRoleRemove(guildID, userID, rule.RoleID)
		}

		fields := logrus.Fields{
			"guild":   guildID,
			"user":    userID,
			"role":    rule.RoleID,
			"emoji":   rule.EmojiID,
			"action":  action.String(),
			"source":  source,
			"outcome": outcome.String(),
		}
		if res.err != nil {
			logrus.WithFields(fields).Warnf("Discord rejected role change: %v", res.err)
			metrics.RecordGrantOutcome(source, "error")
		} else {
			if outcome.Denied() {
				logrus.WithFields(fields).Info("Refused role change")
			} else {
				logrus.WithFields(fields).Debug("Processed role rule")
			}
			metrics.RecordGrantOutcome(source, outcome.String())
		}
		results = append(results, res)
	}
	return results, catalog
}

//prerequisiteDenial reports the missing prerequisite when at least one rule was refused for lacking it
//and no rule ended with the member holding its role
func prerequisiteDenial(results []ruleOutcome) (string, bool) {
	missing := ""
	for _, res := range results {
		switch {
		case res.err == nil && (res.outcome == grant.Granted || res.outcome == grant.NoOpAlreadyGranted):
			return "", false
		case res.outcome == grant.DeniedMissingPrerequisite && missing == "":
			missing = res.rule.RequiredRole()
		}
	}
	return missing, missing != ""
}

//rejectReaction removes a reaction which was refused for lacking a prerequisite and posts a short-lived
//notice explaining why
func (b *ReactBot) rejectReaction(r *discordgo.MessageReactionAdd, requiredRoleID string, catalog []*discordgo.Role) {
	s := b.DiscordSession()
	if err := s.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID); err != nil {
		logrus.Debugf("Could not remove reaction from user %v on message %v: %v", r.UserID, r.MessageID, err)
	}

	notice, err := s.ChannelMessageSendComplex(r.ChannelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("<@%v>, you need the role **%v** before you can get this role.", r.UserID, requiredRoleName(requiredRoleID, catalog)),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{r.UserID}},
	})
	if err != nil {
		logrus.Debugf("Could not send prerequisite notice in channel %v: %v", r.ChannelID, err)
		return
	}
	time.AfterFunc(noticeLifetime, func() {
		if err := s.ChannelMessageDelete(notice.ChannelID, notice.ID); err != nil {
			logrus.Debugf("Could not delete prerequisite notice %v: %v", notice.ID, err)
		}
	})
}

func requiredRoleName(roleID string, catalog []*discordgo.Role) string {
	if role := roleByID(roleID, catalog); role != nil {
		return role.Name
	}
	return "role ID " + roleID
}

//handleClaimButton processes a press of a "Claim role" button. Returns false if the component is not one.
func (b *ReactBot) handleClaimButton(i *discordgo.InteractionCreate) bool {
	messageID, emojiKey, roleID, ok := decodeClaimID(i.MessageComponentData().CustomID)
	if !ok {
		return false
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		b.replyEphemeral(i, "Guild context not available.")
		return true
	}
	rule, found := b.ReactionRoles.Find(messageID, emojiKey, roleID)
	if !found {
		b.replyEphemeral(i, "This role mapping no longer exists.")
		return true
	}

	results, catalog := b.applyRules(i.GuildID, i.Member.User.ID, i.Member.Roles, []guildmodels.RoleGrantRule{rule}, grant.Add, sourceButton)
	if len(results) == 0 {
		b.replyEphemeral(i, "An error occurred.")
		return true
	}
	b.replyEphemeral(i, claimReply(results[0], catalog))
	return true
}

//claimReply describes the result of a claim to the member who pressed the button
func claimReply(res ruleOutcome, catalog []*discordgo.Role) string {
	if res.err != nil {
		return "An error occurred."
	}
	roleName := requiredRoleName(res.rule.RoleID, catalog)
	switch res.outcome {
	case grant.DeniedMissingPrerequisite:
		return fmt.Sprintf("You need the role **%v** before you can claim this role.", requiredRoleName(res.rule.RequiredRole(), catalog))
	case grant.DeniedRoleNotFound:
		return "Target role not found (it may have been deleted)."
	case grant.DeniedBotLacksPermission:
		return "I do not have permission to manage roles."
	case grant.DeniedHierarchy:
		return "I cannot assign that role due to role hierarchy."
	case grant.NoOpAlreadyGranted:
		return fmt.Sprintf("You already have the role **%v**.", roleName)
	case grant.Granted:
		return fmt.Sprintf("You have been given the role **%v**.", roleName)
	}
	return "An error occurred."
}

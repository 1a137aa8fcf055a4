package bot

import (
	"net/url"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/config"
	"github.com/callummance/reactbot/db"
	"github.com/callummance/reactbot/discord"
	"github.com/callummance/reactbot/grant"
	"github.com/callummance/reactbot/permissions"
	"github.com/callummance/reactbot/persist"
	"github.com/callummance/reactbot/reactroles"
	"github.com/sirupsen/logrus"
)

//ReactBot represents an instance of the discord bot, containing handles to the various external connections.
type ReactBot struct {
	DiscordConnection *discord.EventSource
	DBConnection      *db.Connection
	Persistence       *persist.Adapter

	Permissions   *permissions.Store
	ReactionRoles *reactroles.Store

	prefix string
}

//Init creates a new ReactBot instance, loads its documents and connects to discord
func Init(cfg *config.Config) (*ReactBot, error) {
	res := ReactBot{prefix: cfg.Prefix}

	files, err := persist.NewFileStore(cfg.DataDir)
	if err != nil {
		logrus.Errorf("Cannot start bot due to error opening data directory: %v", err)
		return nil, err
	}

	//Optional mirrors
	var sinks []persist.DocumentSink
	if gh := cfg.GitHub(); gh.Enabled() {
		sink, err := persist.NewGitHubSink(gh)
		if err != nil {
			logrus.Errorf("Cannot start bot due to invalid GitHub mirror settings: %v", err)
			return nil, err
		}
		logrus.Infof("Mirroring documents to GitHub repository %v/%v", gh.Owner, gh.Repo)
		sinks = append(sinks, sink)
	} else {
		logrus.Info("GitHub mirror disabled: token, owner and repo are not all set.")
	}
	if cfg.DBAddr != "" {
		conn, err := db.Init(cfg.DBAddr, cfg.DBName)
		if err != nil {
			logrus.Errorf("Cannot start bot due to error initializing database connection: %v", err)
			return nil, err
		}
		res.DBConnection = conn
		sinks = append(sinks, conn)
	}
	res.Persistence = persist.NewAdapter(files, sinks...)

	res.Permissions = permissions.NewStore(cfg.OwnerID, res.Persistence)
	res.ReactionRoles = reactroles.NewStore(res.Persistence)
	if err := res.Permissions.Load(res.Persistence); err != nil {
		logrus.Errorf("Cannot start bot due to error loading %v: %v", permissions.DocumentName, err)
		res.Close()
		return nil, err
	}
	if err := res.ReactionRoles.Load(res.Persistence); err != nil {
		logrus.Errorf("Cannot start bot due to error loading %v: %v", reactroles.DocumentName, err)
		res.Close()
		return nil, err
	}

	//Start discord connection
	disc, err := discord.NewEventSource(cfg.Token, &res)
	if err != nil {
		logrus.Errorf("Cannot start bot due to error initializing discord connection: %v", err)
		res.Close()
		return nil, err
	}
	res.DiscordConnection = disc
	if err := disc.Open(); err != nil {
		logrus.Errorf("Cannot start bot due to error initializing discord connection: %v", err)
		res.DiscordConnection = nil
		res.Close()
		return nil, err
	}

	return &res, nil
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (b *ReactBot) BotAddURL() (*url.URL, error) {
	return b.DiscordConnection.BotAddURL()
}

//DiscordSession returns a handle to the underlying discord session
func (b *ReactBot) DiscordSession() *discordgo.Session {
	return b.DiscordConnection.Session()
}

//IsReady is true once the bot is connected and its documents are loaded
func (b *ReactBot) IsReady() bool {
	return b.DiscordConnection != nil && b.DiscordConnection.IsReady()
}

//Close cleanly terminates the bot instance, writing out any unsaved documents
func (b *ReactBot) Close() {
	logrus.Info("Terminating bot...")
	if b.DiscordConnection != nil {
		b.DiscordConnection.Close()
	}
	if b.Persistence != nil {
		b.Persistence.Close()
	}
	if b.DBConnection != nil {
		b.DBConnection.Close()
	}
}

//botUserID returns the bot's own user ID
func (b *ReactBot) botUserID() string {
	s := b.DiscordSession()
	if s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

//guildRoles returns the guild's roles, preferring the gateway cache
func (b *ReactBot) guildRoles(guildID string) ([]*discordgo.Role, error) {
	s := b.DiscordSession()
	if s.State != nil {
		if guild, err := s.State.Guild(guildID); err == nil {
			s.State.RLock()
			roles := append([]*discordgo.Role(nil), guild.Roles...)
			s.State.RUnlock()
			if len(roles) > 0 {
				return roles, nil
			}
		}
	}
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		logrus.Warnf("Failed to fetch guild roles for guild id %v", guildID)
		return nil, err
	}
	return roles, nil
}

//guildChannels returns the guild's channels, preferring the gateway cache
func (b *ReactBot) guildChannels(guildID string) ([]*discordgo.Channel, error) {
	s := b.DiscordSession()
	if s.State != nil {
		if guild, err := s.State.Guild(guildID); err == nil {
			s.State.RLock()
			channels := append([]*discordgo.Channel(nil), guild.Channels...)
			s.State.RUnlock()
			if len(channels) > 0 {
				return channels, nil
			}
		}
	}
	channels, err := s.GuildChannels(guildID)
	if err != nil {
		logrus.Warnf("Failed to fetch channels for guild id %v", guildID)
		return nil, err
	}
	return channels, nil
}

//guildMember looks up a member, preferring the gateway cache
func (b *ReactBot) guildMember(guildID, userID string) (*discordgo.Member, error) {
	s := b.DiscordSession()
	if s.State != nil {
		if member, err := s.State.Member(guildID, userID); err == nil {
			return member, nil
		}
	}
	return s.GuildMember(guildID, userID)
}

//botAuthority works out what the bot can do in a guild along with the role catalog it was computed from
func (b *ReactBot) botAuthority(guildID string) (grant.Authority, []*discordgo.Role, error) {
	roles, err := b.guildRoles(guildID)
	if err != nil {
		return grant.Authority{}, nil, err
	}
	me, err := b.guildMember(guildID, b.botUserID())
	if err != nil {
		logrus.Warnf("Failed to fetch own member record in guild %v: %v", guildID, err)
		return grant.Authority{}, nil, err
	}
	return grant.AuthorityOf(me, roles, guildID), roles, nil
}

//botCan checks the bot's own permissions in a channel
func (b *ReactBot) botCan(channelID string, perm int64) bool {
	perms, err := b.DiscordSession().UserChannelPermissions(b.botUserID(), channelID)
	if err != nil {
		logrus.Warnf("Failed to compute own permissions in channel %v: %v", channelID, err)
		return false
	}
	return hasPermission(perms, perm)
}

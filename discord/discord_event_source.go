package discord

import (
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const botScope = "bot applications.commands"
const permissions = discordgo.PermissionAllText | discordgo.PermissionAllChannel | discordgo.PermissionManageRoles

//Intents are the gateway events the bot subscribes to
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

//EventHandler is a struct which can handle all the events the discord listener generates.
type EventHandler interface {
	HandleMessage(*discordgo.MessageCreate)
	HandleReactionAdd(*discordgo.MessageReactionAdd)
	HandleReactionRemove(*discordgo.MessageReactionRemove)
	HandleInteraction(*discordgo.InteractionCreate)
	HandleMessageDelete(*discordgo.MessageDelete)
	HandleMessageDeleteBulk(*discordgo.MessageDeleteBulk)
	HandleRoleDelete(*discordgo.GuildRoleDelete)
}

//EventSource represents a connection to the Discord gateway
type EventSource struct {
	discordClient *discordgo.Session
	handler       EventHandler
	ready         atomic.Bool
}

//NewSession creates a client for the given bot token without connecting to the gateway
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("no discord bot token was provided")
	}
	dc, err := discordgo.New("Bot " + token)
	if err != nil {
		logrus.Warnf("Failed to create Discord gateway client due to %v", err)
		return nil, err
	}
	return dc, nil
}

//NewEventSource initializes an EventSource. No events are delivered until Open is called.
func NewEventSource(token string, handler EventHandler) (*EventSource, error) {
	dc, err := NewSession(token)
	if err != nil {
		return nil, err
	}
	dispatch := &EventSource{
		discordClient: dc,
		handler:       handler,
	}

	//Register event handlers
	dc.AddHandler(dispatch.dispatchMessageCreateEvent)
	dc.AddHandler(dispatch.dispatchReactionAddEvent)
	dc.AddHandler(dispatch.dispatchReactionRemoveEvent)
	dc.AddHandler(dispatch.dispatchInteractionEvent)
	dc.AddHandler(dispatch.dispatchMessageDeleteEvent)
	dc.AddHandler(dispatch.dispatchMessageDeleteBulkEvent)
	dc.AddHandler(dispatch.dispatchRoleDeleteEvent)
	dc.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logrus.Infof("Logged in as %v#%v", r.User.Username, r.User.Discriminator)
		dispatch.ready.Store(true)
	})
	dc.AddHandler(func(s *discordgo.Session, _ *discordgo.Disconnect) {
		logrus.Warn("Disconnected from discord gateway")
		dispatch.ready.Store(false)
	})
	dc.AddHandler(func(s *discordgo.Session, _ *discordgo.Resumed) {
		dispatch.ready.Store(true)
	})

	//Register intents
	dc.Identify.Intents = Intents
	return dispatch, nil
}

//Open starts listening for events from the discord gateway
func (d *EventSource) Open() error {
	err := d.discordClient.Open()
	if err != nil {
		logrus.Errorf("Failed to connect to discord websockets gateway; encountered error %v", err)
		return err
	}
	return nil
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (d *EventSource) BotAddURL() (*url.URL, error) {
	user, err := d.discordClient.User("@me")
	if err != nil {
		return nil, err
	}
	return BotAddURL(user.ID)
}

//BotAddURL builds the invite link for the given application ID
func BotAddURL(clientID string) (*url.URL, error) {
	url, err := url.Parse("https://discord.com/api/oauth2/authorize")
	if err != nil {
		return nil, err
	}
	q := url.Query()
	q.Set("client_id", clientID)
	q.Set("scope", botScope)
	q.Set("permissions", fmt.Sprintf("%d", permissions))
	url.RawQuery = q.Encode()

	return url, nil
}

//Close cleanly terminates the Discord connection
func (d *EventSource) Close() {
	logrus.Info("Terminating discord event listener...")
	_ = d.discordClient.Close()
}

//IsReady is true while the gateway connection is up
func (d *EventSource) IsReady() bool {
	return d.ready.Load()
}

//Session returns a handle to the underlying discordgo session
func (d *EventSource) Session() *discordgo.Session {
	return d.discordClient
}

func isSelf(s *discordgo.Session, userID string) bool {
	return s.State != nil && s.State.User != nil && s.State.User.ID == userID
}

//recoverHandler prevents a panic in a single handler from crashing the whole bot
func recoverHandler(event string) {
	if r := recover(); r != nil {
		logrus.Errorf("Bot handler for %v panicked: %v", event, r)
	}
}

func (d *EventSource) dispatchMessageCreateEvent(s *discordgo.Session, m *discordgo.MessageCreate) {
	//Ignore messages created by bots, including ourselves
	if m.Author == nil || m.Author.Bot || isSelf(s, m.Author.ID) {
		return
	}
	defer recoverHandler("message create")
	logrus.Debugf("Got message `%v`", m.Content)
	d.handler.HandleMessage(m)
}

func (d *EventSource) dispatchReactionAddEvent(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	//The bot reacts to reaction-role messages itself
	if isSelf(s, r.UserID) {
		return
	}
	defer recoverHandler("reaction add")
	d.handler.HandleReactionAdd(r)
}

func (d *EventSource) dispatchReactionRemoveEvent(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if isSelf(s, r.UserID) {
		return
	}
	defer recoverHandler("reaction remove")
	d.handler.HandleReactionRemove(r)
}

func (d *EventSource) dispatchInteractionEvent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer recoverHandler("interaction")
	d.handler.HandleInteraction(i)
}

func (d *EventSource) dispatchMessageDeleteEvent(s *discordgo.Session, m *discordgo.MessageDelete) {
	defer recoverHandler("message delete")
	d.handler.HandleMessageDelete(m)
}

func (d *EventSource) dispatchMessageDeleteBulkEvent(s *discordgo.Session, m *discordgo.MessageDeleteBulk) {
	defer recoverHandler("message delete bulk")
	d.handler.HandleMessageDeleteBulk(m)
}

func (d *EventSource) dispatchRoleDeleteEvent(s *discordgo.Session, r *discordgo.GuildRoleDelete) {
	defer recoverHandler("role delete")
	d.handler.HandleRoleDelete(r)
}

package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

//MessagePageSize is the most messages discord returns for a single history request
const MessagePageSize int = 100

//MessageFetcher reads a channel's history. *discordgo.Session satisfies it.
type MessageFetcher interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

//MessagePage represents a batch of messages fetched using MessagePages, newest first.
type MessagePage struct {
	Messages []*discordgo.Message
	Error    error
}

//MessagePages walks backwards through a channel's history, starting just before beforeID (or at the
//newest message if it is empty), one page at a time. The channel is closed once the history runs out,
//after an error, or when ctx is cancelled.
func MessagePages(ctx context.Context, fetcher MessageFetcher, channelID, beforeID string) <-chan MessagePage {
	ch := make(chan MessagePage)
	go func() {
		defer close(ch)
		before := beforeID
		for {
			if ctx.Err() != nil {
				return
			}
			page, err := fetcher.ChannelMessages(channelID, MessagePageSize, before, "", "")
			if err != nil {
				logrus.Warnf("Failed to fetch page of channel messages from discord api: %v", err)
				select {
				case ch <- MessagePage{Error: err}:
				case <-ctx.Done():
				}
				return
			}
			//If new page of messages is empty, close the iterator.
			if len(page) == 0 {
				return
			}
			select {
			case ch <- MessagePage{Messages: page}:
			case <-ctx.Done():
				return
			}
			if len(page) < MessagePageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}()
	return ch
}

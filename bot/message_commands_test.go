package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var clearNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

//fakeChannel holds messages with IDs total..1, newest first. IDs at or below oldAtOrBelow are past
//the bulk delete age limit.
type fakeChannel struct {
	mu           sync.Mutex
	total        int
	oldAtOrBelow int
	fetchErr     error
	bulkErr      error

	bulk   [][]string
	single []string
}

func (f *fakeChannel) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	start := f.total
	if beforeID != "" {
		n, err := strconv.Atoi(beforeID)
		if err != nil {
			return nil, err
		}
		start = n - 1
	}
	var res []*discordgo.Message
	for id := start; id > 0 && len(res) < limit; id-- {
		ts := clearNow.Add(-time.Minute)
		if id <= f.oldAtOrBelow {
			ts = clearNow.Add(-15 * 24 * time.Hour)
		}
		res = append(res, &discordgo.Message{ID: strconv.Itoa(id), ChannelID: channelID, Timestamp: ts})
	}
	return res, nil
}

func (f *fakeChannel) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulk = append(f.bulk, append([]string(nil), messages...))
	return nil
}

func (f *fakeChannel) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single = append(f.single, messageID)
	return nil
}

func TestClearMessagesWithCount(t *testing.T) {
	defer goleak.VerifyNone(t)
	ch := &fakeChannel{total: 10}

	deleted, err := clearMessages(context.Background(), ch, "chan", 3, "10", clearNow, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, [][]string{{"9", "8", "7"}}, ch.bulk, "the command message is skipped")
	assert.Empty(t, ch.single)
}

func TestClearMessagesAllSplitsByAge(t *testing.T) {
	defer goleak.VerifyNone(t)
	ch := &fakeChannel{total: 150, oldAtOrBelow: 20}

	deleted, err := clearMessages(context.Background(), ch, "chan", 0, "", clearNow, 0)
	require.NoError(t, err)
	assert.Equal(t, 150, deleted)

	require.Len(t, ch.bulk, 2)
	assert.Len(t, ch.bulk[0], 100)
	assert.Equal(t, "150", ch.bulk[0][0])
	assert.Len(t, ch.bulk[1], 30)
	assert.Equal(t, "21", ch.bulk[1][29])

	require.Len(t, ch.single, 20)
	assert.Equal(t, "20", ch.single[0])
	assert.Equal(t, "1", ch.single[19])
}

func TestClearMessagesFetchError(t *testing.T) {
	defer goleak.VerifyNone(t)
	ch := &fakeChannel{total: 10, fetchErr: errors.New("missing access")}

	deleted, err := clearMessages(context.Background(), ch, "chan", 0, "", clearNow, 0)
	assert.Error(t, err)
	assert.Equal(t, 0, deleted)
}

func TestClearMessagesBulkFailureIsNotCounted(t *testing.T) {
	defer goleak.VerifyNone(t)
	ch := &fakeChannel{total: 5, oldAtOrBelow: 2, bulkErr: errors.New("rate limited")}

	deleted, err := clearMessages(context.Background(), ch, "chan", 0, "", clearNow, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted, "only the individually deleted old messages count")
	assert.Equal(t, []string{"2", "1"}, ch.single)
}

func TestClearMessagesStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ch := &fakeChannel{total: 500}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := clearMessages(ctx, ch, "chan", 0, "", clearNow, time.Hour)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.LessOrEqual(t, len(ch.bulk), 1)
}

func TestArgsRemainderKeepsSpacing(t *testing.T) {
	content := "msg #general hello   world\nsecond line"
	assert.Equal(t, "hello   world\nsecond line", argsRemainder(content, 2))
	assert.Equal(t, "", argsRemainder("msg #general", 2))
	assert.Equal(t, "#general hi", argsRemainder("  msg   #general hi", 1))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content string
		command string
		args    []string
		ok      bool
	}{
		{content: "!MsgRole list", command: "msgrole", args: []string{"list"}, ok: true},
		{content: "  !set   clr  Mods ", command: "set", args: []string{"clr", "Mods"}, ok: true},
		{content: "!clr", command: "clr", args: []string{}, ok: true},
		{content: "hello there", ok: false},
		{content: "!", ok: false},
		{content: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.content), func(t *testing.T) {
			command, args, ok := parseCommand("!", tt.content)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.command, command)
				assert.Equal(t, tt.args, args)
			}
		})
	}

	_, _, ok := parseCommand("", "!set list")
	assert.False(t, ok, "an empty prefix never matches")
}

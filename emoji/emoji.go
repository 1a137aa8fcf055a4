//Package emoji normalizes the different ways Discord represents an emoji so that a reaction, a typed
//command argument and a persisted mapping can be compared with each other.
package emoji

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
)

//Kind distinguishes unicode emoji from guild (custom) emoji
type Kind int

const (
	//Unicode is a plain unicode grapheme such as 🔥
	Unicode Kind = iota
	//Custom is a guild emoji identified by a name and a snowflake ID
	Custom
)

//Emoji is a normalized emoji identity. The zero value is not a valid emoji.
type Emoji struct {
	kind     Kind
	name     string
	id       string
	animated bool
}

//Matches `<:name:id>`, `<a:name:id>` and the bare API form `name:id`
var customEmojiRegex = regexp.MustCompile(`^(?:<(a)?:)?([A-Za-z0-9_]+):(\d+)>?$`)

//NewUnicode builds a unicode emoji from its grapheme
func NewUnicode(grapheme string) Emoji {
	return Emoji{kind: Unicode, name: grapheme}
}

//NewCustom builds a custom guild emoji
func NewCustom(name, id string, animated bool) Emoji {
	return Emoji{kind: Custom, name: name, id: id, animated: animated}
}

//Parse interprets user input or a stored key as an emoji. Custom emoji may be given in mention form
//(`<:name:id>`, `<a:name:id>`) or API form (`name:id`); anything else that is a single whitespace-free
//token is treated as a unicode grapheme.
func Parse(raw string) (Emoji, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Emoji{}, fmt.Errorf("empty emoji")
	}
	if matches := customEmojiRegex.FindStringSubmatch(raw); matches != nil {
		return NewCustom(matches[2], matches[3], matches[1] == "a"), nil
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return Emoji{}, fmt.Errorf("%q is not a single emoji", raw)
	}
	//Looks like an unclosed or mangled custom emoji mention
	if strings.HasPrefix(raw, "<") || strings.HasSuffix(raw, ">") {
		return Emoji{}, fmt.Errorf("%q is not a valid custom emoji", raw)
	}
	return NewUnicode(raw), nil
}

//Normalize returns the persisted key for raw input, or the input unchanged if it cannot be parsed.
func Normalize(raw string) string {
	e, err := Parse(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return e.Key()
}

//FromDiscord converts the emoji attached to a reaction event
func FromDiscord(e *discordgo.Emoji) Emoji {
	if e == nil {
		return Emoji{}
	}
	if e.ID != "" {
		return NewCustom(e.Name, e.ID, e.Animated)
	}
	return NewUnicode(e.Name)
}

//Kind reports whether the emoji is unicode or custom
func (e Emoji) Kind() Kind {
	return e.kind
}

//IsZero is true for the zero Emoji
func (e Emoji) IsZero() bool {
	return e.name == "" && e.id == ""
}

//Key is the persisted form: `name:id` for custom emoji and the raw grapheme otherwise.
//It is also the form the Discord API expects when adding a reaction.
func (e Emoji) Key() string {
	if e.kind == Custom {
		return e.name + ":" + e.id
	}
	return e.name
}

//String renders the emoji the way it should appear inside a message
func (e Emoji) String() string {
	if e.kind == Custom {
		if e.animated {
			return fmt.Sprintf("<a:%s:%s>", e.name, e.id)
		}
		return fmt.Sprintf("<:%s:%s>", e.name, e.id)
	}
	return e.name
}

//Equal compares identities. Animation markup is not part of the identity.
func (e Emoji) Equal(other Emoji) bool {
	if e.kind != other.kind {
		return false
	}
	return e.name == other.name && e.id == other.id
}

//MatchesKey is true if key normalizes to the same emoji
func (e Emoji) MatchesKey(key string) bool {
	parsed, err := Parse(key)
	if err != nil {
		return false
	}
	return e.Equal(parsed)
}

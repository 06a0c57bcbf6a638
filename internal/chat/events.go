// AngelaMos | 2026
// events.go

package chat

import (
	"strconv"
)

type MessageEvent struct {
	MessageID  string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	InGuild    bool
}

// ReactionEvent carries the reacted-to message author, resolved by the
// adapter, so admin-emoji awards can credit them.
type ReactionEvent struct {
	MessageID   string
	ChannelID   string
	ReactorID   string
	ReactorName string
	ReactorBot  bool
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	HasImage    bool
	Emoji       string
}

type VoiceStateEvent struct {
	UserID          string
	Username        string
	Bot             bool
	BeforeChannelID string
	AfterChannelID  string
}

// Joined reports a transition from no channel into a channel.
func (e VoiceStateEvent) Joined() bool {
	return e.BeforeChannelID == "" && e.AfterChannelID != ""
}

type MemberUpdateEvent struct {
	UserID      string
	Username    string
	AvatarURL   string
	Bot         bool
	BeforeRoles []string
	AfterRoles  []string
}

func (e MemberUpdateEvent) AddedRoles() []string {
	before := make(map[string]struct{}, len(e.BeforeRoles))
	for _, r := range e.BeforeRoles {
		before[r] = struct{}{}
	}

	var added []string
	for _, r := range e.AfterRoles {
		if _, ok := before[r]; !ok {
			added = append(added, r)
		}
	}
	return added
}

// Invocation is one slash command call. Option values arrive as strings;
// user options carry the member id.
type Invocation struct {
	Command   string
	UserID    string
	Username  string
	AvatarURL string
	Options   map[string]string
}

func (i Invocation) String(name string) string {
	return i.Options[name]
}

func (i Invocation) Int(name string) (int64, bool) {
	v, ok := i.Options[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

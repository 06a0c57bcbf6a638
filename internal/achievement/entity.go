// AngelaMos | 2026
// entity.go

package achievement

import (
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type Type string

const (
	TypeMessage  Type = "message"
	TypeReaction Type = "reaction"
	TypeVoice    Type = "voice"
	TypeSpecial  Type = "special"
)

var Types = []Type{TypeMessage, TypeReaction, TypeVoice, TypeSpecial}

func (t Type) Valid() bool {
	switch t {
	case TypeMessage, TypeReaction, TypeVoice, TypeSpecial:
		return true
	}
	return false
}

type Achievement struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Points      int64     `db:"points"`
	Type        Type      `db:"achievement_type"`
	Requirement int       `db:"requirement"`
	CreatedAt   time.Time `db:"created_at"`
}

// Held is an achievement together with when the member earned it.
type Held struct {
	Achievement
	AwardedAt time.Time `db:"awarded_at"`
}

// Award is one newly granted achievement and the balance right after its
// points landed.
type Award struct {
	Achievement Achievement
	Balance     int64
}

// Counter returns the member's progress towards achievements of type t.
// The special type counts one-shot grants held.
func Counter(u *user.User, t Type) int {
	switch t {
	case TypeMessage:
		return u.MessageCount
	case TypeReaction:
		return u.ReactionCount
	case TypeVoice:
		return u.VoiceMinutes
	case TypeSpecial:
		return u.Counters().OneShotsHeld()
	}
	return 0
}

package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Intents is a bitmask of gateway capabilities a client opts into at construction.
// A server push is delivered only when its required bits intersect the client's set.
type Intents uint32

// Capability bits. Bit 0 is unused by the gateway.
const (
	IntentReady          Intents = 1 << 1
	IntentMessages       Intents = 1 << 2
	IntentDirectMessages Intents = 1 << 3
	IntentJoins          Intents = 1 << 4
	IntentLeaves         Intents = 1 << 5
	IntentReactions      Intents = 1 << 6
	IntentEmotes         Intents = 1 << 7
	IntentTips           Intents = 1 << 8
	IntentVoiceChat      Intents = 1 << 9
	IntentMovements      Intents = 1 << 10
	IntentError          Intents = 1 << 11
	IntentModerate       Intents = 1 << 12
)

// AllIntents enables every known capability.
const AllIntents = IntentReady | IntentMessages | IntentDirectMessages | IntentJoins |
	IntentLeaves | IntentReactions | IntentEmotes | IntentTips | IntentVoiceChat |
	IntentMovements | IntentError | IntentModerate

var intentNames = map[string]Intents{
	"ready":          IntentReady,
	"messages":       IntentMessages,
	"directmessages": IntentDirectMessages,
	"joins":          IntentJoins,
	"leaves":         IntentLeaves,
	"reactions":      IntentReactions,
	"emotes":         IntentEmotes,
	"tips":           IntentTips,
	"voicechat":      IntentVoiceChat,
	"movements":      IntentMovements,
	"error":          IntentError,
	"moderate":       IntentModerate,
}

// eventIntents maps an inbound event tag to the bits that make it deliverable.
var eventIntents = map[string]Intents{
	TypeSessionMetadata:    IntentReady,
	TypeChatEvent:          IntentMessages,
	TypeMessageEvent:       IntentDirectMessages,
	TypeUserJoinedEvent:    IntentJoins,
	TypeUserLeftEvent:      IntentLeaves,
	TypeReactionEvent:      IntentReactions,
	TypeEmoteEvent:         IntentEmotes,
	TypeTipReactionEvent:   IntentTips,
	TypeVoiceEvent:         IntentVoiceChat,
	TypeUserMovedEvent:     IntentMovements,
	TypeError:              IntentError,
	TypeRoomModeratedEvent: IntentModerate,
}

// RequiredIntents returns the capability bits required to receive the event tag.
//
// Postcondition: ok is false when the tag is not a known server push.
func RequiredIntents(tag string) (Intents, bool) {
	bits, ok := eventIntents[tag]
	return bits, ok
}

// EventTags returns every tag present in the intent table, sorted.
func EventTags() []string {
	tags := lo.Keys(eventIntents)
	sort.Strings(tags)
	return tags
}

// Allows reports whether any bit in required is enabled in i.
func (i Intents) Allows(required Intents) bool {
	return i&required != 0
}

// Has reports whether every bit in flag is enabled in i.
func (i Intents) Has(flag Intents) bool {
	return flag != 0 && i&flag == flag
}

// Names returns the lower-case names of the enabled capabilities, sorted.
func (i Intents) Names() []string {
	names := lo.Filter(lo.Keys(intentNames), func(name string, _ int) bool {
		return i.Has(intentNames[name])
	})
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer.
func (i Intents) String() string {
	return strings.Join(i.Names(), "|")
}

// ParseIntents converts capability names into a bitmask. Names are matched
// case-insensitively; "all" enables every capability.
//
// Postcondition: Returns an error naming the first unknown capability.
func ParseIntents(names []string) (Intents, error) {
	var set Intents
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "all" {
			set |= AllIntents
			continue
		}
		bit, ok := intentNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown intent %q", raw)
		}
		set |= bit
	}
	return set, nil
}

package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultFacing is applied to positions that arrive without a facing.
const DefaultFacing = "FrontRight"

// User identifies a player.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Position is a point on the room floor.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing string  `json:"facing" validate:"omitempty,oneof=FrontRight FrontLeft BackRight BackLeft"`
}

// Anchor is a seat or attachment point on a room entity.
type Anchor struct {
	EntityID    string `json:"entity_id" validate:"required"`
	AnchorIndex int    `json:"anchor_ix" validate:"gte=0"`
}

// Location is either a floor Position or an Anchor. Exactly one field is set
// on a decoded value.
type Location struct {
	Position *Position
	Anchor   *Anchor
}

// At returns a floor location.
func At(x, y, z float64, facing string) Location {
	if facing == "" {
		facing = DefaultFacing
	}
	return Location{Position: &Position{X: x, Y: y, Z: z, Facing: facing}}
}

// OnAnchor returns an anchored location.
func OnAnchor(entityID string, index int) Location {
	return Location{Anchor: &Anchor{EntityID: entityID, AnchorIndex: index}}
}

// IsZero reports whether neither variant is set.
func (l Location) IsZero() bool {
	return l.Position == nil && l.Anchor == nil
}

// String implements fmt.Stringer.
func (l Location) String() string {
	switch {
	case l.Position != nil:
		return fmt.Sprintf("(%g,%g,%g %s)", l.Position.X, l.Position.Y, l.Position.Z, l.Position.Facing)
	case l.Anchor != nil:
		return fmt.Sprintf("anchor(%s#%d)", l.Anchor.EntityID, l.Anchor.AnchorIndex)
	}
	return "nowhere"
}

// MarshalJSON implements json.Marshaler.
func (l Location) MarshalJSON() ([]byte, error) {
	switch {
	case l.Anchor != nil:
		return json.Marshal(l.Anchor)
	case l.Position != nil:
		return json.Marshal(l.Position)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Objects carrying entity_id and
// anchor_ix decode as an Anchor; objects carrying x, y and z as a Position.
func (l *Location) UnmarshalJSON(data []byte) error {
	*l = Location{}
	if string(data) == "null" {
		return nil
	}
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.Get("entity_id").Exists() && parsed.Get("anchor_ix").Exists():
		var a Anchor
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decoding anchor: %w", err)
		}
		l.Anchor = &a
	case parsed.Get("x").Exists() && parsed.Get("y").Exists() && parsed.Get("z").Exists():
		var p Position
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decoding position: %w", err)
		}
		if p.Facing == "" {
			p.Facing = DefaultFacing
		}
		l.Position = &p
	default:
		return fmt.Errorf("unrecognised location %s", string(data))
	}
	return nil
}

// CurrencyItem is an amount of one wallet currency.
type CurrencyItem struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

// Item is an inventory or outfit item.
type Item struct {
	Type   string `json:"type" validate:"required"`
	Amount int64  `json:"amount" validate:"gte=0"`
	ID     string `json:"id" validate:"required"`
}

// RoomPermissions are a user's room privileges. A nil field is unset; in a
// change request it leaves that privilege untouched.
type RoomPermissions struct {
	Moderator *bool `json:"moderator,omitempty"`
	Designer  *bool `json:"designer,omitempty"`
}

// DirectMessage is one message in a direct conversation.
type DirectMessage struct {
	MessageID      string     `json:"message_id"`
	ConversationID string     `json:"conversation_id"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	Content        string     `json:"content"`
	SenderID       string     `json:"sender_id"`
	Category       string     `json:"category"`
}

// Conversation summarizes a direct conversation the bot can see. Bots join
// direct conversations only, never group ones.
type Conversation struct {
	ID          string         `json:"id"`
	DidJoin     bool           `json:"did_join"`
	UnreadCount int            `json:"unread_count"`
	LastMessage *DirectMessage `json:"last_message,omitempty"`
	Muted       bool           `json:"muted"`
	MemberIDs   []string       `json:"member_ids,omitempty"`
	Name        string         `json:"name,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
}

// RoomInfo describes the connected room.
type RoomInfo struct {
	OwnerID  string `json:"owner_id"`
	RoomName string `json:"room_name"`
}

// RoomUser pairs a user with their location. On the wire it is a two-element
// array: [user, location].
type RoomUser struct {
	User     User
	Location Location
}

// MarshalJSON implements json.Marshaler.
func (r RoomUser) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.User, r.Location})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RoomUser) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding room user pair: %w", err)
	}
	if err := json.Unmarshal(pair[0], &r.User); err != nil {
		return fmt.Errorf("decoding room user: %w", err)
	}
	return r.Location.UnmarshalJSON(pair[1])
}

// VoiceUser pairs a user with their voice status ("invited", "voice", "muted").
type VoiceUser struct {
	User   User
	Status string
}

// MarshalJSON implements json.Marshaler.
func (v VoiceUser) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{v.User, v.Status})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *VoiceUser) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding voice user pair: %w", err)
	}
	if err := json.Unmarshal(pair[0], &v.User); err != nil {
		return fmt.Errorf("decoding voice user: %w", err)
	}
	return json.Unmarshal(pair[1], &v.Status)
}

// ChatText is a chat body. The gateway sends either a bare string or an
// object with a text field; both decode to the text.
type ChatText string

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChatText) UnmarshalJSON(data []byte) error {
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.Type == gjson.String:
		*c = ChatText(parsed.String())
	case parsed.IsObject():
		*c = ChatText(parsed.Get("text").String())
	default:
		return fmt.Errorf("unrecognised chat message %s", string(data))
	}
	return nil
}

package protocol

// Server push tags.
const (
	TypeSessionMetadata    = "SessionMetadata"
	TypeChatEvent          = "ChatEvent"
	TypeMessageEvent       = "MessageEvent"
	TypeUserJoinedEvent    = "UserJoinedEvent"
	TypeUserLeftEvent      = "UserLeftEvent"
	TypeReactionEvent      = "ReactionEvent"
	TypeEmoteEvent         = "EmoteEvent"
	TypeTipReactionEvent   = "TipReactionEvent"
	TypeVoiceEvent         = "VoiceEvent"
	TypeUserMovedEvent     = "UserMovedEvent"
	TypeError              = "Error"
	TypeRoomModeratedEvent = "RoomModeratedEvent"
)

// Public event names handlers subscribe to.
const (
	EventReady         = "ready"
	EventChat          = "chatCreate"
	EventWhisper       = "whisperCreate"
	EventDirectMessage = "messageCreate"
	EventJoin          = "playerJoin"
	EventLeave         = "playerLeave"
	EventReaction      = "playerReact"
	EventEmote         = "playerEmote"
	EventTip           = "playerTip"
	EventVoice         = "voiceCreate"
	EventMove          = "playerMove"
	EventError         = "error"
	EventModerate      = "roomModerate"
)

// EventNames lists every public event name.
var EventNames = []string{
	EventReady, EventChat, EventWhisper, EventDirectMessage, EventJoin, EventLeave,
	EventReaction, EventEmote, EventTip, EventVoice, EventMove, EventError, EventModerate,
}

// Event is a decoded server push.
type Event interface {
	Message
	// EventName is the public name handlers subscribe to.
	EventName() string
	// Actor is the id of the user that caused the event, or "" when there is none.
	Actor() string
}

// SessionMetadata is pushed once per successful connection.
type SessionMetadata struct {
	UserID       string                `json:"user_id"`
	RoomInfo     RoomInfo              `json:"room_info"`
	RateLimits   map[string][2]float64 `json:"rate_limits"`
	ConnectionID string                `json:"connection_id"`
	SDKVersion   string                `json:"sdk_version,omitempty"`
}

func (*SessionMetadata) Type() string { return TypeSessionMetadata }
func (*SessionMetadata) EventName() string { return EventReady }
func (e *SessionMetadata) Actor() string { return e.UserID }

// ChatEvent is a room message or whisper.
type ChatEvent struct {
	User    User     `json:"user"`
	Message ChatText `json:"message"`
	Whisper bool     `json:"whisper"`
}

func (*ChatEvent) Type() string { return TypeChatEvent }
func (e *ChatEvent) Actor() string { return e.User.ID }

// EventName is whisperCreate for whispers and chatCreate otherwise.
func (e *ChatEvent) EventName() string {
	if e.Whisper {
		return EventWhisper
	}
	return EventChat
}

// MessageEvent signals a new direct message in a conversation.
type MessageEvent struct {
	UserID            string `json:"user_id"`
	ConversationID    string `json:"conversation_id"`
	IsNewConversation bool   `json:"is_new_conversation"`
}

func (*MessageEvent) Type() string { return TypeMessageEvent }
func (*MessageEvent) EventName() string { return EventDirectMessage }
func (e *MessageEvent) Actor() string { return e.UserID }

// UserJoinedEvent announces a user entering the room.
type UserJoinedEvent struct {
	User     User     `json:"user"`
	Position Location `json:"position"`
}

func (*UserJoinedEvent) Type() string { return TypeUserJoinedEvent }
func (*UserJoinedEvent) EventName() string { return EventJoin }
func (e *UserJoinedEvent) Actor() string { return e.User.ID }

// UserLeftEvent announces a user leaving the room.
type UserLeftEvent struct {
	User User `json:"user"`
}

func (*UserLeftEvent) Type() string { return TypeUserLeftEvent }
func (*UserLeftEvent) EventName() string { return EventLeave }
func (e *UserLeftEvent) Actor() string { return e.User.ID }

// ReactionEvent is a reaction sent from one user to another.
type ReactionEvent struct {
	User     User   `json:"user"`
	Receiver User   `json:"receiver"`
	Reaction string `json:"reaction"`
}

func (*ReactionEvent) Type() string { return TypeReactionEvent }
func (*ReactionEvent) EventName() string { return EventReaction }
func (e *ReactionEvent) Actor() string { return e.User.ID }

// EmoteEvent is an emote, optionally aimed at a receiver.
type EmoteEvent struct {
	User     User   `json:"user"`
	EmoteID  string `json:"emote_id"`
	Receiver *User  `json:"receiver,omitempty"`
}

func (*EmoteEvent) Type() string { return TypeEmoteEvent }
func (*EmoteEvent) EventName() string { return EventEmote }
func (e *EmoteEvent) Actor() string { return e.User.ID }

// TipReactionEvent is a currency tip between users.
type TipReactionEvent struct {
	Sender   User         `json:"sender"`
	Receiver User         `json:"receiver"`
	Item     CurrencyItem `json:"item"`
}

func (*TipReactionEvent) Type() string { return TypeTipReactionEvent }
func (*TipReactionEvent) EventName() string { return EventTip }
func (e *TipReactionEvent) Actor() string { return e.Sender.ID }

// VoiceEvent is a voice chat snapshot.
type VoiceEvent struct {
	Users       []VoiceUser `json:"users"`
	SecondsLeft int         `json:"seconds_left"`
}

func (*VoiceEvent) Type() string { return TypeVoiceEvent }
func (*VoiceEvent) EventName() string { return EventVoice }
func (*VoiceEvent) Actor() string { return "" }

// UserMovedEvent reports a user walking or sitting.
type UserMovedEvent struct {
	User     User     `json:"user"`
	Position Location `json:"position"`
}

func (*UserMovedEvent) Type() string { return TypeUserMovedEvent }
func (*UserMovedEvent) EventName() string { return EventMove }
func (e *UserMovedEvent) Actor() string { return e.User.ID }

// ErrorEvent is a server-side error. RID is set when it answers a request.
type ErrorEvent struct {
	Message string `json:"message"`
	RID     string `json:"rid,omitempty"`
}

func (*ErrorEvent) Type() string { return TypeError }
func (*ErrorEvent) EventName() string { return EventError }
func (*ErrorEvent) Actor() string { return "" }

// RoomModeratedEvent reports a moderation action taken in the room.
type RoomModeratedEvent struct {
	ModeratorID    string `json:"moderatorId"`
	TargetUserID   string `json:"targetUserId"`
	ModerationType string `json:"moderationType"`
	Duration       *int   `json:"duration,omitempty"`
}

func (*RoomModeratedEvent) Type() string { return TypeRoomModeratedEvent }
func (*RoomModeratedEvent) EventName() string { return EventModerate }
func (e *RoomModeratedEvent) Actor() string { return e.ModeratorID }

package protocol

// Request and reply tags.
const (
	TypeKeepaliveRequest       = "KeepaliveRequest"
	TypeKeepaliveResponse      = "KeepaliveResponse"
	TypeChatRequest            = "ChatRequest"
	TypeChatResponse           = "ChatResponse"
	TypeSendMessageRequest     = "SendMessageRequest"
	TypeSendMessageResponse    = "SendMessageResponse"
	TypeGetWalletRequest       = "GetWalletRequest"
	TypeGetWalletResponse      = "GetWalletResponse"
	TypeGetRoomUsersRequest    = "GetRoomUsersRequest"
	TypeGetRoomUsersResponse   = "GetRoomUsersResponse"
	TypeCheckVoiceChatRequest  = "CheckVoiceChatRequest"
	TypeCheckVoiceChatResponse = "CheckVoiceChatResponse"
	TypeEmoteRequest           = "EmoteRequest"
	TypeEmoteResponse          = "EmoteResponse"
	TypeReactionRequest        = "ReactionRequest"
	TypeReactionResponse       = "ReactionResponse"
	TypeFloorHitRequest        = "FloorHitRequest"
	TypeFloorHitResponse       = "FloorHitResponse"
	TypeAnchorHitRequest       = "AnchorHitRequest"
	TypeAnchorHitResponse      = "AnchorHitResponse"
	TypeTeleportRequest        = "TeleportRequest"
	TypeTeleportResponse       = "TeleportResponse"
	TypeModerateRoomRequest    = "ModerateRoomRequest"
	TypeModerateRoomResponse   = "ModerateRoomResponse"
	TypeBuyVoiceTimeRequest    = "BuyVoiceTimeRequest"
	TypeBuyVoiceTimeResponse   = "BuyVoiceTimeResponse"
	TypeBuyRoomBoostRequest    = "BuyRoomBoostRequest"
	TypeBuyRoomBoostResponse   = "BuyRoomBoostResponse"

	TypeGetInventoryRequest         = "GetInventoryRequest"
	TypeGetInventoryResponse        = "GetInventoryResponse"
	TypeSetOutfitRequest            = "SetOutfitRequest"
	TypeSetOutfitResponse           = "SetOutfitResponse"
	TypeBuyItemRequest              = "BuyItemRequest"
	TypeBuyItemResponse             = "BuyItemResponse"
	TypeTipUserRequest              = "TipUserRequest"
	TypeTipUserResponse             = "TipUserResponse"
	TypeMoveUserToRoomRequest       = "MoveUserToRoomRequest"
	TypeMoveUserToRoomResponse      = "MoveUserToRoomResponse"
	TypeInviteSpeakerRequest        = "InviteSpeakerRequest"
	TypeInviteSpeakerResponse       = "InviteSpeakerResponse"
	TypeRemoveSpeakerRequest        = "RemoveSpeakerRequest"
	TypeRemoveSpeakerResponse       = "RemoveSpeakerResponse"
	TypeGetRoomPrivilegeRequest     = "GetRoomPrivilegeRequest"
	TypeGetRoomPrivilegeResponse    = "GetRoomPrivilegeResponse"
	TypeChangeRoomPrivilegeRequest  = "ChangeRoomPrivilegeRequest"
	TypeChangeRoomPrivilegeResponse = "ChangeRoomPrivilegeResponse"
	TypeGetConversationsRequest     = "GetConversationsRequest"
	TypeGetConversationsResponse    = "GetConversationsResponse"
	TypeGetMessagesRequest          = "GetMessagesRequest"
	TypeGetMessagesResponse         = "GetMessagesResponse"
	TypeLeaveConversationRequest    = "LeaveConversationRequest"
	TypeLeaveConversationResponse   = "LeaveConversationResponse"
	TypeGetBackpackRequest          = "GetBackpackRequest"
	TypeGetBackpackResponse         = "GetBackpackResponse"
	TypeGetUserOutfitRequest        = "GetUserOutfitRequest"
	TypeGetUserOutfitResponse       = "GetUserOutfitResponse"
)

// Message is any value carried on the socket. Type returns the `_type` tag.
type Message interface {
	Type() string
}

// Request is a message the gateway answers with a correlated reply.
type Request interface {
	Message
	ReplyType() string
}

// KeepaliveRequest is the heartbeat sent while the socket is open.
type KeepaliveRequest struct{}

func (*KeepaliveRequest) Type() string { return TypeKeepaliveRequest }
func (*KeepaliveRequest) ReplyType() string { return TypeKeepaliveResponse }

// KeepaliveResponse acknowledges a heartbeat.
type KeepaliveResponse struct{}

func (*KeepaliveResponse) Type() string { return TypeKeepaliveResponse }

// ChatRequest posts a room message, or a whisper when WhisperTargetID is set.
type ChatRequest struct {
	Message         string `json:"message" validate:"required"`
	WhisperTargetID string `json:"whisper_target_id,omitempty"`
}

func (*ChatRequest) Type() string { return TypeChatRequest }
func (*ChatRequest) ReplyType() string { return TypeChatResponse }

// ChatResponse acknowledges a chat request.
type ChatResponse struct{}

func (*ChatResponse) Type() string { return TypeChatResponse }

// Direct message kinds.
const (
	MessageKindText   = "text"
	MessageKindInvite = "invite"
)

// SendMessageRequest posts into a direct conversation. An invite carries the
// room id and no content.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Content        string `json:"content" validate:"required_if=Kind text"`
	Kind           string `json:"type" validate:"oneof=text invite"`
	RoomID         string `json:"room_id,omitempty" validate:"required_if=Kind invite"`
}

func (*SendMessageRequest) Type() string { return TypeSendMessageRequest }
func (*SendMessageRequest) ReplyType() string { return TypeSendMessageResponse }

// SendMessageResponse acknowledges a direct message.
type SendMessageResponse struct{}

func (*SendMessageResponse) Type() string { return TypeSendMessageResponse }

// GetWalletRequest asks for the bot's wallet.
type GetWalletRequest struct{}

func (*GetWalletRequest) Type() string { return TypeGetWalletRequest }
func (*GetWalletRequest) ReplyType() string { return TypeGetWalletResponse }

// GetWalletResponse lists the bot's currencies.
type GetWalletResponse struct {
	Content []CurrencyItem `json:"content"`
}

func (*GetWalletResponse) Type() string { return TypeGetWalletResponse }

// Amount returns the balance of the given currency type, or zero.
func (r *GetWalletResponse) Amount(currency string) int64 {
	for _, item := range r.Content {
		if item.Type == currency {
			return item.Amount
		}
	}
	return 0
}

// GetRoomUsersRequest asks for a full room snapshot.
type GetRoomUsersRequest struct{}

func (*GetRoomUsersRequest) Type() string { return TypeGetRoomUsersRequest }
func (*GetRoomUsersRequest) ReplyType() string { return TypeGetRoomUsersResponse }

// GetRoomUsersResponse is a point-in-time listing of room occupants.
type GetRoomUsersResponse struct {
	Content []RoomUser `json:"content"`
}

func (*GetRoomUsersResponse) Type() string { return TypeGetRoomUsersResponse }

// CheckVoiceChatRequest asks for the room's voice chat state.
type CheckVoiceChatRequest struct{}

func (*CheckVoiceChatRequest) Type() string { return TypeCheckVoiceChatRequest }
func (*CheckVoiceChatRequest) ReplyType() string { return TypeCheckVoiceChatResponse }

// CheckVoiceChatResponse reports voice chat time and per-user status.
type CheckVoiceChatResponse struct {
	SecondsLeft  int               `json:"seconds_left"`
	AutoSpeakers []string          `json:"auto_speakers"`
	Users        map[string]string `json:"users"`
}

func (*CheckVoiceChatResponse) Type() string { return TypeCheckVoiceChatResponse }

// EmoteRequest performs an emote, optionally toward a target user.
type EmoteRequest struct {
	EmoteID      string `json:"emote_id" validate:"required"`
	TargetUserID string `json:"target_user_id,omitempty"`
}

func (*EmoteRequest) Type() string { return TypeEmoteRequest }
func (*EmoteRequest) ReplyType() string { return TypeEmoteResponse }

// EmoteResponse acknowledges an emote.
type EmoteResponse struct{}

func (*EmoteResponse) Type() string { return TypeEmoteResponse }

// ReactionRequest sends a reaction to a user.
type ReactionRequest struct {
	Reaction     string `json:"reaction" validate:"oneof=clap heart thumbs wave wink"`
	TargetUserID string `json:"target_user_id" validate:"required"`
}

func (*ReactionRequest) Type() string { return TypeReactionRequest }
func (*ReactionRequest) ReplyType() string { return TypeReactionResponse }

// ReactionResponse acknowledges a reaction.
type ReactionResponse struct{}

func (*ReactionResponse) Type() string { return TypeReactionResponse }

// FloorHitRequest walks the bot to a floor position.
type FloorHitRequest struct {
	Destination Position `json:"destination"`
}

func (*FloorHitRequest) Type() string { return TypeFloorHitRequest }
func (*FloorHitRequest) ReplyType() string { return TypeFloorHitResponse }

// FloorHitResponse acknowledges a walk.
type FloorHitResponse struct{}

func (*FloorHitResponse) Type() string { return TypeFloorHitResponse }

// AnchorHitRequest seats the bot on an anchor.
type AnchorHitRequest struct {
	Anchor Anchor `json:"anchor"`
}

func (*AnchorHitRequest) Type() string { return TypeAnchorHitRequest }
func (*AnchorHitRequest) ReplyType() string { return TypeAnchorHitResponse }

// AnchorHitResponse acknowledges a seat.
type AnchorHitResponse struct{}

func (*AnchorHitResponse) Type() string { return TypeAnchorHitResponse }

// TeleportRequest moves a user to a floor position.
type TeleportRequest struct {
	UserID      string   `json:"user_id" validate:"required"`
	Destination Position `json:"destination"`
}

func (*TeleportRequest) Type() string { return TypeTeleportRequest }
func (*TeleportRequest) ReplyType() string { return TypeTeleportResponse }

// TeleportResponse acknowledges a teleport.
type TeleportResponse struct{}

func (*TeleportResponse) Type() string { return TypeTeleportResponse }

// ModerateRoomRequest applies a moderation action. ActionLength is in seconds
// and only meaningful for ban and mute.
type ModerateRoomRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	Action       string `json:"moderation_action" validate:"oneof=kick ban unban mute"`
	ActionLength *int   `json:"action_length,omitempty" validate:"omitempty,gte=0"`
}

func (*ModerateRoomRequest) Type() string { return TypeModerateRoomRequest }
func (*ModerateRoomRequest) ReplyType() string { return TypeModerateRoomResponse }

// ModerateRoomResponse acknowledges a moderation action.
type ModerateRoomResponse struct{}

func (*ModerateRoomResponse) Type() string { return TypeModerateRoomResponse }

// Payment methods accepted by purchase requests.
const (
	PaymentBotWalletOnly     = "bot_wallet_only"
	PaymentBotWalletPriority = "bot_wallet_priority"
	PaymentUserWalletOnly    = "user_wallet_only"
)

// BuyVoiceTimeRequest buys voice chat time for the room.
type BuyVoiceTimeRequest struct {
	PaymentMethod string `json:"payment_method" validate:"oneof=bot_wallet_only bot_wallet_priority user_wallet_only"`
}

func (*BuyVoiceTimeRequest) Type() string { return TypeBuyVoiceTimeRequest }
func (*BuyVoiceTimeRequest) ReplyType() string { return TypeBuyVoiceTimeResponse }

// BuyVoiceTimeResponse carries "success", "insufficient_funds" or "only_token_bought".
type BuyVoiceTimeResponse struct {
	Result string `json:"result"`
}

func (*BuyVoiceTimeResponse) Type() string { return TypeBuyVoiceTimeResponse }

// BuyRoomBoostRequest buys room boosts.
type BuyRoomBoostRequest struct {
	PaymentMethod string `json:"payment_method" validate:"oneof=bot_wallet_only bot_wallet_priority user_wallet_only"`
	Amount        int    `json:"amount" validate:"gte=1"`
}

func (*BuyRoomBoostRequest) Type() string { return TypeBuyRoomBoostRequest }
func (*BuyRoomBoostRequest) ReplyType() string { return TypeBuyRoomBoostResponse }

// BuyRoomBoostResponse carries the purchase result.
type BuyRoomBoostResponse struct {
	Result string `json:"result"`
}

func (*BuyRoomBoostResponse) Type() string { return TypeBuyRoomBoostResponse }

// GetInventoryRequest asks for the bot's inventory.
type GetInventoryRequest struct{}

func (*GetInventoryRequest) Type() string { return TypeGetInventoryRequest }
func (*GetInventoryRequest) ReplyType() string { return TypeGetInventoryResponse }

// GetInventoryResponse lists the items the bot owns.
type GetInventoryResponse struct {
	Items []Item `json:"items"`
}

func (*GetInventoryResponse) Type() string { return TypeGetInventoryResponse }

// SetOutfitRequest dresses the bot in the given items.
type SetOutfitRequest struct {
	Outfit []Item `json:"outfit" validate:"required,min=1,dive"`
}

func (*SetOutfitRequest) Type() string { return TypeSetOutfitRequest }
func (*SetOutfitRequest) ReplyType() string { return TypeSetOutfitResponse }

// SetOutfitResponse acknowledges an outfit change.
type SetOutfitResponse struct{}

func (*SetOutfitResponse) Type() string { return TypeSetOutfitResponse }

// BuyItemRequest buys a catalogue item with the bot's wallet.
type BuyItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

func (*BuyItemRequest) Type() string { return TypeBuyItemRequest }
func (*BuyItemRequest) ReplyType() string { return TypeBuyItemResponse }

// BuyItemResponse carries "success" or "insufficient_funds".
type BuyItemResponse struct {
	Result string `json:"result"`
}

func (*BuyItemResponse) Type() string { return TypeBuyItemResponse }

// goldBars maps tip amounts to the gold bar item the gateway expects.
var goldBars = map[int]string{
	1:     "gold_bar_1",
	5:     "gold_bar_5",
	10:    "gold_bar_10",
	50:    "gold_bar_50",
	100:   "gold_bar_100",
	500:   "gold_bar_500",
	1000:  "gold_bar_1k",
	5000:  "gold_bar_5000",
	10000: "gold_bar_10k",
}

// GoldBar returns the gold bar item for a tip of amount gold.
func GoldBar(amount int) (string, bool) {
	bar, ok := goldBars[amount]
	return bar, ok
}

// TipUserRequest tips a user one gold bar from the bot's wallet.
type TipUserRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	GoldBar string `json:"gold_bar" validate:"oneof=gold_bar_1 gold_bar_5 gold_bar_10 gold_bar_50 gold_bar_100 gold_bar_500 gold_bar_1k gold_bar_5000 gold_bar_10k"`
}

func (*TipUserRequest) Type() string { return TypeTipUserRequest }
func (*TipUserRequest) ReplyType() string { return TypeTipUserResponse }

// TipUserResponse carries "success" or "insufficient_funds".
type TipUserResponse struct {
	Result string `json:"result"`
}

func (*TipUserResponse) Type() string { return TypeTipUserResponse }

// MoveUserToRoomRequest sends a user to another room. The bot's owner needs
// designer rights there, and the usual room limits apply.
type MoveUserToRoomRequest struct {
	UserID string `json:"user_id" validate:"required"`
	RoomID string `json:"room_id" validate:"required"`
}

func (*MoveUserToRoomRequest) Type() string { return TypeMoveUserToRoomRequest }
func (*MoveUserToRoomRequest) ReplyType() string { return TypeMoveUserToRoomResponse }

// MoveUserToRoomResponse acknowledges a room move.
type MoveUserToRoomResponse struct{}

func (*MoveUserToRoomResponse) Type() string { return TypeMoveUserToRoomResponse }

// InviteSpeakerRequest invites a user to speak in voice chat.
type InviteSpeakerRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (*InviteSpeakerRequest) Type() string { return TypeInviteSpeakerRequest }
func (*InviteSpeakerRequest) ReplyType() string { return TypeInviteSpeakerResponse }

// InviteSpeakerResponse acknowledges a speaker invite.
type InviteSpeakerResponse struct{}

func (*InviteSpeakerResponse) Type() string { return TypeInviteSpeakerResponse }

// RemoveSpeakerRequest removes a user from the voice chat speakers.
type RemoveSpeakerRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (*RemoveSpeakerRequest) Type() string { return TypeRemoveSpeakerRequest }
func (*RemoveSpeakerRequest) ReplyType() string { return TypeRemoveSpeakerResponse }

// RemoveSpeakerResponse acknowledges a speaker removal.
type RemoveSpeakerResponse struct{}

func (*RemoveSpeakerResponse) Type() string { return TypeRemoveSpeakerResponse }

// GetRoomPrivilegeRequest asks for a user's room privileges.
type GetRoomPrivilegeRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (*GetRoomPrivilegeRequest) Type() string { return TypeGetRoomPrivilegeRequest }
func (*GetRoomPrivilegeRequest) ReplyType() string { return TypeGetRoomPrivilegeResponse }

// GetRoomPrivilegeResponse carries the user's privileges.
type GetRoomPrivilegeResponse struct {
	Content RoomPermissions `json:"content"`
}

func (*GetRoomPrivilegeResponse) Type() string { return TypeGetRoomPrivilegeResponse }

// ChangeRoomPrivilegeRequest grants or revokes room privileges.
type ChangeRoomPrivilegeRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	Permissions RoomPermissions `json:"permissions"`
}

func (*ChangeRoomPrivilegeRequest) Type() string { return TypeChangeRoomPrivilegeRequest }
func (*ChangeRoomPrivilegeRequest) ReplyType() string { return TypeChangeRoomPrivilegeResponse }

// ChangeRoomPrivilegeResponse acknowledges a privilege change.
type ChangeRoomPrivilegeResponse struct{}

func (*ChangeRoomPrivilegeResponse) Type() string { return TypeChangeRoomPrivilegeResponse }

// GetConversationsRequest pages through the bot's direct conversations, at
// most 20 per reply. LastID continues after a previous page.
type GetConversationsRequest struct {
	NotJoined bool   `json:"not_joined"`
	LastID    string `json:"last_id,omitempty"`
}

func (*GetConversationsRequest) Type() string { return TypeGetConversationsRequest }
func (*GetConversationsRequest) ReplyType() string { return TypeGetConversationsResponse }

// GetConversationsResponse is one page of conversations plus the count the
// bot has not joined.
type GetConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	NotJoined     int            `json:"not_joined"`
}

func (*GetConversationsResponse) Type() string { return TypeGetConversationsResponse }

// GetMessagesRequest pages through a conversation, at most 20 messages per
// reply. LastMessageID continues after a previous page.
type GetMessagesRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	LastMessageID  string `json:"last_message_id,omitempty"`
}

func (*GetMessagesRequest) Type() string { return TypeGetMessagesRequest }
func (*GetMessagesRequest) ReplyType() string { return TypeGetMessagesResponse }

// GetMessagesResponse is one page of messages.
type GetMessagesResponse struct {
	Messages []DirectMessage `json:"messages"`
}

func (*GetMessagesResponse) Type() string { return TypeGetMessagesResponse }

// LeaveConversationRequest leaves a direct conversation.
type LeaveConversationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

func (*LeaveConversationRequest) Type() string { return TypeLeaveConversationRequest }
func (*LeaveConversationRequest) ReplyType() string { return TypeLeaveConversationResponse }

// LeaveConversationResponse acknowledges leaving a conversation.
type LeaveConversationResponse struct{}

func (*LeaveConversationResponse) Type() string { return TypeLeaveConversationResponse }

// GetBackpackRequest asks for a user's world backpack.
type GetBackpackRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (*GetBackpackRequest) Type() string { return TypeGetBackpackRequest }
func (*GetBackpackRequest) ReplyType() string { return TypeGetBackpackResponse }

// GetBackpackResponse counts the items in the backpack by item id.
type GetBackpackResponse struct {
	Backpack map[string]int64 `json:"backpack"`
}

func (*GetBackpackResponse) Type() string { return TypeGetBackpackResponse }

// GetUserOutfitRequest asks what a user is wearing.
type GetUserOutfitRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (*GetUserOutfitRequest) Type() string { return TypeGetUserOutfitRequest }
func (*GetUserOutfitRequest) ReplyType() string { return TypeGetUserOutfitResponse }

// GetUserOutfitResponse lists the user's worn items.
type GetUserOutfitResponse struct {
	Outfit []Item `json:"outfit"`
}

func (*GetUserOutfitResponse) Type() string { return TypeGetUserOutfitResponse }

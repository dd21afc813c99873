// Package actions provides validated, typed operations on the room.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// ErrInvalidArgument wraps payload validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

var validate = validator.New()

// Sender delivers messages to the gateway.
type Sender interface {
	gateway.Caller
	Send(ctx context.Context, msg protocol.Message) error
}

// Actions issues room operations through a Sender.
type Actions struct {
	sender Sender
}

// New creates Actions bound to sender.
func New(sender Sender) *Actions {
	return &Actions{sender: sender}
}

func check(msg protocol.Message) error {
	if err := validate.Struct(msg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, msg.Type(), err)
	}
	return nil
}

func (a *Actions) send(ctx context.Context, msg protocol.Message) error {
	if err := check(msg); err != nil {
		return err
	}
	return a.sender.Send(ctx, msg)
}

func call[R protocol.Message](ctx context.Context, a *Actions, req protocol.Request) (R, error) {
	if err := check(req); err != nil {
		var zero R
		return zero, err
	}
	return gateway.Call[R](ctx, a.sender, req)
}

// Say posts a message to the room chat.
func (a *Actions) Say(ctx context.Context, message string) error {
	return a.send(ctx, &protocol.ChatRequest{Message: message})
}

// Whisper posts a message only userID can see.
//
// Precondition: userID must be non-empty.
func (a *Actions) Whisper(ctx context.Context, userID, message string) error {
	if userID == "" {
		return fmt.Errorf("%w: whisper target must not be empty", ErrInvalidArgument)
	}
	return a.send(ctx, &protocol.ChatRequest{Message: message, WhisperTargetID: userID})
}

// Direct sends a text message into a direct conversation.
func (a *Actions) Direct(ctx context.Context, conversationID, content string) error {
	_, err := call[*protocol.SendMessageResponse](ctx, a, &protocol.SendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
		Kind:           protocol.MessageKindText,
	})
	return err
}

// Invite sends a room invite into a direct conversation.
func (a *Actions) Invite(ctx context.Context, conversationID, roomID string) error {
	_, err := call[*protocol.SendMessageResponse](ctx, a, &protocol.SendMessageRequest{
		ConversationID: conversationID,
		Kind:           protocol.MessageKindInvite,
		RoomID:         roomID,
	})
	return err
}

// Emote performs an emote, aimed at targetUserID when it is non-empty.
func (a *Actions) Emote(ctx context.Context, emoteID, targetUserID string) error {
	return a.send(ctx, &protocol.EmoteRequest{EmoteID: emoteID, TargetUserID: targetUserID})
}

// React sends one of the fixed reactions to a user.
func (a *Actions) React(ctx context.Context, reaction, targetUserID string) error {
	return a.send(ctx, &protocol.ReactionRequest{Reaction: reaction, TargetUserID: targetUserID})
}

// Walk moves the bot to a floor position.
func (a *Actions) Walk(ctx context.Context, x, y, z float64, facing string) error {
	if facing == "" {
		facing = protocol.DefaultFacing
	}
	return a.send(ctx, &protocol.FloorHitRequest{
		Destination: protocol.Position{X: x, Y: y, Z: z, Facing: facing},
	})
}

// Sit seats the bot on an entity anchor.
func (a *Actions) Sit(ctx context.Context, entityID string, anchorIndex int) error {
	return a.send(ctx, &protocol.AnchorHitRequest{
		Anchor: protocol.Anchor{EntityID: entityID, AnchorIndex: anchorIndex},
	})
}

// Teleport moves another user to a floor position. It needs moderator rights.
func (a *Actions) Teleport(ctx context.Context, userID string, x, y, z float64, facing string) error {
	if facing == "" {
		facing = protocol.DefaultFacing
	}
	_, err := call[*protocol.TeleportResponse](ctx, a, &protocol.TeleportRequest{
		UserID:      userID,
		Destination: protocol.Position{X: x, Y: y, Z: z, Facing: facing},
	})
	return err
}

// Moderate kicks, bans, unbans or mutes a user. length is in seconds and is
// sent only when positive.
func (a *Actions) Moderate(ctx context.Context, userID, action string, length int) error {
	req := &protocol.ModerateRoomRequest{UserID: userID, Action: action}
	if length > 0 {
		req.ActionLength = &length
	}
	_, err := call[*protocol.ModerateRoomResponse](ctx, a, req)
	return err
}

// Wallet returns the bot's currencies.
func (a *Actions) Wallet(ctx context.Context) ([]protocol.CurrencyItem, error) {
	resp, err := call[*protocol.GetWalletResponse](ctx, a, &protocol.GetWalletRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// BuyVoiceTime buys voice chat time and returns the purchase result.
func (a *Actions) BuyVoiceTime(ctx context.Context, paymentMethod string) (string, error) {
	resp, err := call[*protocol.BuyVoiceTimeResponse](ctx, a, &protocol.BuyVoiceTimeRequest{PaymentMethod: paymentMethod})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// BuyRoomBoost buys amount room boosts and returns the purchase result.
func (a *Actions) BuyRoomBoost(ctx context.Context, paymentMethod string, amount int) (string, error) {
	resp, err := call[*protocol.BuyRoomBoostResponse](ctx, a, &protocol.BuyRoomBoostRequest{
		PaymentMethod: paymentMethod,
		Amount:        amount,
	})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// VoiceStatus reports the room's voice chat state.
func (a *Actions) VoiceStatus(ctx context.Context) (*protocol.CheckVoiceChatResponse, error) {
	return call[*protocol.CheckVoiceChatResponse](ctx, a, &protocol.CheckVoiceChatRequest{})
}

// RoomUsers fetches a fresh listing of the room.
func (a *Actions) RoomUsers(ctx context.Context) ([]protocol.RoomUser, error) {
	resp, err := call[*protocol.GetRoomUsersResponse](ctx, a, &protocol.GetRoomUsersRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// Inventory lists the items the bot owns.
func (a *Actions) Inventory(ctx context.Context) ([]protocol.Item, error) {
	resp, err := call[*protocol.GetInventoryResponse](ctx, a, &protocol.GetInventoryRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SetOutfit dresses the bot in outfit.
//
// Precondition: outfit must hold at least one item, each with a type and id.
func (a *Actions) SetOutfit(ctx context.Context, outfit []protocol.Item) error {
	_, err := call[*protocol.SetOutfitResponse](ctx, a, &protocol.SetOutfitRequest{Outfit: outfit})
	return err
}

// BuyItem buys a catalogue item and returns the purchase result.
func (a *Actions) BuyItem(ctx context.Context, itemID string) (string, error) {
	resp, err := call[*protocol.BuyItemResponse](ctx, a, &protocol.BuyItemRequest{ItemID: itemID})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Tip gives userID a gold bar worth amount and returns the result.
//
// Precondition: amount must be one of 1, 5, 10, 50, 100, 500, 1000, 5000 or 10000.
func (a *Actions) Tip(ctx context.Context, userID string, amount int) (string, error) {
	bar, ok := protocol.GoldBar(amount)
	if !ok {
		return "", fmt.Errorf("%w: no gold bar worth %d", ErrInvalidArgument, amount)
	}
	resp, err := call[*protocol.TipUserResponse](ctx, a, &protocol.TipUserRequest{UserID: userID, GoldBar: bar})
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// MoveToRoom sends userID to roomID.
func (a *Actions) MoveToRoom(ctx context.Context, userID, roomID string) error {
	_, err := call[*protocol.MoveUserToRoomResponse](ctx, a, &protocol.MoveUserToRoomRequest{UserID: userID, RoomID: roomID})
	return err
}

// InviteSpeaker invites userID to speak in voice chat.
func (a *Actions) InviteSpeaker(ctx context.Context, userID string) error {
	_, err := call[*protocol.InviteSpeakerResponse](ctx, a, &protocol.InviteSpeakerRequest{UserID: userID})
	return err
}

// RemoveSpeaker takes userID off the voice chat speakers.
func (a *Actions) RemoveSpeaker(ctx context.Context, userID string) error {
	_, err := call[*protocol.RemoveSpeakerResponse](ctx, a, &protocol.RemoveSpeakerRequest{UserID: userID})
	return err
}

// Privileges returns userID's room privileges.
func (a *Actions) Privileges(ctx context.Context, userID string) (protocol.RoomPermissions, error) {
	resp, err := call[*protocol.GetRoomPrivilegeResponse](ctx, a, &protocol.GetRoomPrivilegeRequest{UserID: userID})
	if err != nil {
		return protocol.RoomPermissions{}, err
	}
	return resp.Content, nil
}

// ChangePrivileges applies perms to userID. Nil fields are left as they are.
//
// Precondition: perms must set at least one privilege.
func (a *Actions) ChangePrivileges(ctx context.Context, userID string, perms protocol.RoomPermissions) error {
	if perms.Moderator == nil && perms.Designer == nil {
		return fmt.Errorf("%w: no privilege to change", ErrInvalidArgument)
	}
	_, err := call[*protocol.ChangeRoomPrivilegeResponse](ctx, a, &protocol.ChangeRoomPrivilegeRequest{
		UserID:      userID,
		Permissions: perms,
	})
	return err
}

// SetModerator grants or revokes moderator rights.
func (a *Actions) SetModerator(ctx context.Context, userID string, on bool) error {
	return a.ChangePrivileges(ctx, userID, protocol.RoomPermissions{Moderator: &on})
}

// SetDesigner grants or revokes designer rights.
func (a *Actions) SetDesigner(ctx context.Context, userID string, on bool) error {
	return a.ChangePrivileges(ctx, userID, protocol.RoomPermissions{Designer: &on})
}

// Conversations returns one page of direct conversations. Pass the last id
// of the previous page as lastID to continue; notJoined limits the page to
// conversations the bot has not joined.
func (a *Actions) Conversations(ctx context.Context, notJoined bool, lastID string) (*protocol.GetConversationsResponse, error) {
	return call[*protocol.GetConversationsResponse](ctx, a, &protocol.GetConversationsRequest{
		NotJoined: notJoined,
		LastID:    lastID,
	})
}

// Messages returns one page of a conversation's messages.
func (a *Actions) Messages(ctx context.Context, conversationID, lastMessageID string) ([]protocol.DirectMessage, error) {
	resp, err := call[*protocol.GetMessagesResponse](ctx, a, &protocol.GetMessagesRequest{
		ConversationID: conversationID,
		LastMessageID:  lastMessageID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// LeaveConversation leaves a direct conversation.
func (a *Actions) LeaveConversation(ctx context.Context, conversationID string) error {
	_, err := call[*protocol.LeaveConversationResponse](ctx, a, &protocol.LeaveConversationRequest{ConversationID: conversationID})
	return err
}

// Backpack returns userID's world backpack as item counts by id.
func (a *Actions) Backpack(ctx context.Context, userID string) (map[string]int64, error) {
	resp, err := call[*protocol.GetBackpackResponse](ctx, a, &protocol.GetBackpackRequest{UserID: userID})
	if err != nil {
		return nil, err
	}
	return resp.Backpack, nil
}

// UserOutfit lists what userID is wearing.
func (a *Actions) UserOutfit(ctx context.Context, userID string) ([]protocol.Item, error) {
	resp, err := call[*protocol.GetUserOutfitResponse](ctx, a, &protocol.GetUserOutfitRequest{UserID: userID})
	if err != nil {
		return nil, err
	}
	return resp.Outfit, nil
}

// Package protocol defines the gateway wire format: the closed set of tagged
// message variants, the codec that maps tags to Go types, the intent table,
// and correlation id generation.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	typeField = "_type"
	ridField  = "rid"
)

// ErrUnknownType is returned when a message carries a tag the codec does not know.
var ErrUnknownType = errors.New("unknown message type")

// registry is the single tag → variant mapping. Every Message implementation
// in this package must appear here; registry_test.go enforces it.
var registry = map[string]func() Message{
	TypeKeepaliveRequest:       func() Message { return &KeepaliveRequest{} },
	TypeKeepaliveResponse:      func() Message { return &KeepaliveResponse{} },
	TypeChatRequest:            func() Message { return &ChatRequest{} },
	TypeChatResponse:           func() Message { return &ChatResponse{} },
	TypeSendMessageRequest:     func() Message { return &SendMessageRequest{} },
	TypeSendMessageResponse:    func() Message { return &SendMessageResponse{} },
	TypeGetWalletRequest:       func() Message { return &GetWalletRequest{} },
	TypeGetWalletResponse:      func() Message { return &GetWalletResponse{} },
	TypeGetRoomUsersRequest:    func() Message { return &GetRoomUsersRequest{} },
	TypeGetRoomUsersResponse:   func() Message { return &GetRoomUsersResponse{} },
	TypeCheckVoiceChatRequest:  func() Message { return &CheckVoiceChatRequest{} },
	TypeCheckVoiceChatResponse: func() Message { return &CheckVoiceChatResponse{} },
	TypeEmoteRequest:           func() Message { return &EmoteRequest{} },
	TypeEmoteResponse:          func() Message { return &EmoteResponse{} },
	TypeReactionRequest:        func() Message { return &ReactionRequest{} },
	TypeReactionResponse:       func() Message { return &ReactionResponse{} },
	TypeFloorHitRequest:        func() Message { return &FloorHitRequest{} },
	TypeFloorHitResponse:       func() Message { return &FloorHitResponse{} },
	TypeAnchorHitRequest:       func() Message { return &AnchorHitRequest{} },
	TypeAnchorHitResponse:      func() Message { return &AnchorHitResponse{} },
	TypeTeleportRequest:        func() Message { return &TeleportRequest{} },
	TypeTeleportResponse:       func() Message { return &TeleportResponse{} },
	TypeModerateRoomRequest:    func() Message { return &ModerateRoomRequest{} },
	TypeModerateRoomResponse:   func() Message { return &ModerateRoomResponse{} },
	TypeBuyVoiceTimeRequest:    func() Message { return &BuyVoiceTimeRequest{} },
	TypeBuyVoiceTimeResponse:   func() Message { return &BuyVoiceTimeResponse{} },
	TypeBuyRoomBoostRequest:    func() Message { return &BuyRoomBoostRequest{} },
	TypeBuyRoomBoostResponse:   func() Message { return &BuyRoomBoostResponse{} },

	TypeGetInventoryRequest:         func() Message { return &GetInventoryRequest{} },
	TypeGetInventoryResponse:        func() Message { return &GetInventoryResponse{} },
	TypeSetOutfitRequest:            func() Message { return &SetOutfitRequest{} },
	TypeSetOutfitResponse:           func() Message { return &SetOutfitResponse{} },
	TypeBuyItemRequest:              func() Message { return &BuyItemRequest{} },
	TypeBuyItemResponse:             func() Message { return &BuyItemResponse{} },
	TypeTipUserRequest:              func() Message { return &TipUserRequest{} },
	TypeTipUserResponse:             func() Message { return &TipUserResponse{} },
	TypeMoveUserToRoomRequest:       func() Message { return &MoveUserToRoomRequest{} },
	TypeMoveUserToRoomResponse:      func() Message { return &MoveUserToRoomResponse{} },
	TypeInviteSpeakerRequest:        func() Message { return &InviteSpeakerRequest{} },
	TypeInviteSpeakerResponse:       func() Message { return &InviteSpeakerResponse{} },
	TypeRemoveSpeakerRequest:        func() Message { return &RemoveSpeakerRequest{} },
	TypeRemoveSpeakerResponse:       func() Message { return &RemoveSpeakerResponse{} },
	TypeGetRoomPrivilegeRequest:     func() Message { return &GetRoomPrivilegeRequest{} },
	TypeGetRoomPrivilegeResponse:    func() Message { return &GetRoomPrivilegeResponse{} },
	TypeChangeRoomPrivilegeRequest:  func() Message { return &ChangeRoomPrivilegeRequest{} },
	TypeChangeRoomPrivilegeResponse: func() Message { return &ChangeRoomPrivilegeResponse{} },
	TypeGetConversationsRequest:     func() Message { return &GetConversationsRequest{} },
	TypeGetConversationsResponse:    func() Message { return &GetConversationsResponse{} },
	TypeGetMessagesRequest:          func() Message { return &GetMessagesRequest{} },
	TypeGetMessagesResponse:         func() Message { return &GetMessagesResponse{} },
	TypeLeaveConversationRequest:    func() Message { return &LeaveConversationRequest{} },
	TypeLeaveConversationResponse:   func() Message { return &LeaveConversationResponse{} },
	TypeGetBackpackRequest:          func() Message { return &GetBackpackRequest{} },
	TypeGetBackpackResponse:         func() Message { return &GetBackpackResponse{} },
	TypeGetUserOutfitRequest:        func() Message { return &GetUserOutfitRequest{} },
	TypeGetUserOutfitResponse:       func() Message { return &GetUserOutfitResponse{} },

	TypeSessionMetadata:    func() Message { return &SessionMetadata{} },
	TypeChatEvent:          func() Message { return &ChatEvent{} },
	TypeMessageEvent:       func() Message { return &MessageEvent{} },
	TypeUserJoinedEvent:    func() Message { return &UserJoinedEvent{} },
	TypeUserLeftEvent:      func() Message { return &UserLeftEvent{} },
	TypeReactionEvent:      func() Message { return &ReactionEvent{} },
	TypeEmoteEvent:         func() Message { return &EmoteEvent{} },
	TypeTipReactionEvent:   func() Message { return &TipReactionEvent{} },
	TypeVoiceEvent:         func() Message { return &VoiceEvent{} },
	TypeUserMovedEvent:     func() Message { return &UserMovedEvent{} },
	TypeError:              func() Message { return &ErrorEvent{} },
	TypeRoomModeratedEvent: func() Message { return &RoomModeratedEvent{} },
}

// Known reports whether tag names a registered variant.
func Known(tag string) bool {
	_, ok := registry[tag]
	return ok
}

// Encode serialises msg with its `_type` tag and, when rid is non-empty, the
// correlation field.
//
// Precondition: msg must be non-nil.
// Postcondition: Returns a JSON object or a non-nil error.
func Encode(msg Message, rid string) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}
	body, err = sjson.SetBytes(body, typeField, msg.Type())
	if err != nil {
		return nil, fmt.Errorf("tagging %s: %w", msg.Type(), err)
	}
	if rid != "" {
		body, err = sjson.SetBytes(body, ridField, rid)
		if err != nil {
			return nil, fmt.Errorf("correlating %s: %w", msg.Type(), err)
		}
	}
	return body, nil
}

// PeekType returns the `_type` tag of raw without decoding the payload.
func PeekType(raw []byte) string {
	return gjson.GetBytes(raw, typeField).String()
}

// PeekRID returns the correlation id of raw, or "" when absent.
func PeekRID(raw []byte) string {
	return gjson.GetBytes(raw, ridField).String()
}

// Decode parses raw into the variant named by its `_type` tag.
//
// Postcondition: Returns ErrUnknownType (wrapped) for unregistered or missing tags.
func Decode(raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("decoding message: invalid JSON")
	}
	tag := PeekType(raw)
	ctor, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("decoding %q: %w", tag, ErrUnknownType)
	}
	msg := ctor()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", tag, err)
	}
	return msg, nil
}

// DecodeEvent decodes raw and asserts it is a server push.
func DecodeEvent(raw []byte) (Event, error) {
	msg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	ev, ok := msg.(Event)
	if !ok {
		return nil, fmt.Errorf("%s is not an event", msg.Type())
	}
	return ev, nil
}

package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

func TestEncode_TagsAndCorrelates(t *testing.T) {
	raw, err := protocol.Encode(&protocol.GetWalletRequest{}, "abcd1234")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_type":"GetWalletRequest","rid":"abcd1234"}`, string(raw))
}

func TestEncode_NoRID(t *testing.T) {
	raw, err := protocol.Encode(&protocol.ChatRequest{Message: "hi"}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_type":"ChatRequest","message":"hi"}`, string(raw))
}

func TestEncode_Keepalive(t *testing.T) {
	raw, err := protocol.Encode(&protocol.KeepaliveRequest{}, "K33p4l1v")
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeKeepaliveRequest, protocol.PeekType(raw))
	assert.Equal(t, "K33p4l1v", protocol.PeekRID(raw))
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"_type":"NoSuchThing"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrUnknownType))

	_, err = protocol.Decode([]byte(`{"message":"untagged"}`))
	assert.True(t, errors.Is(err, protocol.ErrUnknownType))
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"_type":`))
	assert.Error(t, err)
}

func TestDecode_ChatEventStringAndObjectBodies(t *testing.T) {
	ev, err := protocol.DecodeEvent([]byte(`{"_type":"ChatEvent","user":{"id":"u1","username":"alice"},"message":"hello","whisper":false}`))
	require.NoError(t, err)
	chat := ev.(*protocol.ChatEvent)
	assert.Equal(t, protocol.ChatText("hello"), chat.Message)
	assert.Equal(t, protocol.EventChat, chat.EventName())
	assert.Equal(t, "u1", chat.Actor())

	ev, err = protocol.DecodeEvent([]byte(`{"_type":"ChatEvent","user":{"id":"u2","username":"bob"},"message":{"text":"psst"},"whisper":true}`))
	require.NoError(t, err)
	chat = ev.(*protocol.ChatEvent)
	assert.Equal(t, protocol.ChatText("psst"), chat.Message)
	assert.Equal(t, protocol.EventWhisper, chat.EventName())
}

func TestDecode_JoinWithPosition(t *testing.T) {
	ev, err := protocol.DecodeEvent([]byte(`{"_type":"UserJoinedEvent","user":{"id":"u1","username":"alice"},"position":{"x":1,"y":2,"z":0,"facing":"FrontLeft"}}`))
	require.NoError(t, err)
	join := ev.(*protocol.UserJoinedEvent)
	require.NotNil(t, join.Position.Position)
	assert.Nil(t, join.Position.Anchor)
	assert.Equal(t, protocol.Position{X: 1, Y: 2, Z: 0, Facing: "FrontLeft"}, *join.Position.Position)
}

func TestDecode_MoveToAnchor(t *testing.T) {
	ev, err := protocol.DecodeEvent([]byte(`{"_type":"UserMovedEvent","user":{"id":"u1","username":"alice"},"position":{"entity_id":"chair-7","anchor_ix":1}}`))
	require.NoError(t, err)
	move := ev.(*protocol.UserMovedEvent)
	require.NotNil(t, move.Position.Anchor)
	assert.Equal(t, "chair-7", move.Position.Anchor.EntityID)
	assert.Equal(t, 1, move.Position.Anchor.AnchorIndex)
}

func TestLocation_DefaultFacing(t *testing.T) {
	var loc protocol.Location
	require.NoError(t, json.Unmarshal([]byte(`{"x":3,"y":0,"z":4}`), &loc))
	assert.Equal(t, protocol.DefaultFacing, loc.Position.Facing)
}

func TestLocation_Unrecognised(t *testing.T) {
	var loc protocol.Location
	assert.Error(t, json.Unmarshal([]byte(`{"q":1}`), &loc))
}

func TestLocation_MarshalRoundTripsVariant(t *testing.T) {
	raw, err := json.Marshal(protocol.OnAnchor("seat", 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity_id":"seat","anchor_ix":2}`, string(raw))

	raw, err = json.Marshal(protocol.At(1, 2, 3, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2,"z":3,"facing":"FrontRight"}`, string(raw))
}

func TestDecode_RoomUsersPairs(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"_type":"GetRoomUsersResponse","rid":"r1","content":[
		[{"id":"u1","username":"alice"},{"x":1,"y":0,"z":1,"facing":"BackLeft"}],
		[{"id":"u2","username":"bob"},{"entity_id":"sofa","anchor_ix":0}]
	]}`))
	require.NoError(t, err)
	resp := msg.(*protocol.GetRoomUsersResponse)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "alice", resp.Content[0].User.Username)
	assert.Equal(t, "BackLeft", resp.Content[0].Location.Position.Facing)
	assert.Equal(t, "sofa", resp.Content[1].Location.Anchor.EntityID)
}

func TestDecode_VoiceEvent(t *testing.T) {
	ev, err := protocol.DecodeEvent([]byte(`{"_type":"VoiceEvent","users":[[{"id":"u1","username":"alice"},"voice"],[{"id":"u2","username":"bob"},"muted"]],"seconds_left":120}`))
	require.NoError(t, err)
	voice := ev.(*protocol.VoiceEvent)
	assert.Equal(t, 120, voice.SecondsLeft)
	require.Len(t, voice.Users, 2)
	assert.Equal(t, "muted", voice.Users[1].Status)
	assert.Equal(t, "", voice.Actor())
}

func TestDecode_WalletAmount(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"_type":"GetWalletResponse","content":[{"type":"gold","amount":250},{"type":"room_boost_tokens","amount":2}]}`))
	require.NoError(t, err)
	wallet := msg.(*protocol.GetWalletResponse)
	assert.Equal(t, int64(250), wallet.Amount("gold"))
	assert.Equal(t, int64(0), wallet.Amount("room_voice_tokens"))
}

func TestDecodeEvent_RejectsReplies(t *testing.T) {
	_, err := protocol.DecodeEvent([]byte(`{"_type":"ChatResponse"}`))
	assert.Error(t, err)
}

func TestDecode_ErrorEventCarriesRID(t *testing.T) {
	ev, err := protocol.DecodeEvent([]byte(`{"_type":"Error","message":"rate limited","rid":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", ev.(*protocol.ErrorEvent).RID)
	assert.Equal(t, protocol.EventError, ev.EventName())
}

func TestDecode_ConversationsPage(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"_type":"GetConversationsResponse","rid":"r1","not_joined":3,
		"conversations":[{"id":"c1","did_join":true,"unread_count":2,"muted":false,"member_ids":["u1","bot"],
		"last_message":{"message_id":"m9","conversation_id":"c1","createdAt":"2024-05-01T10:00:00Z","content":"yo","sender_id":"u1","category":"text"}}]}`))
	require.NoError(t, err)
	page := msg.(*protocol.GetConversationsResponse)
	assert.Equal(t, 3, page.NotJoined)
	require.Len(t, page.Conversations, 1)
	conv := page.Conversations[0]
	assert.True(t, conv.DidJoin)
	assert.Equal(t, []string{"u1", "bot"}, conv.MemberIDs)
	require.NotNil(t, conv.LastMessage)
	require.NotNil(t, conv.LastMessage.CreatedAt)
	assert.Equal(t, 2024, conv.LastMessage.CreatedAt.Year())
}

func TestEncode_ChangeRoomPrivilegeOmitsUnsetFields(t *testing.T) {
	on := true
	raw, err := protocol.Encode(&protocol.ChangeRoomPrivilegeRequest{
		UserID:      "u1",
		Permissions: protocol.RoomPermissions{Moderator: &on},
	}, "abcd1234")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_type":"ChangeRoomPrivilegeRequest","rid":"abcd1234","user_id":"u1","permissions":{"moderator":true}}`, string(raw))
}

func TestGoldBar(t *testing.T) {
	bar, ok := protocol.GoldBar(10000)
	assert.True(t, ok)
	assert.Equal(t, "gold_bar_10k", bar)
	_, ok = protocol.GoldBar(2)
	assert.False(t, ok)
}

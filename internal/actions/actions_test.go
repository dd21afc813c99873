package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/roomlink/internal/actions"
	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
)

type fakeSender struct {
	sent    []protocol.Message
	called  []protocol.Request
	replies map[string]protocol.Message
	err     error
}

func (f *fakeSender) Send(_ context.Context, msg protocol.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeSender) Call(_ context.Context, req protocol.Request) (protocol.Message, error) {
	f.called = append(f.called, req)
	if f.err != nil {
		return nil, f.err
	}
	if reply, ok := f.replies[req.ReplyType()]; ok {
		return reply, nil
	}
	return protocol.Decode([]byte(`{"_type":"` + req.ReplyType() + `"}`))
}

func TestSayAndWhisper(t *testing.T) {
	s := &fakeSender{}
	a := actions.New(s)

	require.NoError(t, a.Say(context.Background(), "hello room"))
	require.NoError(t, a.Whisper(context.Background(), "u1", "psst"))

	require.Len(t, s.sent, 2)
	assert.Equal(t, &protocol.ChatRequest{Message: "hello room"}, s.sent[0])
	assert.Equal(t, &protocol.ChatRequest{Message: "psst", WhisperTargetID: "u1"}, s.sent[1])
}

func TestSay_EmptyMessageRejected(t *testing.T) {
	s := &fakeSender{}
	err := actions.New(s).Say(context.Background(), "")

	require.ErrorIs(t, err, actions.ErrInvalidArgument)
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
	assert.Empty(t, s.sent)
}

func TestWhisper_RequiresTarget(t *testing.T) {
	err := actions.New(&fakeSender{}).Whisper(context.Background(), "", "hi")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
}

func TestReact_OnlyKnownReactions(t *testing.T) {
	s := &fakeSender{}
	a := actions.New(s)

	require.NoError(t, a.React(context.Background(), "wink", "u1"))
	assert.ErrorIs(t, a.React(context.Background(), "shrug", "u1"), actions.ErrInvalidArgument)
	assert.ErrorIs(t, a.React(context.Background(), "heart", ""), actions.ErrInvalidArgument)
	assert.Len(t, s.sent, 1)
}

func TestWalk_DefaultsFacing(t *testing.T) {
	s := &fakeSender{}
	a := actions.New(s)

	require.NoError(t, a.Walk(context.Background(), 3, 0, 5, ""))
	req := s.sent[0].(*protocol.FloorHitRequest)
	assert.Equal(t, protocol.DefaultFacing, req.Destination.Facing)

	assert.ErrorIs(t, a.Walk(context.Background(), 0, 0, 0, "Sideways"), actions.ErrInvalidArgument)
}

func TestSit_RequiresEntity(t *testing.T) {
	a := actions.New(&fakeSender{})
	assert.ErrorIs(t, a.Sit(context.Background(), "", 0), actions.ErrInvalidArgument)
	assert.ErrorIs(t, a.Sit(context.Background(), "sofa", -1), actions.ErrInvalidArgument)
	assert.NoError(t, a.Sit(context.Background(), "sofa", 1))
}

func TestDirectAndInvite(t *testing.T) {
	s := &fakeSender{}
	a := actions.New(s)

	require.NoError(t, a.Direct(context.Background(), "conv-1", "hey"))
	require.NoError(t, a.Invite(context.Background(), "conv-1", "room-9"))
	assert.ErrorIs(t, a.Direct(context.Background(), "conv-1", ""), actions.ErrInvalidArgument)
	assert.ErrorIs(t, a.Invite(context.Background(), "conv-1", ""), actions.ErrInvalidArgument)

	require.Len(t, s.called, 2)
	invite := s.called[1].(*protocol.SendMessageRequest)
	assert.Equal(t, protocol.MessageKindInvite, invite.Kind)
	assert.Equal(t, "room-9", invite.RoomID)
}

func TestModerate(t *testing.T) {
	s := &fakeSender{}
	a := actions.New(s)

	require.NoError(t, a.Moderate(context.Background(), "u1", "mute", 60))
	require.NoError(t, a.Moderate(context.Background(), "u1", "kick", 0))
	assert.ErrorIs(t, a.Moderate(context.Background(), "u1", "banish", 0), actions.ErrInvalidArgument)

	mute := s.called[0].(*protocol.ModerateRoomRequest)
	require.NotNil(t, mute.ActionLength)
	assert.Equal(t, 60, *mute.ActionLength)
	assert.Nil(t, s.called[1].(*protocol.ModerateRoomRequest).ActionLength)
}

func TestWalletAndPurchases(t *testing.T) {
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeGetWalletResponse:    &protocol.GetWalletResponse{Content: []protocol.CurrencyItem{{Type: "gold", Amount: 9}}},
		protocol.TypeBuyRoomBoostResponse: &protocol.BuyRoomBoostResponse{Result: "success"},
	}}
	a := actions.New(s)

	wallet, err := a.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []protocol.CurrencyItem{{Type: "gold", Amount: 9}}, wallet)

	result, err := a.BuyRoomBoost(context.Background(), protocol.PaymentBotWalletPriority, 2)
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	_, err = a.BuyRoomBoost(context.Background(), protocol.PaymentBotWalletOnly, 0)
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
	_, err = a.BuyVoiceTime(context.Background(), "credit_card")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
}

func TestCallErrorsPropagate(t *testing.T) {
	s := &fakeSender{err: gateway.ErrNotOpen}
	_, err := actions.New(s).RoomUsers(context.Background())
	assert.ErrorIs(t, err, gateway.ErrNotOpen)
}

func TestInventoryOutfitAndItems(t *testing.T) {
	shirt := protocol.Item{Type: "clothing", Amount: 1, ID: "shirt-f_marchingband"}
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeGetInventoryResponse: &protocol.GetInventoryResponse{Items: []protocol.Item{shirt}},
		protocol.TypeBuyItemResponse:      &protocol.BuyItemResponse{Result: "insufficient_funds"},
	}}
	a := actions.New(s)

	items, err := a.Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []protocol.Item{shirt}, items)

	require.NoError(t, a.SetOutfit(context.Background(), []protocol.Item{shirt}))
	assert.ErrorIs(t, a.SetOutfit(context.Background(), nil), actions.ErrInvalidArgument)
	assert.ErrorIs(t, a.SetOutfit(context.Background(), []protocol.Item{{Type: "clothing"}}), actions.ErrInvalidArgument)

	result, err := a.BuyItem(context.Background(), "hat-1")
	require.NoError(t, err)
	assert.Equal(t, "insufficient_funds", result)
	_, err = a.BuyItem(context.Background(), "")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)

	require.Len(t, s.called, 3)
	assert.Equal(t, "hat-1", s.called[2].(*protocol.BuyItemRequest).ItemID)
}

func TestTip_MapsAmountToGoldBar(t *testing.T) {
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeTipUserResponse: &protocol.TipUserResponse{Result: "success"},
	}}
	a := actions.New(s)

	result, err := a.Tip(context.Background(), "u1", 1000)
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, "gold_bar_1k", s.called[0].(*protocol.TipUserRequest).GoldBar)

	_, err = a.Tip(context.Background(), "u1", 7)
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
	_, err = a.Tip(context.Background(), "", 5)
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
	assert.Len(t, s.called, 1)
}

func TestRoomManagement(t *testing.T) {
	yes := true
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeGetRoomPrivilegeResponse: &protocol.GetRoomPrivilegeResponse{
			Content: protocol.RoomPermissions{Moderator: &yes},
		},
	}}
	a := actions.New(s)
	ctx := context.Background()

	require.NoError(t, a.MoveToRoom(ctx, "u1", "room-2"))
	assert.ErrorIs(t, a.MoveToRoom(ctx, "u1", ""), actions.ErrInvalidArgument)
	require.NoError(t, a.InviteSpeaker(ctx, "u1"))
	require.NoError(t, a.RemoveSpeaker(ctx, "u1"))
	assert.ErrorIs(t, a.InviteSpeaker(ctx, ""), actions.ErrInvalidArgument)

	perms, err := a.Privileges(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, perms.Moderator)
	assert.True(t, *perms.Moderator)
	assert.Nil(t, perms.Designer)

	require.NoError(t, a.SetDesigner(ctx, "u1", false))
	change := s.called[len(s.called)-1].(*protocol.ChangeRoomPrivilegeRequest)
	require.NotNil(t, change.Permissions.Designer)
	assert.False(t, *change.Permissions.Designer)
	assert.Nil(t, change.Permissions.Moderator)

	assert.ErrorIs(t, a.ChangePrivileges(ctx, "u1", protocol.RoomPermissions{}), actions.ErrInvalidArgument)
}

func TestConversations(t *testing.T) {
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeGetConversationsResponse: &protocol.GetConversationsResponse{
			Conversations: []protocol.Conversation{{ID: "c1", UnreadCount: 2}},
			NotJoined:     1,
		},
		protocol.TypeGetMessagesResponse: &protocol.GetMessagesResponse{
			Messages: []protocol.DirectMessage{{MessageID: "m1", ConversationID: "c1", Content: "hey", Category: "text"}},
		},
	}}
	a := actions.New(s)
	ctx := context.Background()

	page, err := a.Conversations(ctx, true, "c0")
	require.NoError(t, err)
	assert.Equal(t, 1, page.NotJoined)
	require.Len(t, page.Conversations, 1)
	req := s.called[0].(*protocol.GetConversationsRequest)
	assert.True(t, req.NotJoined)
	assert.Equal(t, "c0", req.LastID)

	msgs, err := a.Messages(ctx, "c1", "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hey", msgs[0].Content)
	_, err = a.Messages(ctx, "", "")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)

	require.NoError(t, a.LeaveConversation(ctx, "c1"))
	assert.ErrorIs(t, a.LeaveConversation(ctx, ""), actions.ErrInvalidArgument)
}

func TestUserLookups(t *testing.T) {
	s := &fakeSender{replies: map[string]protocol.Message{
		protocol.TypeGetBackpackResponse:   &protocol.GetBackpackResponse{Backpack: map[string]int64{"seed": 4}},
		protocol.TypeGetUserOutfitResponse: &protocol.GetUserOutfitResponse{Outfit: []protocol.Item{{Type: "clothing", ID: "hair-1"}}},
	}}
	a := actions.New(s)
	ctx := context.Background()

	pack, err := a.Backpack(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pack["seed"])

	outfit, err := a.UserOutfit(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, outfit, 1)
	assert.Equal(t, "hair-1", outfit[0].ID)

	_, err = a.Backpack(ctx, "")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
	_, err = a.UserOutfit(ctx, "")
	assert.ErrorIs(t, err, actions.ErrInvalidArgument)
}

package services

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"skillxchange_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newChatService(dynamo *MockDynamo, events *MockPublisher) *ChatService {
	return &ChatService{
		Dynamo:   dynamo,
		Profiles: &UserProfileService{Dynamo: dynamo},
		Connections: &ConnectionService{
			Dynamo:   dynamo,
			Profiles: &UserProfileService{Dynamo: dynamo},
		},
		Events: events,
	}
}

func storedRoom(t *testing.T, userA, userB string) (models.Conversation, map[string]types.AttributeValue) {
	t.Helper()
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}
	now := time.Now().Format(time.RFC3339)
	room := models.Conversation{
		ChatID:       uuid.New().String(),
		Participants: []string{userA, userB},
		ParticipantA: a,
		ParticipantB: b,
		PairKey:      models.PairKeyFor(userA, userB),
		UnreadCount:  map[string]int{userA: 0, userB: 0},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return room, mustMarshal(t, room)
}

func storedMessage(t *testing.T, chatID, sender, content string) (models.Message, map[string]types.AttributeValue) {
	t.Helper()
	message := models.Message{
		ChatID:      chatID,
		MessageID:   uuid.New().String(),
		SenderID:    sender,
		MessageType: models.MessageTypeText,
		Content:     content,
		CreatedAt:   time.Now().Format(time.RFC3339),
		ReadBy:      []string{sender},
	}
	return message, mustMarshal(t, message)
}

func expectAcceptedConnection(t *testing.T, dynamo *MockDynamo, userA, userB string) {
	t.Helper()
	_, item := storedConnection(t, userA, userB, models.StatusAccepted)
	dynamo.On("QueryItemsWithIndex", mock.Anything, models.ConnectionsTable, models.PairKeyIndex,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{item}, nil)
}

func TestAccessRoomRequiresAcceptedConnection(t *testing.T) {
	dynamo := new(MockDynamo)
	dynamo.On("QueryItemsWithIndex", mock.Anything, models.ConnectionsTable, models.PairKeyIndex,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{}, nil)

	s := newChatService(dynamo, new(MockPublisher))
	_, err := s.AccessRoom(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAccessRoomCreatesOnceForPair(t *testing.T) {
	ctx := context.Background()
	dynamo := new(MockDynamo)
	expectAcceptedConnection(t, dynamo, "alice", "bob")

	room, roomItem := storedRoom(t, "alice", "bob")

	// First access finds nothing and creates; later accesses, from
	// either direction, resolve to the stored room.
	dynamo.On("QueryItemsWithIndex", mock.Anything, models.ConversationsTable, models.ConversationPairKeyIndex,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{}, nil).Once()
	dynamo.On("PutItemConditional", mock.Anything, models.ConversationsTable, mock.Anything,
		"attribute_not_exists(chatId)").Return(nil).Once()
	dynamo.On("QueryItemsWithIndex", mock.Anything, models.ConversationsTable, models.ConversationPairKeyIndex,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{roomItem}, nil)

	s := newChatService(dynamo, new(MockPublisher))

	created, err := s.AccessRoom(ctx, "alice", "bob")
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ChatID)
	assert.True(t, created.IsActive)

	again, err := s.AccessRoom(ctx, "bob", "alice")
	assert.NoError(t, err)
	assert.Equal(t, room.ChatID, again.ChatID)

	dynamo.AssertNumberOfCalls(t, "PutItemConditional", 1)
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	dynamo := new(MockDynamo)
	_, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)

	s := newChatService(dynamo, new(MockPublisher))
	_, err := s.SendMessage(context.Background(), "chat-1", "carol", MessagePayload{
		MessageType: models.MessageTypeText,
		Content:     "hi",
	})
	assert.ErrorIs(t, err, ErrForbidden)
	dynamo.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageStoresUpdatesAndPushes(t *testing.T) {
	ctx := context.Background()
	dynamo := new(MockDynamo)
	events := new(MockPublisher)
	expectNoProfile(dynamo)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("PutItem", mock.Anything, models.MessagesTable, mock.Anything).Return(nil)
	dynamo.On("UpdateItem", mock.Anything, models.ConversationsTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(map[string]types.AttributeValue{}, nil)
	events.On("Publish", models.EventMessageReceived, []string{"bob"}, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	message, err := s.SendMessage(ctx, room.ChatID, "alice", MessagePayload{
		MessageType: models.MessageTypeText,
		Content:     "hi",
	})

	assert.NoError(t, err)
	assert.Equal(t, "hi", message.Content)
	assert.Equal(t, []string{"alice"}, message.ReadBy)
	assert.NotEmpty(t, message.MessageID)

	dynamo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestConcurrentSendsBothCountUnread(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)
	expectNoProfile(dynamo)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("PutItem", mock.Anything, models.MessagesTable, mock.Anything).Return(nil)
	events.On("Publish", models.EventMessageReceived, []string{"bob"}, mock.Anything).Return(nil)

	// Apply the room updates the way the store would. Increments from two
	// sends add up; absolute writes from stale snapshots would collapse to
	// one.
	var storeMu sync.Mutex
	unread := map[string]int{"alice": 0, "bob": 0}
	dynamo.On("UpdateItem", mock.Anything, models.ConversationsTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			expression := args.String(2)
			values := args.Get(4).(map[string]types.AttributeValue)
			names, _ := args.Get(5).(map[string]string)

			storeMu.Lock()
			defer storeMu.Unlock()
			for placeholder, user := range names {
				if !strings.Contains(expression, "ADD") || !strings.Contains(expression, "unreadCount."+placeholder) {
					continue
				}
				increment, ok := values[":one"].(*types.AttributeValueMemberN)
				if !ok {
					t.Errorf("expected a numeric increment, got %T", values[":one"])
					return
				}
				n, err := strconv.Atoi(increment.Value)
				if err != nil {
					t.Errorf("bad increment value %q", increment.Value)
					return
				}
				unread[user] += n
			}
		}).
		Return(map[string]types.AttributeValue{}, nil)

	s := newChatService(dynamo, events)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SendMessage(context.Background(), room.ChatID, "alice", MessagePayload{
				MessageType: models.MessageTypeText,
				Content:     "hi",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	storeMu.Lock()
	defer storeMu.Unlock()
	assert.Equal(t, 2, unread["bob"], "each send must count exactly once")
	assert.Equal(t, 0, unread["alice"], "the sender's own counter stays put")
}

func TestSendMessagePayloadKinds(t *testing.T) {
	dynamo := new(MockDynamo)
	_, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)

	s := newChatService(dynamo, new(MockPublisher))
	ctx := context.Background()

	cases := []MessagePayload{
		{MessageType: models.MessageTypeText},                                            // text without content
		{MessageType: models.MessageTypeText, Content: "hi", FileURL: "s3://x"},          // two payload kinds
		{MessageType: models.MessageTypeFile},                                            // file without url
		{MessageType: models.MessageTypeImage, FileURL: "s3://x", Content: "caption"},    // image with text
		{MessageType: "audio", Content: "hi"},                                            // unknown kind
	}
	for _, payload := range cases {
		_, err := s.SendMessage(ctx, "chat-1", "alice", payload)
		assert.ErrorIs(t, err, ErrInvalidState, "payload %+v", payload)
	}
}

func TestDeleteMessageOnlySender(t *testing.T) {
	dynamo := new(MockDynamo)
	_, messageItem := storedMessage(t, "chat-1", "alice", "hi")
	dynamo.On("GetItem", mock.Anything, models.MessagesTable, mock.Anything).Return(messageItem, nil)

	s := newChatService(dynamo, new(MockPublisher))
	err := s.DeleteMessage(context.Background(), "chat-1", "m-1", "bob")

	assert.ErrorIs(t, err, ErrForbidden)
	dynamo.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageNotifiesAllParticipants(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	message, messageItem := storedMessage(t, room.ChatID, "alice", "hi")
	dynamo.On("GetItem", mock.Anything, models.MessagesTable, mock.Anything).Return(messageItem, nil)
	dynamo.On("DeleteItem", mock.Anything, models.MessagesTable, mock.Anything).Return(nil)
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	events.On("Publish", models.EventMessageDeleted, []string{"alice", "bob"}, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	err := s.DeleteMessage(context.Background(), room.ChatID, message.MessageID, "alice")

	assert.NoError(t, err)
	events.AssertExpectations(t)
}

func TestDeleteUnknownMessage(t *testing.T) {
	dynamo := new(MockDynamo)
	dynamo.On("GetItem", mock.Anything, models.MessagesTable, mock.Anything).Return(nil, nil)

	s := newChatService(dynamo, new(MockPublisher))
	err := s.DeleteMessage(context.Background(), "chat-1", "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadZeroesCounterAndStampsMessages(t *testing.T) {
	ctx := context.Background()
	dynamo := new(MockDynamo)

	room, roomItem := storedRoom(t, "alice", "bob")
	fromBob, fromBobItem := storedMessage(t, room.ChatID, "bob", "hello")
	_, fromAliceItem := storedMessage(t, room.ChatID, "alice", "hi")
	alreadyRead, _ := storedMessage(t, room.ChatID, "bob", "old")
	alreadyRead.ReadBy = append(alreadyRead.ReadBy, "alice")
	alreadyReadItem := mustMarshal(t, alreadyRead)

	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("UpdateItem", mock.Anything, models.ConversationsTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(map[string]types.AttributeValue{}, nil).Once()
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{fromBobItem, fromAliceItem, alreadyReadItem}, nil, nil)
	// Only bob's unread message needs a readBy stamp.
	dynamo.On("UpdateItem", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(map[string]types.AttributeValue{}, nil).Once()

	s := newChatService(dynamo, new(MockPublisher))
	err := s.MarkRead(ctx, room.ChatID, "alice")

	assert.NoError(t, err)
	assert.False(t, fromBob.ReadByUser("alice")) // stored copy untouched; the update went through Dynamo
	dynamo.AssertExpectations(t)
}

func TestMessagesNewestFirst(t *testing.T) {
	dynamo := new(MockDynamo)
	room, roomItem := storedRoom(t, "alice", "bob")

	older := models.Message{ChatID: room.ChatID, MessageID: "m-1", SenderID: "alice",
		MessageType: models.MessageTypeText, Content: "first", CreatedAt: "2026-01-01T00:00:00Z", ReadBy: []string{"alice"}}
	newer := models.Message{ChatID: room.ChatID, MessageID: "m-2", SenderID: "bob",
		MessageType: models.MessageTypeText, Content: "second", CreatedAt: "2026-01-02T00:00:00Z", ReadBy: []string{"bob"}}

	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("QueryItems", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{mustMarshal(t, older), mustMarshal(t, newer)}, nil)

	s := newChatService(dynamo, new(MockPublisher))
	messages, err := s.Messages(context.Background(), room.ChatID, "alice", 50)

	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Content)
	assert.Equal(t, "first", messages[1].Content)
}

func TestDeleteRoomCascadesToMessages(t *testing.T) {
	dynamo := new(MockDynamo)
	room, roomItem := storedRoom(t, "alice", "bob")
	_, messageItem := storedMessage(t, room.ChatID, "alice", "hi")

	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{messageItem}, nil, nil)
	dynamo.On("BatchWriteItems", mock.Anything, models.MessagesTable, mock.Anything).Return(nil)
	dynamo.On("DeleteItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(nil)

	s := newChatService(dynamo, new(MockPublisher))
	err := s.DeleteRoom(context.Background(), room.ChatID, "bob")

	assert.NoError(t, err)
	dynamo.AssertExpectations(t)
}

func TestMarkReadWalksAllPages(t *testing.T) {
	ctx := context.Background()
	dynamo := new(MockDynamo)

	room, roomItem := storedRoom(t, "alice", "bob")
	_, firstPageItem := storedMessage(t, room.ChatID, "bob", "one")
	second, secondPageItem := storedMessage(t, room.ChatID, "bob", "two")

	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	dynamo.On("UpdateItem", mock.Anything, models.ConversationsTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(map[string]types.AttributeValue{}, nil).Once()

	resumeKey := map[string]types.AttributeValue{
		"chatId":    &types.AttributeValueMemberS{Value: room.ChatID},
		"messageId": &types.AttributeValueMemberS{Value: second.MessageID},
	}
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{firstPageItem}, resumeKey, nil).Once()
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{secondPageItem}, nil, nil).Once()

	// Unread messages on both pages get a readBy stamp.
	dynamo.On("UpdateItem", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(map[string]types.AttributeValue{}, nil).Twice()

	s := newChatService(dynamo, new(MockPublisher))
	err := s.MarkRead(ctx, room.ChatID, "alice")

	assert.NoError(t, err)
	dynamo.AssertExpectations(t)
}

func TestDeleteRoomCascadeWalksAllPages(t *testing.T) {
	dynamo := new(MockDynamo)
	room, roomItem := storedRoom(t, "alice", "bob")
	first, firstItem := storedMessage(t, room.ChatID, "alice", "one")
	_, secondItem := storedMessage(t, room.ChatID, "bob", "two")

	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)

	resumeKey := map[string]types.AttributeValue{
		"chatId":    &types.AttributeValueMemberS{Value: room.ChatID},
		"messageId": &types.AttributeValueMemberS{Value: first.MessageID},
	}
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{firstItem}, resumeKey, nil).Once()
	dynamo.On("QueryItemsPage", mock.Anything, models.MessagesTable, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return([]map[string]types.AttributeValue{secondItem}, nil, nil).Once()

	dynamo.On("BatchWriteItems", mock.Anything, models.MessagesTable,
		mock.MatchedBy(func(requests []types.WriteRequest) bool { return len(requests) == 2 })).
		Return(nil)
	dynamo.On("DeleteItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(nil)

	s := newChatService(dynamo, new(MockPublisher))
	err := s.DeleteRoom(context.Background(), room.ChatID, "bob")

	assert.NoError(t, err)
	dynamo.AssertExpectations(t)
}

func TestDeleteRoomRequiresParticipant(t *testing.T) {
	dynamo := new(MockDynamo)
	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)

	s := newChatService(dynamo, new(MockPublisher))
	err := s.DeleteRoom(context.Background(), room.ChatID, "carol")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTypingAutoExpires(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	s.TypingWindow = 40 * time.Millisecond

	err := s.StartTyping(context.Background(), room.ChatID, "alice")
	assert.NoError(t, err)
	assert.True(t, s.TypingActive(room.ChatID, "alice"))

	// No refresh, no explicit stop: the indicator must clear itself.
	time.Sleep(120 * time.Millisecond)
	assert.False(t, s.TypingActive(room.ChatID, "alice"))

	published := events.published()
	assert.Len(t, published, 2)
	assert.Equal(t, models.EventTyping, published[0].event)
	assert.Equal(t, []string{"bob"}, published[0].targets)
	assert.Equal(t, models.EventStopTyping, published[1].event)
	assert.Equal(t, []string{"bob"}, published[1].targets)
}

func TestTypingRefreshExtendsWindow(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	s.TypingWindow = 60 * time.Millisecond

	assert.NoError(t, s.StartTyping(context.Background(), room.ChatID, "alice"))
	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, s.StartTyping(context.Background(), room.ChatID, "alice"))
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first start the refreshed indicator is still live.
	assert.True(t, s.TypingActive(room.ChatID, "alice"))
}

func TestStopTypingRequiresParticipant(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)

	s := newChatService(dynamo, events)
	err := s.StopTyping(context.Background(), room.ChatID, "carol")

	assert.ErrorIs(t, err, ErrForbidden)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStaleTypingExpiryIsIgnored(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	s.TypingWindow = time.Second

	assert.NoError(t, s.StartTyping(context.Background(), room.ChatID, "alice"))
	framesBefore := len(events.published())

	// A timer from a superseded indicator must not clear the live one or
	// emit a stop frame.
	s.expireTyping(room.ChatID, "alice", []string{"bob"}, &typingState{})

	assert.True(t, s.TypingActive(room.ChatID, "alice"))
	assert.Len(t, events.published(), framesBefore)
}

func TestStopTypingClearsImmediately(t *testing.T) {
	dynamo := new(MockDynamo)
	events := new(MockPublisher)

	room, roomItem := storedRoom(t, "alice", "bob")
	dynamo.On("GetItem", mock.Anything, models.ConversationsTable, mock.Anything).Return(roomItem, nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newChatService(dynamo, events)
	s.TypingWindow = time.Second

	assert.NoError(t, s.StartTyping(context.Background(), room.ChatID, "alice"))
	assert.NoError(t, s.StopTyping(context.Background(), room.ChatID, "alice"))
	assert.False(t, s.TypingActive(room.ChatID, "alice"))

	published := events.published()
	assert.Equal(t, models.EventStopTyping, published[len(published)-1].event)
}

package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"skillxchange_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DefaultTypingWindow is how long a typing indicator stays alive
// without a refresh or an explicit stop.
const DefaultTypingWindow = 3 * time.Second

// ChatService manages per-pair chat rooms: room lookup-or-create,
// message append/delete, read state and typing indicators. Typing state
// is owned by the instance, never package globals.
type ChatService struct {
	Dynamo      DynamoAPI
	Profiles    *UserProfileService
	Connections *ConnectionService
	Events      EventPublisher

	// TypingWindow overrides DefaultTypingWindow when set (tests).
	TypingWindow time.Duration

	roomMu sync.Mutex // serializes lookup-or-create so a pair never races into two rooms

	typingMu sync.Mutex
	typing   map[string]*typingState
}

type typingState struct {
	timer     *time.Timer
	expiresAt time.Time
}

// MessagePayload is the client-supplied body of a new message. Exactly
// one payload kind must be populated, matching MessageType.
type MessagePayload struct {
	MessageType string `json:"messageType"`
	Content     string `json:"content,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
}

// ConversationWithProfile is a room as returned to list endpoints,
// enriched with the other participant's summary.
type ConversationWithProfile struct {
	models.Conversation
	OtherUser models.ProfileSummary `json:"otherUser"`
}

// AccessRoom returns the room for the pair, creating it on first
// access. The two users must hold an accepted connection.
func (s *ChatService) AccessRoom(ctx context.Context, userID, otherUserID string) (*models.Conversation, error) {
	connected, err := s.Connections.AreConnected(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, fmt.Errorf("%s and %s: %w", userID, otherUserID, ErrNotConnected)
	}

	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	room, err := s.findRoomByPair(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	participantA, participantB := userID, otherUserID
	if strings.Compare(participantA, participantB) > 0 {
		participantA, participantB = participantB, participantA
	}

	now := time.Now().Format(time.RFC3339)
	room = &models.Conversation{
		ChatID:       uuid.New().String(),
		Participants: []string{userID, otherUserID},
		ParticipantA: participantA,
		ParticipantB: participantB,
		PairKey:      models.PairKeyFor(userID, otherUserID),
		UnreadCount:  map[string]int{userID: 0, otherUserID: 0},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Dynamo.PutItemConditional(ctx, models.ConversationsTable, room, "attribute_not_exists(chatId)")
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	log.Printf("💬 Conversation %s created for %s and %s", room.ChatID, userID, otherUserID)
	return room, nil
}

// SendMessage appends a message to a room, updates the room's preview
// and unread counters, and pushes the full message to the recipient.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID string, payload MessagePayload) (*models.Message, error) {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(senderID) {
		return nil, fmt.Errorf("user %s is not in chat %s: %w", senderID, chatID, ErrForbidden)
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	message := models.Message{
		ChatID:      chatID,
		MessageID:   uuid.New().String(),
		SenderID:    senderID,
		MessageType: payload.MessageType,
		Content:     payload.Content,
		FileURL:     payload.FileURL,
		FileName:    payload.FileName,
		FileType:    payload.FileType,
		FileSize:    payload.FileSize,
		CreatedAt:   time.Now().Format(time.RFC3339),
		ReadBy:      []string{senderID},
	}

	if err := s.Dynamo.PutItem(ctx, models.MessagesTable, message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if err := s.updateRoomAfterSend(ctx, room, &message); err != nil {
		// The message itself committed; the denormalized preview is
		// self-healing on the next send.
		log.Printf("❌ Failed to update conversation %s after send: %v", chatID, err)
	}

	sender := s.Profiles.GetProfileSummary(ctx, senderID)
	s.publish(models.EventMessageReceived, room.OtherParticipants(senderID), map[string]interface{}{
		"message": message,
		"sender":  sender,
	})

	log.Printf("📩 Message %s stored in chat %s", message.MessageID, chatID)
	return &message, nil
}

// DeleteMessage hard-deletes a message; only the original sender may.
func (s *ChatService) DeleteMessage(ctx context.Context, chatID, messageID, byUserID string) error {
	key := map[string]types.AttributeValue{
		"chatId":    &types.AttributeValueMemberS{Value: chatID},
		"messageId": &types.AttributeValueMemberS{Value: messageID},
	}

	item, err := s.Dynamo.GetItem(ctx, models.MessagesTable, key)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	var message models.Message
	if err := attributevalue.UnmarshalMap(item, &message); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if message.SenderID != byUserID {
		return fmt.Errorf("only the sender may delete a message: %w", ErrForbidden)
	}

	if err := s.Dynamo.DeleteItem(ctx, models.MessagesTable, key); err != nil {
		return err
	}

	log.Printf("🗑️ Message %s deleted from chat %s by %s", messageID, chatID, byUserID)

	// All participants hear about it, the deleter's other tabs included.
	if room, err := s.GetRoomByID(ctx, chatID); err == nil {
		s.publish(models.EventMessageDeleted, room.Participants, map[string]interface{}{
			"messageId": messageID,
			"chatId":    chatID,
		})
	}

	return nil
}

// MarkRead zeroes the user's unread counter and stamps the user into
// readBy of messages they had not read. Passive state, no event.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string) error {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return fmt.Errorf("user %s is not in chat %s: %w", userID, chatID, ErrForbidden)
	}

	roomKey := map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: chatID},
	}
	updateExpression := "SET unreadCount.#user = :zero"
	expressionValues := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
	}
	expressionNames := map[string]string{
		"#user": userID,
	}
	if _, err := s.Dynamo.UpdateItem(ctx, models.ConversationsTable, updateExpression, roomKey, expressionValues, expressionNames); err != nil {
		return err
	}

	messages, err := s.allMessages(ctx, chatID)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if message.SenderID == userID || message.ReadByUser(userID) {
			continue
		}
		key := map[string]types.AttributeValue{
			"chatId":    &types.AttributeValueMemberS{Value: chatID},
			"messageId": &types.AttributeValueMemberS{Value: message.MessageID},
		}
		readExpression := "SET readBy = list_append(readBy, :user)"
		readValues := map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: userID},
			}},
		}
		if _, err := s.Dynamo.UpdateItem(ctx, models.MessagesTable, readExpression, key, readValues, nil); err != nil {
			log.Printf("❌ Failed to mark message %s as read: %v", message.MessageID, err)
		}
	}

	log.Printf("✅ Chat %s marked as read for %s", chatID, userID)
	return nil
}

// Messages returns a room's messages, newest first.
func (s *ChatService) Messages(ctx context.Context, chatID, userID string, limit int) ([]models.Message, error) {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, fmt.Errorf("user %s is not in chat %s: %w", userID, chatID, ErrForbidden)
	}

	if limit <= 0 {
		limit = 50
	}
	messages, err := s.queryMessages(ctx, chatID, int32(limit))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt > messages[j].CreatedAt
	})
	return messages, nil
}

// RoomsFor returns the user's conversations enriched with the other
// participant's summary.
func (s *ChatService) RoomsFor(ctx context.Context, userID string) ([]ConversationWithProfile, error) {
	rooms := []ConversationWithProfile{}

	for _, query := range []struct {
		index        string
		keyCondition string
	}{
		{models.ParticipantAIndex, "participantA = :user"},
		{models.ParticipantBIndex, "participantB = :user"},
	} {
		expressionValues := map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: userID},
		}
		items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.ConversationsTable, query.index, query.keyCondition, expressionValues, nil, 100)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch conversations: %w", err)
		}

		for _, item := range items {
			var room models.Conversation
			if err := attributevalue.UnmarshalMap(item, &room); err != nil {
				log.Printf("❌ Error unmarshalling conversation: %v", err)
				continue
			}
			others := room.OtherParticipants(userID)
			enriched := ConversationWithProfile{Conversation: room}
			if len(others) > 0 {
				enriched.OtherUser = s.Profiles.GetProfileSummary(ctx, others[0])
			}
			rooms = append(rooms, enriched)
		}
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt > rooms[j].UpdatedAt
	})
	return rooms, nil
}

// DeleteRoom removes a conversation and cascades to its messages.
func (s *ChatService) DeleteRoom(ctx context.Context, chatID, byUserID string) error {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(byUserID) {
		return fmt.Errorf("user %s is not in chat %s: %w", byUserID, chatID, ErrForbidden)
	}

	messages, err := s.allMessages(ctx, chatID)
	if err != nil {
		return err
	}

	if len(messages) > 0 {
		writeRequests := make([]types.WriteRequest, 0, len(messages))
		for _, message := range messages {
			writeRequests = append(writeRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"chatId":    &types.AttributeValueMemberS{Value: chatID},
						"messageId": &types.AttributeValueMemberS{Value: message.MessageID},
					},
				},
			})
		}
		if err := s.Dynamo.BatchWriteItems(ctx, models.MessagesTable, writeRequests); err != nil {
			return err
		}
	}

	roomKey := map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: chatID},
	}
	if err := s.Dynamo.DeleteItem(ctx, models.ConversationsTable, roomKey); err != nil {
		return err
	}

	log.Printf("🗑️ Conversation %s and %d messages deleted by %s", chatID, len(messages), byUserID)
	return nil
}

// StartTyping records a typing indicator and pushes it to the other
// participant. The indicator auto-expires after the typing window; each
// refresh resets the timer.
func (s *ChatService) StartTyping(ctx context.Context, chatID, userID string) error {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return fmt.Errorf("user %s is not in chat %s: %w", userID, chatID, ErrForbidden)
	}

	others := room.OtherParticipants(userID)
	window := s.typingWindow()

	s.typingMu.Lock()
	if s.typing == nil {
		s.typing = make(map[string]*typingState)
	}
	key := typingKey(chatID, userID)
	if state, ok := s.typing[key]; ok {
		state.timer.Stop()
	}
	state := &typingState{expiresAt: time.Now().Add(window)}
	state.timer = time.AfterFunc(window, func() {
		s.expireTyping(chatID, userID, others, state)
	})
	s.typing[key] = state
	s.typingMu.Unlock()

	s.publish(models.EventTyping, others, map[string]interface{}{
		"chatId": chatID,
		"userId": userID,
	})
	return nil
}

// StopTyping clears the typing indicator immediately.
func (s *ChatService) StopTyping(ctx context.Context, chatID, userID string) error {
	room, err := s.GetRoomByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return fmt.Errorf("user %s is not in chat %s: %w", userID, chatID, ErrForbidden)
	}

	s.typingMu.Lock()
	if state, ok := s.typing[typingKey(chatID, userID)]; ok {
		state.timer.Stop()
		delete(s.typing, typingKey(chatID, userID))
	}
	s.typingMu.Unlock()

	s.publish(models.EventStopTyping, room.OtherParticipants(userID), map[string]interface{}{
		"chatId": chatID,
		"userId": userID,
	})
	return nil
}

// TypingActive reports whether a typing indicator is currently live.
func (s *ChatService) TypingActive(chatID, userID string) bool {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	state, ok := s.typing[typingKey(chatID, userID)]
	return ok && time.Now().Before(state.expiresAt)
}

// GetRoomByID fetches a conversation by id.
func (s *ChatService) GetRoomByID(ctx context.Context, chatID string) (*models.Conversation, error) {
	key := map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: chatID},
	}
	item, err := s.Dynamo.GetItem(ctx, models.ConversationsTable, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}

	var room models.Conversation
	if err := attributevalue.UnmarshalMap(item, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &room, nil
}

func (s *ChatService) expireTyping(chatID, userID string, others []string, state *typingState) {
	key := typingKey(chatID, userID)
	s.typingMu.Lock()
	// A refresh may have installed a fresh indicator between this timer
	// firing and the lock being taken; only the owning timer clears it.
	if s.typing[key] != state {
		s.typingMu.Unlock()
		return
	}
	delete(s.typing, key)
	s.typingMu.Unlock()

	s.publish(models.EventStopTyping, others, map[string]interface{}{
		"chatId": chatID,
		"userId": userID,
	})
}

func (s *ChatService) findRoomByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	keyCondition := "pairKey = :pairKey"
	expressionValues := map[string]types.AttributeValue{
		":pairKey": &types.AttributeValueMemberS{Value: models.PairKeyFor(userA, userB)},
	}

	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.ConversationsTable, models.ConversationPairKeyIndex, keyCondition, expressionValues, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations by pair: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	var room models.Conversation
	if err := attributevalue.UnmarshalMap(items[0], &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &room, nil
}

func (s *ChatService) updateRoomAfterSend(ctx context.Context, room *models.Conversation, message *models.Message) error {
	lastMessageAttr, err := attributevalue.Marshal(&models.LastMessage{
		MessageID: message.MessageID,
		Content:   message.Preview(),
		SenderID:  message.SenderID,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return err
	}

	// Unread counters are incremented in place. A read-modify-write here
	// would let concurrent sends clobber each other with stale counts.
	updateExpression := "SET lastMessage = :lastMessage, updatedAt = :updatedAt"
	expressionValues := map[string]types.AttributeValue{
		":lastMessage": lastMessageAttr,
		":updatedAt":   &types.AttributeValueMemberS{Value: message.CreatedAt},
	}

	var expressionNames map[string]string
	adds := make([]string, 0, len(room.Participants))
	for i, participant := range room.Participants {
		if participant == message.SenderID {
			continue
		}
		if expressionNames == nil {
			expressionNames = make(map[string]string)
		}
		placeholder := fmt.Sprintf("#u%d", i)
		expressionNames[placeholder] = participant
		adds = append(adds, fmt.Sprintf("unreadCount.%s :one", placeholder))
	}
	if len(adds) > 0 {
		updateExpression += " ADD " + strings.Join(adds, ", ")
		expressionValues[":one"] = &types.AttributeValueMemberN{Value: "1"}
	}

	key := map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: room.ChatID},
	}
	_, err = s.Dynamo.UpdateItem(ctx, models.ConversationsTable, updateExpression, key, expressionValues, expressionNames)
	return err
}

func (s *ChatService) queryMessages(ctx context.Context, chatID string, limit int32) ([]models.Message, error) {
	keyCondition := "chatId = :chatId"
	expressionValues := map[string]types.AttributeValue{
		":chatId": &types.AttributeValueMemberS{Value: chatID},
	}

	items, err := s.Dynamo.QueryItems(ctx, models.MessagesTable, keyCondition, expressionValues, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return messages, nil
}

// allMessages walks every page of a chat's partition. MarkRead and the
// room-delete cascade must see the full history, not just the first page.
func (s *ChatService) allMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	keyCondition := "chatId = :chatId"
	expressionValues := map[string]types.AttributeValue{
		":chatId": &types.AttributeValueMemberS{Value: chatID},
	}

	var messages []models.Message
	var startKey map[string]types.AttributeValue
	for {
		items, lastKey, err := s.Dynamo.QueryItemsPage(ctx, models.MessagesTable, keyCondition, expressionValues, nil, 100, startKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch messages: %w", err)
		}

		var page []models.Message
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}
		messages = append(messages, page...)

		if len(lastKey) == 0 {
			return messages, nil
		}
		startKey = lastKey
	}
}

func (s *ChatService) typingWindow() time.Duration {
	if s.TypingWindow > 0 {
		return s.TypingWindow
	}
	return DefaultTypingWindow
}

func (s *ChatService) publish(event string, targets []string, payload map[string]interface{}) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(event, targets, payload); err != nil {
		log.Printf("❌ Failed to publish %s: %v", event, err)
	}
}

func typingKey(chatID, userID string) string {
	return chatID + "#" + userID
}

func validatePayload(payload MessagePayload) error {
	switch payload.MessageType {
	case models.MessageTypeText:
		if payload.Content == "" || payload.FileURL != "" {
			return fmt.Errorf("text message must carry content only: %w", ErrInvalidState)
		}
	case models.MessageTypeImage, models.MessageTypeFile:
		if payload.FileURL == "" || payload.Content != "" {
			return fmt.Errorf("%s message must carry a file only: %w", payload.MessageType, ErrInvalidState)
		}
	default:
		return fmt.Errorf("unknown message type %q: %w", payload.MessageType, ErrInvalidState)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"skillxchange_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// ConnectionService owns the connection state machine: it is the only
// code path that persists transitions and the only emitter of the
// corresponding events.
type ConnectionService struct {
	Dynamo   DynamoAPI
	Profiles *UserProfileService
	Events   EventPublisher

	pairMu sync.Mutex // serializes request checks so a pair never races into two pending connections
}

// ConnectionWithProfile is a connection as returned to list endpoints:
// the record itself, the other participant's summary, and the
// server-attached perspective ("sent" or "received").
type ConnectionWithProfile struct {
	models.Connection
	Perspective string                `json:"perspective"`
	OtherUser   models.ProfileSummary `json:"otherUser"`
}

// Request creates a pending connection from sender to receiver.
func (cs *ConnectionService) Request(ctx context.Context, senderID, receiverID string) (*models.Connection, error) {
	if senderID == receiverID {
		return nil, fmt.Errorf("cannot request a connection with yourself: %w", ErrInvalidState)
	}

	connection, err := cs.createPending(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Connection request saved: %s -> %s", senderID, receiverID)

	sender := cs.Profiles.GetProfileSummary(ctx, senderID)
	cs.publish(models.EventConnectionRequest, []string{receiverID}, map[string]interface{}{
		"connection": *connection,
		"sender":     sender,
	})

	return connection, nil
}

// createPending runs the duplicate check and the write under pairMu, so
// two concurrent requests for the same pair resolve to one pending
// connection and one DuplicateConnectionError.
func (cs *ConnectionService) createPending(ctx context.Context, senderID, receiverID string) (*models.Connection, error) {
	cs.pairMu.Lock()
	defer cs.pairMu.Unlock()

	existing, err := cs.findActiveByPair(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("⚠️ Duplicate connection request %s -> %s (existing status: %s)", senderID, receiverID, existing.Status)
		return nil, &DuplicateConnectionError{ExistingStatus: existing.Status}
	}

	now := time.Now().Format(time.RFC3339)
	connection := models.Connection{
		ConnectionID: uuid.New().String(),
		SenderID:     senderID,
		ReceiverID:   receiverID,
		PairKey:      models.PairKeyFor(senderID, receiverID),
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Guards against an id collision; pair uniqueness is enforced under pairMu.
	err = cs.Dynamo.PutItemConditional(ctx, models.ConnectionsTable, connection, "attribute_not_exists(connectionId)")
	if err != nil {
		log.Printf("❌ Failed to save connection request: %v", err)
		return nil, err
	}
	return &connection, nil
}

// Respond records the receiver's decision on a pending connection.
func (cs *ConnectionService) Respond(ctx context.Context, connectionID, byUserID, decision string) (*models.Connection, error) {
	if decision != models.StatusAccepted && decision != models.StatusRejected {
		return nil, fmt.Errorf("unknown decision %q: %w", decision, ErrInvalidState)
	}

	connection, err := cs.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if connection.ReceiverID != byUserID {
		return nil, fmt.Errorf("only the receiver may respond: %w", ErrForbidden)
	}
	if connection.Status != models.StatusPending {
		return nil, fmt.Errorf("connection is %s, not pending: %w", connection.Status, ErrInvalidState)
	}

	now := time.Now().Format(time.RFC3339)
	key := map[string]types.AttributeValue{
		"connectionId": &types.AttributeValueMemberS{Value: connectionID},
	}
	updateExpression := "SET #status = :status, updatedAt = :updatedAt"
	// The pending guard at the storage layer keeps a concurrent respond
	// (or remove) from recording a second transition.
	conditionExpression := "#status = :pending"
	expressionValues := map[string]types.AttributeValue{
		":status":    &types.AttributeValueMemberS{Value: decision},
		":updatedAt": &types.AttributeValueMemberS{Value: now},
		":pending":   &types.AttributeValueMemberS{Value: models.StatusPending},
	}
	expressionNames := map[string]string{
		"#status": "status", // reserved word in DynamoDB
	}

	_, err = cs.Dynamo.UpdateItemConditional(ctx, models.ConnectionsTable, updateExpression, conditionExpression, key, expressionValues, expressionNames)
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, fmt.Errorf("connection %s is no longer pending: %w", connectionID, ErrInvalidState)
		}
		return nil, err
	}

	connection.Status = decision
	connection.UpdatedAt = now
	log.Printf("✅ Connection %s %s by %s", connectionID, decision, byUserID)

	responder := cs.Profiles.GetProfileSummary(ctx, byUserID)
	cs.publish(models.EventConnectionResponse, []string{connection.SenderID}, map[string]interface{}{
		"connection": connection,
		"responder":  responder,
	})

	// Let the responder's own other tabs update without a refetch.
	if decision == models.StatusAccepted {
		sender := cs.Profiles.GetProfileSummary(ctx, connection.SenderID)
		cs.publish(models.EventConnectionAccepted, []string{byUserID}, map[string]interface{}{
			"connection": connection,
			"sender":     sender,
		})
	}

	return connection, nil
}

// Remove deletes an accepted connection on behalf of either participant.
func (cs *ConnectionService) Remove(ctx context.Context, connectionID, byUserID string) error {
	connection, err := cs.GetByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if !connection.IsParticipant(byUserID) {
		return fmt.Errorf("user %s is not part of connection %s: %w", byUserID, connectionID, ErrForbidden)
	}
	if connection.Status != models.StatusAccepted {
		return fmt.Errorf("connection is %s, not accepted: %w", connection.Status, ErrInvalidState)
	}

	key := map[string]types.AttributeValue{
		"connectionId": &types.AttributeValueMemberS{Value: connectionID},
	}
	if err := cs.Dynamo.DeleteItem(ctx, models.ConnectionsTable, key); err != nil {
		return err
	}

	log.Printf("🗑️ Connection %s removed by %s", connectionID, byUserID)

	remover := cs.Profiles.GetProfileSummary(ctx, byUserID)
	cs.publish(models.EventConnectionRemoved, []string{connection.OtherParticipant(byUserID)}, map[string]interface{}{
		"connectionId": connectionID,
		"user":         remover,
	})

	return nil
}

// GetByID fetches a connection record by id.
func (cs *ConnectionService) GetByID(ctx context.Context, connectionID string) (*models.Connection, error) {
	key := map[string]types.AttributeValue{
		"connectionId": &types.AttributeValueMemberS{Value: connectionID},
	}
	item, err := cs.Dynamo.GetItem(ctx, models.ConnectionsTable, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("connection %s: %w", connectionID, ErrNotFound)
	}

	var connection models.Connection
	if err := attributevalue.UnmarshalMap(item, &connection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return &connection, nil
}

// PendingFor returns the pending requests awaiting a user's response,
// enriched with sender summaries. This is the REST read clients use to
// reconcile missed connectionRequest pushes.
func (cs *ConnectionService) PendingFor(ctx context.Context, receiverID string) ([]ConnectionWithProfile, error) {
	keyCondition := "receiverId = :receiver"
	expressionValues := map[string]types.AttributeValue{
		":receiver": &types.AttributeValueMemberS{Value: receiverID},
	}

	items, err := cs.Dynamo.QueryItemsWithIndex(ctx, models.ConnectionsTable, models.ReceiverIDIndex, keyCondition, expressionValues, nil, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending connections: %w", err)
	}

	pending := []ConnectionWithProfile{}
	for _, item := range items {
		var connection models.Connection
		if err := attributevalue.UnmarshalMap(item, &connection); err != nil {
			log.Printf("❌ Error unmarshalling connection: %v", err)
			continue
		}
		if connection.Status != models.StatusPending {
			continue
		}
		pending = append(pending, ConnectionWithProfile{
			Connection:  connection,
			Perspective: models.PerspectiveReceived,
			OtherUser:   cs.Profiles.GetProfileSummary(ctx, connection.SenderID),
		})
	}

	log.Printf("✅ Found %d pending connections for %s", len(pending), receiverID)
	return pending, nil
}

// ConnectionsFor returns a user's accepted connections with the other
// party's summary and the caller's perspective attached.
func (cs *ConnectionService) ConnectionsFor(ctx context.Context, userID string) ([]ConnectionWithProfile, error) {
	connections := []ConnectionWithProfile{}

	sent, err := cs.queryByIndex(ctx, models.SenderIDIndex, "senderId = :user", userID)
	if err != nil {
		return nil, err
	}
	for _, connection := range sent {
		if connection.Status != models.StatusAccepted {
			continue
		}
		connections = append(connections, ConnectionWithProfile{
			Connection:  connection,
			Perspective: models.PerspectiveSent,
			OtherUser:   cs.Profiles.GetProfileSummary(ctx, connection.ReceiverID),
		})
	}

	received, err := cs.queryByIndex(ctx, models.ReceiverIDIndex, "receiverId = :user", userID)
	if err != nil {
		return nil, err
	}
	for _, connection := range received {
		if connection.Status != models.StatusAccepted {
			continue
		}
		connections = append(connections, ConnectionWithProfile{
			Connection:  connection,
			Perspective: models.PerspectiveReceived,
			OtherUser:   cs.Profiles.GetProfileSummary(ctx, connection.SenderID),
		})
	}

	return connections, nil
}

// AreConnected reports whether an accepted connection exists for the pair.
func (cs *ConnectionService) AreConnected(ctx context.Context, userA, userB string) (bool, error) {
	connection, err := cs.findActiveByPair(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	return connection != nil && connection.Status == models.StatusAccepted, nil
}

// StatusForPair reports the live connection status between two users:
// "pending" or "accepted" when an active connection exists, "none"
// otherwise. Rejected history is not surfaced.
func (cs *ConnectionService) StatusForPair(ctx context.Context, userA, userB string) (string, error) {
	connection, err := cs.findActiveByPair(ctx, userA, userB)
	if err != nil {
		return "", err
	}
	if connection == nil {
		return "none", nil
	}
	return connection.Status, nil
}

// findActiveByPair returns the pending or accepted connection for the
// unordered pair, or nil. Rejected records do not block a new request.
func (cs *ConnectionService) findActiveByPair(ctx context.Context, userA, userB string) (*models.Connection, error) {
	keyCondition := "pairKey = :pairKey"
	expressionValues := map[string]types.AttributeValue{
		":pairKey": &types.AttributeValueMemberS{Value: models.PairKeyFor(userA, userB)},
	}

	items, err := cs.Dynamo.QueryItemsWithIndex(ctx, models.ConnectionsTable, models.PairKeyIndex, keyCondition, expressionValues, nil, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections by pair: %w", err)
	}

	for _, item := range items {
		var connection models.Connection
		if err := attributevalue.UnmarshalMap(item, &connection); err != nil {
			log.Printf("❌ Error unmarshalling connection: %v", err)
			continue
		}
		if connection.Status == models.StatusPending || connection.Status == models.StatusAccepted {
			return &connection, nil
		}
	}
	return nil, nil
}

func (cs *ConnectionService) queryByIndex(ctx context.Context, index, keyCondition, userID string) ([]models.Connection, error) {
	expressionValues := map[string]types.AttributeValue{
		":user": &types.AttributeValueMemberS{Value: userID},
	}
	items, err := cs.Dynamo.QueryItemsWithIndex(ctx, models.ConnectionsTable, index, keyCondition, expressionValues, nil, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	var connections []models.Connection
	if err := attributevalue.UnmarshalListOfMaps(items, &connections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
	}
	return connections, nil
}

// publish pushes an event after the state change committed. Push
// failures are logged, never propagated: clients reconcile over REST.
func (cs *ConnectionService) publish(event string, targets []string, payload map[string]interface{}) {
	if cs.Events == nil {
		return
	}
	if err := cs.Events.Publish(event, targets, payload); err != nil {
		log.Printf("❌ Failed to publish %s: %v", event, err)
	}
}

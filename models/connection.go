package models

import "strings"

// Connection is a directed social link between two users.
type Connection struct {
	ConnectionID string `dynamodbav:"connectionId" json:"connectionId"`
	SenderID     string `dynamodbav:"senderId" json:"senderId"`     // ✅ Used in GSI
	ReceiverID   string `dynamodbav:"receiverId" json:"receiverId"` // ✅ Used in GSI
	PairKey      string `dynamodbav:"pairKey" json:"pairKey"`       // ✅ Used in GSI, sorted "a#b"
	Status       string `dynamodbav:"status" json:"status"`         // pending, accepted, rejected
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// PairKeyFor builds the order-independent key for a user pair.
func PairKeyFor(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + "#" + userB
}

// OtherParticipant returns the participant that is not userID.
func (c *Connection) OtherParticipant(userID string) string {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// IsParticipant reports whether userID is either end of the connection.
func (c *Connection) IsParticipant(userID string) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

// ConnectionsTable is the DynamoDB table name for connections
const ConnectionsTable = "Connections"

// GSI names used for connection lookups
const (
	PairKeyIndex    = "pairKey-index"
	ReceiverIDIndex = "receiverId-index"
	SenderIDIndex   = "senderId-index"
)

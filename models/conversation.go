package models

// LastMessage is the denormalized preview stored on a conversation for
// list rendering.
type LastMessage struct {
	MessageID string `dynamodbav:"messageId" json:"messageId"`
	Content   string `dynamodbav:"content" json:"content"`
	SenderID  string `dynamodbav:"senderId" json:"senderId"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
}

// Conversation is a direct chat room between exactly two users.
// ParticipantA/ParticipantB hold the pair in sorted order so each side
// has its own GSI for "rooms of this user" queries.
type Conversation struct {
	ChatID       string         `dynamodbav:"chatId" json:"chatId"`
	Participants []string       `dynamodbav:"participants" json:"participants"` // exactly 2 for direct chat
	ParticipantA string         `dynamodbav:"participantA" json:"-"`            // ✅ Used in GSI
	ParticipantB string         `dynamodbav:"participantB" json:"-"`            // ✅ Used in GSI
	PairKey      string         `dynamodbav:"pairKey" json:"pairKey"`           // ✅ Used in GSI
	LastMessage  *LastMessage   `dynamodbav:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	UnreadCount  map[string]int `dynamodbav:"unreadCount" json:"unreadCount"`
	IsActive     bool           `dynamodbav:"isActive" json:"isActive"`
	CreatedAt    string         `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string         `dynamodbav:"updatedAt" json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// ConversationsTable is the DynamoDB table name for chat rooms
const ConversationsTable = "Conversations"

// GSI names used for conversation lookups
const (
	ConversationPairKeyIndex = "pairKey-index"
	ParticipantAIndex        = "participantA-index"
	ParticipantBIndex        = "participantB-index"
)

package models

// Message is a single chat message. Exactly one payload kind is
// populated, selected by MessageType: text messages carry Content,
// image/file messages carry the file fields.
type Message struct {
	ChatID      string   `dynamodbav:"chatId" json:"chatId"`       // ✅ Partition Key
	MessageID   string   `dynamodbav:"messageId" json:"messageId"` // ✅ Sort Key
	SenderID    string   `dynamodbav:"senderId" json:"senderId"`
	MessageType string   `dynamodbav:"messageType" json:"messageType"` // text, image, file
	Content     string   `dynamodbav:"content,omitempty" json:"content,omitempty"`
	FileURL     string   `dynamodbav:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	FileName    string   `dynamodbav:"fileName,omitempty" json:"fileName,omitempty"`
	FileType    string   `dynamodbav:"fileType,omitempty" json:"fileType,omitempty"`
	FileSize    int64    `dynamodbav:"fileSize,omitempty" json:"fileSize,omitempty"`
	CreatedAt   string   `dynamodbav:"createdAt" json:"createdAt"`
	ReadBy      []string `dynamodbav:"readBy" json:"readBy"`
}

// ReadByUser reports whether userID has already read the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Preview returns the text shown in conversation lists.
func (m *Message) Preview() string {
	if m.MessageType == MessageTypeText {
		return m.Content
	}
	return m.FileName
}

// MessagesTable is the DynamoDB table name for chat messages
const MessagesTable = "Messages"

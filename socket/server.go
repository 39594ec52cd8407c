package socket

import (
	"context"
	"log"

	"skillxchange_server/services"

	socketio "github.com/googollee/go-socket.io"
)

// NewSocketServer initializes the Socket.IO server and wires the
// client-side events: authenticate binds the connection to a user in
// the registry, join chat is advisory room grouping, typing events are
// relayed through the chat service.
func NewSocketServer(registry *SessionRegistry, chatService *services.ChatService) *socketio.Server {
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(s socketio.Conn) error {
		log.Println("✅ Socket connected:", s.ID())
		return nil
	})

	server.OnEvent("/", "authenticate", func(s socketio.Conn, data map[string]string) {
		userID := data["userId"]
		if userID == "" {
			log.Println("❌ Invalid userId in authenticate request")
			return
		}
		registry.Register(userID, s)
	})

	server.OnEvent("/", "join chat", func(s socketio.Conn, data map[string]string) {
		chatID := data["chatId"]
		if chatID == "" {
			log.Println("❌ Invalid chatId in join request")
			return
		}
		// Advisory grouping only; sendMessage re-checks participancy.
		s.Join(chatID)
		log.Printf("👥 Socket %s joined chat %s", s.ID(), chatID)
	})

	server.OnEvent("/", "typing", func(s socketio.Conn, data map[string]string) {
		chatID, userID := data["chatId"], data["userId"]
		if chatID == "" || userID == "" {
			return
		}
		if err := chatService.StartTyping(context.Background(), chatID, userID); err != nil {
			log.Printf("❌ typing event rejected: %v", err)
		}
	})

	server.OnEvent("/", "stop typing", func(s socketio.Conn, data map[string]string) {
		chatID, userID := data["chatId"], data["userId"]
		if chatID == "" || userID == "" {
			return
		}
		if err := chatService.StopTyping(context.Background(), chatID, userID); err != nil {
			log.Printf("❌ stop typing event rejected: %v", err)
		}
	})

	server.OnError("/", func(s socketio.Conn, err error) {
		log.Println("⚠️ Socket error:", err)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		registry.Unregister(s.ID())
		log.Println("❌ Socket disconnected:", s.ID(), reason)
	})

	return server
}

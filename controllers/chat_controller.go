package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"skillxchange_server/services"

	"github.com/gorilla/mux"
)

// ChatController struct
type ChatController struct {
	ChatService *services.ChatService
}

// NewChatController initializes the controller with the ChatService
func NewChatController(service *services.ChatService) *ChatController {
	return &ChatController{ChatService: service}
}

// HandleAccessChat - Look up or create the room for a connected pair
func (c *ChatController) HandleAccessChat(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID      string `json:"userId"`
		OtherUserID string `json:"otherUserId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if request.UserID == "" || request.OtherUserID == "" {
		http.Error(w, `{"error": "userId and otherUserId are required"}`, http.StatusBadRequest)
		return
	}

	room, err := c.ChatService.AccessRoom(r.Context(), request.UserID, request.OtherUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// HandleSendMessage - Append a message to a room
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ChatID   string                  `json:"chatId"`
		SenderID string                  `json:"senderId"`
		Message  services.MessagePayload `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	log.Printf("📩 %s sending %s message to chat %s", request.SenderID, request.Message.MessageType, request.ChatID)

	message, err := c.ChatService.SendMessage(r.Context(), request.ChatID, request.SenderID, request.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

// HandleGetMessages - Fetch messages for a chat, newest first
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	userID := r.URL.Query().Get("userId")
	if chatID == "" || userID == "" {
		http.Error(w, `{"error": "chatId and userId are required"}`, http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, `{"error": "Invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := c.ChatService.Messages(r.Context(), chatID, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// HandleMarkAsRead - Reset the caller's unread counter for a chat
func (c *ChatController) HandleMarkAsRead(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ChatID string `json:"chatId"`
		UserID string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.ChatService.MarkRead(r.Context(), request.ChatID, request.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Messages marked as read"})
}

// HandleDeleteMessage - Sender deletes their own message
func (c *ChatController) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"messageId"`
		UserID    string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.ChatService.DeleteMessage(r.Context(), request.ChatID, request.MessageID, request.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Message deleted"})
}

// HandleDeleteChat - Participant deletes the room and its messages
func (c *ChatController) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ChatID string `json:"chatId"`
		UserID string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.ChatService.DeleteRoom(r.Context(), request.ChatID, request.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Chat deleted"})
}

// HandleGetRooms - Fetch the user's conversations
func (c *ChatController) HandleGetRooms(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	rooms, err := c.ChatService.RoomsFor(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rooms)
}

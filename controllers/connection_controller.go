package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"skillxchange_server/services"

	"github.com/gorilla/mux"
)

// ConnectionController struct
type ConnectionController struct {
	ConnectionService *services.ConnectionService
}

// NewConnectionController initializes the controller
func NewConnectionController(service *services.ConnectionService) *ConnectionController {
	return &ConnectionController{ConnectionService: service}
}

// HandleRequest - User sends a connection request
func (c *ConnectionController) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var request struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if request.SenderID == "" || request.ReceiverID == "" {
		http.Error(w, `{"error": "senderId and receiverId are required"}`, http.StatusBadRequest)
		return
	}

	log.Printf("🤝 %s requested a connection with %s", request.SenderID, request.ReceiverID)

	connection, err := c.ConnectionService.Request(r.Context(), request.SenderID, request.ReceiverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":     "success",
		"connection": connection,
	})
}

// HandleRespond - Receiver accepts or rejects a pending request
func (c *ConnectionController) HandleRespond(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConnectionID string `json:"connectionId"`
		UserID       string `json:"userId"`
		Decision     string `json:"decision"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	connection, err := c.ConnectionService.Respond(r.Context(), request.ConnectionID, request.UserID, request.Decision)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"connection": connection,
	})
}

// HandleRemove - Either participant removes an accepted connection
func (c *ConnectionController) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConnectionID string `json:"connectionId"`
		UserID       string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.ConnectionService.Remove(r.Context(), request.ConnectionID, request.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Connection removed"})
}

// HandleGetPending - Fetch pending requests awaiting the user's response
func (c *ConnectionController) HandleGetPending(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	pending, err := c.ConnectionService.PendingFor(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pending)
}

// HandleGetStatus - Report the connection status between two users
func (c *ConnectionController) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	userA := r.URL.Query().Get("userA")
	userB := r.URL.Query().Get("userB")
	if userA == "" || userB == "" {
		http.Error(w, `{"error": "userA and userB are required"}`, http.StatusBadRequest)
		return
	}

	status, err := c.ConnectionService.StatusForPair(r.Context(), userA, userB)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// HandleGetConnections - Fetch the user's accepted connections
func (c *ConnectionController) HandleGetConnections(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	connections, err := c.ConnectionService.ConnectionsFor(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, connections)
}

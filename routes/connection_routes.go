package routes

import (
	"skillxchange_server/controllers"
	"skillxchange_server/services"

	"github.com/gorilla/mux"
)

// RegisterConnectionRoutes sets up routes for connection lifecycle operations under /api/connections
func RegisterConnectionRoutes(r *mux.Router, connectionService *services.ConnectionService) {
	controller := controllers.NewConnectionController(connectionService)

	connectionRouter := r.PathPrefix("/api/connections").Subrouter()
	connectionRouter.HandleFunc("/request", controller.HandleRequest).Methods("POST")
	connectionRouter.HandleFunc("/respond", controller.HandleRespond).Methods("POST")
	connectionRouter.HandleFunc("/remove", controller.HandleRemove).Methods("POST")
	connectionRouter.HandleFunc("/pending/{userId}", controller.HandleGetPending).Methods("GET")
	connectionRouter.HandleFunc("/status", controller.HandleGetStatus).Methods("GET")
	connectionRouter.HandleFunc("/{userId}", controller.HandleGetConnections).Methods("GET")
}

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"skillxchange_server/routes"
	"skillxchange_server/services"
	"skillxchange_server/socket"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	// Initialize DynamoDB client and service
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	dynamoService := &services.DynamoService{Client: dynamoClient}
	log.Println("DynamoDB client initialized.")

	// Session registry and event router own all live-socket state
	registry := socket.NewSessionRegistry()
	eventRouter := &socket.EventRouter{Registry: registry}

	// Initialize Services
	userProfileService := &services.UserProfileService{Dynamo: dynamoService}
	connectionService := &services.ConnectionService{
		Dynamo:   dynamoService,
		Profiles: userProfileService,
		Events:   eventRouter,
	}
	chatService := &services.ChatService{
		Dynamo:      dynamoService,
		Profiles:    userProfileService,
		Connections: connectionService,
		Events:      eventRouter,
	}
	s3Service, err := services.NewS3Service()
	if err != nil {
		log.Fatalf("Failed to initialize S3 service: %v", err)
	}

	// Socket.IO server for real-time push
	socketServer := socket.NewSocketServer(registry, chatService)
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Fatalf("Socket server error: %v", err)
		}
	}()
	defer socketServer.Close()

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to SkillXchange")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Mount the socket transport
	r.Handle("/socket.io/", socketServer)

	// Register routes
	routes.RegisterUserProfileRoutes(r, userProfileService)
	routes.RegisterConnectionRoutes(r, connectionService)
	routes.RegisterChatRoutes(r, chatService)
	routes.RegisterUploadRoutes(r, s3Service)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}

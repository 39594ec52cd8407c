package routes

import (
	"skillxchange_server/controllers"
	"skillxchange_server/services"

	"github.com/gorilla/mux"
)

// RegisterUploadRoutes sets up routes for file-attachment uploads under /api/uploads
func RegisterUploadRoutes(r *mux.Router, s3Service *services.S3Service) {
	controller := controllers.NewS3Controller(s3Service)

	uploadRouter := r.PathPrefix("/api/uploads").Subrouter()
	uploadRouter.HandleFunc("/presigned-url", controller.HandleGeneratePresignedURL).Methods("POST")
	uploadRouter.HandleFunc("/read-url", controller.HandleGetPresignedReadURL).Methods("POST")
}

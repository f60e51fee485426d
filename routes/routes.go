package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"docbucket/handlers"
)

// Setup configures and returns a new router with all defined routes for the application.
func Setup(container *handlers.Container) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	docs := handlers.NewDocumentHandlers(container)
	views := handlers.NewViewHandlers(container)
	status := handlers.NewStatusHandlers(container)

	// Reads of documents, views and the bucket state.
	setupGetRoutes(router, docs, views, status)

	// Writes and removals.
	setupWriteRoutes(router, docs)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, r, handlers.NewAppError(handlers.ErrorTypeNotFound,
			"no route for "+r.URL.Path, "Not found", http.StatusNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, r, handlers.NewAppError(handlers.ErrorTypeValidation,
			r.Method+" is not allowed on "+r.URL.Path, "Method not allowed", http.StatusMethodNotAllowed))
	})

	return router
}

// setupGetRoutes defines all routes that handle GET and HEAD requests.
func setupGetRoutes(router *mux.Router, docs *handlers.DocumentHandlers, views *handlers.ViewHandlers, status *handlers.StatusHandlers) {
	router.HandleFunc("/status", status.HandleStatus).Methods("GET").Name("Status")
	router.HandleFunc("/docs/{id}", docs.GetDocument).Methods("GET").Name("GetDocument")
	router.HandleFunc("/docs/{id}", docs.HeadDocument).Methods("HEAD").Name("HeadDocument")
	router.HandleFunc("/views/{design}/{view}", views.QueryView).Methods("GET").Name("QueryView")
}

// setupWriteRoutes defines all routes that store or remove documents.
func setupWriteRoutes(router *mux.Router, docs *handlers.DocumentHandlers) {
	router.HandleFunc("/docs", docs.PostDocument).Methods("POST").Name("PostDocument")
	router.HandleFunc("/docs/_bulk", docs.PostBulk).Methods("POST").Name("PostBulk")
	router.HandleFunc("/docs/{id}", docs.PutDocument).Methods("PUT").Name("PutDocument")
	router.HandleFunc("/docs/{id}", docs.DeleteDocument).Methods("DELETE").Name("DeleteDocument")
}

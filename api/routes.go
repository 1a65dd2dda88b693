package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"streamvault/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RegisterRoutes wires all HTTP endpoints onto the router.
func RegisterRoutes(r *mux.Router, streamsHandler *handlers.StreamsHandler) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/streams/search", streamsHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/streams/search", streamsHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/streams/resolve", streamsHandler.Resolve).Methods(http.MethodGet)
	api.HandleFunc("/streams/resolve", streamsHandler.Options).Methods(http.MethodOptions)
}

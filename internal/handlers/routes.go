package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Router wires every endpoint, request ids, metrics and, when origins are
// configured, CORS.
func (h *Handler) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthcheck", h.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/hash", h.HandleHash).Methods(http.MethodPost)
	api.HandleFunc("/groups", h.HandleGroups).Methods(http.MethodPost)
	api.HandleFunc("/groups/fingerprints", h.HandleGroupFingerprints).Methods(http.MethodPost)
	api.HandleFunc("/urls/upload", h.HandleUploadURL).Methods(http.MethodPost)
	api.HandleFunc("/urls/download", h.HandleDownloadURL).Methods(http.MethodPost)
	api.HandleFunc("/photos", h.HandleListPhotos).Methods(http.MethodGet)
	api.HandleFunc("/photos/data", h.HandlePhotoData).Methods(http.MethodGet)

	var handler http.Handler = requestID(router)
	if len(h.origins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: h.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}).Handler(handler)
	}

	return h.metrics.Middleware(handler)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "err", err)
	}
}

// requestID tags each request with an X-Request-ID and logs its outcome.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Handled request", "request_id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

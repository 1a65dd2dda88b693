package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"streamvault/models"
	"streamvault/services/debrid"
)

// StreamsHandler exposes the search and resolve operations over HTTP.
type StreamsHandler struct {
	engine *debrid.Engine
}

func NewStreamsHandler(engine *debrid.Engine) *StreamsHandler {
	return &StreamsHandler{engine: engine}
}

type searchResponse struct {
	Results []models.StreamSource `json:"results"`
	Count   int                   `json:"count"`
}

// Search handles GET /api/streams/search?type=&id=&title=&year=&season=&episode=
func (h *StreamsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mediaType := models.MediaType(strings.ToLower(q.Get("type")))
	if mediaType != models.MediaTypeMovie && mediaType != models.MediaTypeSeries {
		writeError(w, http.StatusBadRequest, "type must be movie or series")
		return
	}
	contentID := strings.TrimSpace(q.Get("id"))
	title := strings.TrimSpace(q.Get("title"))
	if contentID == "" || title == "" {
		writeError(w, http.StatusBadRequest, "id and title are required")
		return
	}

	req := debrid.SearchRequest{
		MediaType: mediaType,
		ContentID: contentID,
		Title:     title,
		Year:      intParam(q.Get("year")),
		Season:    intParam(q.Get("season")),
		Episode:   intParam(q.Get("episode")),
	}
	if mediaType == models.MediaTypeSeries && (req.Season <= 0 || req.Episode <= 0) {
		writeError(w, http.StatusBadRequest, "season and episode are required for series")
		return
	}

	results := h.engine.Search(r.Context(), req)
	if results == nil {
		results = []models.StreamSource{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

// Resolve handles GET /api/streams/resolve?ref=
func (h *StreamsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}

	url := h.engine.Resolve(r.Context(), ref)
	if url == "" {
		writeError(w, http.StatusNotFound, "stream currently unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Options handles CORS preflight requests.
func (h *StreamsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func intParam(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

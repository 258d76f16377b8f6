package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"edupro/internal/api/v1/dto"
	"edupro/internal/service"

	"github.com/rs/zerolog"
)

const noVideosHint = "No tutorial videos could be found right now. Try a different search term or open the full results page."

// VideoHandler serves external tutorial lookups
type VideoHandler struct {
	lookup    service.VideoLookup
	watchBase string
	logger    zerolog.Logger
}

// NewVideoHandler creates a VideoHandler. watchBase is the video site used
// to build watch and embed links.
func NewVideoHandler(lookup service.VideoLookup, watchBase string, logger zerolog.Logger) *VideoHandler {
	return &VideoHandler{
		lookup:    lookup,
		watchBase: strings.TrimRight(watchBase, "/"),
		logger:    logger.With().Str("handler", "VideoHandler").Logger(),
	}
}

func (h *VideoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/videos/search", h.search)
}

func (h *VideoHandler) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{Error: "Search query is required", Missing: []string{"q"}})
		return
	}
	maxResults := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{Error: "max must be a non-negative integer", Invalid: []string{"max"}})
			return
		}
		maxResults = n
	}

	results, err := h.lookup.Search(r.Context(), query, maxResults)
	if err != nil && !errors.Is(err, service.ErrLookupUnavailable) {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := dto.VideoSearchDTO{
		Query:          query,
		Results:        make([]dto.VideoResultDTO, 0, len(results)),
		MoreResultsURL: h.lookup.MoreResultsURL(query),
	}
	for _, v := range results {
		resp.Results = append(resp.Results, dto.VideoResultDTO{
			VideoID:  v.ID,
			Title:    v.Title,
			WatchURL: h.watchBase + "/watch?v=" + v.ID,
			EmbedURL: h.watchBase + "/embed/" + v.ID,
		})
	}
	if len(resp.Results) == 0 {
		resp.Hint = noVideosHint
	}
	writeJSON(w, http.StatusOK, resp)
}

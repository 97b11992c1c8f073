package handlers

import (
	"net/http"

	"github.com/holelung/Face-recognition-attendance-check/internal/config"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config  *config.Config
	matcher *facematch.Matcher
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, matcher *facematch.Matcher) *ConfigHandler {
	return &ConfigHandler{
		config:  cfg,
		matcher: matcher,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	MatchThreshold float64     `json:"match_threshold"`
	DedupThreshold float64     `json:"dedup_threshold"`
	Index          string      `json:"index"`
	AccrueOnMatch  bool        `json:"accrue_on_match"`
	Backend        string      `json:"backend"`
	Gallery        GalleryInfo `json:"gallery"`
}

// GalleryInfo describes the snapshot currently used for matching
type GalleryInfo struct {
	Version     int64 `json:"version"`
	Labels      int   `json:"labels"`
	Descriptors int   `json:"descriptors"`
	Indexed     bool  `json:"indexed"`
}

// Get returns the active matching configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	backend := "memory"
	if database.IsInitialized() {
		backend = "postgres"
	}

	g := h.matcher.Current()
	response := ConfigResponse{
		MatchThreshold: g.Threshold(),
		DedupThreshold: h.config.Matching.DedupThreshold,
		Index:          h.config.Matching.Index,
		AccrueOnMatch:  h.config.Session.AccrueOnMatch,
		Backend:        backend,
		Gallery: GalleryInfo{
			Version:     g.Version(),
			Labels:      len(g.Labels()),
			Descriptors: g.Size(),
			Indexed:     g.Indexed(),
		},
	}

	respondJSON(w, http.StatusOK, response)
}

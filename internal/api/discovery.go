package api

import "net/http"

// handlePublishDiscovery republishes every Home Assistant discovery config.
// Useful after Home Assistant lost its retained configs.
func (s *Server) handlePublishDiscovery(w http.ResponseWriter, _ *http.Request) {
	s.bridge.PublishDiscovery()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

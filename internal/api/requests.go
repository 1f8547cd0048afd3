package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynet"
)

// RequestsResponse lists outstanding correlated requests, oldest first.
type RequestsResponse struct {
	Requests []dynet.PendingRequest `json:"requests"`
	Count    int                    `json:"count"`
}

func (s *Server) handleListRequests(w http.ResponseWriter, _ *http.Request) {
	pending := s.bridge.PendingRequests()
	if pending == nil {
		pending = []dynet.PendingRequest{}
	}
	writeJSON(w, http.StatusOK, RequestsResponse{
		Requests: pending,
		Count:    len(pending),
	})
}

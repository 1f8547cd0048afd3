package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynet"
)

// yamlContentType is served for the raw map document.
const yamlContentType = "application/yaml"

// AreaSummary describes one configured area.
type AreaSummary struct {
	ID       int              `json:"id"`
	Name     string           `json:"name,omitempty"`
	Channels []ChannelSummary `json:"channels"`
}

// ChannelSummary describes one mapped channel and the lists it resolves with.
type ChannelSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Style   string `json:"style"`
	Presets []int  `json:"presets"`
	Levels  []int  `json:"levels"`
}

// MapUpdateResponse reports an applied map.
type MapUpdateResponse struct {
	Status string `json:"status"`
	Areas  int    `json:"areas"`
}

// handleListAreas summarises the current map with effective presets and
// levels, so an operator can see what the resolver will use.
func (s *Server) handleListAreas(w http.ResponseWriter, _ *http.Request) {
	m := s.maps.Map()

	areas := make([]AreaSummary, 0, len(m.Areas))
	for _, id := range m.AreaIDs() {
		cfg := m.Areas[id]
		summary := AreaSummary{ID: id, Name: cfg.Name, Channels: []ChannelSummary{}}
		for _, ch := range m.ChannelIDs(id) {
			chCfg, err := m.Channel(id, ch)
			if err != nil {
				continue
			}
			presets, levels := m.Effective(id, ch)
			summary.Channels = append(summary.Channels, ChannelSummary{
				ID:      ch.String(),
				Name:    chCfg.Name,
				Style:   m.Style(chCfg),
				Presets: orEmpty(presets),
				Levels:  orEmpty(levels),
			})
		}
		areas = append(areas, summary)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"areas": areas,
		"count": len(areas),
	})
}

// handleGetMap returns the map document exactly as loaded.
func (s *Server) handleGetMap(w http.ResponseWriter, _ *http.Request) {
	raw := s.maps.Raw()
	if len(raw) == 0 {
		writeNotFound(w, "map has no source document")
		return
	}
	w.Header().Set("Content-Type", yamlContentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(raw)
}

// handlePutMap validates the body as a map document, persists it and
// swaps it in. The running map is untouched when validation fails.
func (s *Server) handlePutMap(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "map document too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}
	if len(data) == 0 {
		writeBadRequest(w, "request body is empty")
		return
	}

	if err := s.maps.Replace(data); err != nil {
		s.writeMapError(w, "map update rejected", err)
		return
	}

	areas := len(s.maps.Map().Areas)
	s.logger.Info("dynalite map replaced via API", "areas", areas)
	writeJSON(w, http.StatusOK, MapUpdateResponse{Status: "applied", Areas: areas})
}

// handleReloadMap re-reads the map file from disk.
func (s *Server) handleReloadMap(w http.ResponseWriter, _ *http.Request) {
	if err := s.maps.Reload(); err != nil {
		s.writeMapError(w, "map reload failed", err)
		return
	}
	writeJSON(w, http.StatusOK, MapUpdateResponse{Status: "reloaded", Areas: len(s.maps.Map().Areas)})
}

func (s *Server) writeMapError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, dynet.ErrInvalidMap) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	s.logger.Error(msg, "error", err)
	writeInternalError(w, msg)
}

func orEmpty(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

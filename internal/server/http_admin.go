package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/groblegark/pixelrelay/internal/settings"
)

const defaultLogLimit = 100

// handleGetSettings handles GET /v1/settings. The access token is
// redacted to its last four characters.
func (s *RelayServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load settings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Redacted())
}

// handlePutSettings handles PUT /v1/settings. Submitting an empty or
// redacted access token keeps the stored one, so operators can update
// other fields without re-entering the credential.
func (s *RelayServer) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}

	if in.AccessToken == "" || strings.HasPrefix(in.AccessToken, "…") {
		current, err := s.store.GetSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load settings: "+err.Error())
			return
		}
		in.AccessToken = current.AccessToken
	}

	if in.EnabledEvents == nil {
		in.EnabledEvents = settings.Defaults().EnabledEvents
	}

	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.SaveSettings(r.Context(), &in); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings: "+err.Error())
		return
	}

	s.logger.Info("settings updated", "pixel_id", in.PixelID, "debug_mode", in.DebugMode)
	writeJSON(w, http.StatusOK, in.Redacted())
}

// handleListLogs handles GET /v1/logs?limit=N, newest first.
func (s *RelayServer) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.store.ListLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list logs: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

// handleCleanupLogs handles DELETE /v1/logs?before=RFC3339. Without a
// cutoff, everything up to now is deleted.
func (s *RelayServer) handleCleanupLogs(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().UTC()
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before timestamp: "+err.Error())
			return
		}
		cutoff = t
	}

	deleted, err := s.store.DeleteLogsBefore(r.Context(), cutoff)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete logs: "+err.Error())
		return
	}

	s.logger.Info("diagnostic logs deleted", "count", deleted, "before", cutoff)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

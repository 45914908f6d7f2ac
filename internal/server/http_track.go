package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/track"
)

// handleTrack handles POST /v1/track. The envelope is accepted and
// processed before the response; delivery to the Conversions API stays
// asynchronous, so a 202 means "events built and handed off", not
// "delivered".
func (s *RelayServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	var env track.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}

	if env.Page.ClientIP == "" {
		env.Page.ClientIP = remoteIP(r)
	}
	if env.Page.UserAgent == "" {
		env.Page.UserAgent = r.UserAgent()
	}

	if err := s.tracker.HandleEnvelope(r.Context(), &env); err != nil {
		s.logger.Error("envelope failed", "trace_id", env.TraceID, "err", err)
		writeError(w, http.StatusInternalServerError, "envelope processing failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"trace_id": env.TraceID})
}

// handleTestConnection handles POST /v1/test: a synchronous synthetic
// PageView against the configured credentials.
func (s *RelayServer) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load settings: "+err.Error())
		return
	}

	resp, err := s.client.TestConnection(r.Context(), snap.Auth(""), s.siteURL, remoteIP(r), r.UserAgent())
	if err != nil {
		var apiErr *capi.APIError
		switch {
		case errors.Is(err, capi.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &apiErr):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":       apiErr.Message,
				"status_code": apiErr.StatusCode,
			})
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status_code": resp.StatusCode,
		"body":        resp.Body,
	})
}

// remoteIP extracts the client address, without the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

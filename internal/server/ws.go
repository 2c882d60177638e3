package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// handleAlertsWS streams geofence alerts as JSON text frames. The
// suspect_name query parameter narrows the stream to one suspect. Callers
// authenticate with the bearer header or with a ?ticket= from
// POST /v1/ws/ticket.
func (s *Server) handleAlertsWS(w http.ResponseWriter, r *http.Request) {
	suspect := strings.TrimSpace(r.URL.Query().Get("suspect_name"))

	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		if err := s.tickets.Redeem(ticket, suspect); err != nil {
			applog.Log.Debug("Alert ticket rejected", "suspect", suspect, "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
	}

	// Subscribe before the handshake completes so no alert published after
	// the client sees the upgrade is missed.
	ch, unsub := s.svc.Alerts.Subscribe(suspect)
	defer unsub()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		applog.Log.Error("WebSocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	wsConnectionsActive.Inc()
	defer wsConnectionsActive.Dec()
	applog.Log.Info("Geofence alert client connected", "suspect", suspect)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case alert, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}
			data, err := json.Marshal(alert)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				applog.Log.Debug("WS write failed", "suspect", suspect, "error", err)
				return
			}
			wsAlertsSentTotal.Inc()
		}
	}
}

// TicketResponse is returned by POST /v1/ws/ticket.
type TicketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleIssueTicket trades the caller's bearer token for a one-shot alert
// socket ticket. The body is {"suspect_name": "..."}; leaving the name empty
// scopes the ticket to every suspect.
// @Summary Issue an alert socket ticket
// @Tags alerts
// @Accept json
// @Produce json
// @Success 200 {object} TicketResponse
// @Failure 400 {object} ErrorResponse
// @Router /ws/ticket [post]
// @Security BearerAuth
func (s *Server) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SuspectName string `json:"suspect_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Failed to parse request body")
		return
	}

	id, expires := s.tickets.Issue(strings.TrimSpace(req.SuspectName))
	writeJSON(w, http.StatusOK, TicketResponse{Ticket: id, ExpiresAt: expires})
}

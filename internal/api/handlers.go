package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// sendTimeout bounds a manual send made through the API.
const sendTimeout = 15 * time.Second

// SendRequest is the body accepted by POST /send.
type SendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.sendHandler: bad request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	to, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.sendHandler: invalid recipient", "error", err, "to", req.To)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()
	if err := s.msgService.SendMessage(ctx, to, req.Body); err != nil {
		slog.Error("Server.sendHandler: send failed", "error", err, "to", to)
		writeError(w, http.StatusBadGateway, "Failed to send message")
		return
	}

	slog.Info("Server.sendHandler: message sent", "to", to)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	listAudit(w, "receipts", s.st.GetReceipts)
}

func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	listAudit(w, "responses", s.st.GetResponses)
}

// ordersHandler lists dispatch attempts. The optional "user" query parameter
// restricts the list to one customer.
func (s *Server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	fetch := s.st.GetOrders
	if user := r.URL.Query().Get("user"); user != "" {
		fetch = func() ([]models.OrderRecord, error) { return s.st.GetOrdersByUser(user) }
	}
	listAudit(w, "orders", fetch)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.sessions != nil {
		healthData["active_sessions"] = s.sessions.Len()
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/tutardo/chatrelay/internal/tracing"
)

// webhookPayload mirrors the slice of the Meta webhook envelope the relay
// needs; everything else in the payload is ignored.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type chatLocalRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatLocalResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// handleWebhook serves both the provider's GET verification handshake and
// inbound POST message notifications.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleWebhookVerify(w, r)
	case http.MethodPost:
		s.handleWebhookMessage(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.options.VerifyToken && s.options.VerifyToken != "" {
		s.logger.Info().Msg("Webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	w.WriteHeader(http.StatusForbidden)
}

func (s *Server) handleWebhookMessage(w http.ResponseWriter, r *http.Request) {
	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	ctx := tracing.NewRequestContext(r.Context())
	ctx = tracing.WithChannel(ctx, "webhook")
	logger := tracing.LoggerFromContext(ctx, s.logger)

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Malformed webhook payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Ack immediately regardless of outcome: the provider retries on
	// non-200 and a storage fault must not trigger duplicate turns.
	w.WriteHeader(http.StatusOK)

	for _, msg := range extractMessages(payload) {
		if msg.Type != "text" {
			continue
		}

		logger.Info().Str("from", msg.From).Msg("Inbound message")

		reply := s.handler.HandleMessage(ctx, msg.From, msg.Text.Body)
		if reply == "" || s.sender == nil {
			continue
		}

		if err := s.sender.SendText(ctx, msg.From, reply); err != nil {
			logger.Error().Err(err).Str("to", msg.From).Msg("Failed to deliver reply")
		}
	}
}

func extractMessages(payload webhookPayload) []inboundMessage {
	var messages []inboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			messages = append(messages, change.Value.Messages...)
		}
	}
	return messages
}

// handleChatLocal is the browser simulator: same pipeline as the real
// webhook, with a synthetic per-visitor user id.
func (s *Server) handleChatLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	ctx := tracing.NewRequestContext(r.Context())
	ctx = tracing.WithChannel(ctx, "local")
	logger := tracing.LoggerFromContext(ctx, s.logger)

	var req chatLocalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "message is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to generate session id")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		sessionID = "web-" + id
	}

	reply := s.handler.HandleMessage(ctx, sessionID, req.Message)
	if reply == "" {
		reply = "The bot is silent for this conversation (human agent mode)."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatLocalResponse{
		Reply:     reply,
		SessionID: sessionID,
	})
}

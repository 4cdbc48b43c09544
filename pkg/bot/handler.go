// Package bot implements the chat-turn handler: it joins the session store,
// the knowledge source and the completion provider into one reply pipeline.
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutardo/chatrelay/internal/observability"
	"github.com/tutardo/chatrelay/internal/tracing"
	"github.com/tutardo/chatrelay/pkg/ai"
	"github.com/tutardo/chatrelay/pkg/knowledge"
	"github.com/tutardo/chatrelay/pkg/session"
)

// HandoverSentinel is the marker the model emits when the user asks for a
// human. Seeing it flips the session to HANDOVER: the bot stays silent for
// that user until the status is externally reset.
const HandoverSentinel = "ACTION_HANDOVER"

const (
	handoverReply    = "Got it. I'm handing you over to a human agent."
	memoryResetReply = "I had a memory error. Please greet me again to start over."
	genericFallback  = "I ran into a small technical problem. Could you repeat that?"
)

// DefaultHistoryLimit caps replayed history; oldest turns are evicted first.
const DefaultHistoryLimit = 10

// Options tunes the handler.
type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

// Handler processes one chat turn at a time per call. It is safe for
// concurrent use; all shared state lives behind the session store.
type Handler struct {
	store     session.Store
	provider  ai.Provider
	knowledge *knowledge.Source
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a chat-turn handler.
func New(store session.Store, provider ai.Provider, src *knowledge.Source, opts Options, logger zerolog.Logger) *Handler {
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 500
	}
	return &Handler{
		store:     store,
		provider:  provider,
		knowledge: src,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage runs one chat turn and returns the reply text. An empty
// reply means the bot is silent for this user (handover mode). Storage and
// completion faults never propagate: they degrade to a fallback reply.
func (h *Handler) HandleMessage(ctx context.Context, userID, text string) string {
	ctx = tracing.WithUserID(ctx, userID)
	logger := tracing.LoggerFromContext(ctx, h.logger)
	start := time.Now()

	s := h.store.Get(ctx, userID)

	if s.Status == session.StatusHandover {
		observability.RecordChatTurn("handover_silent", time.Since(start))
		logger.Debug().Msg("Session in handover, staying silent")
		return ""
	}

	// The completion model rejects a history opening with a model turn.
	history := session.TrimLeadingModelTurns(s.History)

	reply, err := h.provider.Complete(ctx, ai.Request{
		Model:        h.opts.Model,
		SystemPrompt: h.buildPrompt(),
		Messages:     toProviderMessages(history, text),
		Temperature:  h.opts.Temperature,
		MaxTokens:    h.opts.MaxTokens,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Completion call failed")

		// A role-ordering rejection means the stored history itself is the
		// problem; clear it so the next turn starts clean.
		if isRoleError(err) {
			h.store.Update(ctx, userID, session.Delta{History: []session.Turn{}})
			observability.RecordChatTurn("history_reset", time.Since(start))
			return memoryResetReply
		}

		observability.RecordChatTurn("error", time.Since(start))
		return genericFallback
	}

	if strings.Contains(reply, HandoverSentinel) {
		h.store.Update(ctx, userID, session.Delta{
			Status: session.StatusOf(session.StatusHandover),
		})
		observability.RecordChatTurn("handover", time.Since(start))
		logger.Info().Msg("Handover requested, bot muted for user")
		return handoverReply
	}

	history = append(history,
		session.Turn{Role: session.RoleUser, Content: text},
		session.Turn{Role: session.RoleModel, Content: reply},
	)
	history = session.CapHistory(history, h.opts.HistoryLimit)

	h.store.Update(ctx, userID, session.Delta{History: history})

	observability.RecordChatTurn("ok", time.Since(start))
	logger.Debug().Int("history", len(history)).Msg("Chat turn completed")

	return reply
}

// toProviderMessages converts stored turns plus the new user text into the
// provider request shape.
func toProviderMessages(history []session.Turn, text string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, ai.Message{Role: session.RoleUser, Content: text})
}

// isRoleError detects the provider rejecting history that does not start
// with a user turn.
func isRoleError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "role") &&
		(strings.Contains(msg, "user") || strings.Contains(msg, "first message"))
}

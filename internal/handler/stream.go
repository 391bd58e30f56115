package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/middleware"
	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// EventSource delivers live domain events for one conversation.
type EventSource interface {
	SubscribeConversation(ctx context.Context, tenantID, conversationID string, handler func(model.Event)) (func(), error)
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	messageService      *service.MessageService
	conversationService *service.ConversationService
	events              EventSource
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler. events may be nil when no
// event bus is connected; the live stream then degrades to heartbeats only.
func NewStreamHandler(
	msgSvc *service.MessageService,
	convSvc *service.ConversationService,
	events EventSource,
	log *logger.Logger,
) *StreamHandler {
	return &StreamHandler{
		messageService:      msgSvc,
		conversationService: convSvc,
		events:              events,
		logger:              log,
	}
}

// Stream handles GET /api/v1/conversations/{id}/stream
//
// Sends the active path as a replay, then forwards live domain events until
// the client disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversationService.Get(ctx, tenantID, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setSSEHeaders(w)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"conversation_id": conversationID,
	})

	// Replay the active path so the client starts from the current transcript.
	resp, err := h.messageService.ListMessages(ctx, tenantID, conversationID, "", false)
	if err != nil {
		h.logger.Error("failed to replay messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "replay_error",
			Message: "Failed to replay messages",
		})
		return
	}
	for _, msg := range resp.Messages {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sendSSEEvent(w, flusher, "message", msg)
	}
	sendSSEEvent(w, flusher, "replay_complete", map[string]int{
		"message_count": len(resp.Messages),
	})

	// Forward live events.
	eventCh := make(chan model.Event, 16)
	if h.events != nil {
		stop, err := h.events.SubscribeConversation(ctx, tenantID, conversationID, func(e model.Event) {
			select {
			case eventCh <- e:
			default:
				// Slow client: drop rather than block the consumer.
			}
		})
		if err != nil {
			h.logger.Warn("event subscription unavailable",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		} else {
			defer stop()
		}
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected",
				zap.String("conversation_id", conversationID))
			return
		case event := <-eventCh:
			sendSSEEvent(w, flusher, string(event.Type), event)
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// StreamWithMessage handles POST /api/v1/conversations/{id}/stream
//
// Accepts a user message and streams the assistant reply token by token.
func (h *StreamHandler) StreamWithMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversationService.Get(ctx, tenantID, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setSSEHeaders(w)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	resp, err := h.messageService.SendWithStream(
		ctx,
		tenantID,
		conversationID,
		&req,
		func(token string, index int) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
				Token: token,
				Index: index,
			})
		},
	)
	if err != nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "stream_error",
			Message: err.Error(),
		})
		return
	}

	sendSSEEvent(w, flusher, "user_message", resp.UserMessage)
	if resp.AssistantMessage != nil {
		sendSSEEvent(w, flusher, "message_complete", resp.AssistantMessage)
	}
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/services/chat"
	"github.com/docuchat/backend/services/rag"
	"github.com/docuchat/backend/utils"
	"go.uber.org/zap"
)

// CreateChatRequest represents the create chat request body
type CreateChatRequest struct {
	Title string `json:"title" validate:"max=255"`
}

// RenameChatRequest represents the rename chat request body
type RenameChatRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

// SendMessageBody represents the send message request body
type SendMessageBody struct {
	Content        string   `json:"content" validate:"required"`
	Model          string   `json:"model" validate:"omitempty,max=255"`
	Temperature    *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens      *int     `json:"max_tokens" validate:"omitempty,min=1"`
	IncludeHistory *bool    `json:"include_history"`
	MaxHistory     *int     `json:"max_history" validate:"omitempty,min=0,max=50"`
}

// ChatService defines the conversation operations the handler depends on
type ChatService interface {
	CreateChat(ctx context.Context, projectID int64, title string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID int64) (*models.Chat, error)
	ListChats(ctx context.Context, projectID int64) ([]*models.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID int64, title string) error
	DeleteChat(ctx context.Context, chatID int64) error
	GetMessages(ctx context.Context, chatID int64) ([]*models.ChatMessage, error)
	SendMessage(ctx context.Context, req *chat.SendMessageRequest) (*rag.RAGResponse, error)
	SendMessageStream(ctx context.Context, req *chat.SendMessageRequest) (<-chan rag.StreamEvent, error)
}

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreate handles POST /api/v1/projects/{projectID}/chats
func (h *ChatHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode create chat request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	created, err := h.service.CreateChat(r.Context(), projectID, req.Title)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, created)
}

// HandleList handles GET /api/v1/projects/{projectID}/chats
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	chats, err := h.service.ListChats(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, chats)
}

// HandleGet handles GET /api/v1/chats/{chatID}
func (h *ChatHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlParamInt64(w, r, "chatID")
	if !ok {
		return
	}

	found, err := h.service.GetChat(r.Context(), chatID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, found)
}

// HandleRename handles PUT /api/v1/chats/{chatID}
func (h *ChatHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlParamInt64(w, r, "chatID")
	if !ok {
		return
	}

	var req RenameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode rename chat request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.UpdateChatTitle(r.Context(), chatID, req.Title); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	updated, err := h.service.GetChat(r.Context(), chatID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, updated)
}

// HandleDelete handles DELETE /api/v1/chats/{chatID}
func (h *ChatHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlParamInt64(w, r, "chatID")
	if !ok {
		return
	}

	if err := h.service.DeleteChat(r.Context(), chatID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleMessages handles GET /api/v1/chats/{chatID}/messages
func (h *ChatHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlParamInt64(w, r, "chatID")
	if !ok {
		return
	}

	messages, err := h.service.GetMessages(r.Context(), chatID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, messages)
}

// HandleSendMessage handles POST /api/v1/chats/{chatID}/messages
// Blocking generation: returns the full answer with its sources
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSendMessage(w, r)
	if !ok {
		return
	}

	response, err := h.service.SendMessage(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, response)
}

// HandleSendMessageStream handles POST /api/v1/chats/{chatID}/messages/stream
// Streams generation over Server-Sent Events. Each event is a JSON object
// with a type of "sources", "token", "done" or "error".
func (h *ChatHandler) HandleSendMessageStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSendMessage(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support streaming")
		_ = utils.WriteInternalServerError(w, "Streaming is not supported")
		return
	}

	events, err := h.service.SendMessageStream(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to marshal stream event", zap.Error(err))
			continue
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; SendMessageStream observes the request
			// context and stops on its own
			h.logger.Debug("stream write failed", zap.Error(err))
			return
		}
		flusher.Flush()
	}
}

// decodeSendMessage parses and validates the send message request,
// writing the error response itself on failure
func (h *ChatHandler) decodeSendMessage(w http.ResponseWriter, r *http.Request) (*chat.SendMessageRequest, bool) {
	chatID, ok := urlParamInt64(w, r, "chatID")
	if !ok {
		return nil, false
	}

	var body SendMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to decode send message request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return nil, false
	}

	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}

	req := &chat.SendMessageRequest{
		ChatID:         chatID,
		Content:        body.Content,
		Model:          body.Model,
		IncludeHistory: true,
	}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
	}
	if body.MaxTokens != nil {
		req.MaxTokens = *body.MaxTokens
	}
	if body.IncludeHistory != nil {
		req.IncludeHistory = *body.IncludeHistory
	}
	if body.MaxHistory != nil {
		req.MaxHistory = *body.MaxHistory
	}

	return req, true
}

package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/services/rag"
)

// DefaultTitle is used when a chat is created without one
const DefaultTitle = "New Chat"

// SendMessageRequest is the input to SendMessage and SendMessageStream
type SendMessageRequest struct {
	ChatID         int64
	Content        string
	Model          string
	Temperature    float64
	MaxTokens      int
	IncludeHistory bool
	MaxHistory     int
}

// Service manages conversations and drives the generation pipeline,
// persisting both sides of each exchange
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	tx       repositories.TransactionManager
	rag      *rag.Service
	logger   *zap.Logger
}

// NewService creates the chat service. tx may be nil, in which case
// deletes run as separate statements.
func NewService(chats repositories.ChatRepository, messages repositories.MessageRepository, tx repositories.TransactionManager, ragSvc *rag.Service, logger *zap.Logger) *Service {
	return &Service{
		chats:    chats,
		messages: messages,
		tx:       tx,
		rag:      ragSvc,
		logger:   logger,
	}
}

// CreateChat starts a new conversation in a project
func (s *Service) CreateChat(ctx context.Context, projectID int64, title string) (*models.Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	chat := models.NewChat(projectID, title)
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, services.WrapInternal("failed to create chat", err)
	}

	s.logger.Info("chat created",
		zap.Int64("chat_id", chat.ID),
		zap.Int64("project_id", projectID))
	return chat, nil
}

// GetChat retrieves a chat by ID
func (s *Service) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrChatNotFound
		}
		return nil, services.WrapInternal("failed to get chat", err)
	}
	return chat, nil
}

// ListChats returns all chats in a project, newest first
func (s *Service) ListChats(ctx context.Context, projectID int64) ([]*models.Chat, error) {
	chats, err := s.chats.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, services.WrapInternal("failed to list chats", err)
	}
	return chats, nil
}

// UpdateChatTitle renames a chat
func (s *Service) UpdateChatTitle(ctx context.Context, chatID int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return services.NewDomainError(services.ErrorTypeValidation, "title cannot be empty", nil)
	}

	if err := s.chats.UpdateTitle(ctx, chatID, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services.ErrChatNotFound
		}
		return services.WrapInternal("failed to update chat title", err)
	}
	return nil
}

// DeleteChat removes a chat and its messages. With a transaction
// manager both deletes commit or roll back together.
func (s *Service) DeleteChat(ctx context.Context, chatID int64) error {
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		if err := s.messages.DeleteByChatID(ctx, chatID); err != nil {
			return services.WrapInternal("failed to delete chat messages", err)
		}
		return s.chats.Delete(ctx, chatID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services.ErrChatNotFound
		}
		if services.IsInternalError(err) {
			return err
		}
		return services.WrapInternal("failed to delete chat", err)
	}

	s.logger.Info("chat deleted", zap.Int64("chat_id", chatID))
	return nil
}

func (s *Service) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		return fn(ctx)
	})
}

// GetMessages returns the full message history of a chat, oldest first
func (s *Service) GetMessages(ctx context.Context, chatID int64) ([]*models.ChatMessage, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, services.WrapInternal("failed to load messages", err)
	}
	return msgs, nil
}

// SendMessage persists the user turn, generates a grounded answer and
// persists the assistant turn
func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*rag.RAGResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "message cannot be empty", nil)
	}

	chat, err := s.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg := models.NewUserMessage(req.ChatID, req.Content)
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, services.WrapInternal("failed to save user message", err)
	}

	response, err := s.rag.GenerateAnswer(ctx, &rag.GenerateRequest{
		Query:       req.Content,
		ProjectID:   chat.ProjectID,
		History:     history,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if err := s.saveAssistantMessage(ctx, req.ChatID, response.Answer, response.Sources, response.Model, response.CompletionTokens); err != nil {
		return nil, err
	}

	s.logger.Info("message exchange completed",
		zap.Int64("chat_id", req.ChatID),
		zap.Int("sources", len(response.Sources)))

	return response, nil
}

// SendMessageStream persists the user turn, streams the generation
// events through and persists the assistant turn once a Done event has
// been observed. Errors before the stream opens are returned directly.
func (s *Service) SendMessageStream(ctx context.Context, req *SendMessageRequest) (<-chan rag.StreamEvent, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "message cannot be empty", nil)
	}

	chat, err := s.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg := models.NewUserMessage(req.ChatID, req.Content)
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, services.WrapInternal("failed to save user message", err)
	}

	upstream := s.rag.GenerateAnswerStream(ctx, &rag.GenerateRequest{
		Query:       req.Content,
		ProjectID:   chat.ProjectID,
		History:     history,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})

	events := make(chan rag.StreamEvent, 16)
	go func() {
		defer close(events)

		var answer strings.Builder
		var sources []rag.RetrievedDocument
		model := req.Model
		completed := false

		for event := range upstream {
			switch event.Type {
			case rag.EventSources:
				sources = make([]rag.RetrievedDocument, 0, len(event.Sources))
				for _, src := range event.Sources {
					sources = append(sources, rag.RetrievedDocument{
						ID:       src.ID,
						Content:  src.Content,
						Metadata: src.Metadata,
						Distance: 1 - src.Score,
					})
				}
			case rag.EventToken:
				answer.WriteString(event.Token)
			case rag.EventDone:
				model = event.Done.Model
				completed = true
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}

		// an interrupted or failed stream is not a finished answer
		if !completed {
			return
		}

		if err := s.saveAssistantMessage(ctx, req.ChatID, answer.String(), sources, model, 0); err != nil {
			s.logger.Error("failed to save streamed assistant message",
				zap.Int64("chat_id", req.ChatID),
				zap.Error(err))
			return
		}

		s.logger.Info("streamed exchange completed",
			zap.Int64("chat_id", req.ChatID),
			zap.Int("sources", len(sources)),
			zap.Int("answer_chars", answer.Len()))
	}()

	return events, nil
}

// loadHistory returns the retained conversation window as provider
// messages, oldest first
func (s *Service) loadHistory(ctx context.Context, req *SendMessageRequest) ([]providers.Message, error) {
	if !req.IncludeHistory {
		return nil, nil
	}

	maxHistory := req.MaxHistory
	if maxHistory <= 0 {
		maxHistory = s.rag.Config().MaxHistory
	}

	recent, err := s.messages.GetRecent(ctx, req.ChatID, maxHistory)
	if err != nil {
		return nil, services.WrapInternal("failed to load chat history", err)
	}

	history := make([]providers.Message, 0, len(recent))
	for _, msg := range recent {
		history = append(history, providers.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history, nil
}

func (s *Service) saveAssistantMessage(ctx context.Context, chatID int64, answer string, sources []rag.RetrievedDocument, model string, tokenCount int) error {
	sourcesJSON := "[]"
	if len(sources) > 0 {
		summaries := make([]rag.SourceInfo, 0, len(sources))
		for _, src := range sources {
			summaries = append(summaries, rag.NewSourceInfo(src))
		}
		raw, err := json.Marshal(summaries)
		if err != nil {
			return services.WrapInternal("failed to encode sources", err)
		}
		sourcesJSON = string(raw)
	}

	msg := models.NewAssistantMessage(chatID, answer, sourcesJSON, model, tokenCount)
	if err := s.messages.Create(ctx, msg); err != nil {
		return services.WrapInternal("failed to save assistant message", err)
	}
	return nil
}

package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/embeddings"
	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/services/vectorstore"
)

// Defaults for the pipeline configuration
const (
	DefaultTopK              = 5
	DefaultMinRelevanceScore = 0.3
	DefaultMaxHistory        = 5
	DefaultTemperature       = 0.7
)

// Config holds the tunable pipeline parameters. Each call copies the
// fields it needs at entry, so an UpdateConfig during an in-flight
// call affects the next call, never a running one.
type Config struct {
	TopK              int
	MinRelevanceScore float64
	SystemPrompt      string
	MaxHistory        int
	DefaultModel      string
}

// ConfigUpdate carries a partial configuration change; nil fields are
// left untouched
type ConfigUpdate struct {
	TopK              *int     `json:"top_k" validate:"omitempty,min=1,max=50"`
	MinRelevanceScore *float64 `json:"min_relevance_score" validate:"omitempty,min=0,max=1"`
	SystemPrompt      *string  `json:"system_prompt"`
	MaxHistory        *int     `json:"max_history" validate:"omitempty,min=0,max=50"`
	DefaultModel      *string  `json:"default_model"`
}

// GenerateRequest is the input to a generation call
type GenerateRequest struct {
	Query          string
	ProjectID      int64
	History        []providers.Message
	Model          string
	Provider       string
	Temperature    float64
	MaxTokens      int
	MetadataFilter map[string]interface{}
}

// Service orchestrates retrieval, prompt assembly and generation
type Service struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	registry *providers.Registry

	mu     sync.RWMutex
	config Config

	logger *zap.Logger
}

// NewService creates the pipeline with injected collaborators. Zero
// config fields fall back to defaults.
func NewService(embedder embeddings.Embedder, store vectorstore.Store, registry *providers.Registry, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinRelevanceScore <= 0 {
		cfg.MinRelevanceScore = DefaultMinRelevanceScore
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	logger.Info("rag pipeline initialized",
		zap.Int("top_k", cfg.TopK),
		zap.Float64("min_relevance_score", cfg.MinRelevanceScore),
		zap.Int("max_history", cfg.MaxHistory),
		zap.String("default_model", cfg.DefaultModel))

	return &Service{
		embedder: embedder,
		store:    store,
		registry: registry,
		config:   cfg,
		logger:   logger,
	}
}

// Config returns a copy of the current configuration
func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig applies the non-nil fields of the update. Visible to
// subsequent calls only.
func (s *Service) UpdateConfig(update ConfigUpdate) error {
	if update.TopK != nil && *update.TopK < 1 {
		return services.NewDomainError(services.ErrorTypeValidation, "top_k must be at least 1", services.ErrInvalidRAGSettings)
	}
	if update.MinRelevanceScore != nil && (*update.MinRelevanceScore < 0 || *update.MinRelevanceScore > 1) {
		return services.NewDomainError(services.ErrorTypeValidation, "min_relevance_score must be between 0 and 1", services.ErrInvalidRAGSettings)
	}
	if update.MaxHistory != nil && *update.MaxHistory < 0 {
		return services.NewDomainError(services.ErrorTypeValidation, "max_history cannot be negative", services.ErrInvalidRAGSettings)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if update.TopK != nil {
		s.config.TopK = *update.TopK
		s.logger.Info("updated top_k", zap.Int("top_k", *update.TopK))
	}
	if update.MinRelevanceScore != nil {
		s.config.MinRelevanceScore = *update.MinRelevanceScore
		s.logger.Info("updated min_relevance_score", zap.Float64("min_relevance_score", *update.MinRelevanceScore))
	}
	if update.SystemPrompt != nil {
		s.config.SystemPrompt = *update.SystemPrompt
		s.logger.Info("updated system prompt")
	}
	if update.MaxHistory != nil {
		s.config.MaxHistory = *update.MaxHistory
		s.logger.Info("updated max_history", zap.Int("max_history", *update.MaxHistory))
	}
	if update.DefaultModel != nil {
		s.config.DefaultModel = *update.DefaultModel
		s.logger.Info("updated default model", zap.String("model", *update.DefaultModel))
	}

	return nil
}

// RetrieveContext embeds the query, searches the project collection
// and returns the matches at or above the relevance threshold, best
// first. The threshold applies after the store's own top-K ranking.
func (s *Service) RetrieveContext(ctx context.Context, query string, projectID int64, topK int, filter map[string]interface{}) ([]RetrievedDocument, error) {
	cfg := s.Config()
	if topK <= 0 {
		topK = cfg.TopK
	}
	return s.retrieve(ctx, query, projectID, topK, cfg.MinRelevanceScore, filter)
}

// retrieve is the snapshot-free core of RetrieveContext. Callers that
// already hold a config snapshot pass its values here so one call never
// mixes two generations of the config.
func (s *Service) retrieve(ctx context.Context, query string, projectID int64, topK int, minScore float64, filter map[string]interface{}) ([]RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "query cannot be empty", nil)
	}

	s.logger.Info("retrieving context",
		zap.Int64("project_id", projectID),
		zap.Int("top_k", topK))

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, services.WrapRetrieval("failed to embed query", err)
	}

	collection := vectorstore.CollectionName(projectID)
	result, err := s.store.Query(ctx, collection, vector, topK, filter)
	if err != nil {
		return nil, services.WrapRetrieval("vector query failed", err)
	}

	documents := make([]RetrievedDocument, 0, result.Len())
	for i := 0; i < result.Len(); i++ {
		doc := RetrievedDocument{
			ID:       result.IDs[i],
			Content:  result.Contents[i],
			Metadata: result.Metadatas[i],
			Distance: result.Distances[i],
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]interface{}{}
		}
		if doc.Score() >= minScore {
			documents = append(documents, doc)
		} else {
			s.logger.Debug("filtered low-relevance document",
				zap.String("id", doc.ID),
				zap.Float64("score", doc.Score()))
		}
	}

	s.logger.Info("context retrieved",
		zap.Int64("project_id", projectID),
		zap.Int("matched", result.Len()),
		zap.Int("kept", len(documents)))

	return documents, nil
}

// GenerateAnswer runs the full pipeline and blocks until the complete
// answer is available. Any phase failure aborts the call.
func (s *Service) GenerateAnswer(ctx context.Context, req *GenerateRequest) (*RAGResponse, error) {
	cfg := s.Config()

	documents, err := s.retrieve(ctx, req.Query, req.ProjectID, cfg.TopK, cfg.MinRelevanceScore, req.MetadataFilter)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		s.logger.Warn("no relevant documents found",
			zap.Int64("project_id", req.ProjectID))
	}

	messages := BuildChatMessages(req.Query, documents, req.History, cfg.SystemPrompt, cfg.MaxHistory)

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = cfg.DefaultModel
	}

	resp, err := provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: s.temperature(req),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, services.WrapGeneration("chat completion failed", err)
	}

	s.logger.Info("answer generated",
		zap.Int64("project_id", req.ProjectID),
		zap.String("model", resp.Model),
		zap.Int("answer_chars", len(resp.Content)),
		zap.Int("sources", len(documents)))

	return &RAGResponse{
		Answer:           resp.Content,
		Sources:          documents,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// GenerateAnswerStream runs the pipeline and emits events on the
// returned channel: one Sources event, the token deltas, then one Done
// event. Any failure produces a single terminal Error event instead.
// The channel is closed after the terminal event.
func (s *Service) GenerateAnswerStream(ctx context.Context, req *GenerateRequest) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)

		cfg := s.Config()

		documents, err := s.retrieve(ctx, req.Query, req.ProjectID, cfg.TopK, cfg.MinRelevanceScore, req.MetadataFilter)
		if err != nil {
			s.emitError(ctx, events, err)
			return
		}

		sources := make([]SourceInfo, 0, len(documents))
		for _, doc := range documents {
			sources = append(sources, NewSourceInfo(doc))
		}
		if !s.emit(ctx, events, StreamEvent{Type: EventSources, Sources: sources}) {
			return
		}

		messages := BuildChatMessages(req.Query, documents, req.History, cfg.SystemPrompt, cfg.MaxHistory)

		provider, err := s.resolveProvider(req.Provider)
		if err != nil {
			s.emitError(ctx, events, err)
			return
		}

		streamer, ok := provider.(providers.StreamingProvider)
		if !ok {
			s.emitError(ctx, events, services.NewDomainError(services.ErrorTypeGeneration,
				"provider does not support streaming", nil).WithDetail("provider", provider.Name()))
			return
		}

		model := req.Model
		if model == "" {
			model = cfg.DefaultModel
		}

		chatReq := &providers.ChatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: s.temperature(req),
			MaxTokens:   req.MaxTokens,
		}

		err = streamer.ChatCompletionStream(ctx, chatReq, func(delta string) error {
			if !s.emit(ctx, events, StreamEvent{Type: EventToken, Token: delta}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			s.emitError(ctx, events, services.WrapGeneration("streaming chat completion failed", err))
			return
		}

		s.emit(ctx, events, StreamEvent{
			Type: EventDone,
			Done: &DoneInfo{Model: model, SourcesCount: len(documents)},
		})

		s.logger.Info("streaming answer completed",
			zap.Int64("project_id", req.ProjectID),
			zap.String("model", model),
			zap.Int("sources", len(documents)))
	}()

	return events
}

func (s *Service) resolveProvider(name string) (providers.Provider, error) {
	if name != "" {
		provider, err := s.registry.GetProvider(name)
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation,
				fmt.Sprintf("unknown provider %q", name), services.ErrInvalidProvider)
		}
		return provider, nil
	}

	provider, err := s.registry.DefaultProvider()
	if err != nil {
		return nil, services.WrapGeneration("no default provider configured", err)
	}
	return provider, nil
}

func (s *Service) temperature(req *GenerateRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return DefaultTemperature
}

// emit sends an event unless the caller has gone away
func (s *Service) emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) emitError(ctx context.Context, events chan<- StreamEvent, err error) {
	s.logger.Error("streaming generation failed", zap.Error(err))
	s.emit(ctx, events, StreamEvent{Type: EventError, Error: err.Error()})
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/services/vectorstore"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = f.vector
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

type fakeStore struct {
	result     *vectorstore.QueryResult
	err        error
	calls      int
	lastTopK   int
	lastFilter map[string]interface{}

	// onQuery runs inside Query, before the result is returned
	onQuery func()
}

func (f *fakeStore) EnsureCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Add(ctx context.Context, collection string, docs []vectorstore.Document) error {
	return nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) (*vectorstore.QueryResult, error) {
	f.calls++
	f.lastTopK = topK
	f.lastFilter = filter
	if f.onQuery != nil {
		f.onQuery()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &vectorstore.QueryResult{}, nil
	}
	return f.result, nil
}

func (f *fakeStore) DeleteByDocument(ctx context.Context, collection string, documentID int64) error {
	return nil
}

func (f *fakeStore) DropCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Count(ctx context.Context, collection string) (int64, error) { return 0, nil }

type fakeProvider struct {
	name       string
	response   *providers.ChatResponse
	deltas     []string
	err        error
	streamErr  error
	failAfter  int
	lastReq    *providers.ChatRequest
	streamSlow bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	return nil, nil
}

func (f *fakeProvider) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest, callback providers.StreamCallback) error {
	f.lastReq = req
	for i, delta := range f.deltas {
		if f.streamErr != nil && i == f.failAfter {
			return f.streamErr
		}
		if f.streamSlow {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
		}
		if err := callback(delta); err != nil {
			return err
		}
	}
	if f.streamErr != nil && f.failAfter >= len(f.deltas) {
		return f.streamErr
	}
	return nil
}

func queryResult(distances ...float64) *vectorstore.QueryResult {
	result := &vectorstore.QueryResult{}
	for i, d := range distances {
		result.IDs = append(result.IDs, fmt.Sprintf("doc_%d", i))
		result.Contents = append(result.Contents, fmt.Sprintf("content %d", i))
		result.Metadatas = append(result.Metadatas, map[string]interface{}{
			"document_id": int64(i + 1),
			"chunk_index": int64(i),
		})
		result.Distances = append(result.Distances, d)
	}
	return result
}

func newTestService(t *testing.T, embedder *fakeEmbedder, store *fakeStore, provider *fakeProvider) *Service {
	t.Helper()

	registry := providers.NewRegistry()
	if provider != nil {
		require.NoError(t, registry.RegisterProvider(provider))
	}

	return NewService(embedder, store, registry, Config{DefaultModel: "llama3"}, zap.NewNop())
}

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()

	var collected []StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestRetrievedDocument_Score(t *testing.T) {
	tests := []struct {
		distance float64
		expected float64
	}{
		{0.0, 1.0},
		{0.1, 0.9},
		{0.5, 0.5},
		{1.0, 0.0},
		{1.7, 0.0},
		{-0.2, 1.0},
	}

	for _, tt := range tests {
		doc := RetrievedDocument{Distance: tt.distance}
		assert.InDelta(t, tt.expected, doc.Score(), 1e-9, "distance %v", tt.distance)
	}
}

func TestRetrievedDocument_ScoreMonotonic(t *testing.T) {
	distances := []float64{0.0, 0.05, 0.3, 0.7, 1.0, 1.5, 2.0}
	for i := 1; i < len(distances); i++ {
		lower := RetrievedDocument{Distance: distances[i-1]}
		higher := RetrievedDocument{Distance: distances[i]}
		assert.GreaterOrEqual(t, lower.Score(), higher.Score())
	}
}

func TestRetrieveContext_RelevanceFilter(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	store := &fakeStore{result: queryResult(0.1, 0.3, 0.9)}
	svc := newTestService(t, embedder, store, nil)

	docs, err := svc.RetrieveContext(context.Background(), "what is this", 1, 0, nil)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "doc_0", docs[0].ID)
	assert.Equal(t, "doc_1", docs[1].ID)
	assert.InDelta(t, 0.9, docs[0].Score(), 1e-9)
	assert.InDelta(t, 0.7, docs[1].Score(), 1e-9)
}

func TestRetrieveContext_SingleCollaboratorCalls(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	store := &fakeStore{result: queryResult(0.1)}
	svc := newTestService(t, embedder, store, nil)

	_, err := svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 1, store.calls)
}

func TestRetrieveContext_EmptyQuery(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)

	_, err := svc.RetrieveContext(context.Background(), "   ", 1, 0, nil)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestRetrieveContext_EmptyResultIsNotError(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)

	docs, err := svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetrieveContext_EmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("backend down")}
	svc := newTestService(t, embedder, &fakeStore{}, nil)

	_, err := svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.Error(t, err)
	assert.True(t, services.IsRetrievalError(err))
}

func TestRetrieveContext_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, store, nil)

	_, err := svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.Error(t, err)
	assert.True(t, services.IsRetrievalError(err))
}

func TestRetrieveContext_TopKAndFilterForwarded(t *testing.T) {
	store := &fakeStore{result: queryResult(0.1)}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, store, nil)

	filter := map[string]interface{}{"document_id": int64(9)}
	_, err := svc.RetrieveContext(context.Background(), "question", 1, 7, filter)
	require.NoError(t, err)

	assert.Equal(t, 7, store.lastTopK)
	assert.Equal(t, filter, store.lastFilter)

	// config default when the caller passes zero
	_, err = svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.lastTopK)
}

func TestBuildContextPrompt_NoDocumentsPassthrough(t *testing.T) {
	assert.Equal(t, "what is the answer", BuildContextPrompt("what is the answer", nil))
}

func TestBuildContextPrompt_SourceBlocks(t *testing.T) {
	docs := []RetrievedDocument{
		{
			ID:      "a",
			Content: "first passage",
			Metadata: map[string]interface{}{
				"document_id": int64(3),
				"chunk_index": int64(0),
			},
			Distance: 0.1,
		},
		{
			ID:       "b",
			Content:  "second passage",
			Metadata: map[string]interface{}{},
			Distance: 0.4,
		},
	}

	prompt := BuildContextPrompt("what is it", docs)

	assert.Contains(t, prompt, "[Source 1, Document ID: 3, Chunk: 0, Relevance: 0.90]")
	assert.Contains(t, prompt, "[Source 2, Relevance: 0.60]")
	assert.Contains(t, prompt, "first passage")
	assert.Contains(t, prompt, "second passage")
	assert.Contains(t, prompt, "Question: what is it")
	assert.True(t, strings.HasPrefix(prompt, "Context documents:"))
	assert.Less(t, strings.Index(prompt, "first passage"), strings.Index(prompt, "Question:"))
}

func TestBuildChatMessages_HistoryTruncation(t *testing.T) {
	history := make([]providers.Message, 7)
	for i := range history {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history[i] = providers.Message{Role: role, Content: fmt.Sprintf("turn %d", i+1)}
	}

	messages := BuildChatMessages("current question", nil, history, DefaultSystemPrompt, 3)

	require.Len(t, messages, 5)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, messages[0].Content)
	assert.Equal(t, "turn 5", messages[1].Content)
	assert.Equal(t, "turn 6", messages[2].Content)
	assert.Equal(t, "turn 7", messages[3].Content)
	assert.Equal(t, "user", messages[4].Role)
	assert.Equal(t, "current question", messages[4].Content)
}

func TestBuildChatMessages_ShortHistory(t *testing.T) {
	history := []providers.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	messages := BuildChatMessages("next", nil, history, DefaultSystemPrompt, 5)

	require.Len(t, messages, 4)
	assert.Equal(t, "hi", messages[1].Content)
	assert.Equal(t, "hello", messages[2].Content)
}

func TestGenerateAnswer(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	store := &fakeStore{result: queryResult(0.1, 0.2)}
	provider := &fakeProvider{
		name: "ollama",
		response: &providers.ChatResponse{
			Model:            "llama3",
			Content:          "the answer",
			PromptTokens:     42,
			CompletionTokens: 7,
		},
	}
	svc := newTestService(t, embedder, store, provider)

	resp, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "what is it",
		ProjectID: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Answer)
	assert.Equal(t, "llama3", resp.Model)
	assert.Len(t, resp.Sources, 2)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 7, resp.CompletionTokens)

	require.NotNil(t, provider.lastReq)
	assert.Equal(t, "llama3", provider.lastReq.Model)
	assert.InDelta(t, DefaultTemperature, provider.lastReq.Temperature, 1e-9)
	assert.Equal(t, "system", provider.lastReq.Messages[0].Role)
}

func TestGenerateAnswer_NoSources(t *testing.T) {
	provider := &fakeProvider{
		name:     "ollama",
		response: &providers.ChatResponse{Model: "llama3", Content: "I don't know"},
	}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, provider)

	resp, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "unknown topic",
		ProjectID: 1,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Sources)
	// without sources the query passes through without context framing
	last := provider.lastReq.Messages[len(provider.lastReq.Messages)-1]
	assert.Equal(t, "unknown topic", last.Content)
}

func TestGenerateAnswer_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{name: "ollama", err: errors.New("model not found")}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{result: queryResult(0.1)}, provider)

	_, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	})
	require.Error(t, err)
	assert.True(t, services.IsGenerationError(err))
}

func TestGenerateAnswer_RetrievalFailureAborts(t *testing.T) {
	provider := &fakeProvider{name: "ollama", response: &providers.ChatResponse{}}
	embedder := &fakeEmbedder{err: errors.New("down")}
	svc := newTestService(t, embedder, &fakeStore{}, provider)

	_, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	})
	require.Error(t, err)
	assert.True(t, services.IsRetrievalError(err))
	assert.Nil(t, provider.lastReq)
}

func TestGenerateAnswerStream_EventOrdering(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	store := &fakeStore{result: queryResult(0.1, 0.2)}
	provider := &fakeProvider{name: "ollama", deltas: []string{"the ", "answer", "."}}
	svc := newTestService(t, embedder, store, provider)

	events := collectEvents(t, svc.GenerateAnswerStream(context.Background(), &GenerateRequest{
		Query:     "what is it",
		ProjectID: 1,
	}))

	require.Len(t, events, 5)

	assert.Equal(t, EventSources, events[0].Type)
	require.Len(t, events[0].Sources, 2)
	assert.InDelta(t, 0.9, events[0].Sources[0].Score, 1e-9)

	assert.Equal(t, EventToken, events[1].Type)
	assert.Equal(t, "the ", events[1].Token)
	assert.Equal(t, EventToken, events[2].Type)
	assert.Equal(t, EventToken, events[3].Type)

	assert.Equal(t, EventDone, events[4].Type)
	require.NotNil(t, events[4].Done)
	assert.Equal(t, "llama3", events[4].Done.Model)
	assert.Equal(t, 2, events[4].Done.SourcesCount)
}

func TestGenerateAnswerStream_EmptySourcesStillEmitted(t *testing.T) {
	provider := &fakeProvider{name: "ollama", deltas: []string{"no idea"}}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, provider)

	events := collectEvents(t, svc.GenerateAnswerStream(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	}))

	require.NotEmpty(t, events)
	assert.Equal(t, EventSources, events[0].Type)
	assert.Empty(t, events[0].Sources)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Equal(t, 0, events[len(events)-1].Done.SourcesCount)
}

func TestGenerateAnswerStream_RetrievalErrorIsTerminal(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding backend down")}
	svc := newTestService(t, embedder, &fakeStore{}, &fakeProvider{name: "ollama"})

	events := collectEvents(t, svc.GenerateAnswerStream(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	}))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "failed to embed query")
}

func TestGenerateAnswerStream_MidStreamErrorNoDone(t *testing.T) {
	provider := &fakeProvider{
		name:      "ollama",
		deltas:    []string{"partial ", "output "},
		streamErr: errors.New("connection reset"),
		failAfter: 2,
	}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{result: queryResult(0.1)}, provider)

	events := collectEvents(t, svc.GenerateAnswerStream(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	}))

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, EventSources, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	for _, ev := range events {
		assert.NotEqual(t, EventDone, ev.Type)
	}
}

func TestGenerateAnswerStream_Cancellation(t *testing.T) {
	provider := &fakeProvider{
		name:       "ollama",
		deltas:     []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		streamSlow: true,
	}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{result: queryResult(0.1)}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	events := svc.GenerateAnswerStream(ctx, &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	})

	// consume the sources event, then walk away
	<-events
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			assert.NotEqual(t, EventDone, ev.Type)
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

func TestGenerateAnswerStream_NoDefaultProvider(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{result: queryResult(0.1)}, nil)

	events := collectEvents(t, svc.GenerateAnswerStream(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	}))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
}

func TestUpdateConfig(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)

	topK := 10
	threshold := 0.5
	prompt := "custom prompt"
	err := svc.UpdateConfig(ConfigUpdate{
		TopK:              &topK,
		MinRelevanceScore: &threshold,
		SystemPrompt:      &prompt,
	})
	require.NoError(t, err)

	cfg := svc.Config()
	assert.Equal(t, 10, cfg.TopK)
	assert.InDelta(t, 0.5, cfg.MinRelevanceScore, 1e-9)
	assert.Equal(t, "custom prompt", cfg.SystemPrompt)
	// untouched fields keep their values
	assert.Equal(t, DefaultMaxHistory, cfg.MaxHistory)
	assert.Equal(t, "llama3", cfg.DefaultModel)
}

func TestUpdateConfig_PartialUpdate(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)

	threshold := 0.8
	require.NoError(t, svc.UpdateConfig(ConfigUpdate{MinRelevanceScore: &threshold}))

	cfg := svc.Config()
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.InDelta(t, 0.8, cfg.MinRelevanceScore, 1e-9)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
}

func TestUpdateConfig_Invalid(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)

	zero := 0
	err := svc.UpdateConfig(ConfigUpdate{TopK: &zero})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	bad := 1.5
	err = svc.UpdateConfig(ConfigUpdate{MinRelevanceScore: &bad})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.True(t, errors.Is(err, services.ErrInvalidRAGSettings))
}

// A call reads the config once at entry; an update landing mid-call
// must not hand it a mix of old and new values.
func TestGenerateAnswer_SingleConfigSnapshot(t *testing.T) {
	provider := &fakeProvider{name: "ollama", response: &providers.ChatResponse{Model: "llama3", Content: "ok"}}
	store := &fakeStore{result: queryResult(0.1)}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, store, provider)

	oldPrompt := "answer as a librarian"
	require.NoError(t, svc.UpdateConfig(ConfigUpdate{SystemPrompt: &oldPrompt}))

	store.onQuery = func() {
		newPrompt := "answer as a pirate"
		tight := 0.99
		require.NoError(t, svc.UpdateConfig(ConfigUpdate{
			SystemPrompt:      &newPrompt,
			MinRelevanceScore: &tight,
		}))
	}

	resp, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
	})
	require.NoError(t, err)

	// the mid-call threshold change did not filter this call's results
	require.Len(t, resp.Sources, 1)

	// and the prompt came from the same snapshot as the threshold
	require.NotEmpty(t, provider.lastReq.Messages)
	assert.Equal(t, "system", provider.lastReq.Messages[0].Role)
	assert.Contains(t, provider.lastReq.Messages[0].Content, "librarian")

	// the update is visible to the next call
	assert.Equal(t, "answer as a pirate", svc.Config().SystemPrompt)
}

func TestGenerateAnswer_UnknownProviderRejected(t *testing.T) {
	provider := &fakeProvider{name: "ollama", response: &providers.ChatResponse{}}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, &fakeStore{result: queryResult(0.1)}, provider)

	_, err := svc.GenerateAnswer(context.Background(), &GenerateRequest{
		Query:     "question",
		ProjectID: 1,
		Provider:  "openai",
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.True(t, errors.Is(err, services.ErrInvalidProvider))
}

func TestUpdateConfig_AffectsNextRetrieval(t *testing.T) {
	store := &fakeStore{result: queryResult(0.1, 0.3, 0.9)}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{1}}, store, nil)

	tight := 0.95
	require.NoError(t, svc.UpdateConfig(ConfigUpdate{MinRelevanceScore: &tight}))

	docs, err := svc.RetrieveContext(context.Background(), "question", 1, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewSourceInfo(t *testing.T) {
	doc := RetrievedDocument{
		ID:       "x",
		Content:  "body",
		Metadata: map[string]interface{}{"document_id": int64(4)},
		Distance: 0.25,
	}

	info := NewSourceInfo(doc)
	assert.Equal(t, "x", info.ID)
	assert.Equal(t, "body", info.Content)
	assert.InDelta(t, 0.75, info.Score, 1e-9)
}

package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuchat/backend/services"
)

// Embedder converts text into fixed-length numeric vectors
type Embedder interface {
	// Embed generates an embedding for a single text. Empty input is
	// an error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input
	// order. Whitespace-only entries yield nil vectors.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension
	Dimension() int
}

// OllamaEmbedder implements Embedder against a local Ollama server
type OllamaEmbedder struct {
	host       string
	model      string
	dimension  int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaEmbedder creates an embedder using the named Ollama
// embedding model
func NewOllamaEmbedder(host, model string, dimension int, timeout time.Duration, logger *zap.Logger) *OllamaEmbedder {
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	logger.Info("embedder initialized",
		zap.String("host", host),
		zap.String("model", model),
		zap.Int("dimension", dimension))

	return &OllamaEmbedder{
		host:      host,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// embeddingRequest is the Ollama /api/embeddings request body
type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingResponse is the Ollama /api/embeddings response body
type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed generates an embedding for a single text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "cannot embed empty text", nil)
	}

	reqBody, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, services.WrapInternal("failed to marshal embedding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, services.WrapInternal("failed to create embedding request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.WrapExternal("embedding service request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, services.WrapExternal("failed to read embedding response", err)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, services.WrapExternal("failed to parse embedding response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		message := resp.Error
		if message == "" {
			message = fmt.Sprintf("embedding service returned status %d", httpResp.StatusCode)
		}
		return nil, services.WrapExternal(message, nil)
	}

	if len(resp.Embedding) == 0 {
		return nil, services.WrapExternal("empty embedding returned", nil)
	}

	e.logger.Debug("embedding generated",
		zap.Int("text_len", len(text)),
		zap.Int("dimension", len(resp.Embedding)))

	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in input order.
// Whitespace-only entries yield nil vectors rather than errors.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.logger.Debug("generating batch embeddings", zap.Int("count", len(texts)))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			e.logger.Warn("empty text in embedding batch, skipping", zap.Int("index", i))
			continue
		}

		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, services.WrapExternal(fmt.Sprintf("batch embedding failed at index %d", i), err)
		}
		vectors[i] = vector
	}

	return vectors, nil
}

// Dimension returns the embedding vector dimension
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

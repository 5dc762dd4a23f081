package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docuchat/backend/services/providers"
)

const defaultHost = "http://localhost:11434"

// OllamaAdapter implements the StreamingProvider interface for a local
// Ollama server
type OllamaAdapter struct {
	host       string
	httpClient *http.Client
}

// NewOllamaAdapter creates a new Ollama adapter. An empty host selects
// the default local address.
func NewOllamaAdapter(host string, timeout time.Duration) *OllamaAdapter {
	if host == "" {
		host = defaultHost
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &OllamaAdapter{
		host: host,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// chatRequest is the Ollama /api/chat request body
type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []providers.Message    `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// chatResponse is one Ollama /api/chat response object. In streaming
// mode one of these arrives per NDJSON line.
type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// ChatCompletion performs a blocking chat completion request
func (a *OllamaAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	respBody, statusCode, err := a.doJSON(ctx, a.buildChatRequest(req, false))
	if err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		return nil, a.handleErrorResponse(statusCode, respBody)
	}

	var ollamaResp chatResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", statusCode, false, err)
	}
	if ollamaResp.Error != "" {
		return nil, providers.NewProviderError(a.Name(), "BACKEND_ERROR", ollamaResp.Error, statusCode, false, nil)
	}

	return &providers.ChatResponse{
		Model:            ollamaResp.Model,
		Content:          ollamaResp.Message.Content,
		PromptTokens:     ollamaResp.PromptEvalCount,
		CompletionTokens: ollamaResp.EvalCount,
		Latency:          time.Since(startTime),
	}, nil
}

// ChatCompletionStream performs a streaming chat completion, invoking
// the callback once per text delta. The callback returning an error
// aborts the stream.
func (a *OllamaAdapter) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest, callback providers.StreamCallback) error {
	reqBody, err := json.Marshal(a.buildChatRequest(req, true))
	if err != nil {
		return providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Streaming calls must not be cut off by the client timeout; the
	// caller's context bounds the request instead
	client := &http.Client{Transport: a.httpClient.Transport}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal stream chunk", httpResp.StatusCode, false, err)
		}
		if chunk.Error != "" {
			return providers.NewProviderError(a.Name(), "BACKEND_ERROR", chunk.Error, httpResp.StatusCode, false, nil)
		}

		if chunk.Message.Content != "" {
			if err := callback(chunk.Message.Content); err != nil {
				return err
			}
		}

		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providers.NewProviderError(a.Name(), "STREAM_ERROR", "stream read failed", 0, true, err)
	}

	return nil
}

// IsAvailable checks if the Ollama server is reachable
func (a *OllamaAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// tagsResponse is the Ollama /api/tags response body
type tagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		Digest     string `json:"digest"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

// ListModels returns the models the Ollama server currently serves
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.host+"/api/tags", nil)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", resp.StatusCode, false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(resp.StatusCode, respBody)
	}

	var tags tagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal models", resp.StatusCode, false, err)
	}

	models := make([]providers.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, providers.ModelInfo{
			Name:       m.Name,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: m.ModifiedAt,
		})
	}

	return models, nil
}

// buildChatRequest converts a unified request to the Ollama wire format
func (a *OllamaAdapter) buildChatRequest(req *providers.ChatRequest, stream bool) *chatRequest {
	options := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	return &chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
		Options:  options,
	}
}

// doJSON posts the chat request and returns the raw response body
func (a *OllamaAdapter) doJSON(ctx context.Context, body *chatRequest) ([]byte, int, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	return respBody, httpResp.StatusCode, nil
}

// handleErrorResponse converts a non-200 response into a ProviderError
func (a *OllamaAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	message := fmt.Sprintf("ollama returned status %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	retryable := statusCode >= 500
	return providers.NewProviderError(a.Name(), "BACKEND_ERROR", message, statusCode, retryable, nil)
}

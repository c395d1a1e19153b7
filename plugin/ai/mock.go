package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbeddingService is a deterministic embedding service for tests.
// The same input always produces the same unit vector, and distinct
// inputs almost always produce distinct vectors.
type MockEmbeddingService struct {
	dimensions int

	mu    sync.Mutex
	calls []string

	// Err, when set, is returned by every call.
	Err error
}

// NewMockEmbeddingService creates a mock embedding service.
func NewMockEmbeddingService(dimensions int) *MockEmbeddingService {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockEmbeddingService{dimensions: dimensions}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	return deterministicVector(text, m.dimensions), nil
}

func (m *MockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

// Calls returns the texts embedded so far.
func (m *MockEmbeddingService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func deterministicVector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, dimensions)
	var norm float64
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11)) / float64(1<<52)
		vector[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vector[0] = 1
		return vector
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

// MockLLMService is an LLM service that replays queued responses.
type MockLLMService struct {
	mu        sync.Mutex
	responses []string
	requests  [][]Message

	// Err, when set, is returned by every call.
	Err error
}

// NewMockLLMService creates a mock LLM with queued responses, returned
// in order. When the queue is exhausted Chat returns an error.
func NewMockLLMService(responses ...string) *MockLLMService {
	return &MockLLMService{responses: responses}
}

// Enqueue appends a response to the queue.
func (m *MockLLMService) Enqueue(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

func (m *MockLLMService) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	if len(m.responses) == 0 {
		return "", errors.New("mock llm: no queued responses")
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func (m *MockLLMService) ChatStream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	contentChan := make(chan string, 1)
	errChan := make(chan error, 1)
	response, err := m.Chat(ctx, messages)
	if err != nil {
		errChan <- err
	} else {
		contentChan <- response
	}
	close(contentChan)
	close(errChan)
	return contentChan, errChan
}

// Requests returns the message lists passed to Chat so far.
func (m *MockLLMService) Requests() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.requests...)
}

package embeddings

import "context"

// MockEmbedder is a configurable mock for testing. Set the function fields
// to control behavior.
type MockEmbedder struct {
	// EmbedFunc is called when Embed is invoked. If nil, returns a zero
	// vector of MockDimensions length.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedBatchFunc is called when EmbedBatch is invoked. If nil, returns
	// one zero vector per input.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// MockModel is returned by Model. Defaults to "mock-embedding-model".
	MockModel string

	// MockDimensions is returned by Dimensions. Defaults to 1536.
	MockDimensions int

	// Call tracking for verification
	EmbedCalls      int
	EmbedBatchCalls int
}

// NewMockEmbedder creates a new mock with sensible defaults.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		MockModel:      "mock-embedding-model",
		MockDimensions: 1536,
	}
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return make([]float32, m.Dimensions()), nil
}

// EmbedBatch implements Embedder.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.EmbedBatchCalls++
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, m.Dimensions())
	}
	return vectors, nil
}

// Model implements Embedder.
func (m *MockEmbedder) Model() string {
	if m.MockModel == "" {
		return "mock-embedding-model"
	}
	return m.MockModel
}

// Dimensions implements Embedder.
func (m *MockEmbedder) Dimensions() int {
	if m.MockDimensions == 0 {
		return 1536
	}
	return m.MockDimensions
}

var _ Embedder = (*MockEmbedder)(nil)

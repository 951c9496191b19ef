package vectorstore

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenaiEmbedder generates embeddings via google.golang.org/genai's
// Models.EmbedContent, batching to stay under the API's per-call item
// limit. Grounded on the teacher's internal/semantic.Embedder.
type GenaiEmbedder struct {
	client *genai.Client
	model  string
}

const defaultEmbeddingModel = "text-embedding-004"
const maxEmbedBatchSize = 20

// NewGenaiEmbedder builds an Embedder over an existing genai.Client. model
// defaults to "text-embedding-004" when empty.
func NewGenaiEmbedder(client *genai.Client, model string) *GenaiEmbedder {
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &GenaiEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *GenaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= maxEmbedBatchSize {
		return e.embedBatch(ctx, texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatchSize {
		end := start + maxEmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return out, fmt.Errorf("vectorstore: embed batch %d-%d: %w", start, end, err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *GenaiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embedding api error: %w", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

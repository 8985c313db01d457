package embedding

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

var _ interfaces.Embedder = &Service{}

// Service generates embedding vectors through an LLM client.
type Service struct {
	llmClient gollem.LLMClient
}

func New(llmClient gollem.LLMClient) *Service {
	return &Service{llmClient: llmClient}
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "text is required for embedding")
	}

	embeddings, err := s.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbedding, "failed to generate embedding", goerr.V("cause", err.Error()))
	}

	if len(embeddings) == 0 {
		return nil, goerr.Wrap(model.ErrEmbedding, "no embedding returned")
	}

	if len(embeddings[0]) != model.EmbeddingDimension {
		return nil, goerr.Wrap(model.ErrEmbedding, "unexpected embedding dimension",
			goerr.V("got", len(embeddings[0])), goerr.V("want", model.EmbeddingDimension))
	}

	// Convert float64 to float32
	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}

func (s *Service) Dimension() int {
	return model.EmbeddingDimension
}

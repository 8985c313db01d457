package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

var _ interfaces.Embedder = &Fixed{}

// Fixed derives a deterministic unit vector from the text alone, with no
// external calls. The same text always maps to the same vector, which is
// what tests and offline runs need; the vectors carry no semantics.
type Fixed struct{}

func NewFixed() *Fixed {
	return &Fixed{}
}

func (s *Fixed) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "text is required for embedding")
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, model.EmbeddingDimension)
	var norm float64
	for i := range vec {
		// xorshift64 keeps the sequence deterministic per seed
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}

	return vec, nil
}

func (s *Fixed) Dimension() int {
	return model.EmbeddingDimension
}

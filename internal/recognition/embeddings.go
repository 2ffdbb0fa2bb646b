package recognition

import (
	"context"
	"fmt"
	"math"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Embeddings implements the Similarity interface using OpenAI sentence
// embeddings, scoring candidates by cosine similarity against the phrase.
type Embeddings struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbeddings creates a new embedding-backed Similarity instance.
func NewEmbeddings(apiKey string, modelName string) (*Embeddings, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := openai.EmbeddingModel(modelName)
	if modelName == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Embeddings{client: &client, model: model}, nil
}

// MostSimilar embeds the phrase and all candidates in a single request and
// returns the candidate with the highest cosine similarity to the phrase.
func (e *Embeddings) MostSimilar(ctx context.Context, phrase string, candidates []string) (string, float64, error) {
	if len(candidates) == 0 {
		return "", 0, fmt.Errorf("no candidates to compare")
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, phrase)
	inputs = append(inputs, candidates...)

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return "", 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(inputs))
	}

	phraseVec := resp.Data[0].Embedding
	best := ""
	bestScore := math.Inf(-1)
	for i, candidate := range candidates {
		score := cosineSimilarity(phraseVec, resp.Data[i+1].Embedding)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors, or
// 0 when either vector has no magnitude.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package recognition

import "context"

// Recognizer defines the interface for the text-recognition model. It is an
// opaque black box: given a PNG image it returns the recognized words in
// reading order.
type Recognizer interface {
	// RecognizeWords runs OCR over the image and returns the word tokens
	RecognizeWords(ctx context.Context, pngData []byte) ([]string, error)
	// Close closes the recognizer and releases resources
	Close() error
}

// Similarity defines the interface for the semantic similarity model. Given
// a reference phrase and a list of candidate tokens it returns the single
// most similar candidate and its score in [0, 1].
type Similarity interface {
	MostSimilar(ctx context.Context, phrase string, candidates []string) (string, float64, error)
}

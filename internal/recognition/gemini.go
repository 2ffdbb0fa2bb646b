package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// wordListPrompt asks the model to behave as a plain OCR engine. The
// pipeline does its own field extraction, so the model must not interpret
// the receipt, only transcribe it.
const wordListPrompt = `You are an OCR engine. Transcribe every piece of text visible in this receipt image.

Return ONLY a valid JSON array of strings, one entry per word or token, in reading order (top to bottom, left to right). Preserve the original characters exactly as printed, including digits, punctuation and casing. Do not correct, merge, translate or interpret anything.

Example output: ["Special", "Veg", "Thali", "TGLP1234", "Total", "130.00", "12-Oct-2025"]

Do not include any text before or after the JSON array. Do not use markdown code blocks.`

// Gemini implements the Recognizer interface using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Recognizer instance.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// RecognizeWords runs the OCR prompt over the image and returns the tokens.
func (g *Gemini) RecognizeWords(ctx context.Context, pngData []byte) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(wordListPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	words, err := parseWordList(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing word list: %w", err)
	}

	return words, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// parseWordList parses the JSON array of tokens returned by the model,
// tolerating markdown code fences around the payload.
func parseWordList(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	text = text[startIdx : endIdx+1]

	var words []string
	if err := json.Unmarshal([]byte(text), &words); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Drop empty tokens the model sometimes emits for whitespace
	out := words[:0]
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}

	return out, nil
}

// Package extraction turns one receipt image into a structured record:
// date, employee code, amount, meal type and company, derived from two OCR
// passes plus similarity scoring against configured anchor phrases.
package extraction

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quarkcity/meal-ledger/internal/config"
	"github.com/quarkcity/meal-ledger/internal/recognition"
)

// RawExtraction is the record produced for one receipt image. It is
// immutable after creation; nullable fields stay nil/invalid when the
// receipt did not yield them, which is not an error.
type RawExtraction struct {
	ImagePath    string              `json:"image_path"`
	Date         *time.Time          `json:"date"`
	EmployeeCode string              `json:"employee_code"`
	Amount       decimal.NullDecimal `json:"amount"`
	MealType     string              `json:"meal_type"`
	Company      string              `json:"company"`
}

// Extractor derives receipt fields from images using a text recognizer and
// a similarity model.
type Extractor struct {
	ocr  recognition.Recognizer
	sim  recognition.Similarity
	cfg  config.Extraction
	code *regexp.Regexp
}

// NewExtractor creates a new Extractor.
func NewExtractor(ocr recognition.Recognizer, sim recognition.Similarity, cfg config.Extraction) *Extractor {
	return &Extractor{
		ocr:  ocr,
		sim:  sim,
		cfg:  cfg,
		code: codePattern(cfg.CodePrefixes),
	}
}

// Extract runs both OCR passes over the image and derives all fields. Any
// recognizer or model failure is returned wrapped with the image path so
// the caller can count the image as a non-fatal per-item failure.
func (e *Extractor) Extract(ctx context.Context, img SourceImage) (*RawExtraction, error) {
	p, err := preparePasses(img.Data, img.ContentType, e.cfg.MaxImageEdge)
	if err != nil {
		return nil, fmt.Errorf("preparing image %s: %w", img.Path, err)
	}

	fullText, err := e.ocr.RecognizeWords(ctx, p.full)
	if err != nil {
		return nil, fmt.Errorf("recognizing full pass of %s: %w", img.Path, err)
	}

	halfText, err := e.ocr.RecognizeWords(ctx, p.half)
	if err != nil {
		return nil, fmt.Errorf("recognizing half pass of %s: %w", img.Path, err)
	}

	rec := &RawExtraction{
		ImagePath:    img.Path,
		Date:         ExtractDate(fullText),
		EmployeeCode: ExtractEmployeeCode(fullText, e.code),
		Amount:       ExtractAmount(halfText),
	}

	scores := newScoreCache(e.sim, fullText)

	rec.MealType, err = e.identifyMealType(ctx, scores)
	if err != nil {
		return nil, fmt.Errorf("identifying meal type of %s: %w", img.Path, err)
	}

	rec.Company, err = e.identifyCompany(ctx, scores)
	if err != nil {
		return nil, fmt.Errorf("identifying company of %s: %w", img.Path, err)
	}

	return rec, nil
}

// identifyMealType evaluates the configured meal rules in order; the first
// rule whose anchors all meet their scores wins, otherwise the label stays
// empty.
func (e *Extractor) identifyMealType(ctx context.Context, scores *scoreCache) (string, error) {
	for _, rule := range e.cfg.MealRules {
		matched := true
		for _, anchor := range rule.Anchors {
			_, score, err := scores.lookup(ctx, anchor.Phrase)
			if err != nil {
				return "", err
			}
			if score <= anchor.MinScore {
				matched = false
				break
			}
		}
		if matched {
			return rule.Label, nil
		}
	}
	return "", nil
}

// identifyCompany applies the primary/secondary anchor cascade: a strong
// primary hit or a very strong secondary hit backed by a plausible primary
// resolves to the canonical company name.
func (e *Extractor) identifyCompany(ctx context.Context, scores *scoreCache) (string, error) {
	rule := e.cfg.Company
	if rule.Name == "" {
		return "", nil
	}

	_, primaryScore, err := scores.lookup(ctx, rule.Primary.Phrase)
	if err != nil {
		return "", err
	}
	if primaryScore > rule.Primary.MinScore {
		return rule.Name, nil
	}

	_, secondaryScore, err := scores.lookup(ctx, rule.Secondary.Phrase)
	if err != nil {
		return "", err
	}
	if secondaryScore > rule.Secondary.MinScore && primaryScore > rule.PrimaryFloor {
		return rule.Name, nil
	}

	return "", nil
}

// scoreCache memoizes similarity lookups per image. "Special" and "Thali"
// anchor several meal rules, so each phrase is scored against the OCR
// tokens once.
type scoreCache struct {
	sim    recognition.Similarity
	tokens []string
	hits   map[string]scoredToken
}

type scoredToken struct {
	token string
	score float64
}

func newScoreCache(sim recognition.Similarity, tokens []string) *scoreCache {
	return &scoreCache{
		sim:    sim,
		tokens: tokens,
		hits:   make(map[string]scoredToken),
	}
}

func (c *scoreCache) lookup(ctx context.Context, phrase string) (string, float64, error) {
	if hit, ok := c.hits[phrase]; ok {
		return hit.token, hit.score, nil
	}
	if len(c.tokens) == 0 {
		c.hits[phrase] = scoredToken{}
		return "", 0, nil
	}

	token, score, err := c.sim.MostSimilar(ctx, phrase, c.tokens)
	if err != nil {
		return "", 0, err
	}

	c.hits[phrase] = scoredToken{token: token, score: score}
	return token, score, nil
}

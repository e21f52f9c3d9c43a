// Package analyzer is the semantic analyzer (C5): one LLM call to
// classify a memory and extract concepts, and one LLM call to judge
// significance for the significance-gated memory types.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
)

// Analyzer wraps a chat provider with the two classification operations.
type Analyzer struct {
	chat llm.ChatProvider
}

// New builds an Analyzer bound to chat.
func New(chat llm.ChatProvider) *Analyzer {
	return &Analyzer{chat: chat}
}

// ClassifyAndExtract runs one LLM call to determine the memory's type and
// extract 1-4 concepts. On malformed output it retries once with a
// stricter reformat prompt; on a second failure it returns
// ErrMalformedResponse and the caller applies the factual/safe default.
func (a *Analyzer) ClassifyAndExtract(ctx context.Context, m models.Memory) (models.MemoryType, []models.Concept, error) {
	prompt := classifySystemPrompt + "\n\nTopic: " + m.Topic + "\nContent: " + m.Content

	result := a.chat.Generate(ctx, prompt)
	if !result.OK {
		return "", nil, fmt.Errorf("%w: %s", ErrMalformedResponse, result.Error)
	}

	memType, concepts, err := parseClassification(result.Text)
	if err == nil {
		return memType, concepts, nil
	}

	retryPrompt := classifySystemPrompt + "\n\n" + classifyRetryPrompt + "\n\nTopic: " + m.Topic + "\nContent: " + m.Content
	retryResult := a.chat.Generate(ctx, retryPrompt)
	if !retryResult.OK {
		return "", nil, fmt.Errorf("%w: %s", ErrMalformedResponse, retryResult.Error)
	}

	memType, concepts, err = parseClassification(retryResult.Text)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return memType, concepts, nil
}

// EvaluateSignificance runs one LLM call to decide whether m (already
// classified as memType) is significant enough to keep permanently.
// Only meaningful for types in MemoryType.SignificanceGated().
func (a *Analyzer) EvaluateSignificance(ctx context.Context, m models.Memory, memType models.MemoryType) (significant bool, reason string, err error) {
	prompt := significanceSystemPrompt + fmt.Sprintf(
		"\n\nMemory type: %s\nTopic: %s\nContent: %s", memType, m.Topic, m.Content)

	result := a.chat.Generate(ctx, prompt)
	if !result.OK {
		return false, "", fmt.Errorf("significance evaluation failed: %s", result.Error)
	}

	var parsed struct {
		Significant bool   `json:"significant"`
		Reason      string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(result.Text)), &parsed); err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return parsed.Significant, parsed.Reason, nil
}

type classificationResponse struct {
	MemoryType string `json:"memory_type"`
	Concepts   []struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		Confidence        *float64 `json:"confidence"`
		Mood              string   `json:"mood"`
		Keywords          []string `json:"keywords"`
		ExtractedConcepts []string `json:"extracted_concepts"`
	} `json:"concepts"`
}

func parseClassification(raw string) (models.MemoryType, []models.Concept, error) {
	var parsed classificationResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return "", nil, fmt.Errorf("parse classification json: %w", err)
	}

	memType := models.MemoryType(parsed.MemoryType)
	if !memType.IsValid() {
		return "", nil, fmt.Errorf("invalid memory_type %q", parsed.MemoryType)
	}

	if len(parsed.Concepts) < 1 || len(parsed.Concepts) > 4 {
		return "", nil, fmt.Errorf("concepts count %d out of range [1,4]", len(parsed.Concepts))
	}

	concepts := make([]models.Concept, 0, len(parsed.Concepts))
	for _, c := range parsed.Concepts {
		if strings.TrimSpace(c.Title) == "" {
			return "", nil, fmt.Errorf("concept with empty title")
		}
		concepts = append(concepts, models.Concept{
			Title:             c.Title,
			Description:       c.Description,
			MemoryType:        memType,
			Confidence:        clampConfidence(c.Confidence),
			Mood:              c.Mood,
			Keywords:          c.Keywords,
			ExtractedConcepts: c.ExtractedConcepts,
		})
	}

	return memType, concepts, nil
}

// clampConfidence defaults a missing confidence field to 1.0 (the model
// didn't hedge) and clamps an out-of-range value into [0,1].
func clampConfidence(v *float64) float64 {
	if v == nil {
		return 1.0
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	default:
		return *v
	}
}

// extractJSON trims any prose/markdown fencing the LLM added around the
// JSON object, taking the outermost {...} span.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

// DefaultConcept builds the safe-default concept used when the analyzer
// reports an error: memory_type=factual, confidence=0.5.
func DefaultConcept(topic, content string) models.Concept {
	return models.Concept{
		Title:       topic,
		Description: content,
		MemoryType:  models.MemoryTypeFactual,
		Confidence:  0.5,
	}
}

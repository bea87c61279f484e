package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// intentKeyword is one weighted trigger phrase for an intent.
type intentKeyword struct {
	Phrase string  `json:"phrase"`
	Weight float64 `json:"weight"`
}

// defaultAlternativeMargin is the relative margin under which a runner-up
// intent is reported as an alternative: any intent whose raw score is within
// 15% of the top score is considered ambiguous with it.
const defaultAlternativeMargin = 0.15

// IntentClassifier maps query text to a discrete intent with a confidence
// score. Classification is deterministic: a fixed keyword-weight table,
// case-insensitive substring matching, and a stable tie-break on intent name.
type IntentClassifier struct {
	keywords map[entities.Intent][]intentKeyword
	margin   float64
}

// IntentResult is the outcome of classifying one query.
type IntentResult struct {
	Intent       entities.Intent        `json:"intent"`
	Confidence   float64                `json:"confidence"`
	Alternatives []entities.IntentScore `json:"alternatives,omitempty"`
}

// NewIntentClassifier loads the intent keyword table from a JSON config file.
func NewIntentClassifier(keywordsPath string) (*IntentClassifier, error) {
	data, err := os.ReadFile(keywordsPath)
	if err != nil {
		return nil, err
	}

	var raw map[string][]intentKeyword
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	c := &IntentClassifier{
		keywords: make(map[entities.Intent][]intentKeyword, len(raw)),
		margin:   defaultAlternativeMargin,
	}
	for key, kws := range raw {
		intent := entities.Intent(strings.ToLower(strings.TrimSpace(key)))
		if !intent.IsValid() {
			return nil, fmt.Errorf("unknown intent %q in keyword config", key)
		}
		normalized := make([]intentKeyword, 0, len(kws))
		for _, kw := range kws {
			phrase := strings.ToLower(strings.TrimSpace(kw.Phrase))
			if phrase == "" || kw.Weight <= 0 {
				continue
			}
			normalized = append(normalized, intentKeyword{Phrase: phrase, Weight: kw.Weight})
		}
		c.keywords[intent] = normalized
	}
	return c, nil
}

// Classify scores the text against every intent's trigger phrases. The raw
// score per intent is the sum of matched keyword weights; confidence is the
// raw score divided by the sum of all raw scores. When nothing matches, the
// result is the general intent with confidence 0.
func (c *IntentClassifier) Classify(text string) IntentResult {
	q := strings.ToLower(text)

	type ranked struct {
		intent entities.Intent
		score  float64
	}
	var scores []ranked
	total := 0.0
	for intent, kws := range c.keywords {
		score := 0.0
		for _, kw := range kws {
			if strings.Contains(q, kw.Phrase) {
				score += kw.Weight
			}
		}
		if score > 0 {
			scores = append(scores, ranked{intent: intent, score: score})
			total += score
		}
	}

	if total == 0 {
		return IntentResult{Intent: entities.IntentGeneral, Confidence: 0}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score == scores[j].score {
			return scores[i].intent < scores[j].intent
		}
		return scores[i].score > scores[j].score
	})

	top := scores[0]
	result := IntentResult{
		Intent:     top.intent,
		Confidence: top.score / total,
	}
	for _, r := range scores[1:] {
		if r.score >= top.score*(1-c.margin) {
			result.Alternatives = append(result.Alternatives, entities.IntentScore{
				Intent:     r.intent,
				Confidence: r.score / total,
			})
		}
	}
	return result
}

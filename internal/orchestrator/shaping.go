// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/util"
)

// Shaping thresholds and budgets.
const (
	disinterestedMaxLen = 5
	shortMaxLen         = 10
	defaultTokenCap     = 1000
)

// Sentiment is the coarse reading of a user message that drives shaping.
type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentShort
	SentimentNegative
	SentimentDisinterested
)

// String returns the log name of the sentiment.
func (s Sentiment) String() string {
	switch s {
	case SentimentShort:
		return "short"
	case SentimentNegative:
		return "negative"
	case SentimentDisinterested:
		return "disinterested"
	default:
		return "neutral"
	}
}

// ClassifySentiment reads message with the given keyword lists. Checks run
// in precedence order: disinterested, negative, short.
func ClassifySentiment(message string, kw catalog.Sentiment) Sentiment {
	folded := util.Fold(strings.TrimSpace(message))
	n := utf8.RuneCountInString(folded)

	if n <= disinterestedMaxLen || containsAnyFold(folded, kw.Disinterest) {
		return SentimentDisinterested
	}
	if util.ContainsAnyWord(folded, kw.Negations) {
		return SentimentNegative
	}
	if n <= shortMaxLen {
		return SentimentShort
	}
	return SentimentNeutral
}

// Shape returns the temperature and token budget for message on m.
func Shape(message string, m model.ModelDescriptor, kw catalog.Sentiment) (temperature float64, maxTokens int) {
	switch ClassifySentiment(message, kw) {
	case SentimentDisinterested:
		return 0.5, 100
	case SentimentNegative:
		return 0.6, 150
	case SentimentShort:
		return 0.7, 200
	default:
		return 0.7, min(defaultTokenCap, m.MaxTokens)
	}
}

// ShapeRequest is Shape with the default catalog's keyword lists.
func ShapeRequest(message string, m model.ModelDescriptor) (temperature float64, maxTokens int) {
	return Shape(message, m, catalog.Default().Sentiment)
}

func containsAnyFold(folded string, phrases []string) bool {
	for _, p := range phrases {
		if p = util.Fold(p); p != "" && strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

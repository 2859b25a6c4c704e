// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/util"
)

// ============================================================================
// KEYWORD CLASSIFICATION
// ============================================================================

// ClassifyIntent labels text with the default catalog's keyword rules.
//
// Rules are tried in catalog order and the first group with a keyword that
// occurs as a whole word wins:
//  1. meeting: "reunión", "cita", "llamada", "agendar"
//  2. projects: "proyectos", "portafolio", "trabajos"
//  3. pricing: "precio", "costo", "cotización"
//  4. guarantees, process, support, contact
//  5. services: "servicios", "ofrecen", "web", "app"
//  6. general: default fallback
func ClassifyIntent(text string) Intent {
	return ClassifyIntentWith(text, catalog.Default().Intents)
}

// ClassifyIntentWith labels text with explicit keyword groups. Groups whose
// name is not a known Intent are skipped.
func ClassifyIntentWith(text string, groups []catalog.IntentGroup) Intent {
	clean := util.Sanitize(text)
	if clean == "" {
		return IntentGeneral
	}
	for _, g := range groups {
		intent := Intent(g.Name)
		if !intent.Valid() {
			continue
		}
		if util.ContainsAnyWord(clean, g.Keywords) {
			return intent
		}
	}
	return IntentGeneral
}

// KeywordClassifier is a Classifier over a catalog's intent groups. It never
// fails.
type KeywordClassifier struct {
	source catalog.Source
}

// NewKeywordClassifier creates a classifier reading rules from src. A nil
// src uses the default catalog.
func NewKeywordClassifier(src catalog.Source) *KeywordClassifier {
	if src == nil {
		src = catalog.Static{}
	}
	return &KeywordClassifier{source: src}
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Intent, error) {
	return ClassifyIntentWith(text, k.source.Get().Intents), nil
}

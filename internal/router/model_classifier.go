// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/util"
)

// DefaultTimeout bounds one model classification call.
const DefaultTimeout = 5 * time.Second

// Completer is the subset of a completion adapter the classifier needs.
type Completer interface {
	Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error)
}

// ModelClassifier asks a small model for a single label. Unknown labels fall
// back to keyword rules; call failures are returned so the caller can log
// them.
type ModelClassifier struct {
	client   Completer
	model    model.ModelDescriptor
	timeout  time.Duration
	keywords *KeywordClassifier
}

// NewModelClassifier creates a classifier calling m through client.
// timeout <= 0 uses DefaultTimeout.
func NewModelClassifier(client Completer, m model.ModelDescriptor, src catalog.Source, timeout time.Duration) *ModelClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ModelClassifier{
		client:   client,
		model:    m,
		timeout:  timeout,
		keywords: NewKeywordClassifier(src),
	}
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	if strings.TrimSpace(text) == "" {
		return IntentGeneral, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.Complete(ctx, model.CompletionRequest{
		SystemInstruction: classificationInstruction(),
		Messages:          []model.ConversationMessage{model.UserMessage(text)},
		Model:             c.model,
		Temperature:       0,
		MaxTokens:         8,
	})
	if err != nil {
		return IntentGeneral, fmt.Errorf("intent model %s: %w", c.model.Name, err)
	}

	if intent, ok := parseLabel(out.Text); ok {
		return intent, nil
	}
	return c.keywords.Classify(ctx, text)
}

// parseLabel reads the first word of a model reply as an Intent.
func parseLabel(reply string) (Intent, bool) {
	words := util.Words(reply)
	if len(words) == 0 {
		return IntentGeneral, false
	}
	intent, err := ParseIntent(words[0])
	if err != nil {
		return IntentGeneral, false
	}
	return intent, true
}

func classificationInstruction() string {
	labels := make([]string, len(AllIntents))
	for i, intent := range AllIntents {
		labels[i] = intent.String()
	}
	return "Clasifica la intención del mensaje del usuario de un sitio web de desarrollo de software. " +
		"Responde solo con una de estas etiquetas, sin explicación: " + strings.Join(labels, ", ") + "."
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Intent is what the visitor is after in one message.
type Intent string

const (
	IntentServices   Intent = "services"
	IntentPricing    Intent = "pricing"
	IntentProjects   Intent = "projects"
	IntentMeeting    Intent = "meeting"
	IntentProcess    Intent = "process"
	IntentGuarantees Intent = "guarantees"
	IntentContact    Intent = "contact"
	IntentSupport    Intent = "support"
	IntentGeneral    Intent = "general"
)

// AllIntents lists every label in display order.
var AllIntents = []Intent{
	IntentServices,
	IntentPricing,
	IntentProjects,
	IntentMeeting,
	IntentProcess,
	IntentGuarantees,
	IntentContact,
	IntentSupport,
	IntentGeneral,
}

// String returns the wire label.
func (i Intent) String() string {
	return string(i)
}

// Valid reports whether i is one of AllIntents.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent converts a label to an Intent, ignoring case and surrounding
// space.
func ParseIntent(s string) (Intent, error) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return IntentGeneral, fmt.Errorf("unknown intent %q", s)
	}
	return i, nil
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier labels a user message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// Off is a Classifier that always answers IntentGeneral.
type Off struct{}

// Classify implements Classifier.
func (Off) Classify(context.Context, string) (Intent, error) {
	return IntentGeneral, nil
}

// Safe runs c and turns every failure, including a nil classifier or an
// invalid label, into IntentGeneral.
func Safe(ctx context.Context, c Classifier, text string) Intent {
	if c == nil {
		return IntentGeneral
	}
	intent, err := c.Classify(ctx, text)
	if err != nil {
		log.Printf("INTENT_FAILED | error=%v", err)
		return IntentGeneral
	}
	if !intent.Valid() {
		return IntentGeneral
	}
	return intent
}

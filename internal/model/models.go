// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
)

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// ModelDescriptor describes one selectable hosted model.
type ModelDescriptor struct {
	// Name is the model identifier used in API calls.
	Name string `toml:"name" json:"name"`

	// MaxTokens is the model's output token ceiling.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`

	// Priority orders fallback; lower is tried first.
	Priority int `toml:"priority" json:"priority"`
}

// Models is an ordered set of model descriptors.
type Models []ModelDescriptor

// DefaultModels returns the built-in Groq model list.
func DefaultModels() Models {
	return Models{
		{Name: "llama-3.3-70b-versatile", MaxTokens: 32768, Priority: 1},
		{Name: "mixtral-8x7b-32768", MaxTokens: 32768, Priority: 2},
		{Name: "llama-3.1-8b-instant", MaxTokens: 8192, Priority: 3},
	}
}

// Sorted returns a copy ordered by ascending priority.
func (m Models) Sorted() Models {
	out := make(Models, len(m))
	copy(out, m)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Names returns the model names in their current order.
func (m Models) Names() []string {
	names := make([]string, len(m))
	for i, d := range m {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a descriptor by name.
func (m Models) Lookup(name string) (ModelDescriptor, bool) {
	for _, d := range m {
		if d.Name == name {
			return d, true
		}
	}
	return ModelDescriptor{}, false
}

// Last returns the lowest-priority model, which is usually the cheapest.
func (m Models) Last() (ModelDescriptor, bool) {
	if len(m) == 0 {
		return ModelDescriptor{}, false
	}
	sorted := m.Sorted()
	return sorted[len(sorted)-1], true
}

// Validate checks names, token ceilings and that priorities are distinct.
func (m Models) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	seenPriority := make(map[int]string, len(m))
	seenName := make(map[string]bool, len(m))
	for i, d := range m {
		if d.Name == "" {
			return fmt.Errorf("model %d: name is required", i)
		}
		if seenName[d.Name] {
			return fmt.Errorf("model %q listed twice", d.Name)
		}
		seenName[d.Name] = true
		if d.MaxTokens <= 0 {
			return fmt.Errorf("model %q: max_tokens must be positive", d.Name)
		}
		if d.Priority <= 0 {
			return fmt.Errorf("model %q: priority must be positive", d.Name)
		}
		if other, ok := seenPriority[d.Priority]; ok {
			return fmt.Errorf("models %q and %q share priority %d", other, d.Name, d.Priority)
		}
		seenPriority[d.Priority] = d.Name
	}
	return nil
}

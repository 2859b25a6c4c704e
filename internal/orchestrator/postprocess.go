// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/util"
)

// NavigationMode decides how a navigation suggestion meets the model reply.
type NavigationMode string

const (
	// NavigationOverride replaces the reply with the suggestion unless the
	// reply already contains it.
	NavigationOverride NavigationMode = "override"

	// NavigationAppend adds the suggestion after the reply.
	NavigationAppend NavigationMode = "append"
)

// ParseNavigationMode accepts "override", "append" or "" (override).
func ParseNavigationMode(s string) (NavigationMode, error) {
	switch NavigationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NavigationOverride:
		return NavigationOverride, nil
	case NavigationAppend:
		return NavigationAppend, nil
	default:
		return "", fmt.Errorf("unknown navigation mode %q (want override or append)", s)
	}
}

// =============================================================================
// MARKDOWN STRIPPING
// =============================================================================

var (
	reFence        = regexp.MustCompile("```[\\w+-]*")
	reHeading      = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	reBold         = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reUnderBold    = regexp.MustCompile(`__(.+?)__`)
	reStrike       = regexp.MustCompile(`~~(.+?)~~`)
	reItalic       = regexp.MustCompile(`\*([^*\n]+)\*`)
	reUnderItal    = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_\n]+)_([^\p{L}\p{N}_]|$)`)
	reInlineCode   = regexp.MustCompile("`([^`\n]*)`")
	reSpaceBefore  = regexp.MustCompile(`\s+([.,;:!?])`)
	reNoSpaceAfter = regexp.MustCompile(`([.!?])([\p{Lu}¿¡])`)
)

// StripMarkdown removes emphasis, strike-through, code and heading markers
// and keeps their content. Links are left intact.
func StripMarkdown(s string) string {
	s = reFence.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "")
	s = reBold.ReplaceAllString(s, "$1")
	s = reUnderBold.ReplaceAllString(s, "$1")
	s = reStrike.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reUnderItal.ReplaceAllString(s, "$1$2$3")
	s = reInlineCode.ReplaceAllString(s, "$1")
	// Unpaired markers and list bullets.
	return strings.NewReplacer("**", "", "*", "", "~~", "", "`", "").Replace(s)
}

// NormalizeSpacing collapses whitespace, removes spaces before punctuation
// and separates sentences that were glued together.
func NormalizeSpacing(s string) string {
	s = util.CollapseSpaces(s)
	s = reSpaceBefore.ReplaceAllString(s, "$1")
	s = reNoSpaceAfter.ReplaceAllString(s, "$1 $2")
	return strings.TrimSpace(s)
}

// =============================================================================
// NAVIGATION
// =============================================================================

// NavigationSuggestion returns the fragments whose keywords start a word of
// the sanitized user message, joined by a blank line in catalog order. It
// returns "" when nothing matches.
func NavigationSuggestion(userMessage string, cat *catalog.Catalog) string {
	clean := util.Sanitize(userMessage)
	var parts []string
	for _, g := range cat.Navigation {
		if util.ContainsAnyWordPrefix(clean, g.Keywords) {
			parts = append(parts, g.Fragment)
		}
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// POST-PROCESSING
// =============================================================================

// PostProcess turns a raw model reply into display text.
func PostProcess(raw, userMessage string, cat *catalog.Catalog, mode NavigationMode) string {
	text := NormalizeSpacing(StripMarkdown(raw))
	if text == "" {
		text = cat.Messages.Unintelligible
	}

	suggestion := NavigationSuggestion(userMessage, cat)
	if suggestion == "" || strings.Contains(text, suggestion) {
		return text
	}
	if mode == NavigationAppend {
		return text + "\n\n" + suggestion
	}
	return suggestion
}

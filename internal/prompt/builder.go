// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"strings"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
)

// DefaultMaxHistory bounds the transcript section of the prompt.
const DefaultMaxHistory = 20

// Section headings. The catalog supplies the content; the layout is fixed.
const (
	headingInfo       = "Información de %s:"
	headingServices   = "Servicios:"
	headingProcess    = "Proceso:"
	headingGuarantees = "Garantías:"
	headingContact    = "Contacto:"
	headingLinks      = "Enlaces de navegación:"
	headingHints      = "Indicaciones para esta conversación:"
	headingHistory    = "Historial de la conversación:"
	headingQuery      = "Consulta del usuario:"
)

// =============================================================================
// BUILDER
// =============================================================================

// Builder renders the system instruction for a chat turn.
type Builder struct {
	source     catalog.Source
	maxHistory int
}

// New creates a Builder reading from src. A nil src uses the default
// catalog; maxHistory <= 0 uses DefaultMaxHistory.
func New(src catalog.Source, maxHistory int) *Builder {
	if src == nil {
		src = catalog.Static{}
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Builder{source: src, maxHistory: maxHistory}
}

// Catalog returns the snapshot the next Build would use.
func (b *Builder) Catalog() *catalog.Catalog {
	return b.source.Get()
}

// Build renders the prompt against the current catalog snapshot.
func (b *Builder) Build(userQuery string, history []model.ConversationMessage) string {
	return b.BuildWith(b.source.Get(), userQuery, history)
}

// BuildWith renders the prompt against an explicit snapshot. Callers that
// also post-process with the catalog use this to keep one snapshot per turn.
//
// history is the conversation as the client sent it, latest message
// included. System-role entries are left out of the transcript.
func (b *Builder) BuildWith(cat *catalog.Catalog, userQuery string, history []model.ConversationMessage) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(cat.Persona))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, headingInfo+"\n\n", cat.Company)
	writeItems(&sb, headingServices, cat.Services, cat.Speech)
	writeItems(&sb, headingProcess, cat.ProcessSteps, cat.Speech)
	writeItems(&sb, headingGuarantees, cat.Guarantees, cat.Speech)
	writeContact(&sb, cat.Contact)

	if len(cat.Links) > 0 {
		sb.WriteString(headingLinks + "\n")
		for _, l := range cat.Links {
			fmt.Fprintf(&sb, "- %s: %s\n", l.Path, l.Label)
		}
		sb.WriteString("\n")
	}

	if hints := ContextHints(history, cat.Hints); len(hints) > 0 {
		sb.WriteString(headingHints + "\n")
		for _, h := range hints {
			fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(h.Directive))
		}
		sb.WriteString("\n")
	}

	transcript := model.Tail(model.WithoutSystem(history), b.maxHistory)
	sb.WriteString(headingHistory + "\n")
	for _, m := range transcript {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, strings.TrimSpace(m.Content))
	}
	sb.WriteString("\n")

	sb.WriteString(headingQuery + "\n")
	sb.WriteString(FormatForSpeech(userQuery, cat.Speech))
	sb.WriteString("\n")

	return sb.String()
}

func writeItems(sb *strings.Builder, heading string, items []catalog.Item, rules []catalog.Replacement) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + "\n")
	for _, it := range items {
		fmt.Fprintf(sb, "- %s: %s\n", it.Title, FormatForSpeech(it.Description, rules))
	}
	sb.WriteString("\n")
}

func writeContact(sb *strings.Builder, c catalog.Contact) {
	if c.Email == "" && len(c.WhatsApp) == 0 {
		return
	}
	sb.WriteString(headingContact + "\n")
	if len(c.WhatsApp) > 0 {
		sb.WriteString("- WhatsApp:\n")
		for _, w := range c.WhatsApp {
			fmt.Fprintf(sb, "    %s %s: %s\n", w.Flag, w.Country, w.Number)
		}
	}
	if c.Email != "" {
		fmt.Fprintf(sb, "- Email: %s\n", c.Email)
	}
	sb.WriteString("\n")
}

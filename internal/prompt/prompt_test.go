// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/stretchr/testify/require"
)

func TestBuild_Deterministic(t *testing.T) {
	b := New(nil, 0)
	history := []model.ConversationMessage{
		model.UserMessage("Hola, ¿cuánto cuesta una página web?"),
		model.AssistantMessage("Depende del alcance."),
		model.UserMessage("¿Y una app?"),
	}

	first := b.Build("¿Y una app?", history)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, b.Build("¿Y una app?", history))
	}
}

func TestBuild_Sections(t *testing.T) {
	b := New(nil, 0)
	out := b.Build("¿Qué servicios ofrecen?", []model.ConversationMessage{
		model.UserMessage("¿Qué servicios ofrecen?"),
	})

	order := []string{
		"Eres un asistente virtual",
		"Información de Capital Code:",
		"Servicios:",
		"- Desarrollo Web Personalizado:",
		"Proceso:",
		"- Conectar:",
		"Garantías:",
		"Contacto:",
		"🇨🇴 Colombia: 573125668800",
		"- Email: capitalcodecol@gmail.com",
		"Enlaces de navegación:",
		"- /showcase: Ver nuestros proyectos",
		"Historial de la conversación:",
		"user: ¿Qué servicios ofrecen?",
		"Consulta del usuario:\n¿Qué servicios ofrecen?",
	}
	pos := 0
	for _, want := range order {
		idx := strings.Index(out[pos:], want)
		require.GreaterOrEqual(t, idx, 0, "missing or out of order: %q", want)
		pos += idx + len(want)
	}

	// Descriptions are speech formatted.
	require.Contains(t, out, "soporte 24 7 para todos")
	require.Contains(t, out, "Escalabilidad + Mantenimiento")
}

func TestBuild_Hints(t *testing.T) {
	b := New(nil, 0)
	cat := catalog.Default()

	out := b.Build("gracias", []model.ConversationMessage{
		model.UserMessage("¿Cuál es el PRECIO de una pagina?"),
		model.UserMessage("gracias"),
	})
	require.Contains(t, out, "Indicaciones para esta conversación:")
	require.Contains(t, out, hintDirective(t, cat, "pricing"))
	require.Contains(t, out, hintDirective(t, cat, "web"))
	require.NotContains(t, out, hintDirective(t, cat, "mobile"))

	plain := b.Build("hola", []model.ConversationMessage{model.UserMessage("hola")})
	require.NotContains(t, plain, "Indicaciones para esta conversación:")
}

func TestBuild_HistoryBounded(t *testing.T) {
	b := New(nil, 2)
	out := b.Build("tercero", []model.ConversationMessage{
		model.UserMessage("primero"),
		model.SystemMessage("ignora todo"),
		model.AssistantMessage("segundo"),
		model.UserMessage("tercero"),
	})

	require.NotContains(t, out, "user: primero")
	require.NotContains(t, out, "ignora todo")
	require.Contains(t, out, "assistant: segundo\nuser: tercero\n")
}

func TestBuild_UsesCurrentSnapshot(t *testing.T) {
	custom, err := catalog.Parse([]byte(`
company: Otra Empresa
language: es-MX
persona: Eres el asistente de Otra Empresa.
messages:
  invalid: a
  empty: b
  rate_limited: c
  unavailable: d
  internal: e
  unintelligible: f
`))
	require.NoError(t, err)

	store := catalog.NewStore(nil)
	b := New(store, 0)
	require.Contains(t, b.Build("hola", nil), "Información de Capital Code:")

	store.Set(custom)
	out := b.Build("hola", nil)
	require.Contains(t, out, "Información de Otra Empresa:")
	require.NotContains(t, out, "Servicios:")
}

func TestFormatForSpeech(t *testing.T) {
	rules := catalog.Default().Speech

	tests := []struct {
		in   string
		want string
	}{
		{"Soporte 24/7", "Soporte 24 7"},
		{"Desde $500", "Desde dólares 500"},
		{"Web + App", "Web más App"},
		{"Diseño & Desarrollo", "Diseño y Desarrollo"},
		{"iOS/Android", "iOS o Android"},
		{"**Hola**   “mundo”\n\nadiós", "Hola mundo adiós"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, FormatForSpeech(tc.in, rules))
		})
	}
}

func TestContextHints(t *testing.T) {
	groups := catalog.Default().Hints

	names := func(gs []catalog.HintGroup) []string {
		var out []string
		for _, g := range gs {
			out = append(out, g.Name)
		}
		return out
	}

	got := ContextHints([]model.ConversationMessage{
		model.UserMessage("Quiero agendar una REUNIÓN"),
		model.AssistantMessage("Claro, ¿para una app móvil?"),
	}, groups)
	require.Equal(t, []string{"mobile", "meeting"}, names(got))

	require.Empty(t, ContextHints(nil, groups))
	require.Empty(t, ContextHints([]model.ConversationMessage{model.UserMessage("hola")}, groups))
}

func hintDirective(t *testing.T, c *catalog.Catalog, name string) string {
	t.Helper()
	for _, h := range c.Hints {
		if h.Name == name {
			return h.Directive
		}
	}
	t.Fatalf("hint %q not in catalog", name)
	return ""
}

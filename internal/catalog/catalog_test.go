// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	require.Equal(t, "Capital Code", c.Company)
	require.Equal(t, "es-ES", c.LanguageCode())
	require.Len(t, c.Services, 6)
	require.Len(t, c.ProcessSteps, 3)
	require.Len(t, c.Guarantees, 9)
	require.Len(t, c.Contact.WhatsApp, 2)
	require.Len(t, c.QuickQuestions, 5)

	projects, ok := c.NavigationByName("projects")
	require.True(t, ok)
	require.Contains(t, projects.Fragment, "(proyectos)")

	meeting, ok := c.NavigationByName("meeting")
	require.True(t, ok)
	require.Equal(t, "¡Perfecto! Me alegra tu interés. 📅 [Aquí puedes agendar una llamada](llamada) 🤝", meeting.Fragment)

	require.Equal(t, []string{"no", "nada"}, c.Sentiment.Negations)
	require.Equal(t, []string{"en nada"}, c.Sentiment.Disinterest)
	require.NotEmpty(t, c.Intents)
	require.Equal(t, "meeting", c.Intents[0].Name)

	// 24/7 must be rewritten before the generic slash rule.
	require.Equal(t, "24/7", c.Speech[0].From)
}

func TestContactLine(t *testing.T) {
	c := Default()
	line := c.ContactLine()
	require.Contains(t, line, "capitalcodecol@gmail.com")
	require.Contains(t, line, "+573125668800")

	msg := c.WithContact(c.Messages.Unavailable)
	require.True(t, strings.HasPrefix(msg, c.Messages.Unavailable))
	require.True(t, strings.HasSuffix(msg, line))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "company: [unclosed"},
		{name: "missing company", doc: "language: es-ES\npersona: hola\n"},
		{name: "bad language", doc: "company: X\nlanguage: not a tag!!\npersona: hola\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte("company: X\nlanguage: es\npersona: hola\n"))
	require.True(t, errors.Is(err, ErrInvalidCatalog), "missing messages must be reported")
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Same(t, Default(), c)
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	require.Same(t, Default(), s.Get())

	other := *Default()
	other.Company = "Otra"
	s.Set(&other)
	require.Equal(t, "Otra", s.Get().Company)

	s.Set(nil)
	require.Equal(t, "Otra", s.Get().Company)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, defaultYAML, 0600))

	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WatchWithDebounce(ctx, path, store, 20*time.Millisecond) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(string(defaultYAML), "company: Capital Code", "company: Capital Code Labs", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	require.Eventually(t, func() bool {
		return store.Get().Company == "Capital Code Labs"
	}, 3*time.Second, 20*time.Millisecond)

	// A broken document keeps the last good snapshot.
	require.NoError(t, os.WriteFile(path, []byte("company: [broken"), 0600))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, "Capital Code Labs", store.Get().Company)

	cancel()
	require.NoError(t, <-done)
}

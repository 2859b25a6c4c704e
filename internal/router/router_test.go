// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"¿Qué servicios ofrecen?", IntentServices},
		{"¿Cuánto cuesta? Quiero una cotización", IntentPricing},
		{"¿Cuáles son los PRECIOS?", IntentPricing},
		{"Muéstrame su portafolio", IntentProjects},
		{"agenda una llamada", IntentMeeting},
		{"Quiero una reunion", IntentMeeting},
		{"¿Qué garantías tienen?", IntentGuarantees},
		{"¿Cómo es el proceso?", IntentProcess},
		{"¿Cómo contactar con soporte?", IntentSupport},
		{"¿Tienen WhatsApp?", IntentContact},
		{"Hola", IntentGeneral},
		{"", IntentGeneral},
		{"🤖🤖", IntentGeneral},
		// Meeting outranks services.
		{"Quiero agendar una cita para una app", IntentMeeting},
		// Whole words only: "necesita" does not contain the keyword "cita".
		{"Se necesita algo", IntentGeneral},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyIntent(tc.text))
		})
	}
}

func TestParseIntent(t *testing.T) {
	i, err := ParseIntent(" Pricing ")
	require.NoError(t, err)
	require.Equal(t, IntentPricing, i)

	i, err = ParseIntent("weather")
	require.Error(t, err)
	require.Equal(t, IntentGeneral, i)

	for _, intent := range AllIntents {
		require.True(t, intent.Valid())
	}
}

func TestClassifyIntentWith_SkipsUnknownGroups(t *testing.T) {
	groups := []catalog.IntentGroup{
		{Name: "weather", Keywords: []string{"lluvia"}},
		{Name: "support", Keywords: []string{"lluvia"}},
	}
	require.Equal(t, IntentSupport, ClassifyIntentWith("¿Va a haber lluvia?", groups))
}

// fakeCompleter returns a fixed reply or error and records the request.
type fakeCompleter struct {
	reply string
	err   error
	delay time.Duration
	got   model.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	f.got = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Completion{Text: f.reply}, nil
}

var small = model.ModelDescriptor{Name: "llama-3.1-8b-instant", MaxTokens: 8192, Priority: 3}

func TestModelClassifier(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		text  string
		want  Intent
	}{
		{"exact label", "pricing", "¿cuánto vale?", IntentPricing},
		{"label with noise", "  Meeting.\n", "hablemos", IntentMeeting},
		{"unknown label falls back to keywords", "clima", "Muéstrame sus proyectos", IntentProjects},
		{"empty reply falls back", "", "hola", IntentGeneral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCompleter{reply: tc.reply}
			c := NewModelClassifier(fake, small, nil, 0)

			got, err := c.Classify(context.Background(), tc.text)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, small.Name, fake.got.Model.Name)
			require.Contains(t, fake.got.SystemInstruction, "pricing")
			require.Equal(t, tc.text, fake.got.Messages[0].Content)
		})
	}
}

func TestModelClassifier_Failure(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("boom")}
	c := NewModelClassifier(fake, small, nil, 0)

	got, err := c.Classify(context.Background(), "¿Qué servicios ofrecen?")
	require.Error(t, err)
	require.Equal(t, IntentGeneral, got)
	require.Equal(t, IntentGeneral, Safe(context.Background(), c, "¿Qué servicios ofrecen?"))
}

func TestModelClassifier_Timeout(t *testing.T) {
	fake := &fakeCompleter{reply: "pricing", delay: time.Second}
	c := NewModelClassifier(fake, small, nil, 20*time.Millisecond)

	start := time.Now()
	require.Equal(t, IntentGeneral, Safe(context.Background(), c, "precio"))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSafe(t *testing.T) {
	require.Equal(t, IntentGeneral, Safe(context.Background(), nil, "precio"))
	require.Equal(t, IntentGeneral, Safe(context.Background(), Off{}, "precio"))
	require.Equal(t, IntentPricing, Safe(context.Background(), NewKeywordClassifier(nil), "precio"))
}

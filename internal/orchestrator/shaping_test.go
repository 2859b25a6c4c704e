// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalcode/concierge/internal/model"
)

func TestShapeRequest(t *testing.T) {
	big := model.ModelDescriptor{Name: "big", MaxTokens: 32768, Priority: 1}
	small := model.ModelDescriptor{Name: "small", MaxTokens: 512, Priority: 2}

	tests := []struct {
		name      string
		message   string
		m         model.ModelDescriptor
		wantTemp  float64
		wantMax   int
		sentiment Sentiment
	}{
		{"bare no", "no", big, 0.5, 100, SentimentDisinterested},
		{"padded no", "   no   ", big, 0.5, 100, SentimentDisinterested},
		{"five runes", "adiós", big, 0.5, 100, SentimentDisinterested},
		{"en nada", "no estoy interesado en nada de eso", big, 0.5, 100, SentimentDisinterested},
		{"negation word", "No me convence la propuesta", big, 0.6, 150, SentimentNegative},
		{"nada word", "Eso no me sirve de nada, gracias", big, 0.6, 150, SentimentNegative},
		{"no inside a word", "Conocer el proceso", big, 0.7, 1000, SentimentNeutral},
		{"short", "¿precios?", big, 0.7, 200, SentimentShort},
		{"ten runes", "hola otra1", big, 0.7, 200, SentimentShort},
		{"long", "¿Qué servicios ofrecen?", big, 0.7, 1000, SentimentNeutral},
		{"small model cap", "¿Qué servicios ofrecen?", small, 0.7, 512, SentimentNeutral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			temp, maxTokens := ShapeRequest(tc.message, tc.m)
			require.InDelta(t, tc.wantTemp, temp, 1e-9)
			require.Equal(t, tc.wantMax, maxTokens)
		})
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second}

	require.Equal(t, 500*time.Millisecond, b.Delay(1))
	require.Equal(t, time.Second, b.Delay(2))
	require.Equal(t, 2*time.Second, b.Delay(3))
	require.Equal(t, 8*time.Second, b.Delay(5))
	require.Equal(t, 10*time.Second, b.Delay(6))
	require.Equal(t, 10*time.Second, b.Delay(40))
	require.Equal(t, 500*time.Millisecond, b.Delay(0))
}

func TestBackoff_Jitter(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: uniformJitter}

	for i := 0; i < 100; i++ {
		d := b.Delay(2)
		require.GreaterOrEqual(t, d, time.Second)
		require.Less(t, d, 1500*time.Millisecond)
	}

	capped := Backoff{Base: 500 * time.Millisecond, Max: time.Second, Jitter: func(time.Duration) time.Duration { return 400 * time.Millisecond }}
	require.Equal(t, time.Second, capped.Delay(2))
}

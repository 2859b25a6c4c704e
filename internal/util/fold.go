// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UNICODE: keyword matching is accent and case insensitive, so "Reunión",
// "reunion" and "REUNION" all match the keyword "reunión".

// Fold lowercases s and strips combining marks.
func Fold(s string) string {
	// Transformers and casers carry state; build them per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Lower(language.Und).String(folded)
}

// ContainsFold reports whether substr occurs in s, ignoring case and accents.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

// Words splits folded s into letter/digit runs.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ContainsWord reports whether phrase occurs in s as whole words. "cita"
// matches "una cita" but not "necesita"; multi-word phrases must appear
// contiguously.
func ContainsWord(s, phrase string) bool {
	return containsSeq(Words(s), Words(phrase), equalWord)
}

// ContainsAnyWord is ContainsWord over several phrases, with s split once.
func ContainsAnyWord(s string, phrases []string) bool {
	words := Words(s)
	for _, p := range phrases {
		if containsSeq(words, Words(p), equalWord) {
			return true
		}
	}
	return false
}

// ContainsAnyWordPrefix reports whether some phrase occurs in s with each of
// its words starting a word of s, so inflected forms match: "llamada"
// matches "llamadas" but "cita" does not match "necesita".
func ContainsAnyWordPrefix(s string, phrases []string) bool {
	words := Words(s)
	for _, p := range phrases {
		if containsSeq(words, Words(p), strings.HasPrefix) {
			return true
		}
	}
	return false
}

func equalWord(word, want string) bool { return word == want }

func containsSeq(words, seq []string, match func(word, want string) bool) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for j := range seq {
			if !match(words[i+j], seq[j]) {
				continue outer
			}
		}
		return true
	}
	return false
}

// Sanitize keeps letters, digits, whitespace and basic Spanish punctuation,
// then collapses whitespace. Emoji and markup are dropped.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || strings.ContainsRune(".,¿?¡!()", r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CollapseSpaces replaces every whitespace run, newlines included, with a
// single space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

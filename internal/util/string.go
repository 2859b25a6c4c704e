// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateRunes truncates s to at most maxRunes characters, appending "..."
// when something was cut. Log lines use it so user text never splits a
// multi-byte character.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth truncates s to a maximum display width. Emoji and CJK
// characters count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// StringWidth returns the display width of s.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return len([]rune(s))
}

// Wrap breaks s into lines no wider than width, splitting on spaces. Existing
// newlines are kept. Words wider than width get a line of their own.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}

	var out strings.Builder
	for i, para := range strings.Split(s, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		lineWidth := 0
		for j, word := range strings.Fields(para) {
			w := runewidth.StringWidth(word)
			if j > 0 {
				if lineWidth+1+w > width {
					out.WriteByte('\n')
					lineWidth = 0
				} else {
					out.WriteByte(' ')
					lineWidth++
				}
			}
			out.WriteString(word)
			lineWidth += w
		}
	}
	return out.String()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/util"
)

// dropRunes are removed after the replacement table runs.
var dropRunes = strings.NewReplacer(
	"*", "",
	"“", "",
	"”", "",
	"\"", "",
)

// FormatForSpeech rewrites symbols into words a voice engine reads well.
// Rules apply in order, so "24/7" must come before "/".
func FormatForSpeech(text string, rules []catalog.Replacement) string {
	for _, r := range rules {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return util.CollapseSpaces(dropRunes.Replace(text))
}

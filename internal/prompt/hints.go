// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/util"
)

// ContextHints returns the hint groups whose keywords appear anywhere in the
// conversation, in catalog order. A keyword matches the start of a word,
// ignoring case and accents, the same rule navigation suggestions use.
func ContextHints(history []model.ConversationMessage, groups []catalog.HintGroup) []catalog.HintGroup {
	if len(history) == 0 || len(groups) == 0 {
		return nil
	}

	var matched []catalog.HintGroup
	for _, g := range groups {
		for _, m := range history {
			if util.ContainsAnyWordPrefix(m.Content, g.Keywords) {
				matched = append(matched, g)
				break
			}
		}
	}
	return matched
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - The "models" command: configured fallback order and the
// provider's live model list.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/model"
)

// listModelsTimeout bounds "models remote".
const listModelsTimeout = 15 * time.Second

// ModelRow is one configured model as reported by "models".
type ModelRow struct {
	Order     int    `json:"order"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	MaxTokens int    `json:"max_tokens"`
}

// HandleModels handles the "models" command.
func HandleModels(args Args) error {
	return runModels(args, os.Stdout)
}

func runModels(args Args, out io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list":
		return printModels(cfg.ModelList().Sorted(), args.JSON, out)
	case "remote":
		client := cloud.NewClient(cfg.Provider.APIKey).
			WithBaseURL(cfg.Provider.BaseURL).
			WithTimeout(cfg.Provider.Timeout())
		ctx, cancel := context.WithTimeout(context.Background(), listModelsTimeout)
		defer cancel()
		infos, err := client.ListModels(ctx)
		if err != nil {
			return err
		}
		return printRemoteModels(infos, cfg.ModelList(), args.JSON, out)
	default:
		return &UsageError{Message: "unknown models subcommand: " + args.Subcommand, Hint: "concierge models [list|remote]"}
	}
}

func modelRows(models model.Models) []ModelRow {
	rows := make([]ModelRow, len(models))
	for i, m := range models {
		rows[i] = ModelRow{Order: i + 1, Name: m.Name, Priority: m.Priority, MaxTokens: m.MaxTokens}
	}
	return rows
}

func printModels(models model.Models, jsonMode bool, out io.Writer) error {
	rows := modelRows(models)
	if jsonMode {
		return writeJSON(out, NewJSONResponse("models", rows), false)
	}
	fmt.Fprintln(out, TitleStyle.Render("Fallback order"))
	for _, r := range rows {
		fmt.Fprintf(out, "  %d. %-36s priority %-3d max_tokens %d\n", r.Order, r.Name, r.Priority, r.MaxTokens)
	}
	return nil
}

// printRemoteModels lists provider models, marking the configured ones.
func printRemoteModels(infos []cloud.ModelInfo, configured model.Models, jsonMode bool, out io.Writer) error {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	if jsonMode {
		return writeJSON(out, NewJSONResponse("models remote", infos), false)
	}
	fmt.Fprintln(out, TitleStyle.Render("Provider models"))
	for _, info := range infos {
		mark := " "
		if _, ok := configured.Lookup(info.ID); ok {
			mark = "*"
		}
		ctxWin := ""
		if info.ContextWindow > 0 {
			ctxWin = fmt.Sprintf("%dk ctx", info.ContextWindow/1000)
		}
		fmt.Fprintf(out, " %s %-40s %-16s %s\n", mark, info.ID, info.OwnedBy, DimStyle.Render(ctxWin))
	}
	return nil
}

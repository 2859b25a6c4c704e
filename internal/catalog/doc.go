// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog holds the business data and user-facing copy the assistant
// speaks from: services, process steps, guarantees, contact details,
// navigation suggestions, context hints and localized error messages.
//
// A default catalog is compiled in. Deployments may point at a YAML file
// instead, and Watch reloads it when it changes. Readers always take a whole
// snapshot from a Store, so a single request never sees a mix of two files.
//
//	store := catalog.NewStore(catalog.Default())
//	go catalog.Watch(ctx, "/etc/concierge/catalog.yaml", store)
//	cat := store.Get()
package catalog

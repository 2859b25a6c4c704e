// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator turns one chat turn into one reply. It walks the
// configured models in priority order, retries a throttled model with
// exponential backoff, moves on at once after any other failure, and cleans
// the winning reply for voice and link rendering.
//
// # Attempt sequence
//
// For each model, lowest priority number first:
//
//	success          -> post-process and return
//	rate limited     -> sleep base*2^(n-1)+jitter, retry up to MaxAttempts
//	any other error  -> next model
//	context done     -> stop, return the context error
//
// When every model fails the caller gets an *AllModelsFailedError, which
// says whether throttling was the cause everywhere.
package orchestrator

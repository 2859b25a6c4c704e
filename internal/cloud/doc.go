// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides adapters for hosted, OpenAI-compatible chat
// completion APIs (Groq by default).
//
// # Key Types
//
//   - Client: hand-rolled JSON-over-HTTP adapter with size-limited reads
//   - SDKClient: the same contract on the official openai-go SDK
//   - CompletionError: every failure, tagged with an ErrorKind
//
// Adapters never retry. They classify each failure as ErrorKindModel,
// ErrorKindRateLimited or ErrorKindCanceled and leave the policy to the
// caller.
//
// # Usage
//
//	client := cloud.NewClient(apiKey)
//	out, err := client.Complete(ctx, req)
//	if cloud.KindOf(err) == cloud.ErrorKindRateLimited {
//	    // back off and try again
//	}
//
// # Security
//
// API keys are never logged. Logs carry a short SHA-256 fingerprint instead,
// and all requests use TLS 1.2+.
package cloud

// Package timeouts defines shared timeout constants used across the
// courtroom service. Centralizing these values prevents drift between
// boundaries and makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// VerdictRequest caps a single call to the verdict generator.
const VerdictRequest = 60 * time.Second

// StoreWrite caps a single persistence write issued outside a request
// context, such as the settlement expiry callback.
const StoreWrite = 2 * time.Second

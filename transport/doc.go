// Package transport owns the shared HTTP client used to fetch upstream feed
// payloads. It applies a fixed request timeout and reports failures as typed
// errors; retry pacing beyond the optional bounded per-request retries is the
// orchestrator's concern.
package transport

// Package engine implements the fieldsync offline-first synchronization
// engine: the request gateway, the sync orchestrator, the transport
// boundary, and the retry policy.
//
// ARCHITECTURE:
//
// Sequential Replay:
// The orchestrator replays the outbox strictly in FIFO order, one operation
// at a time. Operation i+1 is not attempted until operation i's outcome has
// been recorded. This ensures:
//   - Writes for the same logical resource are never reordered by the engine
//   - Predictable, reproducible replay behavior
//   - Simple reasoning about causality
//
// Replay Flow:
//  1. Guard: offline or a cycle already in progress -> empty result, no-op
//  2. List the outbox (FIFO by enqueue order)
//  3. Replay each operation through the Transport
//     - 2xx: remove from the outbox, record success
//     - failure: classify via RetryPolicy; retryable failures increment the
//       retry counter (evicting at the budget), permanent failures
//       dead-letter immediately
//  4. Publish one batch completion notification carrying all outcomes
//
// A transport error (or panic) for one operation never aborts the loop, and
// Sync itself never returns an error. If the process dies mid-cycle, the
// remaining queued operations persist untouched for the next trigger.
//
// The gateway is the single entry point callers use for a logical request.
// It decides transparently between network, cache, and outbox: reads fall
// back to the cache, mutations that cannot reach the network are queued and
// answered optimistically.
//
// The engine is designed for correctness under intermittent connectivity,
// not throughput.
package engine

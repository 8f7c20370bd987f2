// Package tasks drives a playlist sync run with real-time progress reporting.
//
// # Run
//
// [SyncEngine.Run] moves through a fixed sequence of states:
//
//	init -> destination_fetched -> sources_fetched -> diff_computed -> written | write_skipped
//	     -> cache_uploaded (cloud mode only) -> done
//
// Any state may end in failed. The rules per step:
//  1. Session construction failure is fatal.
//  2. Destination read failure is fatal: adding without knowing the current contents would duplicate tracks.
//  3. A destination holding at least the configured maximum stops the run with a [*shared.PlaylistCapacityError]
//     before any source is read.
//  4. Sources are read in configured order. A failing source is logged and skipped.
//  5. [FindNewTracks] keeps source order and source duplicates.
//  6. A failed batched add is logged and recorded. The run continues.
//  7. In cloud mode the refreshed token cache is uploaded whatever the outcome of step 6. Failures are logged.
//
// # Entry Point
//
// [Invoke] reduces a run to a [Response]: OK with "Complete." and status 200 once step 3 has passed, OK false for
// earlier failures, and the capacity error itself for step 3.
//
// # Progress Reporting
//
// All runs use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface stores a [models.Run] for every finished run.
// Recording errors are logged and never change the run outcome.
package tasks

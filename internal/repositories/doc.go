// Package repositories implements SQLite persistence for the run history.
//
// Key Implementations:
//   - [RunRepository] : append-only sync run records, listed most recent first
//
// [RunRepository] also implements tasks.RunRecorder, so the sync engine can store each finished run without
// depending on this package. History is optional and controlled by the history.path setting.
package repositories

// package repositories provides persistence layer implementations for all model types.
//
// Each repository implements models.Repository[T] for a specific entity type.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/plsync/internal/shared"
)

// OpenRunRepository opens the history database at path, applies migrations and returns its run repository
// together with the database handle the caller must close.
//
// An empty path yields [shared.ErrHistoryDisabled].
func OpenRunRepository(path string) (*RunRepository, *sql.DB, error) {
	db, err := shared.OpenHistory(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return NewRunRepository(db), db, nil
}

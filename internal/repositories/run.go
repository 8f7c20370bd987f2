package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ErrRunNotFound is returned by [RunRepository.Get] for unknown ids.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, origin, state, cloud_mode, destination_id, destination_count,
	source_count, failed_sources, added_count, write_error, upload_error,
	error, started_at, finished_at
`

// RunRepository implements models.Repository[*models.Run] for sync run history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run record, generating an ID when the run has none
func (r *RunRepository) Create(run *models.Run) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		run.ID(),
		run.Origin(),
		run.State(),
		run.CloudMode(),
		run.DestinationID(),
		run.DestinationCount(),
		run.SourceCount(),
		run.FailedSources(),
		run.AddedCount(),
		run.WriteError(),
		run.UploadError(),
		run.ErrorMessage(),
		run.StartedAt().UTC(),
		run.FinishedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// RecordRun stores a finished run. It satisfies tasks.RunRecorder.
func (r *RunRepository) RecordRun(run *models.Run) error {
	return r.Create(run)
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List retrieves runs matching the given criteria, most recent first.
//
// Supported criteria: "origin" (string), "state" (string), "destination_id" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	for _, column := range []string{"origin", "state", "destination_id"} {
		if value, ok := criteria[column].(string); ok && value != "" {
			query += " AND " + column + " = ?"
			args = append(args, value)
		}
	}

	query += " ORDER BY started_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (r *RunRepository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.Run]
func scanRun(row scanner) (*models.Run, error) {
	var (
		id               string
		origin           string
		state            string
		cloudMode        bool
		destinationID    string
		destinationCount int
		sourceCount      int
		failedSources    int
		addedCount       int
		writeError       string
		uploadError      string
		errorMessage     string
		startedAt        time.Time
		finishedAt       time.Time
	)

	err := row.Scan(
		&id, &origin, &state, &cloudMode, &destinationID, &destinationCount,
		&sourceCount, &failedSources, &addedCount, &writeError, &uploadError,
		&errorMessage, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(id, origin, destinationID, cloudMode, startedAt)
	run.SetState(state)
	run.SetCounts(destinationCount, sourceCount, failedSources, addedCount)
	run.SetWriteError(writeError)
	run.SetUploadError(uploadError)
	run.SetErrorMessage(errorMessage)
	run.SetFinishedAt(finishedAt)

	return run, nil
}

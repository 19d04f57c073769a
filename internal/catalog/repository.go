package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heimdex/clipflow/internal/db"
	"github.com/heimdex/clipflow/internal/scoring"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	FailRunningJobs(ctx context.Context, errorMsg string) (int64, error)

	SaveSortResult(ctx context.Context, jobID string, seq []string, score float64, report []scoring.Transition) error
	GetSortReport(ctx context.Context, jobID string) ([]scoring.Transition, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, type, status, manifest_path, options, progress, error, result_sequence, result_score, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, manifest_path, options, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, j.ManifestPath, nullString(j.Options), j.Progress, nullString(j.Error),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

// GetJob returns nil, nil when no job has the id.
func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var options, errMsg, sequence sql.NullString
	var score sql.NullFloat64
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &j.ManifestPath, &options, &j.Progress, &errMsg,
		&sequence, &score, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	j.Options = options.String
	j.Error = errMsg.String
	if sequence.Valid {
		if err := json.Unmarshal([]byte(sequence.String), &j.Sequence); err != nil {
			return nil, fmt.Errorf("job %s: corrupt result_sequence: %w", j.ID, err)
		}
	}
	if score.Valid {
		j.Score = &score.Float64
	}
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
	return err
}

// FailRunningJobs marks every running job failed. Jobs left running by a
// previous process can never complete.
func (r *SQLiteRepository) FailRunningJobs(ctx context.Context, errorMsg string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error = ?, updated_at = ? WHERE status = 'running'
	`, nullString(errorMsg), formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveSortResult stores the sequence, its mean score and one report row per
// adjacent pair, replacing any earlier result of the job.
func (r *SQLiteRepository) SaveSortResult(ctx context.Context, jobID string, seq []string, score float64, report []scoring.Transition) error {
	encoded, err := json.Marshal(seq)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET result_sequence = ?, result_score = ?, updated_at = ? WHERE id = ?
	`, string(encoded), score, formatTime(time.Now()), jobID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sequence_transitions WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	for i, t := range report {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sequence_transitions (job_id, position, from_clip, to_clip, score, direction_match, intensity_match, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, jobID, i, t.From, t.To, t.Score, boolToInt(t.DirectionMatch), boolToInt(t.IntensityMatch), t.Notes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSortReport(ctx context.Context, jobID string) ([]scoring.Transition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT from_clip, to_clip, score, direction_match, intensity_match, notes
		FROM sequence_transitions WHERE job_id = ? ORDER BY position
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := []scoring.Transition{}
	for rows.Next() {
		var t scoring.Transition
		var dirMatch, intMatch int
		if err := rows.Scan(&t.From, &t.To, &t.Score, &dirMatch, &intMatch, &t.Notes); err != nil {
			return nil, err
		}
		t.DirectionMatch = dirMatch == 1
		t.IntensityMatch = intMatch == 1
		report = append(report, t)
	}
	return report, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(db.TimeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package crop

import (
	"context"
	"database/sql"
	"time"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is the persisted record of one asynchronous crop.
type Job struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Status    string    `json:"status"`
	Stage     Stage     `json:"stage,omitempty"`
	ErrorKind Kind      `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	VideoID   string    `json:"video_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStore persists crop jobs. Get returns nil, nil for an unknown id.
type JobStore interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]*Job, error)
	UpdateStage(ctx context.Context, id string, stage Stage) error
	Complete(ctx context.Context, id, videoID string) error
	Fail(ctx context.Context, id string, kind Kind, stage Stage, msg string) error
}

// SQLiteJobStore keeps jobs in the crop_jobs table.
type SQLiteJobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobColumns = `id, source_id, start_time, end_time, status, stage, error_kind, error, video_id, created_at, updated_at`

func (s *SQLiteJobStore) Create(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crop_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SourceID, j.StartTime, j.EndTime, j.Status,
		nullString(string(j.Stage)), nullString(string(j.ErrorKind)), nullString(j.Error), nullString(j.VideoID),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM crop_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (s *SQLiteJobStore) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM crop_jobs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateStage records the current stage and moves a pending job to running.
func (s *SQLiteJobStore) UpdateStage(ctx context.Context, id string, stage Stage) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crop_jobs SET stage = ?, status = ?, updated_at = ? WHERE id = ?
	`, string(stage), JobStatusRunning, now(), id)
	return err
}

func (s *SQLiteJobStore) Complete(ctx context.Context, id, videoID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crop_jobs SET status = ?, video_id = ?, error_kind = NULL, error = NULL, updated_at = ? WHERE id = ?
	`, JobStatusCompleted, videoID, now(), id)
	return err
}

func (s *SQLiteJobStore) Fail(ctx context.Context, id string, kind Kind, stage Stage, msg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crop_jobs SET status = ?, error_kind = ?, stage = ?, error = ?, updated_at = ? WHERE id = ?
	`, JobStatusFailed, nullString(string(kind)), nullString(string(stage)), nullString(msg), now(), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var stage, kind, errMsg, videoID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.SourceID, &j.StartTime, &j.EndTime, &j.Status,
		&stage, &kind, &errMsg, &videoID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Stage = Stage(stage.String)
	j.ErrorKind = Kind(kind.String)
	j.Error = errMsg.String
	j.VideoID = videoID.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

// parseTime accepts both the Go and the SQLite strftime layouts.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

// timeLayout has a fixed-width fraction so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func now() string {
	return formatTime(time.Now())
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

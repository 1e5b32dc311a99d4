package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Job status values.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const defaultMaxAttempts = 3

var jobColumns = []string{
	"id", "type", "payload_json", "status", "attempts", "max_attempts",
	"run_after", "lease_until", "created_at", "updated_at", "last_error",
}

func (s *Store) EnqueueJob(ctx context.Context, job Job) error {
	now := formatTime(time.Now())
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = formatTime(job.RunAfter)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	q, args, err := s.sb.Insert("jobs").
		Columns("id", "type", "payload_json", "status", "attempts", "max_attempts", "run_after", "created_at", "updated_at").
		Values(job.ID, job.Type, job.PayloadJSON, JobPending, 0, maxAttempts, runAfter, now, now).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

// ClaimNextJob marks the oldest runnable job of one of the given types as
// running and returns it. A job is runnable when it is pending and due, or
// when it is running and its lease has expired. Returns nil when nothing is
// available.
func (s *Store) ClaimNextJob(ctx context.Context, types []string, lease time.Duration) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	nowT := time.Now().UTC()
	now := formatTime(nowT)

	q, args, err := s.sb.Select(jobColumns...).From("jobs").
		Where(sq.Eq{"type": types}).
		Where(sq.Or{
			sq.And{sq.Eq{"status": JobPending}, sq.LtOrEq{"run_after": now}},
			sq.And{sq.Eq{"status": JobRunning}, sq.NotEq{"lease_until": nil}, sq.LtOrEq{"lease_until": now}},
		}).
		OrderBy("run_after ASC", "created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	var leaseUntil any
	if lease > 0 {
		leaseUntil = formatTime(nowT.Add(lease))
	}
	q, args, err = s.sb.Update("jobs").
		Set("status", JobRunning).
		Set("lease_until", leaseUntil).
		Set("updated_at", now).
		Where(sq.Eq{"id": j.ID, "status": j.Status, "updated_at": formatTime(j.UpdatedAt)}).
		ToSql()
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = JobRunning
	j.UpdatedAt = nowT.Truncate(time.Second)
	if lease > 0 {
		t := nowT.Add(lease).Truncate(time.Second)
		j.LeaseUntil = &t
	} else {
		j.LeaseUntil = nil
	}
	return &j, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string) error {
	q, args, err := s.sb.Update("jobs").
		Set("status", JobCompleted).
		Set("lease_until", nil).
		Set("updated_at", formatTime(time.Now())).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, q, args)
}

// FailJob records a failed attempt. The job is rescheduled with exponential
// backoff (2^attempts seconds) until max_attempts is reached, then marked failed.
func (s *Store) FailJob(ctx context.Context, id string, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	q, args, err := s.sb.Select("attempts", "max_attempts").From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	var attempts, maxAttempts int
	err = tx.QueryRowContext(ctx, q, args...).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	upd := s.sb.Update("jobs").
		Set("attempts", attempts).
		Set("last_error", errMsg).
		Set("lease_until", nil).
		Set("updated_at", formatTime(now)).
		Where(sq.Eq{"id": id})
	if attempts >= maxAttempts {
		upd = upd.Set("status", JobFailed)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		upd = upd.Set("status", JobPending).Set("run_after", formatTime(now.Add(backoff)))
	}
	q, args, err = upd.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// DeadLetterJob marks a job failed without further retries.
func (s *Store) DeadLetterJob(ctx context.Context, id string, errMsg string) error {
	q, args, err := s.sb.Update("jobs").
		Set("status", JobFailed).
		Set("last_error", errMsg).
		Set("lease_until", nil).
		Set("updated_at", formatTime(time.Now())).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, q, args)
}

func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	q, args, err := s.sb.Select(jobColumns...).From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Job{}, err
	}
	j, err := scanJob(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

// JobStats counts jobs by status. Every status is present in the result.
func (s *Store) JobStats(ctx context.Context) (map[string]int, error) {
	q, args, err := s.sb.Select("status", "COUNT(*)").From("jobs").GroupBy("status").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{JobPending: 0, JobRunning: 0, JobCompleted: 0, JobFailed: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

func (s *Store) execOne(ctx context.Context, q string, args []any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var leaseUntil, lastError sql.NullString
	if err := row.Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &leaseUntil, &createdAt, &updatedAt, &lastError,
	); err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String

	var err error
	if j.RunAfter, err = time.Parse(timeFormat, runAfter); err != nil {
		return Job{}, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	if j.LeaseUntil, err = parseTimePtr(leaseUntil); err != nil {
		return Job{}, fmt.Errorf("parsing lease_until for job %s: %w", j.ID, err)
	}
	return j, nil
}

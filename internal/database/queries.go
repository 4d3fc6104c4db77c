package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/reviewxai/internal/models"
)

// ErrNotFound is returned when no analysis has the requested id
var ErrNotFound = errors.New("analysis not found")

const analysisColumns = `id, review_text, status, verdict, confidence, flag_count, agreement,
	primary_prediction, result, last_error, retry_count, created_at, updated_at`

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SaveAnalysis inserts or replaces a completed analysis
func (db *DB) SaveAnalysis(a *models.StoredAnalysis) error {
	primaryJSON, err := marshalNullable(a.Primary)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	resultJSON, err := marshalNullable(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	status := a.Status
	if status == "" {
		status = models.StatusCompleted
	}
	ts := now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = ts
	}
	a.UpdatedAt = ts
	a.Status = status

	var agreement sql.NullBool
	if a.Agreement != nil {
		agreement = sql.NullBool{Bool: *a.Agreement, Valid: true}
	}

	_, err = db.conn.Exec(db.rebind(`
		INSERT INTO analyses (id, review_text, status, verdict, confidence, flag_count, agreement,
			primary_prediction, result, last_error, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			verdict = excluded.verdict,
			confidence = excluded.confidence,
			flag_count = excluded.flag_count,
			agreement = excluded.agreement,
			primary_prediction = excluded.primary_prediction,
			result = excluded.result,
			last_error = excluded.last_error,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at
	`), a.ID, a.ReviewText, status, nullString(string(a.Verdict)), a.Confidence, a.FlagCount, agreement,
		primaryJSON, resultJSON, nullString(a.Error), a.RetryCount, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// CreatePending records a queued batch job
func (db *DB) CreatePending(id, reviewText string) (*models.StoredAnalysis, error) {
	a := &models.StoredAnalysis{ID: id, ReviewText: reviewText, Status: models.StatusPending}
	if err := db.SaveAnalysis(a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateStatus moves a job to status, recording errMsg and the retry count
func (db *DB) UpdateStatus(id, status, errMsg string, retryCount int) error {
	result, err := db.conn.Exec(db.rebind(`
		UPDATE analyses SET status = ?, last_error = ?, retry_count = ?, updated_at = ?
		WHERE id = ?
	`), status, nullString(errMsg), retryCount, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return expectOneRow(result)
}

// GetAnalysis retrieves an analysis by ID
func (db *DB) GetAnalysis(id string) (*models.StoredAnalysis, error) {
	row := db.conn.QueryRow(db.rebind(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`), id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses retrieves analyses newest first with pagination
func (db *DB) ListAnalyses(limit, offset int) ([]*models.StoredAnalysis, error) {
	rows, err := db.conn.Query(db.rebind(`
		SELECT `+analysisColumns+`
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]*models.StoredAnalysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		analyses = append(analyses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return analyses, nil
}

// DeleteAnalysis deletes an analysis by ID
func (db *DB) DeleteAnalysis(id string) error {
	result, err := db.conn.Exec(db.rebind("DELETE FROM analyses WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return expectOneRow(result)
}

// CountByVerdict counts completed analyses per rule verdict
func (db *DB) CountByVerdict() (map[models.Verdict]int, error) {
	rows, err := db.conn.Query(db.rebind(`
		SELECT verdict, COUNT(*) FROM analyses
		WHERE status = ? AND verdict IS NOT NULL
		GROUP BY verdict
	`), models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Verdict]int)
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[models.Verdict(verdict)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*models.StoredAnalysis, error) {
	var (
		a          models.StoredAnalysis
		verdict    sql.NullString
		agreement  sql.NullBool
		primary    sql.NullString
		result     sql.NullString
		lastError  sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
		confidence int
	)

	if err := s.Scan(&a.ID, &a.ReviewText, &a.Status, &verdict, &confidence, &a.FlagCount, &agreement,
		&primary, &result, &lastError, &a.RetryCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Verdict = models.Verdict(verdict.String)
	a.Confidence = confidence
	a.Error = lastError.String
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	if agreement.Valid {
		v := agreement.Bool
		a.Agreement = &v
	}
	if primary.Valid && primary.String != "" {
		var p models.Prediction
		if err := json.Unmarshal([]byte(primary.String), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
		}
		a.Primary = &p
	}
	if result.Valid && result.String != "" {
		var r models.AnalysisResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		a.Result = &r
	}
	return &a, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *models.Prediction:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *models.AnalysisResult:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

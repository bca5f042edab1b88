// Package store is the optional PostgreSQL archive for assessments and diary
// entries. Nested records are kept as JSONB.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

var ErrNotFound = errors.New("store: not found")

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type Repository struct {
	db DB
}

func New(db DB) *Repository {
	return &Repository{db: db}
}

// Connect opens a pool and checks it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		id               TEXT PRIMARY KEY,
		selected_muscles JSONB NOT NULL DEFAULT '[]',
		pain_points      JSONB NOT NULL DEFAULT '[]',
		form_data        JSONB NOT NULL,
		analysis         JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS diary_entries (
		id            TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
		entry_type    TEXT NOT NULL,
		pain_level    INTEGER,
		sentiment     INTEGER,
		entry_text    TEXT NOT NULL,
		ai_response   TEXT,
		follow_up     JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS diary_entries_assessment_idx ON diary_entries (assessment_id, created_at)`,
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const assessmentColumns = `id, selected_muscles, pain_points, form_data, analysis, created_at`

func (r *Repository) SaveAssessment(ctx context.Context, a assessment.Assessment) error {
	muscles, err := json.Marshal(nonNil(a.Regions()))
	if err != nil {
		return fmt.Errorf("encode selected muscles: %w", err)
	}
	points := a.PainPoints
	if points == nil {
		points = []assessment.PainPoint{}
	}
	pointsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode pain points: %w", err)
	}
	form, err := json.Marshal(a.FormData)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	var analysis []byte
	if a.Analysis != nil {
		if analysis, err = json.Marshal(a.Analysis); err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			selected_muscles = EXCLUDED.selected_muscles,
			pain_points = EXCLUDED.pain_points,
			form_data = EXCLUDED.form_data,
			analysis = EXCLUDED.analysis`,
		a.ID, muscles, pointsJSON, form, analysis, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", a.ID, err)
	}
	return nil
}

func (r *Repository) GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment %s: %w", id, err)
	}
	return a, nil
}

// ListAssessments returns the newest assessments first.
func (r *Repository) ListAssessments(ctx context.Context, limit int) ([]assessment.Assessment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assessmentColumns+` FROM assessments ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []assessment.Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteAssessment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssessment(row pgx.Row) (*assessment.Assessment, error) {
	var (
		a                              assessment.Assessment
		muscles, points, form, results []byte
	)
	if err := row.Scan(&a.ID, &muscles, &points, &form, &results, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(muscles, &a.SelectedMuscles); err != nil {
		return nil, fmt.Errorf("decode selected muscles: %w", err)
	}
	if err := json.Unmarshal(points, &a.PainPoints); err != nil {
		return nil, fmt.Errorf("decode pain points: %w", err)
	}
	if err := json.Unmarshal(form, &a.FormData); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	if len(results) > 0 {
		var an assessment.AnalysisResult
		if err := json.Unmarshal(results, &an); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		an.Normalize()
		a.Analysis = &an
	}
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

const entryColumns = `id, assessment_id, entry_type, pain_level, sentiment, entry_text, ai_response, follow_up, created_at`

func (r *Repository) SaveDiaryEntry(ctx context.Context, e assessment.DiaryEntry) error {
	var followUp []byte
	if e.FollowUp != nil {
		var err error
		if followUp, err = json.Marshal(e.FollowUp); err != nil {
			return fmt.Errorf("encode follow-up: %w", err)
		}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO diary_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AssessmentID, string(e.EntryType), e.PainLevel, e.Sentiment, e.EntryText, e.AIResponse, followUp, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("save diary entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *Repository) GetDiaryEntry(ctx context.Context, id string) (*assessment.DiaryEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM diary_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get diary entry %s: %w", id, err)
	}
	return e, nil
}

// ListDiaryEntries returns the latest limit entries of an assessment, oldest first.
func (r *Repository) ListDiaryEntries(ctx context.Context, assessmentID string, limit int) ([]assessment.DiaryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+` FROM diary_entries
		WHERE assessment_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, assessmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	defer rows.Close()

	out := []assessment.DiaryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assessment.SortEntries(out), nil
}

func (r *Repository) DeleteDiaryEntry(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM diary_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete diary entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFollowUp writes fu only when the entry has no follow-up yet. The
// conditional update makes concurrent attempts race safely.
func (r *Repository) SetFollowUp(ctx context.Context, entryID string, fu assessment.FollowUp) (bool, error) {
	payload, err := json.Marshal(fu)
	if err != nil {
		return false, fmt.Errorf("encode follow-up: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE diary_entries SET follow_up = $2 WHERE id = $1 AND follow_up IS NULL`, entryID, payload)
	if err != nil {
		return false, fmt.Errorf("set follow-up %s: %w", entryID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanEntry(row pgx.Row) (*assessment.DiaryEntry, error) {
	var (
		e         assessment.DiaryEntry
		entryType string
		followUp  []byte
	)
	if err := row.Scan(&e.ID, &e.AssessmentID, &entryType, &e.PainLevel, &e.Sentiment, &e.EntryText, &e.AIResponse, &followUp, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.EntryType = assessment.EntryType(entryType)
	if len(followUp) > 0 {
		var fu assessment.FollowUp
		if err := json.Unmarshal(followUp, &fu); err != nil {
			return nil, fmt.Errorf("decode follow-up: %w", err)
		}
		e.FollowUp = &fu
	}
	return &e, nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"innersight/internal/core"
)

// postgresEntryRepo implements EntryRepository for PostgreSQL
type postgresEntryRepo struct {
	db *sql.DB
}

const entryColumns = `id, user_id, title, content, analysis, insight, created_at, updated_at`

func (r *postgresEntryRepo) Save(ctx context.Context, entry *core.Entry) error {
	var analysisJSON []byte
	if entry.Analysis != nil {
		var err error
		analysisJSON, err = json.Marshal(entry.Analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO entries (id, user_id, title, content, analysis, insight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			analysis = EXCLUDED.analysis,
			insight = EXCLUDED.insight,
			updated_at = EXCLUDED.updated_at
		WHERE entries.user_id = EXCLUDED.user_id
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Title, entry.Content,
		nullJSON(analysisJSON), entry.Insight, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The id exists under a different user.
		return ErrNotFound
	}
	return nil
}

func (r *postgresEntryRepo) Get(ctx context.Context, userID, id string) (*core.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1 AND user_id = $2`
	return scanEntry(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *postgresEntryRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresEntryRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]core.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, opts.limit(), opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*core.Entry, error) {
	var entry core.Entry
	var analysisJSON []byte
	var insight sql.NullString

	err := row.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content,
		&analysisJSON, &insight, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	entry.Insight = insight.String

	if len(analysisJSON) > 0 {
		var analysis core.AnalysisResult
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis for entry %s: %w", entry.ID, err)
		}
		entry.Analysis = &analysis
	}
	return &entry, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// postgresProfileRepo implements ProfileRepository for PostgreSQL
type postgresProfileRepo struct {
	db *sql.DB
}

func (r *postgresProfileRepo) Save(ctx context.Context, profile *core.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	p := profile.Personalization

	query := `
		INSERT INTO profiles (user_id, display_name, goals, challenges,
			current_state, ideal_self, biggest_obstacle, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			goals = EXCLUDED.goals,
			challenges = EXCLUDED.challenges,
			current_state = EXCLUDED.current_state,
			ideal_self = EXCLUDED.ideal_self,
			biggest_obstacle = EXCLUDED.biggest_obstacle,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		profile.UserID, profile.DisplayName,
		pq.Array(textArray(p.Goals)), pq.Array(textArray(p.Challenges)),
		p.Reflections.CurrentState, p.Reflections.IdealSelf, p.Reflections.BiggestObstacle,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", profile.UserID, err)
	}
	return nil
}

func (r *postgresProfileRepo) Get(ctx context.Context, userID string) (*core.Profile, error) {
	query := `
		SELECT user_id, display_name, goals, challenges,
			current_state, ideal_self, biggest_obstacle, updated_at
		FROM profiles WHERE user_id = $1
	`
	var profile core.Profile
	p := &profile.Personalization
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.DisplayName,
		pq.Array(&p.Goals), pq.Array(&p.Challenges),
		&p.Reflections.CurrentState, &p.Reflections.IdealSelf, &p.Reflections.BiggestObstacle,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// textArray never returns nil so pq writes '{}' rather than NULL.
func textArray(in []string) []string {
	out := core.NonBlank(in)
	if out == nil {
		return []string{}
	}
	return out
}

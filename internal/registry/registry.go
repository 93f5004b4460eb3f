// internal/registry/registry.go
//
// SQLite-backed round registry.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Recording who owns which round and where it is in its lifecycle, so a
//     reloaded page can find its running round again.
//
// Note: only ownership and phase are stored. Scores never leave memory.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/imbanker-naver/cursor-pjt/assets"
	"github.com/imbanker-naver/cursor-pjt/internal/game"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when an owner has no matching round.
var ErrNotFound = errors.New("round not found")

// Registry wraps the rounds table.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Entry is one row of the rounds table.
type Entry struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Generation uint64     `json:"generation"`
	Phase      game.Phase `json:"phase"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Open opens (and creates if missing) the SQLite database at dsn.
func Open(dsn string) (*Registry, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return &Registry{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Migrate applies embedded migrations that are not yet recorded.
func (r *Registry) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

// Create records a new round for owner.
func (r *Registry) Create(ctx context.Context, id, owner string, phase game.Phase) error {
	now := r.now().Format(timeLayout)
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO rounds (id, owner, generation, phase, created_at, updated_at)
        VALUES (?, ?, 0, ?, ?, ?)`,
		id, owner, string(phase), now, now,
	)
	return err
}

// UpdatePhase stores the latest phase and generation of a round. Updates
// for a generation older than the stored one are ignored.
func (r *Registry) UpdatePhase(ctx context.Context, id string, phase game.Phase, generation uint64) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE rounds SET phase=?, generation=?, updated_at=? WHERE id=? AND generation <= ?`,
		string(phase), int64(generation), r.now().Format(timeLayout), id, int64(generation),
	)
	return err
}

// Latest returns owner's most recently updated round, optionally limited to
// the given phases.
func (r *Registry) Latest(ctx context.Context, owner string, phases ...game.Phase) (Entry, error) {
	q := `SELECT id, owner, generation, phase, created_at, updated_at FROM rounds WHERE owner=?`
	args := []any{owner}
	if len(phases) > 0 {
		marks := make([]string, len(phases))
		for i, p := range phases {
			marks[i] = "?"
			args = append(args, string(p))
		}
		q += ` AND phase IN (` + strings.Join(marks, ",") + `)`
	}
	q += ` ORDER BY updated_at DESC LIMIT 1`

	var (
		e                  Entry
		gen                int64
		phase              string
		created, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&e.ID, &e.Owner, &gen, &phase, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	e.Generation = uint64(gen)
	e.Phase = game.Phase(phase)
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return e, nil
}

// Delete removes the given rounds.
func (r *Registry) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM rounds WHERE id=?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

// Prune deletes rows not updated since before and reports how many went.
func (r *Registry) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rounds WHERE updated_at < ?`,
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

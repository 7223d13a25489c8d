package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/desflat/internal/ir"
)

// Run is one recorded elaboration.
type Run struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Source    string    `json:"source"`
	Digest    string    `json:"digest"`
	IRVersion string    `json:"ir_version"`
	Output    string    `json:"-"`
	Stats     Stats     `json:"stats"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarises the size of a flattened network.
type Stats struct {
	Instances int `json:"instances"`
	Events    int `json:"events"`
	Clauses   int `json:"clauses"`
	Groups    int `json:"groups"`
}

// StatsOf counts the parts of n.
func StatsOf(n *ir.Network) Stats {
	return Stats{
		Instances: len(n.Instances),
		Events:    len(n.Events),
		Clauses:   len(n.Clauses),
		Groups:    len(n.GroupOrder),
	}
}

// check rejects runs that cannot be compared with later runs.
func (r Run) check() error {
	switch {
	case r.Source == "":
		return fmt.Errorf("run %q has no source", r.ID)
	case r.Digest == "":
		return fmt.Errorf("run %q of %s has no digest", r.ID, r.Source)
	}
	st := r.Stats
	if st.Instances < 0 || st.Events < 0 || st.Clauses < 0 || st.Groups < 0 {
		return fmt.Errorf("run %q of %s has negative stats", r.ID, r.Source)
	}
	return nil
}

// NewRunID generates a new run ID using UUIDv7.
// UUIDv7 is time-sortable, but ordering still uses seq.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RecordRun appends a run and returns it as stored.
//
// A run needs a source and a digest. An empty ID is filled with a fresh
// UUIDv7, an empty IRVersion with ir.IRVersion and a zero CreatedAt with the
// current UTC time. Seq is always assigned by the store, one past the largest
// recorded seq. Recording a run whose ID already exists is a no-op that
// returns the existing row.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if err := run.check(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := marshalStats(run.Stats)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, source, digest, ir_version, output, stats, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Source,
		run.Digest,
		run.IRVersion,
		run.Output,
		statsJSON,
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: insert: %w", err)
	}

	stored, err := scanRun(tx.QueryRowContext(ctx, `
		SELECT id, seq, source, digest, ir_version, output, stats, created_at
		FROM runs
		WHERE id = ?
	`, run.ID))
	if err != nil {
		return Run{}, fmt.Errorf("record run: select: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return stored, nil
}

// LatestRun returns the most recent run of source.
// Returns sql.ErrNoRows if the source has no runs.
func (s *Store) LatestRun(ctx context.Context, source string) (Run, error) {
	return scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, seq, source, digest, ir_version, output, stats, created_at
		FROM runs
		WHERE source = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, source))
}

// ReadRun returns the run with the given ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	return scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, seq, source, digest, ir_version, output, stats, created_at
		FROM runs
		WHERE id = ?
	`, id))
}

// ListRuns returns runs in seq order. An empty source lists every source.
// A positive limit keeps only the most recent limit runs, still in seq order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, digest, ir_version, output, stats, created_at
		FROM (
			SELECT * FROM runs
			WHERE ? = '' OR source = ?
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		statsJSON string
		created   string
	)
	err := row.Scan(&run.ID, &run.Seq, &run.Source, &run.Digest, &run.IRVersion, &run.Output, &statsJSON, &created)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.Stats, err = unmarshalStats(statsJSON); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("scan run %s: created_at: %w", run.ID, err)
	}
	return run, nil
}

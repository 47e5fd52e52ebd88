package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tables names the tables Migrate creates.
type Tables struct {
	Candidates string
	Feedback   string
}

// Migrate creates the candidate and feedback tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB, tables Tables) error {
	if tables.Candidates == "" {
		tables.Candidates = DefaultCandidateTable
	}
	if tables.Feedback == "" {
		tables.Feedback = DefaultFeedbackTable
	}
	for _, t := range []string{tables.Candidates, tables.Feedback} {
		if err := checkTable(t); err != nil {
			return err
		}
	}

	feedbackID := "BIGSERIAL PRIMARY KEY"
	if db.DriverName() == DriverSQLite {
		feedbackID = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			brand         TEXT NOT NULL DEFAULT '',
			model         TEXT NOT NULL DEFAULT '',
			width_spec_mm INTEGER,
			wet_center    DOUBLE PRECISION,
			wet_edge      DOUBLE PRECISION,
			rr_high_w     DOUBLE PRECISION,
			price         DOUBLE PRECISION,
			source_site   TEXT
		)`, tables.Candidates),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            %s,
			helpfulness   TEXT NOT NULL,
			q1_importance TEXT NOT NULL,
			q2_width_pref TEXT NOT NULL,
			top1          TEXT NOT NULL DEFAULT '',
			top2          TEXT NOT NULL DEFAULT '',
			top3          TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL
		)`, tables.Feedback, feedbackID),
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Package store persists and loads tire data: the candidate dataset from
// Postgres, SQLite, or a YAML file, and feedback records into the same
// database.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Default table names.
const (
	DefaultCandidateTable = "tires"
	DefaultFeedbackTable  = "feedback"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}
	// Every connection to an in-memory SQLite database sees its own empty
	// database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func checkTable(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

const candidateColumns = `id, brand, model, width_spec_mm, wet_center, wet_edge, rr_high_w, price, source_site`

// SQLCandidateSource reads the tire dataset from a SQL table. Rows come back
// ordered by id, which fixes the tie order of the ranking.
type SQLCandidateSource struct {
	db    *sqlx.DB
	table string
}

var _ ports.CandidateSource = (*SQLCandidateSource)(nil)

// NewSQLCandidateSource returns a source over table. An empty table name
// selects DefaultCandidateTable.
func NewSQLCandidateSource(db *sqlx.DB, table string) (*SQLCandidateSource, error) {
	if table == "" {
		table = DefaultCandidateTable
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &SQLCandidateSource{db: db, table: table}, nil
}

// ListCandidates implements ports.CandidateSource.
func (s *SQLCandidateSource) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, candidateColumns, s.table)

	var rows []domain.Candidate
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, ports.NewSourceError(s.db.DriverName(), fmt.Errorf("failed to query candidates: %w", err))
	}
	return rows, nil
}

// InsertCandidates upserts rows into the candidate table. It is used to seed
// a database from a dataset file.
func InsertCandidates(ctx context.Context, db *sqlx.DB, table string, candidates []domain.Candidate) error {
	if table == "" {
		table = DefaultCandidateTable
	}
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (:id, :brand, :model, :width_spec_mm, :wet_center, :wet_edge, :rr_high_w, :price, :source_site)
		ON CONFLICT (id) DO UPDATE SET
			brand = excluded.brand,
			model = excluded.model,
			width_spec_mm = excluded.width_spec_mm,
			wet_center = excluded.wet_center,
			wet_edge = excluded.wet_edge,
			rr_high_w = excluded.rr_high_w,
			price = excluded.price,
			source_site = excluded.source_site`, table, candidateColumns)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range candidates {
		if _, err := tx.NamedExecContext(ctx, query, c); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// SQLFeedbackSink appends feedback records to a SQL table.
type SQLFeedbackSink struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
}

var _ ports.FeedbackSink = (*SQLFeedbackSink)(nil)

// NewSQLFeedbackSink returns a sink writing to table. An empty table name
// selects DefaultFeedbackTable.
func NewSQLFeedbackSink(db *sqlx.DB, table string) (*SQLFeedbackSink, error) {
	if table == "" {
		table = DefaultFeedbackTable
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &SQLFeedbackSink{db: db, table: table, now: time.Now}, nil
}

// SaveFeedback implements ports.FeedbackSink. A zero CreatedAt is stamped
// with the current time.
func (s *SQLFeedbackSink) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (helpfulness, q1_importance, q2_width_pref, top1, top2, top3, created_at)
		VALUES (:helpfulness, :q1_importance, :q2_width_pref, :top1, :top2, :top3, :created_at)`, s.table)

	if _, err := s.db.NamedExecContext(ctx, query, fb); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrFeedbackRejected, err)
	}
	return nil
}

// ListFeedback returns stored feedback, oldest first.
func (s *SQLFeedbackSink) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	query := fmt.Sprintf(`
		SELECT helpfulness, q1_importance, q2_width_pref, top1, top2, top3, created_at
		FROM %s ORDER BY created_at, id`, s.table)

	var out []domain.Feedback
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	return out, nil
}

package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
	"github.com/ahrav/treadpick/internal/testutils"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "treadpick.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db, Tables{}))
	return db
}

func TestSQLCandidateSource_ListCandidates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	dataset := testutils.MixedDataset()
	require.NoError(t, InsertCandidates(ctx, db, "", dataset))

	src, err := NewSQLCandidateSource(db, "")
	require.NoError(t, err)

	got, err := src.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(dataset))

	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.IsIncreasing(t, ids, "rows come back ordered by id")

	byID := map[string]domain.Candidate{}
	for _, c := range got {
		byID[c.ID] = c
	}
	untested := byID["untested"]
	assert.Nil(t, untested.WetCenter)
	assert.Nil(t, untested.WetEdge)
	assert.False(t, untested.Eligible())

	noWidth := byID["no-width"]
	assert.Nil(t, noWidth.WidthSpecMM)
	assert.True(t, noWidth.Eligible())

	corsa := byID["corsa-28"]
	require.NotNil(t, corsa.WidthSpecMM)
	assert.Equal(t, 28, *corsa.WidthSpecMM)
	assert.InDelta(t, 9.6, *corsa.RRHighW, 1e-9)
}

func TestInsertCandidates_Upserts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, InsertCandidates(ctx, db, "", testutils.WorkedExample()))
	updated := testutils.Tire("item1", "Alpha", "Road Mk2", 28, 71, 75, 9)
	require.NoError(t, InsertCandidates(ctx, db, "", []domain.Candidate{updated}))

	src, err := NewSQLCandidateSource(db, "")
	require.NoError(t, err)
	got, err := src.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Road Mk2", got[0].Model)
}

func TestSQLCandidateSource_QueryFailure(t *testing.T) {
	db := openTestDB(t)
	src, err := NewSQLCandidateSource(db, "missing_table")
	require.NoError(t, err)

	_, err = src.ListCandidates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestTableNameValidation(t *testing.T) {
	db := openTestDB(t)

	_, err := NewSQLCandidateSource(db, "tires; DROP TABLE tires")
	assert.Error(t, err)
	_, err = NewSQLFeedbackSink(db, "bad-name")
	assert.Error(t, err)
	assert.Error(t, Migrate(context.Background(), db, Tables{Candidates: "1abc"}))
}

func TestSQLFeedbackSink_SaveFeedback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	sink, err := NewSQLFeedbackSink(db, "")
	require.NoError(t, err)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	fb := domain.Feedback{
		Helpfulness:  domain.Helpful,
		Q1Importance: domain.WetNot,
		Q2WidthPref:  domain.WidthNarrow,
		Top1:         "Alpha Road (28mm)",
		Top2:         "Gamma Tour (28mm)",
	}
	require.NoError(t, sink.SaveFeedback(ctx, fb))

	stored, err := sink.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.Helpful, stored[0].Helpfulness)
	assert.Equal(t, domain.WetNot, stored[0].Q1Importance)
	assert.Equal(t, domain.WidthNarrow, stored[0].Q2WidthPref)
	assert.Equal(t, "Alpha Road (28mm)", stored[0].Top1)
	assert.Equal(t, "", stored[0].Top3)
	assert.True(t, fixed.Equal(stored[0].CreatedAt))
}

func TestSQLFeedbackSink_Failure(t *testing.T) {
	db := openTestDB(t)
	sink, err := NewSQLFeedbackSink(db, "no_such_table")
	require.NoError(t, err)

	err = sink.SaveFeedback(context.Background(), domain.Feedback{Helpfulness: domain.Neutral})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrFeedbackRejected)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestFileCandidateSource(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []string
		wantErr bool
	}{
		{
			name: "yaml list",
			content: `
- id: a
  brand: Alpha
  model: Road
  width_spec_mm: 28
  wet_center: 70
  wet_edge: 75
  rr_high_w: 10
- id: b
  brand: Beta
  model: Aero
`,
			wantIDs: []string{"a", "b"},
		},
		{
			name: "yaml mapping",
			content: `
candidates:
  - id: x
    brand: X
    model: One
`,
			wantIDs: []string{"x"},
		},
		{
			name:    "json list",
			content: `[{"id": "j1", "brand": "J", "model": "Son", "width_spec_mm": 30, "wet_center": 80, "wet_edge": 82, "rr_high_w": 11.5}]`,
			wantIDs: []string{"j1"},
		},
		{
			name:    "scalar",
			content: `just text`,
			wantErr: true,
		},
		{
			name:    "malformed",
			content: "- id: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tires.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			got, err := NewFileCandidateSource(path).ListCandidates(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFileCandidateSource_PointerFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tires.yaml")
	content := "- id: a\n  width_spec_mm: 32\n  wet_center: 70.5\n  wet_edge: 71\n  rr_high_w: 12\n- id: b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := NewFileCandidateSource(path).ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].WidthSpecMM)
	assert.Equal(t, 32, *got[0].WidthSpecMM)
	assert.True(t, got[0].Eligible())
	assert.False(t, got[1].Eligible())
	assert.Nil(t, got[1].WidthSpecMM)
}

func TestFileCandidateSource_MissingFile(t *testing.T) {
	_, err := NewFileCandidateSource(filepath.Join(t.TempDir(), "nope.yaml")).ListCandidates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestLogFeedbackSink(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	fb := domain.Feedback{
		Helpfulness:  domain.Unhelpful,
		Q1Importance: domain.WetVery,
		Q2WidthPref:  domain.WidthWide,
		Top1:         "Pirelli P Zero Race (32mm)",
	}
	require.NoError(t, LogFeedbackSink{}.SaveFeedback(context.Background(), fb))

	out := buf.String()
	assert.Contains(t, out, `"helpfulness":"unhelpful"`)
	assert.Contains(t, out, `"top1":"Pirelli P Zero Race (32mm)"`)
	assert.Contains(t, out, `"message":"feedback"`)
}

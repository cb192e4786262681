package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/rowset"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const peopleDDL = `
CREATE TABLE people (
    id          INTEGER NOT NULL,
    ssn         TEXT,
    name        TEXT,
    status      TEXT NOT NULL DEFAULT 'active',
    valid_from  TEXT NOT NULL,
    valid_until TEXT NOT NULL,
    PRIMARY KEY (id, valid_from)
);
CREATE TRIGGER people_no_overlap_insert BEFORE INSERT ON people
WHEN EXISTS (
    SELECT 1 FROM people p
    WHERE p.id = NEW.id AND p.valid_from < NEW.valid_until AND NEW.valid_from < p.valid_until
)
BEGIN SELECT RAISE(ABORT, 'overlapping period'); END;
CREATE TRIGGER people_no_overlap_update BEFORE UPDATE ON people
WHEN EXISTS (
    SELECT 1 FROM people p
    WHERE p.rowid <> OLD.rowid AND p.id = NEW.id
      AND p.valid_from < NEW.valid_until AND NEW.valid_from < p.valid_until
)
BEGIN SELECT RAISE(ABORT, 'overlapping period'); END;
CREATE TABLE people_src (
    row_id      INTEGER PRIMARY KEY,
    id          INTEGER,
    ssn         TEXT,
    name        TEXT,
    valid_from  TEXT,
    valid_until TEXT
);
`

// mustExec runs fixture statements.
func mustExec(t *testing.T, s *Store, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		require.NoError(t, s.Exec(context.Background(), stmt))
	}
}

func peopleConfig() planner.Config {
	return planner.Config{
		Mode:            "MERGE_ENTITY_UPSERT",
		IdentityColumns: []string{"id"},
		LookupKeys:      [][]string{{"ssn"}},
		Era: planner.Era{
			Name:             "valid",
			ValidFromColumn:  "valid_from",
			ValidUntilColumn: "valid_until",
			Subtype:          "date",
		},
	}
}

// layoutFor introspects both tables and builds the layout the way the
// engine does.
func layoutFor(t *testing.T, s *Store, cfg planner.Config, source, target string) (*planner.Context, *rowset.Layout) {
	t.Helper()
	ctx := context.Background()
	src, err := s.Introspect(ctx, source)
	require.NoError(t, err)
	tgt, err := s.Introspect(ctx, target)
	require.NoError(t, err)

	cfg.ExcludeIfNullColumns = append(cfg.ExcludeIfNullColumns, tgt.DefaultedNotNull()...)
	pctx, err := planner.NewContext(cfg)
	require.NoError(t, err)
	layout, err := rowset.NewLayout(pctx, src.ColumnNames(), tgt.ColumnNames(), tgt.PKColumns())
	require.NoError(t, err)
	return pctx, layout
}

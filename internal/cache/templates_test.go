package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/planner"
)

func peopleKey() Key {
	return Key{
		Config: planner.Config{
			Mode:            "MERGE_ENTITY_UPSERT",
			IdentityColumns: []string{"id"},
			Era: planner.Era{
				Name:             "valid",
				ValidFromColumn:  "valid_from",
				ValidUntilColumn: "valid_until",
				Subtype:          "date",
			},
		},
		SourceTable:   "people_src",
		TargetTable:   "people",
		SourceColumns: []string{"row_id", "id", "name", "valid_from", "valid_until"},
		TargetColumns: []string{"id", "name", "valid_from", "valid_until"},
		PKColumns:     []string{"id", "valid_from"},
	}
}

func TestTemplates_GetOrBuild(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	first, err := c.GetOrBuild(peopleKey())
	require.NoError(t, err)
	assert.Equal(t, `SELECT "row_id", "id", "name", "valid_from", "valid_until" FROM "people_src" ORDER BY "row_id" ASC`, first.SourceSQL)
	assert.Equal(t, planner.MergeEntityUpsert, first.Context.Mode)

	again, err := c.GetOrBuild(peopleKey())
	require.NoError(t, err)
	assert.True(t, first == again, "second lookup reuses the template")

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, c.Len())
}

func TestTemplates_Eviction(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	a := peopleKey()
	b := peopleKey()
	b.Config.Mode = "MERGE_ENTITY_PATCH"

	_, err = c.GetOrBuild(a)
	require.NoError(t, err)
	_, err = c.GetOrBuild(b)
	require.NoError(t, err)
	_, err = c.GetOrBuild(a)
	require.NoError(t, err)

	hits, misses := c.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 3, misses)
	assert.Equal(t, 1, c.Len())
}

func TestTemplates_BuildErrorsAreNotCached(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	bad := peopleKey()
	bad.Config.Mode = "NOPE"
	_, err = c.GetOrBuild(bad)
	require.Error(t, err)
	var cfgErr *planner.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	missing := peopleKey()
	missing.SourceColumns = []string{"id", "name", "valid_from", "valid_until"}
	_, err = c.GetOrBuild(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row id column "row_id"`)

	assert.Equal(t, 0, c.Len())
}

func TestHash_SensitiveToEveryInput(t *testing.T) {
	base, err := Hash(peopleKey())
	require.NoError(t, err)

	mutations := map[string]func(*Key){
		"mode":         func(k *Key) { k.Config.Mode = "MERGE_ENTITY_PATCH" },
		"null strip":   func(k *Key) { k.Config.ExcludeIfNullColumns = []string{"name"} },
		"trace":        func(k *Key) { k.Config.LogTrace = true },
		"column order": func(k *Key) { k.TargetColumns = []string{"name", "id", "valid_from", "valid_until"} },
		"target table": func(k *Key) { k.TargetTable = "people2" },
		"subtype":      func(k *Key) { k.Config.Era.Subtype = "timestamp" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			k := peopleKey()
			mutate(&k)
			h, err := Hash(k)
			require.NoError(t, err)
			assert.NotEqual(t, base, h)
		})
	}
}

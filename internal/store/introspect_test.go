package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospect(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, peopleDDL)

	info, err := s.Introspect(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "ssn", "name", "status", "valid_from", "valid_until"}, info.ColumnNames())
	assert.Equal(t, []string{"id", "valid_from"}, info.PKColumns())
	assert.Equal(t, []string{"status"}, info.DefaultedNotNull())
	assert.Equal(t, "INTEGER", info.Columns[0].Type)
}

func TestIntrospect_MissingTable(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Introspect(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTableNotFound)
}

package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaBindResolvesColumnsByName(t *testing.T) {
	schema := NewSchema("studentId", "length", "isDeleted", "createdAt")
	assert.Equal(t, []string{"id", "studentId", "length", "isDeleted", "createdAt"}, schema.Columns())

	binding, err := schema.Bind([]string{"createdAt", "legacy", "isDeleted", "length", "studentId", "id"})
	require.NoError(t, err)

	ts := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	row := binding.NewRow().
		Set("id", "r1").
		Set("studentId", "S1").
		SetInt("length", 30).
		SetBool("isDeleted", true).
		SetTime("createdAt", ts).
		Cells()
	assert.Equal(t, []string{"2026-09-01T15:00:00Z", "", "TRUE", "30", "S1", "r1"}, row)

	r := binding.Reader(row)
	assert.Equal(t, "S1", r.String("studentId"))
	n, err := r.Int("length")
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.True(t, r.Bool("isDeleted"))
	got, err := r.Time("createdAt")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestSchemaBindReportsMissingColumns(t *testing.T) {
	_, err := NewSchema("studentId", "day").Bind([]string{"id", "studentId"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "day")
}

func TestRowReaderToleratesShortRows(t *testing.T) {
	binding, err := NewSchema("notes", "length").Bind([]string{"id", "notes", "length"})
	require.NoError(t, err)

	r := binding.Reader([]string{"r1"})
	assert.Equal(t, "", r.String("notes"))
	n, err := r.Int("length")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = binding.Reader([]string{"r1", "", "abc"}).Int("length")
	assert.Error(t, err)
}

func TestRewriteKeepsUnknownColumns(t *testing.T) {
	binding, err := NewSchema("notes").Bind([]string{"id", "notes", "legacy"})
	require.NoError(t, err)

	row := binding.Rewrite([]string{"r1", "old", "keep"}).Set("notes", "new").Cells()
	assert.Equal(t, []string{"r1", "new", "keep"}, row)
}

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/normerr"
	"normlite/internal/types"
)

func TestNewTableAppendsImplicitColumns(t *testing.T) {
	tbl, err := NewTable("students", "notion", []*Column{
		NewColumn("id", types.Integer{}, false),
		NewColumn("name", types.String{IsTitle: true}, false),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.Columns().Len())
	idCol, ok := tbl.FindColumn(ImplicitObjectIDColumn)
	require.True(t, ok)
	assert.True(t, idCol.PrimaryKey)
	assert.Same(t, tbl, idCol.Parent())

	archCol, ok := tbl.FindColumn(ImplicitArchivedColumn)
	require.True(t, ok)
	assert.False(t, archCol.PrimaryKey)
}

func TestPrimaryKeyConstraintIncludesImplicitLast(t *testing.T) {
	tbl, err := NewTable("students", "notion", []*Column{
		NewColumn("id", types.Integer{}, true),
		NewColumn("name", types.String{IsTitle: true}, false),
	})
	require.NoError(t, err)

	pkCols := tbl.PrimaryKey().Columns()
	require.Len(t, pkCols, 2)
	assert.Equal(t, "id", pkCols[0].Name)
	assert.Equal(t, ImplicitObjectIDColumn, pkCols[1].Name)
}

func TestDuplicateColumnNameFails(t *testing.T) {
	_, err := NewTable("students", "notion", []*Column{
		NewColumn("id", types.Integer{}, false),
		NewColumn("id", types.Integer{}, false),
	})
	require.Error(t, err)
	var dup *normerr.DuplicateColumnError
	require.ErrorAs(t, err, &dup)
}

func TestReadOnlyColumnsMutationFailsUniformly(t *testing.T) {
	tbl, err := NewTable("students", "notion", nil)
	require.NoError(t, err)

	ro := tbl.Columns().ReadOnly()
	assert.Equal(t, tbl.Columns().Len(), ro.Len())

	err = ro.Add(NewColumn("x", types.Integer{}, false))
	require.Error(t, err)
	var invalid *normerr.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestMetaDataDuplicateAddFails(t *testing.T) {
	md := NewMetaData()
	tbl, err := NewTable("students", "notion", nil)
	require.NoError(t, err)
	require.NoError(t, md.Add(tbl))

	dup, err := NewTable("students", "notion", nil)
	require.NoError(t, err)
	err = md.Add(dup)
	require.Error(t, err)
	var invalid *normerr.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestMetaDataContainsAndGet(t *testing.T) {
	md := NewMetaData()
	assert.False(t, md.Contains("students"))

	tbl, err := NewTable("students", "notion", nil)
	require.NoError(t, err)
	require.NoError(t, md.Add(tbl))

	assert.True(t, md.Contains("students"))
	got, ok := md.Get("students")
	require.True(t, ok)
	assert.Same(t, tbl, got)
}

package dbapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/compiler"
	"normlite/internal/notionclient"
	"normlite/internal/schema"
	"normlite/internal/types"
)

func newStudentsTable(t *testing.T) *schema.Table {
	t.Helper()
	name := schema.NewColumn("name", types.String{IsTitle: true}, false)
	table, err := schema.NewTable("students", "notion", []*schema.Column{name})
	require.NoError(t, err)
	return table
}

func TestCursorCreateTableSetsRemoteID(t *testing.T) {
	client := notionclient.NewMemoryClient()
	c := NewCursor(client)
	table := newStudentsTable(t)

	desc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointDatabases,
		Request:  notionclient.RequestCreate,
		Table:    table,
		Payload: notionclient.Payload{
			"title":      []any{},
			"properties": notionclient.Payload{},
			"parent":     notionclient.Payload{"page_id": notionclient.RootPageID},
		},
	}
	err := c.Execute(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), c.RowCount())
	assert.Nil(t, c.Description())
	assert.NotNil(t, c.LastRowID())
	assert.NotEmpty(t, table.RemoteID())
	assert.Equal(t, c.LastObjectID(), table.RemoteID())
}

func TestCursorInsertThenSelectProducesRows(t *testing.T) {
	client := notionclient.NewMemoryClient()
	table := newStudentsTable(t)

	dbResp, err := client.Invoke(context.Background(), notionclient.EndpointDatabases, notionclient.RequestCreate, notionclient.Payload{
		"title":      []any{},
		"properties": notionclient.Payload{"name": notionclient.Payload{"title": notionclient.Payload{}}},
		"parent":     notionclient.Payload{"page_id": notionclient.RootPageID},
	})
	require.NoError(t, err)
	table.SetRemoteID(dbResp["id"].(string))

	insertCursor := NewCursor(client)
	insertDesc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointPages,
		Request:  notionclient.RequestCreate,
		Table:    table,
		Payload: notionclient.Payload{
			"parent":     notionclient.Payload{"database_id": table.RemoteID()},
			"properties": notionclient.Payload{"name": notionclient.Payload{"title": []any{notionclient.Payload{"text": notionclient.Payload{"content": "Ada Lovelace"}}}}},
		},
	}
	require.NoError(t, insertCursor.Execute(context.Background(), insertDesc))
	assert.Equal(t, int64(1), insertCursor.RowCount())
	require.NotNil(t, insertCursor.Description())

	row, err := insertCursor.FetchOne()
	require.NoError(t, err)
	require.NotNil(t, row)
	name, err := row.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", name)

	second, err := insertCursor.FetchOne()
	require.NoError(t, err)
	assert.Nil(t, second)

	selectCursor := NewCursor(client)
	selectDesc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointDatabases,
		Request:  notionclient.RequestQuery,
		Table:    table,
		Payload:  notionclient.Payload{"database_id": table.RemoteID()},
	}
	require.NoError(t, selectCursor.Execute(context.Background(), selectDesc))
	rows, err := selectCursor.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	empty, err := selectCursor.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCursorClosedFailsOperations(t *testing.T) {
	client := notionclient.NewMemoryClient()
	c := NewCursor(client)
	c.Close()
	err := c.Execute(context.Background(), compiler.CallDescriptor{})
	assert.Error(t, err)
	_, err = c.FetchOne()
	assert.Error(t, err)
}

func TestCursorPagesCreateMissingPropertiesFails(t *testing.T) {
	client := notionclient.NewMemoryClient()
	c := NewCursor(client)
	desc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointPages,
		Request:  notionclient.RequestCreate,
		Payload:  notionclient.Payload{"parent": notionclient.Payload{}},
	}
	err := c.Execute(context.Background(), desc)
	assert.Error(t, err)
}

type fakeStager struct {
	staged *TransactionCursor
}

func (f *fakeStager) Stage(tc *TransactionCursor) error {
	f.staged = tc
	return nil
}

func TestTransactionCursorDefersExecution(t *testing.T) {
	client := notionclient.NewMemoryClient()
	stager := &fakeStager{}
	desc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointDatabases,
		Request:  notionclient.RequestCreate,
		Payload: notionclient.Payload{
			"title":      []any{},
			"properties": notionclient.Payload{},
			"parent":     notionclient.Payload{"page_id": notionclient.RootPageID},
		},
	}
	tc := NewTransactionCursor(client, desc, stager)
	require.NoError(t, tc.Execute(context.Background()))
	assert.Same(t, tc, stager.staged)

	_, err := tc.RowCount()
	assert.Error(t, err, "accessing before commit must fail")

	require.NoError(t, tc.RunDeferred(context.Background()))
	rc, err := tc.RowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rc)
}

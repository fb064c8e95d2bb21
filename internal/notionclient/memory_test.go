package notionclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientSeedsStableRoot(t *testing.T) {
	c := NewMemoryClient()
	resp, err := c.Invoke(context.Background(), EndpointPages, RequestRetrieve, Payload{"page_id": RootPageID})
	require.NoError(t, err)
	assert.Equal(t, RootPageID, resp["id"])

	c.Reset()
	resp, err = c.Invoke(context.Background(), EndpointPages, RequestRetrieve, Payload{"page_id": RootPageID})
	require.NoError(t, err)
	assert.Equal(t, RootPageID, resp["id"])
}

func TestMemoryClientCreateQueryDatabase(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	db, err := c.Invoke(ctx, EndpointDatabases, RequestCreate, Payload{
		"title":      []any{Payload{"text": Payload{"content": "students"}}},
		"properties": Payload{"name": Payload{"title": Payload{}}},
		"parent":     Payload{"page_id": RootPageID},
	})
	require.NoError(t, err)
	dbID := db["id"].(string)

	_, err = c.Invoke(ctx, EndpointPages, RequestCreate, Payload{
		"parent": Payload{"database_id": dbID},
		"properties": Payload{
			"name": Payload{"title": []any{Payload{"text": Payload{"content": "Isaac Newton"}}}},
		},
	})
	require.NoError(t, err)

	result, err := c.Invoke(ctx, EndpointDatabases, RequestQuery, Payload{"database_id": dbID})
	require.NoError(t, err)
	results := result["results"].([]any)
	require.Len(t, results, 1)
}

func TestMemoryClientUnknownOperation(t *testing.T) {
	c := NewMemoryClient()
	_, err := c.Invoke(context.Background(), Endpoint("widgets"), RequestCreate, Payload{})
	require.Error(t, err)
}

func TestFileClientRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	fc, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := fc.Invoke(ctx, EndpointDatabases, RequestCreate, Payload{
		"title":      []any{},
		"properties": Payload{},
		"parent":     Payload{"page_id": RootPageID},
	})
	require.NoError(t, err)
	dbID := db["id"].(string)

	require.NoError(t, fc.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	resp, err := reopened.Invoke(ctx, EndpointDatabases, RequestRetrieve, Payload{"database_id": dbID})
	require.NoError(t, err)
	assert.Equal(t, dbID, resp["id"])
}

package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/compiler"
	"normlite/internal/dbapi"
	"normlite/internal/notionclient"
)

type noopStager struct{}

func (noopStager) Stage(*dbapi.TransactionCursor) error { return nil }

func TestCursorOperationCommitAndRollbackArchivesPage(t *testing.T) {
	client := notionclient.NewMemoryClient()
	ctx := context.Background()

	dbResp, err := client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestCreate, notionclient.Payload{
		"title":      []any{},
		"properties": notionclient.Payload{"name": notionclient.Payload{"title": notionclient.Payload{}}},
		"parent":     notionclient.Payload{"page_id": notionclient.RootPageID},
	})
	require.NoError(t, err)
	dbID := dbResp["id"].(string)

	desc := compiler.CallDescriptor{
		Endpoint: notionclient.EndpointPages,
		Request:  notionclient.RequestCreate,
		Payload: notionclient.Payload{
			"parent":     notionclient.Payload{"database_id": dbID},
			"properties": notionclient.Payload{"name": notionclient.Payload{"title": []any{notionclient.Payload{"text": notionclient.Payload{"content": "Ada"}}}}},
		},
	}
	tc := dbapi.NewTransactionCursor(client, desc, noopStager{})
	op := NewCursorOperation(client, tc)

	require.NoError(t, op.DoCommit(ctx))
	id, ok := tc.CommittedID()
	require.True(t, ok)

	require.NoError(t, op.DoRollback(ctx))

	resp, err := client.Invoke(ctx, notionclient.EndpointPages, notionclient.RequestRetrieve, notionclient.Payload{"page_id": id})
	require.NoError(t, err)
	assert.Equal(t, true, resp["archived"])
}

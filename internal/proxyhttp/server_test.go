package proxyhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/notionclient"
	"normlite/internal/reflect"
	"normlite/internal/schema"
)

func newTestServer() *Server {
	client := notionclient.NewMemoryClient()
	md := schema.NewMetaData()
	return NewServer(client, md, reflect.New(client))
}

func post(t *testing.T, srv *Server, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestBeginReturnsActiveTransaction(t *testing.T) {
	srv := newTestServer()
	rec, env := post(t, srv, "/transactions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", env.State)
	assert.NotEmpty(t, env.TransactionID)
}

func TestFullLifecycleCreateInsertSelectCommit(t *testing.T) {
	srv := newTestServer()
	_, begin := post(t, srv, "/transactions", nil)
	tid := begin.TransactionID

	_, create := post(t, srv, "/transactions/"+tid+"/insert", stageRequest{
		SQL: `CREATE TABLE students (id int, name title_varchar(255))`,
	})
	assert.Equal(t, "ACTIVE", create.State)
	assert.Empty(t, create.Error)

	_, insert := post(t, srv, "/transactions/"+tid+"/insert", stageRequest{
		SQL: `INSERT INTO students (id, name) VALUES (1, 'Ada')`,
	})
	assert.Equal(t, "ACTIVE", insert.State)

	_, sel := post(t, srv, "/transactions/"+tid+"/insert", stageRequest{
		SQL: `SELECT id, name FROM students`,
	})
	assert.Equal(t, "ACTIVE", sel.State)

	rec, commit := post(t, srv, "/transactions/"+tid+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMMITTED", commit.State)
	require.Len(t, commit.Data, 1)
	assert.ElementsMatch(t, []string{"id", "name"}, commit.Data[0].Columns)
	assert.Len(t, commit.Data[0].Rows, 1)
}

func TestRollbackReturnsAborted(t *testing.T) {
	srv := newTestServer()
	_, begin := post(t, srv, "/transactions", nil)
	tid := begin.TransactionID

	post(t, srv, "/transactions/"+tid+"/insert", stageRequest{
		SQL: `CREATE TABLE students (id int, name title_varchar(255))`,
	})

	rec, rollback := post(t, srv, "/transactions/"+tid+"/rollback", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABORTED", rollback.State)
}

func TestInsertOnUnknownTransactionFails(t *testing.T) {
	srv := newTestServer()
	rec, env := post(t, srv, "/transactions/does-not-exist/insert", stageRequest{SQL: "SELECT 1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, env.Error)
}

func TestInsertWithBadSQLFails(t *testing.T) {
	srv := newTestServer()
	_, begin := post(t, srv, "/transactions", nil)
	tid := begin.TransactionID

	rec, env := post(t, srv, "/transactions/"+tid+"/insert", stageRequest{SQL: "NOT VALID SQL"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, env.Error)
}

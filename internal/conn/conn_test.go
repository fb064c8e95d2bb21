package conn

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/parser"
	"normlite/internal/reflect"
	"normlite/internal/schema"
)

func newConnection() (*Connection, notionclient.Client) {
	client := notionclient.NewMemoryClient()
	md := schema.NewMetaData()
	r := reflect.New(client)
	return New(client, md, r), client
}

func TestCreateInsertSelectWithinOneTransaction(t *testing.T) {
	c, _ := newConnection()
	ctx := context.Background()

	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255), grade varchar(1))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, createNode, nil)
	require.NoError(t, err)

	insert1, err := parser.Parse(`INSERT INTO students (id, name, grade) VALUES (1, 'Isaac Newton', 'B')`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, insert1, nil)
	require.NoError(t, err)

	insert2, err := parser.Parse(`INSERT INTO students (id, name, grade) VALUES (2, 'Galileo Galilei', 'A')`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, insert2, nil)
	require.NoError(t, err)

	selectNode, err := parser.Parse(`SELECT id, name, grade FROM students`)
	require.NoError(t, err)
	selectCursor, err := c.Execute(ctx, selectNode, nil)
	require.NoError(t, err)

	// Deferred: before commit, every accessor fails.
	_, err = selectCursor.FetchAll()
	assert.Error(t, err)

	require.NoError(t, c.Commit(ctx))

	rows, err := selectCursor.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	meta, err := selectCursor.Description()
	require.NoError(t, err)
	require.NotEmpty(t, meta)

	// The composite's first set is the SELECT's: it forwards to the same
	// cursor selectCursor already drained above, so no rows remain while
	// its row count still reports both.
	composite, ok := c.LastResult()
	require.True(t, ok)
	compositeCount, err := composite.RowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), compositeCount)
	compositeRows, err := composite.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, compositeRows)
}

func TestParametricInsertInvisibleBeforeCommit(t *testing.T) {
	c, _ := newConnection()
	ctx := context.Background()

	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255), grade varchar(1))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, createNode, nil)
	require.NoError(t, err)

	for i, row := range []map[string]any{
		{"id": int64(1), "name": "Isaac Newton", "grade": "B"},
		{"id": int64(2), "name": "Galileo Galilei", "grade": "A"},
	} {
		insertNode, err := parser.Parse(`INSERT INTO students (id, name, grade) VALUES (:id, :name, :grade)`)
		require.NoError(t, err)
		_, err = c.Execute(ctx, insertNode, row)
		require.NoError(t, err, "insert %d", i)
	}
	require.NoError(t, c.Commit(ctx))

	paramInsert, err := parser.Parse(`INSERT INTO students (id, name, grade) VALUES (:id, :name, :grade)`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, paramInsert, map[string]any{"id": int64(3), "name": "Newton", "grade": "C"})
	require.NoError(t, err)

	selectNode, err := parser.Parse(`SELECT id, name, grade FROM students`)
	require.NoError(t, err)
	selectCursor, err := c.Execute(ctx, selectNode, nil)
	require.NoError(t, err)

	_, err = selectCursor.FetchAll()
	assert.Error(t, err, "deferred select must not be visible before commit")

	require.NoError(t, c.Commit(ctx))

	rows, err := selectCursor.FetchAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

// blockingClient delays the first pages.create call until released,
// so a test can observe a transaction mid-commit — lock held,
// DoCommit not yet returned — the window scenario 3 (lock conflict)
// needs. Every subsequent call passes straight through.
type blockingClient struct {
	notionclient.Client
	started chan struct{}
	hold    chan struct{}
	once    sync.Once
}

func (b *blockingClient) Invoke(ctx context.Context, e notionclient.Endpoint, r notionclient.Request, p notionclient.Payload) (notionclient.Payload, error) {
	if e == notionclient.EndpointPages && r == notionclient.RequestCreate {
		b.once.Do(func() {
			close(b.started)
			<-b.hold
		})
	}
	return b.Client.Invoke(ctx, e, r, p)
}

func TestLockConflictAcrossConnectionsSharingManager(t *testing.T) {
	raw := notionclient.NewMemoryClient()
	bc := &blockingClient{Client: raw, started: make(chan struct{}), hold: make(chan struct{})}
	md := schema.NewMetaData()
	r := reflect.New(bc)
	ctx := context.Background()

	a := New(bc, md, r)
	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255))`)
	require.NoError(t, err)
	_, err = a.Execute(ctx, createNode, nil)
	require.NoError(t, err)
	require.NoError(t, a.Commit(ctx))

	// Share the same transaction manager across two connections so
	// their locks actually contend, the way two clients of one store
	// would (internal/txn's Manager owns the shared lock table).
	b := New(bc, md, r)
	b.txns = a.txns

	insertA, err := parser.Parse(`INSERT INTO students (id, name) VALUES (1, 'Ada')`)
	require.NoError(t, err)
	_, err = a.Execute(ctx, insertA, nil)
	require.NoError(t, err)

	commitErr := make(chan error, 1)
	go func() { commitErr <- a.Commit(ctx) }()
	<-bc.started // Tx A now holds EXCLUSIVE on "students" and is blocked mid-DoCommit.

	insertB, err := parser.Parse(`INSERT INTO students (id, name) VALUES (2, 'Bo')`)
	require.NoError(t, err)
	_, err = b.Execute(ctx, insertB, nil)
	require.NoError(t, err)

	err = b.Commit(ctx)
	require.Error(t, err)
	var lockErr *normerr.AcquireLockFailed
	require.ErrorAs(t, err, &lockErr)

	close(bc.hold)
	require.NoError(t, <-commitErr)

	// The failed commit aborted Tx B outright; a retry opens a fresh
	// transaction, which now acquires the lock Tx A released.
	insertRetry, err := parser.Parse(`INSERT INTO students (id, name) VALUES (2, 'Bo')`)
	require.NoError(t, err)
	_, err = b.Execute(ctx, insertRetry, nil)
	require.NoError(t, err)
	require.NoError(t, b.Commit(ctx))
}

func TestRollbackLeavesNoNewPages(t *testing.T) {
	c, client := newConnection()
	ctx := context.Background()

	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, createNode, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	insert1, err := parser.Parse(`INSERT INTO students (id, name) VALUES (1, 'Ada')`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, insert1, nil)
	require.NoError(t, err)

	insert2, err := parser.Parse(`INSERT INTO students (id, name) VALUES (2, 'Bo')`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, insert2, nil)
	require.NoError(t, err)

	require.NoError(t, c.Rollback(ctx))

	table, ok := newMetaDataLookup(c)
	require.True(t, ok)

	resp, err := client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestQuery, notionclient.Payload{"database_id": table.RemoteID()})
	require.NoError(t, err)
	results, _ := resp["results"].([]any)
	assert.Empty(t, results)
}

func newMetaDataLookup(c *Connection) (*schema.Table, bool) {
	return c.md.Get("students")
}

func TestDropTableUnregistersCatalogAndReflectorOnCommit(t *testing.T) {
	c, client := newConnection()
	ctx := context.Background()

	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, createNode, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	table, ok := c.md.Get("students")
	require.True(t, ok)
	dbID := table.RemoteID()

	dropNode, err := parser.Parse(`DROP TABLE students`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, dropNode, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	_, ok = c.md.Get("students")
	assert.False(t, ok, "catalog should no longer carry a dropped table")

	hasTable, err := c.reflector.HasTable(ctx, "students")
	require.NoError(t, err)
	assert.False(t, hasTable, "reflector should no longer resolve a dropped table's remote id")

	resp, err := client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestRetrieve, notionclient.Payload{"database_id": dbID})
	require.NoError(t, err)
	assert.True(t, resp["archived"].(bool))

	// A subsequent CREATE TABLE of the same name must succeed, not fail
	// InvalidRequestError against a table that no longer exists remotely.
	recreateNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, recreateNode, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	newTable, ok := c.md.Get("students")
	require.True(t, ok)
	assert.NotEqual(t, dbID, newTable.RemoteID())
}

func TestReflectionRoundTrip(t *testing.T) {
	client := notionclient.NewMemoryClient()
	md := schema.NewMetaData()
	r := reflect.New(client)
	c := New(client, md, r)
	ctx := context.Background()

	createNode, err := parser.Parse(`CREATE TABLE students (id int, name title_varchar(255))`)
	require.NoError(t, err)
	_, err = c.Execute(ctx, createNode, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx))

	freshMD := schema.NewMetaData()
	freshReflector := reflect.New(client)
	// Simulate process restart: the reflector for a second process
	// would need its registry repopulated out of band (see
	// internal/reflect's package doc). Register using the id the
	// first connection's reflector already learned.
	originalTable, ok := md.Get("students")
	require.True(t, ok)
	freshReflector.Register("students", originalTable.RemoteID())

	rebuiltTable, err := schema.NewTable("students", "notion", []*schema.Column{
		schema.NewColumn("id", originalTable.Columns().All()[0].Engine, false),
		schema.NewColumn("name", originalTable.Columns().All()[1].Engine, false),
	})
	require.NoError(t, err)
	require.NoError(t, freshMD.Add(rebuiltTable))

	require.NoError(t, freshMD.Reflect(ctx, freshReflector))
	assert.Equal(t, originalTable.RemoteID(), rebuiltTable.RemoteID())
}

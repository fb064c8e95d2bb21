package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/ast"
	"normlite/internal/normerr"
)

func TestParseCreateTable(t *testing.T) {
	node, err := Parse(`CREATE TABLE students (id int, name title_varchar(255), grade varchar(1))`)
	require.NoError(t, err)

	ct, ok := node.(*ast.CreateTable)
	require.True(t, ok)
	assert.Equal(t, "students", ct.Table)
	require.Len(t, ct.Columns, 3)
	assert.Equal(t, "id", ct.Columns[0].Name)
	assert.Equal(t, "INT", ct.Columns[0].Type.Name)
	assert.Equal(t, "TITLE_VARCHAR", ct.Columns[1].Type.Name)
	assert.Equal(t, 255, ct.Columns[1].Type.Size)
}

func TestParseInsertLiteral(t *testing.T) {
	node, err := Parse(`INSERT INTO students (id, name, grade) VALUES (1, 'Isaac Newton', 'B')`)
	require.NoError(t, err)
	ins, ok := node.(*ast.Insert)
	require.True(t, ok)
	assert.Equal(t, "students", ins.Table)
	assert.Equal(t, []string{"id", "name", "grade"}, ins.Columns)
	require.Len(t, ins.Values, 3)
	assert.Equal(t, int64(1), ins.Values[0].(*ast.Constant).Value)
	assert.Equal(t, "Isaac Newton", ins.Values[1].(*ast.Constant).Value)
}

func TestParseInsertParams(t *testing.T) {
	node, err := Parse(`INSERT INTO students (id, name, grade) VALUES (:id, :name, :grade)`)
	require.NoError(t, err)
	ins, ok := node.(*ast.Insert)
	require.True(t, ok)
	require.Len(t, ins.Values, 3)
	p, ok := ins.Values[0].(*ast.Param)
	require.True(t, ok)
	assert.Equal(t, "id", p.Name)
}

func TestParseSelectStar(t *testing.T) {
	node, err := Parse(`SELECT * FROM students`)
	require.NoError(t, err)
	sel, ok := node.(*ast.Select)
	require.True(t, ok)
	assert.True(t, sel.Star)
	assert.Equal(t, "students", sel.Table)
	assert.Nil(t, sel.Where)
}

func TestParseSelectWhereAndOrPrecedence(t *testing.T) {
	node, err := Parse(`SELECT id, name FROM students WHERE grade = 'A' OR grade = 'B' AND id > 1`)
	require.NoError(t, err)
	sel, ok := node.(*ast.Select)
	require.True(t, ok)
	require.NotNil(t, sel.Where)

	top, ok := sel.Where.Expr.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "OR", top.Op)
	right, ok := top.Right.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "AND", right.Op)
}

func TestParseSelectWhereParens(t *testing.T) {
	node, err := Parse(`SELECT * FROM students WHERE (grade = 'A' OR grade = 'B') AND id > 1`)
	require.NoError(t, err)
	sel := node.(*ast.Select)
	top, ok := sel.Where.Expr.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "AND", top.Op)
	left, ok := top.Left.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "OR", left.Op)
}

func TestParseDropTable(t *testing.T) {
	node, err := Parse(`DROP TABLE students`)
	require.NoError(t, err)
	dt, ok := node.(*ast.DropTable)
	require.True(t, ok)
	assert.Equal(t, "students", dt.Table)
}

// TestLexParseIdempotence exercises spec.md §8's universal property:
// parse(tokens(sql)) yields an AST whose canonical rendering re-parses
// to an equal AST.
func TestLexParseIdempotence(t *testing.T) {
	sqls := []string{
		`CREATE TABLE students (id int, name title_varchar(255) PRIMARY KEY)`,
		`INSERT INTO students (id, name) VALUES (1, 'Newton')`,
		`INSERT INTO students (id, name) VALUES (:id, :name)`,
		`SELECT id, name FROM students WHERE id = 1 AND (name = 'a' OR name = 'b')`,
		`DROP TABLE students`,
	}
	for _, sql := range sqls {
		node, err := Parse(sql)
		require.NoError(t, err)

		reparsed, err := Parse(node.String())
		require.NoError(t, err, "re-parsing canonical rendering of %q", sql)

		assert.Equal(t, node.String(), reparsed.String())
	}
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse(`CREATE TABLE (id int)`)
	require.Error(t, err)
	var synErr *normerr.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 14, synErr.Position.Column)
}

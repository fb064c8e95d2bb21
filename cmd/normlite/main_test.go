package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatementsSkipsBlankSegments(t *testing.T) {
	script := `
CREATE TABLE students (id int, name title_varchar(255));

INSERT INTO students (id, name) VALUES (1, 'Ada');
`
	stmts := splitStatements(script)
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE")
	assert.Contains(t, stmts[1], "INSERT INTO")
}

func TestSplitStatementsEmptyScript(t *testing.T) {
	assert.Empty(t, splitStatements("   \n  "))
}

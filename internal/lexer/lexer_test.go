package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlite/internal/normerr"
)

func TestLexerCreateTable(t *testing.T) {
	toks, err := All(`CREATE TABLE students (id int, name title_varchar(255), grade varchar(1))`)
	require.NoError(t, err)

	require.NotEmpty(t, toks)
	assert.Equal(t, EOF, toks[len(toks)-1].Kind)

	assert.Equal(t, Token{Kind: KEYWORD, Lexeme: "CREATE", Position: toks[0].Position}, toks[0])
	assert.Equal(t, KEYWORD, toks[1].Kind)
	assert.Equal(t, "TABLE", toks[1].Lexeme)
	assert.Equal(t, IDENTIFIER, toks[2].Kind)
	assert.Equal(t, "students", toks[2].Lexeme)
}

func TestLexerStringLiteral(t *testing.T) {
	toks, err := All(`'Isaac Newton'`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, STRING, toks[0].Kind)
	assert.Equal(t, "Isaac Newton", toks[0].Lexeme)
}

func TestLexerQuoteEscape(t *testing.T) {
	toks, err := All(`'it''s fine'`)
	require.NoError(t, err)
	assert.Equal(t, "it's fine", toks[0].Lexeme)
}

func TestLexerComparisonOperators(t *testing.T) {
	toks, err := All(`= != < <= > >=`)
	require.NoError(t, err)
	want := []string{"=", "!=", "<", "<=", ">", ">="}
	for i, w := range want {
		assert.Equal(t, SYMBOL, toks[i].Kind)
		assert.Equal(t, w, toks[i].Lexeme)
	}
}

func TestLexerKeywordCaseInsensitive(t *testing.T) {
	toks, err := All(`select * from Students where Id = 1`)
	require.NoError(t, err)
	assert.Equal(t, KEYWORD, toks[0].Kind)
	assert.Equal(t, "select", toks[0].Lexeme)
	// identifiers preserve case
	idx := -1
	for i, tok := range toks {
		if tok.Lexeme == "Students" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, IDENTIFIER, toks[idx].Kind)
}

func TestLexerUnrecognizedCharacter(t *testing.T) {
	_, err := All(`SELECT # FROM t`)
	require.Error(t, err)
	var synErr *normerr.SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestLexerParamPlaceholder(t *testing.T) {
	toks, err := All(`:name`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, SYMBOL, toks[0].Kind)
	assert.Equal(t, ":", toks[0].Lexeme)
	assert.Equal(t, IDENTIFIER, toks[1].Kind)
	assert.Equal(t, "name", toks[1].Lexeme)
}
